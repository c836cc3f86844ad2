package render

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/clock"
	"github.com/daedaleanai/qlflow/design"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/util"
)

const banner = "Automatically generated by qlflow v0.3.1. Do not edit."

func attrs(kv ...string) util.OrderedMap[string, string] {
	m := util.NewOrderedMap[string, string]()
	for i := 0; i < len(kv); i += 2 {
		m.Insert(kv[i], kv[i+1])
	}
	return m
}

// twelveMHzDesign has one externally clocked 12 MHz domain and two single-bit ports.
func twelveMHzDesign() *design.Design {
	d := &design.Design{Name: "top", Verilog: "module top(); endmodule\n"}
	d.DebugVerilog = d.Verilog
	d.AddPort(design.Port{Name: "clk", Dir: "i", Pins: []string{"A1"}, Attrs: attrs("IO_STANDARD", "LVCMOS33")})
	d.AddPort(design.Port{Name: "led", Dir: "o", Pins: []string{"C3"}, Attrs: attrs("DRIVE", "8")})
	d.AddClockConstraint("clk", 12e6)
	return d
}

func newContext(t *testing.T, d *design.Design, p *platform.Platform) *Context {
	t.Helper()
	if p == nil {
		p = &platform.Platform{Device: "ql-eos-s3", Package: "PU64"}
	}
	ctx, err := NewContext(d, p, banner)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return ctx
}

func render(t *testing.T, id ID, ctx *Context) string {
	t.Helper()
	text, err := Render(id, ctx)
	if err != nil {
		t.Fatalf("failed to render %s: %s", id, err)
	}
	return text
}

func TestConstraintFiles(t *testing.T) {
	ctx := newContext(t, twelveMHzDesign(), nil)

	pcf := render(t, PinConstraints, ctx)
	if pcf != "# "+banner+"\nset_io clk A1\nset_io led C3\n" {
		t.Fatalf("unexpected pcf:\n%s", pcf)
	}

	xdc := render(t, AttrConstraints, ctx)
	expectedXdc := "# " + banner + "\n" +
		"set_property IO_STANDARD LVCMOS33 [get_ports {clk}]\n" +
		"set_property DRIVE 8 [get_ports {led}]\n" +
		"# (add_constraints placeholder)\n"
	if xdc != expectedXdc {
		t.Fatalf("unexpected xdc:\n%s", xdc)
	}

	sdc := render(t, TimingConstraints, ctx)
	if sdc != "# "+banner+"\ncreate_clock -period 8.333333333333334 clk\n" {
		t.Fatalf("unexpected sdc:\n%s", sdc)
	}
}

func TestTimingConstraints(t *testing.T) {
	d := &design.Design{Name: "top", Verilog: "//\n"}
	d.AddPort(design.Port{Name: "clk100", Pins: []string{"A1"}})
	d.AddPort(design.Port{Name: "clk.50", Pins: []string{"A2"}})
	d.AddClockConstraint("clk100", 100e6)
	d.AddClockConstraint("clk.50", 50e6)
	d.AddClockConstraint("internal", 75e6)

	sdc := render(t, TimingConstraints, newContext(t, d, nil))
	expected := "# " + banner + "\n" +
		"create_clock -period 1 clk100\n" +
		"create_clock -period 2 clk_2e_50\n"
	if sdc != expected {
		t.Fatalf("unexpected sdc:\n%s", sdc)
	}
}

func TestAttrConstraintsOverride(t *testing.T) {
	d := &design.Design{Name: "top", Verilog: "//\n"}
	d.AddPort(design.Port{Name: "bus", Width: 2, Pins: []string{"D1", "D2"}, Attrs: attrs("PULL", "UP", "SLEW", "SLOW")})
	p := &platform.Platform{Overrides: map[string]string{AddConstraintsOverride: "set_property FOO 1 [get_ports {bus[0]}]\n"}}

	xdc := render(t, AttrConstraints, newContext(t, d, p))
	expected := "# " + banner + "\n" +
		"set_property PULL UP [get_ports {bus[0]}]\n" +
		"set_property SLEW SLOW [get_ports {bus[0]}]\n" +
		"set_property PULL UP [get_ports {bus[1]}]\n" +
		"set_property SLEW SLOW [get_ports {bus[1]}]\n" +
		"set_property FOO 1 [get_ports {bus[0]}]\n"
	if xdc != expected {
		t.Fatalf("unexpected xdc:\n%s", xdc)
	}
}

func TestDeterministic(t *testing.T) {
	for _, id := range IDs() {
		if id == BuildScript {
			continue
		}
		a := render(t, id, newContext(t, twelveMHzDesign(), nil))
		b := render(t, id, newContext(t, twelveMHzDesign(), nil))
		if a != b {
			t.Fatalf("%s renders differently for identical inputs", id)
		}
	}
}

func TestVerilogWithSyncDomain(t *testing.T) {
	p := &platform.Platform{Device: "ql-eos-s3", Package: "PU64", DefaultClock: platform.InternalOscillator{Freq: 60000000, Div: 4}}
	d := &design.Design{Name: "top", Top: "top_core", Verilog: "module top_core(); endmodule", Uses: []string{"sync"}}
	d.DebugVerilog = "module top_core(); /* debug */ endmodule\n"
	d.AddPort(design.Port{Name: "led", Dir: "o", Pins: []string{"C3"}})
	if err := d.Elaborate(p, clock.Synthesizer{Platform: p}.CreateMissingDomain); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ctx := newContext(t, d, p)

	modules := "\nmodule top_sync_domain(\n" +
		"  (* keep = \"TRUE\" *) output wire sync_clk,\n" +
		"  output wire sync_rst\n" +
		");\n" +
		"  wire sys_clk0;\n" +
		"  wire clk_i;\n" +
		"  assign sync_clk = clk_i;\n" +
		"  qlal4s3b_cell_macro osc (\n" +
		"    .Sys_Clk0(sys_clk0)\n" +
		"  );\n" +
		"  gclkbuff osc_buf (\n" +
		"    .A(sys_clk0),\n" +
		"    .Z(clk_i)\n" +
		"  );\n" +
		"  ResetSynchronizer #(.domain(\"sync\")) reset_sync (\n" +
		"    .arst(1'b0),\n" +
		"    .clk(sync_clk),\n" +
		"    .rst(sync_rst)\n" +
		"  );\n" +
		"endmodule\n" +
		"\nmodule top(\n" +
		"  output wire led\n" +
		");\n" +
		"  (* keep = \"TRUE\" *) wire sync_clk;\n" +
		"  wire sync_rst;\n" +
		"  top_sync_domain sync_domain (\n" +
		"    .sync_clk(sync_clk),\n" +
		"    .sync_rst(sync_rst)\n" +
		"  );\n" +
		"  top_core core (\n" +
		"    .led(led),\n" +
		"    .sync_clk(sync_clk),\n" +
		"    .sync_rst(sync_rst)\n" +
		"  );\n" +
		"endmodule\n"

	v := render(t, Verilog, ctx)
	if v != "/* "+banner+" */\nmodule top_core(); endmodule\n"+modules {
		t.Fatalf("unexpected verilog:\n%s", v)
	}
	dv := render(t, DebugVerilog, ctx)
	if dv != "/* "+banner+" */\nmodule top_core(); /* debug */ endmodule\n"+modules {
		t.Fatalf("unexpected debug verilog:\n%s", dv)
	}

	// The internally generated clock has no port and therefore no timing constraint line.
	if sdc := render(t, TimingConstraints, ctx); sdc != "# "+banner+"\n" {
		t.Fatalf("unexpected sdc:\n%s", sdc)
	}
}

func TestTopModuleWithExternalClock(t *testing.T) {
	p := &platform.Platform{
		Device:       "ql-eos-s3",
		Package:      "PU64",
		DefaultClock: platform.ExternalPin{Resource: "clk12"},
		Resources:    []platform.Resource{{Name: "clk12", Dir: "i", Pins: []string{"A1"}, Clock: 12e6}},
	}
	d := &design.Design{Name: "top", Top: "top_core", Verilog: "module top_core(); endmodule", Uses: []string{"sync"}}
	d.DebugVerilog = d.Verilog
	d.AddPort(design.Port{Name: "bus", Dir: "i", Width: 2, Pins: []string{"B1", "B2"}})
	if err := d.Elaborate(p, clock.Synthesizer{Platform: p}.CreateMissingDomain); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ctx := newContext(t, d, p)
	v := render(t, Verilog, ctx)

	parts := []string{
		"\nmodule top(\n  input wire [1:0] bus,\n  (* keep = \"TRUE\" *) input wire clk12_0__io\n);\n",
		"  top_sync_domain sync_domain (\n    .clk12_0__io(clk12_0__io),\n    .sync_clk(sync_clk),\n    .sync_rst(sync_rst)\n  );\n",
		"  top_core core (\n    .bus(bus),\n    .sync_clk(sync_clk),\n    .sync_rst(sync_rst)\n  );\n",
	}
	for _, part := range parts {
		if !strings.Contains(v, part) {
			t.Fatalf("verilog does not contain\n%s\ngot:\n%s", part, v)
		}
	}
	if sdc := render(t, TimingConstraints, ctx); sdc != "# "+banner+"\ncreate_clock -period 8.333333333333334 clk12_0__io\n" {
		t.Fatalf("unexpected sdc:\n%s", sdc)
	}
}

func TestBuildScript(t *testing.T) {
	ctx := newContext(t, twelveMHzDesign(), nil)
	ctx.Commands = [][]string{
		{"symbiflow_synth", "-t", "top"},
		{"python3", "-m", "x", "a b"},
	}
	script := render(t, BuildScript, ctx)
	expected := "#!/bin/sh\n" +
		"# " + banner + "\n" +
		"set -e\n" +
		"if [ -n \"$QLFLOW_ENV_QLSymbiflow\" ]; then\n" +
		"  . \"$QLFLOW_ENV_QLSymbiflow\"\n" +
		"fi\n" +
		"symbiflow_synth -t top\n" +
		"python3 -m x 'a b'\n"
	if script != expected {
		t.Fatalf("unexpected build script:\n%s", script)
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render("bitstream", &Context{Name: "top", Banner: banner}); err == nil {
		t.Fatal("unknown template should fail")
	}
	if _, err := Render(PinConstraints, &Context{Name: "top"}); err == nil {
		t.Fatal("missing banner should fail")
	}
	if _, err := Render(BuildScript, &Context{Name: "top", Banner: banner}); err == nil {
		t.Fatal("build script without commands should fail")
	}

	d := &design.Design{Name: "top"}
	d.AddPort(design.Port{Name: "floating"})
	_, err := NewContext(d, &platform.Platform{}, banner)
	var extractionErr *design.ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Port != "floating" {
		t.Fatalf("expected an extraction error, got %v", err)
	}
}

func TestRenderAll(t *testing.T) {
	ctx := newContext(t, twelveMHzDesign(), nil)
	artifacts, err := RenderAll(ctx, Verilog, DebugVerilog, PinConstraints, AttrConstraints, TimingConstraints)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	names := []string{"top.v", "top.debug.v", "top.pcf", "top.xdc", "top.sdc"}
	if len(artifacts) != len(names) {
		t.Fatalf("unexpected number of artifacts: %d", len(artifacts))
	}
	for i, a := range artifacts {
		if a.Name != names[i] {
			t.Fatalf("unexpected artifact name %s", a.Name)
		}
	}

	dir := t.TempDir()
	if err := WriteArtifacts(dir, artifacts); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestBanner(t *testing.T) {
	if Banner("") != banner {
		t.Fatalf("unexpected banner %s", Banner(""))
	}
	if Banner("0123abc") != banner+" Source revision 0123abc." {
		t.Fatalf("unexpected banner %s", Banner("0123abc"))
	}
}
