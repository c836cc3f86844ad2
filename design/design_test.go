package design

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/util"
)

func attrs(kv ...string) util.OrderedMap[string, string] {
	m := util.NewOrderedMap[string, string]()
	for i := 0; i < len(kv); i += 2 {
		m.Insert(kv[i], kv[i+1])
	}
	return m
}

func testPlatform() *platform.Platform {
	return &platform.Platform{
		Name:    "test",
		Device:  "ql-eos-s3",
		Package: "PU64",
		Resources: []platform.Resource{
			{Name: "clk12", Dir: "i", Pins: []string{"A1"}, Attrs: attrs("IO_STANDARD", "LVCMOS33"), Clock: 12e6},
			{Name: "leds", Dir: "o", Pins: []string{"C1", "C2", "C3"}, Attrs: attrs("DRIVE", "4")},
		},
	}
}

func TestPortConstraints(t *testing.T) {
	d := &Design{Name: "top"}
	d.AddPort(Port{Name: "btn", Dir: "i", Pins: []string{"B1"}, Attrs: attrs("PULL", "UP")})
	d.AddPort(Port{Name: "bus", Dir: "o", Width: 2, Pins: []string{"D1", "D2"}})

	constraints, err := d.CollectPortConstraints()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	expected := []struct{ port, pin string }{{"btn", "B1"}, {"bus[0]", "D1"}, {"bus[1]", "D2"}}
	if len(constraints) != len(expected) {
		t.Fatalf("unexpected number of constraints: %d", len(constraints))
	}
	for i, c := range constraints {
		if c.Port != expected[i].port || c.Pin != expected[i].pin {
			t.Fatalf("unexpected constraint at index %d: %s %s", i, c.Port, c.Pin)
		}
	}
	if v, _ := constraints[0].Attrs.Lookup("PULL"); v != "UP" {
		t.Fatal("attributes not carried over")
	}
}

func TestPortConstraintsMissingPin(t *testing.T) {
	d := &Design{Name: "top"}
	d.AddPort(Port{Name: "a", Pins: []string{"A1"}})
	d.AddPort(Port{Name: "bus", Width: 3, Pins: []string{"D1", ""}})
	d.AddPort(Port{Name: "z", Pins: []string{"Z1"}})

	seen := []string{}
	var extractionErr *ExtractionError
	for c, err := range d.PortConstraints() {
		if err != nil {
			if !errors.As(err, &extractionErr) {
				t.Fatalf("unexpected error type %T", err)
			}
			continue
		}
		seen = append(seen, c.Port)
	}
	if extractionErr == nil || extractionErr.Port != "bus" || extractionErr.Bit != 1 {
		t.Fatalf("unexpected extraction error %v", extractionErr)
	}
	if len(seen) != 2 || seen[1] != "bus[0]" {
		t.Fatalf("extraction did not stop at the missing pin: %v", seen)
	}

	if _, err := d.CollectPortConstraints(); err == nil {
		t.Fatal("collecting should fail")
	}
}

func TestRequest(t *testing.T) {
	p := testPlatform()
	d := &Design{Name: "top"}

	name, err := d.Request(p, "clk12", 0)
	if err != nil {
		t.Fatalf("request failed: %s", err)
	}
	if name != "clk12_0__io" {
		t.Fatalf("unexpected port name %s", name)
	}
	if _, err := d.Request(p, "clk12", 0); err == nil {
		t.Fatal("second request should fail")
	}
	if _, err := d.Request(p, "nope", 0); err == nil {
		t.Fatal("unknown resource should fail")
	}
	if _, err := d.Request(p, "leds", 0); err != nil {
		t.Fatalf("request failed: %s", err)
	}

	clocks := d.CollectClockConstraints()
	if len(clocks) != 1 || clocks[0].Port == nil || *clocks[0].Port != "clk12_0__io" || clocks[0].Frequency != 12e6 {
		t.Fatalf("unexpected clock constraints %+v", clocks)
	}
	if keep, _ := d.NetAttrs["clk12_0__io"].Lookup("keep"); keep != "TRUE" {
		t.Fatal("clock net is not kept")
	}

	constraints, err := d.CollectPortConstraints()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(constraints) != 4 || constraints[3].Port != "leds_0__io[2]" || constraints[3].Pin != "C3" {
		t.Fatalf("unexpected port constraints %+v", constraints)
	}
}

func TestClockConstraints(t *testing.T) {
	d := &Design{Name: "top"}
	d.AddPort(Port{Name: "clk", Pins: []string{"A1"}})
	d.AddClockConstraint("clk", 50e6)
	d.AddClockConstraint("pll_out", 100e6)
	d.AddClockConstraint("unconstrained", 0)
	d.AddClockConstraint("clk", 25e6)

	clocks := d.CollectClockConstraints()
	if len(clocks) != 2 {
		t.Fatalf("unexpected number of clocks: %d", len(clocks))
	}
	if clocks[0].Net != "clk" || clocks[0].Port == nil || clocks[0].Frequency != 25e6 {
		t.Fatalf("unexpected first clock %+v", clocks[0])
	}
	if clocks[1].Net != "pll_out" || clocks[1].Port != nil {
		t.Fatalf("unexpected second clock %+v", clocks[1])
	}
}

func TestElaborate(t *testing.T) {
	p := testPlatform()
	d := &Design{Name: "top", Top: "top_core", Uses: []string{"sync", "fast"}, Requests: []Request{{Resource: "leds"}}}
	d.Domains = append(d.Domains, Domain{Name: "fast", Clock: "pll"})

	calls := []string{}
	err := d.Elaborate(p, func(d *Design, name string) (*Fragment, error) {
		calls = append(calls, name)
		return &Fragment{Name: name, Domains: []Domain{{Name: name, Clock: "clk"}}}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(calls) != 1 || calls[0] != "sync" {
		t.Fatalf("unexpected missing domain calls %v", calls)
	}
	if _, ok := d.Domain("sync"); !ok || len(d.Fragments) != 1 {
		t.Fatal("fragment not merged")
	}
	if _, ok := d.Port("leds_0__io"); !ok {
		t.Fatal("resource not requested")
	}

	d = &Design{Name: "top", Uses: []string{"sync"}}
	err = d.Elaborate(p, func(d *Design, name string) (*Fragment, error) {
		return &Fragment{Name: name, Domains: []Domain{{Name: name, Clock: "clk"}}}, nil
	})
	if err == nil {
		t.Fatal("the netlist top module cannot share the name of the generated top module")
	}

	d = &Design{Name: "top", Uses: []string{"sync"}}
	err = d.Elaborate(p, func(d *Design, name string) (*Fragment, error) { return nil, nil })
	if err == nil {
		t.Fatal("an unprovided domain should fail elaboration")
	}
	cause := errors.New("boom")
	err = d.Elaborate(p, func(d *Design, name string) (*Fragment, error) { return nil, cause })
	if errors.Cause(err) != cause {
		t.Fatalf("unexpected error %v", err)
	}
}

const manifest = `version: 1
name: blinky
top: blinky_core
verilog: blinky.v
files: [extra/pll.v]
uses: [sync]
ports:
  - name: led
    dir: o
    pins: [C3]
    attrs:
      IO_STANDARD: LVCMOS33
      DRIVE: 8
requests:
  - resource: clk12
clocks:
  - net: pll_out
    frequency: 48000000
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	util.WriteFile(filepath.Join(dir, "blinky.yaml"), []byte(manifest))
	util.WriteFile(filepath.Join(dir, "blinky.v"), []byte("module top(); endmodule\n"))

	d, err := Load(filepath.Join(dir, "blinky.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if d.Name != "blinky" || d.TopModule() != "blinky_core" || d.Verilog != "module top(); endmodule\n" || d.DebugVerilog != d.Verilog {
		t.Fatalf("unexpected design %+v", d)
	}
	if len(d.Files) != 1 || d.Files[0] != filepath.Join(dir, "extra", "pll.v") {
		t.Fatalf("unexpected files %v", d.Files)
	}
	led, ok := d.Port("led")
	if !ok || led.Width != 1 {
		t.Fatal("missing led port")
	}
	if keys := led.Attrs.Keys(); len(keys) != 2 || keys[0] != "IO_STANDARD" || keys[1] != "DRIVE" {
		t.Fatalf("attribute order not preserved: %v", keys)
	}
	if len(d.Requests) != 1 || d.Requests[0].Resource != "clk12" {
		t.Fatalf("unexpected requests %v", d.Requests)
	}
	if len(d.Clocks) != 1 || d.Clocks[0].Frequency != 48e6 {
		t.Fatalf("unexpected clocks %v", d.Clocks)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "design.yaml")

	util.WriteFile(p, []byte("version: 2\nname: top\nverilog: top.v\n"))
	if _, err := Load(p); err == nil {
		t.Fatal("unsupported version should fail")
	}

	util.WriteFile(p, []byte("version: 1\nname: top\nverilog: missing.v\n"))
	if _, err := Load(p); err == nil {
		t.Fatal("missing netlist should fail")
	}

	os.WriteFile(filepath.Join(dir, "top.v"), []byte(""), 0644)
	util.WriteFile(p, []byte("version: 1\nname: top\nverilog: top.v\nports:\n  - name: a\n    pins: [A1]\n  - name: a\n    pins: [A2]\n"))
	if _, err := Load(p); err == nil {
		t.Fatal("duplicate port should fail")
	}

	util.WriteFile(p, []byte("version: 1\nname: top\nverilog: top.v\nports:\n  - name: bus\n    width: 2\n    pins: [A1, A2, A3]\n"))
	if _, err := Load(p); err == nil {
		t.Fatal("more pins than bits should fail")
	}
	util.WriteFile(p, []byte("version: 1\nname: top\nverilog: top.v\nports:\n  - name: bus\n    width: 2\n"))
	if _, err := Load(p); err != nil {
		t.Fatalf("a port without pins is valid until extraction: %s", err)
	}
}

func TestGeneratedClockOnPortName(t *testing.T) {
	d := &Design{Name: "top", Top: "top_core", Uses: []string{"sync"}}
	d.AddPort(Port{Name: "clk", Pins: []string{"A1"}})
	d.AddClockConstraint("clk", 12e6)

	fragment := func(out string) MissingDomainFunc {
		return func(d *Design, name string) (*Fragment, error) {
			return &Fragment{
				Name:    name,
				Domains: []Domain{{Name: name, Clock: out}},
				Outputs: []string{out},
				Clocks:  []Clock{{Net: out, Frequency: 15e6}},
			}, nil
		}
	}

	if err := d.Elaborate(testPlatform(), fragment("clk")); err == nil {
		t.Fatal("a fragment output named like a port should fail")
	}
	clocks := d.CollectClockConstraints()
	if len(clocks) != 1 || clocks[0].Frequency != 12e6 || clocks[0].Port == nil {
		t.Fatalf("the port clock must be left untouched: %+v", clocks)
	}

	if err := d.Elaborate(testPlatform(), fragment("sync_clk")); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	clocks = d.CollectClockConstraints()
	if len(clocks) != 2 || clocks[1].Net != "sync_clk" || clocks[1].Port != nil {
		t.Fatalf("unexpected clock constraints %+v", clocks)
	}
	if keep, _ := d.NetAttrs["sync_clk"].Lookup("keep"); keep != "TRUE" {
		t.Fatal("generated clock net is not kept")
	}
}

func TestGeneratedClockIsNeverAPort(t *testing.T) {
	d := &Design{Name: "top"}
	d.AddPort(Port{Name: "clk", Pins: []string{"A1"}})
	d.addClock(Clock{Net: "clk", Frequency: 15e6, Generated: true})
	clocks := d.CollectClockConstraints()
	if len(clocks) != 1 || clocks[0].Port != nil {
		t.Fatalf("a generated clock must not be constrained on a port: %+v", clocks)
	}
}
