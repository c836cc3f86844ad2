// Package render generates the input files of the toolchain from an elaborated design.
//
// Every output format is a named template in templates/; names are escaped per format by the
// functions registered in Escapers.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/design"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/util"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// ID identifies a template.
type ID string

const (
	Verilog           ID = "verilog"
	DebugVerilog      ID = "debug_verilog"
	PinConstraints    ID = "pcf"
	AttrConstraints   ID = "xdc"
	TimingConstraints ID = "sdc"
	BuildScript       ID = "build_script"
)

// AddConstraintsOverride names the platform override inserted into the attribute constraints.
const AddConstraintsOverride = "add_constraints"

// Context holds everything a template can refer to.
type Context struct {
	Name   string
	Banner string

	Verilog      string
	DebugVerilog string
	Modules      []Module

	Ports          []design.PortConstraint
	Clocks         []design.ClockConstraint
	AddConstraints *string

	// Commands of the build script, one argument vector per line.
	Commands [][]string
	EnvVar   string
	Verbose  bool
}

// Module is a Verilog module generated for a fragment added during elaboration, or the top module
// connecting these fragments to the netlist.
type Module struct {
	Name      string
	Ports     []ModulePort
	Wires     []Wire
	Assigns   []design.Assign
	Instances []ModuleInstance
}

type ModulePort struct {
	Dir  string
	Name string
	// Bit range including a trailing space, empty for single-bit ports.
	Range string
	Attrs string
}

type Wire struct {
	Name  string
	Attrs string
}

type ModuleInstance struct {
	Type   string
	Name   string
	Params string
	Conns  []design.Conn
}

// Template describes one output file.
type Template struct {
	ID ID
	// File name, `%s` is replaced with the design name.
	File  string
	check func(*Context) error
}

// FileName returns the name of the file rendered for design `name`.
func (t Template) FileName(name string) string {
	return fmt.Sprintf(t.File, name)
}

// Artifact is a rendered file.
type Artifact struct {
	Name     string
	Template ID
	Text     string
}

var registry = []Template{
	{ID: Verilog, File: "%s.v", check: needs("verilog netlist", func(c *Context) bool { return c.Verilog != "" })},
	{ID: DebugVerilog, File: "%s.debug.v", check: needs("debug verilog netlist", func(c *Context) bool { return c.DebugVerilog != "" })},
	{ID: PinConstraints, File: "%s.pcf", check: needs("port constraints", func(c *Context) bool { return c.Ports != nil })},
	{ID: AttrConstraints, File: "%s.xdc", check: needs("port constraints", func(c *Context) bool { return c.Ports != nil })},
	{ID: TimingConstraints, File: "%s.sdc", check: needs("clock constraints", func(c *Context) bool { return c.Clocks != nil })},
	{ID: BuildScript, File: "build_%s.sh", check: needs("commands", func(c *Context) bool { return len(c.Commands) > 0 && c.EnvVar != "" })},
}

var templates = template.Must(template.New("").Funcs(funcs()).ParseFS(templatesFS, "templates/*.tmpl"))

func funcs() template.FuncMap {
	m := template.FuncMap{
		"period":  Period,
		"default": defaultText,
		"sh_join": shJoin,
	}
	for name, escaper := range Escapers {
		m[name] = escaper
	}
	return m
}

func defaultText(fallback string, text *string) string {
	if text == nil {
		return fallback
	}
	return strings.TrimRight(*text, "\n")
}

func shJoin(args []string) string {
	return strings.Join(util.MappedSlice(args, ShQuote), " ")
}

func needs(what string, ok func(*Context) bool) func(*Context) error {
	return func(c *Context) error {
		if !ok(c) {
			return fmt.Errorf("context has no %s", what)
		}
		return nil
	}
}

// Lookup returns the template with the given identifier.
func Lookup(id ID) (Template, error) {
	for _, t := range registry {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("unknown template '%s'", id)
}

// IDs returns all template identifiers in the order files are generated.
func IDs() []ID {
	return util.MappedSlice(registry, func(t Template) ID { return t.ID })
}

// Render renders a single template. Identical contexts render to identical text.
func Render(id ID, ctx *Context) (string, error) {
	t, err := Lookup(id)
	if err != nil {
		return "", err
	}
	if ctx.Name == "" || ctx.Banner == "" {
		return "", fmt.Errorf("cannot render %s: context has no design name or banner", id)
	}
	if err := t.check(ctx); err != nil {
		return "", errors.Wrapf(err, "cannot render %s", id)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(id)+".tmpl", ctx); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", id)
	}
	return buf.String(), nil
}

// RenderAll renders the given templates into artifacts named after the design.
func RenderAll(ctx *Context, ids ...ID) ([]Artifact, error) {
	artifacts := []Artifact{}
	for _, id := range ids {
		t, err := Lookup(id)
		if err != nil {
			return nil, err
		}
		text, err := Render(id, ctx)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Name: t.FileName(ctx.Name), Template: id, Text: text})
	}
	return artifacts, nil
}

// WriteArtifacts writes artifacts into `dir`, replacing files left over from earlier builds.
func WriteArtifacts(dir string, artifacts []Artifact) error {
	for _, artifact := range artifacts {
		if err := util.WriteFile(filepath.Join(dir, artifact.Name), []byte(artifact.Text)); err != nil {
			return err
		}
	}
	return nil
}

// NewContext extracts port and clock constraints from an elaborated design. It fails with a
// *design.ExtractionError if a port bit has no pin.
func NewContext(d *design.Design, p *platform.Platform, banner string) (*Context, error) {
	ports, err := d.CollectPortConstraints()
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Name:         d.Name,
		Banner:       banner,
		Verilog:      normalizeNetlist(d.Verilog),
		DebugVerilog: normalizeNetlist(d.DebugVerilog),
		Ports:        ports,
		Clocks:       d.CollectClockConstraints(),
		EnvVar:       EnvVar(),
	}
	if text, ok := p.Override(AddConstraintsOverride); ok {
		ctx.AddConstraints = &text
	}
	for _, f := range d.Fragments {
		ctx.Modules = append(ctx.Modules, newModule(d, f))
	}
	if len(d.Fragments) > 0 {
		ctx.Modules = append(ctx.Modules, newTopModule(d))
	}
	return ctx, nil
}

// EnvVar is the environment variable naming a script that sets up the toolchain environment.
func EnvVar() string {
	return "QLFLOW_ENV_" + platform.Toolchain
}

// Banner is the first line of every generated file.
func Banner(revision string) string {
	banner := fmt.Sprintf("Automatically generated by qlflow %s. Do not edit.", util.QlflowVersion)
	if revision != "" {
		banner += fmt.Sprintf(" Source revision %s.", revision)
	}
	return banner
}

func normalizeNetlist(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return text + "\n"
}

func fragmentModuleName(d *design.Design, f *design.Fragment) string {
	return fmt.Sprintf("%s_%s_domain", d.Name, f.Name)
}

var portDirs = map[string]string{"i": "input", "o": "output", "io": "inout"}

// newTopModule instantiates the fragments and the netlist top module. Ports read by fragments are
// not passed to the netlist.
func newTopModule(d *design.Design) Module {
	m := Module{Name: d.Name}
	consumed := map[string]bool{}
	for _, f := range d.Fragments {
		for _, in := range f.Inputs {
			consumed[in] = true
		}
	}

	netlist := ModuleInstance{Type: d.TopModule(), Name: "core"}
	for _, port := range d.Ports {
		mp := ModulePort{Dir: portDirs[port.Dir], Name: port.Name, Attrs: netAttrs(d, port.Name)}
		if port.Width > 1 {
			mp.Range = fmt.Sprintf("[%d:0] ", port.Width-1)
		}
		m.Ports = append(m.Ports, mp)
		if !consumed[port.Name] {
			netlist.Conns = append(netlist.Conns, design.Conn{Dir: port.Dir, Port: port.Name, Net: port.Name})
		}
	}

	for _, f := range d.Fragments {
		inst := ModuleInstance{Type: fragmentModuleName(d, f), Name: f.Name + "_domain"}
		for _, in := range f.Inputs {
			inst.Conns = append(inst.Conns, design.Conn{Dir: "i", Port: in, Net: in})
		}
		for _, out := range f.Outputs {
			m.Wires = append(m.Wires, Wire{Name: out, Attrs: netAttrs(d, out)})
			inst.Conns = append(inst.Conns, design.Conn{Dir: "o", Port: out, Net: out})
			netlist.Conns = append(netlist.Conns, design.Conn{Dir: "i", Port: out, Net: out})
		}
		m.Instances = append(m.Instances, inst)
	}
	m.Instances = append(m.Instances, netlist)
	return m
}

func newModule(d *design.Design, f *design.Fragment) Module {
	m := Module{
		Name:    fragmentModuleName(d, f),
		Assigns: f.Assigns,
	}
	for _, in := range f.Inputs {
		m.Ports = append(m.Ports, ModulePort{Dir: "input", Name: in, Attrs: netAttrs(d, in)})
	}
	for _, out := range f.Outputs {
		m.Ports = append(m.Ports, ModulePort{Dir: "output", Name: out, Attrs: netAttrs(d, out)})
	}
	for _, net := range f.Nets {
		m.Wires = append(m.Wires, Wire{Name: net, Attrs: netAttrs(d, net)})
	}
	for _, inst := range f.Instances {
		params := []string{}
		for _, param := range inst.Params.Entries() {
			params = append(params, fmt.Sprintf(".%s(%q)", param.Key, param.Value))
		}
		mi := ModuleInstance{Type: inst.Type, Name: inst.Name, Conns: inst.Conns}
		if len(params) > 0 {
			mi.Params = " #(" + strings.Join(params, ", ") + ")"
		}
		m.Instances = append(m.Instances, mi)
	}
	return m
}

func netAttrs(d *design.Design, net string) string {
	attrs, ok := d.NetAttrs[net]
	if !ok || attrs.Len() == 0 {
		return ""
	}
	parts := []string{}
	for _, attr := range attrs.Entries() {
		parts = append(parts, fmt.Sprintf("%s = %q", attr.Key, attr.Value))
	}
	return "(* " + strings.Join(parts, ", ") + " *) "
}
