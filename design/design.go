// Package design holds the elaborated design handed over by the HDL front end: its top-level ports,
// clock constraints, clock domains and netlist text.
package design

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/util"
)

// Port is a top-level port of the design.
type Port struct {
	Name  string
	Dir   string
	Width int
	// Physical pin per bit, empty if unassigned.
	Pins  []string
	Attrs util.OrderedMap[string, string]
}

// Clock requests a timing constraint for a net.
type Clock struct {
	Net       string
	Frequency float64
	// Generated clocks are driven by hardware added during elaboration and never by a port.
	Generated bool
}

// Domain is a clock domain. Reset is empty for domains without a reset.
type Domain struct {
	Name  string
	Clock string
	Reset string
}

// Conn connects a port of an instance to a net.
type Conn struct {
	// One of "i", "o" or "io", as seen from the instance.
	Dir  string
	Port string
	Net  string
}

// Instance is a primitive or external module instantiated by generated hardware.
type Instance struct {
	Type   string
	Name   string
	Params util.OrderedMap[string, string]
	Conns  []Conn
}

// Assign drives `Lhs` combinatorially from `Rhs`.
type Assign struct {
	Lhs string
	Rhs string
}

// Fragment is hardware generated while elaborating the design, e.g. a default clock domain.
type Fragment struct {
	Name      string
	Domains   []Domain
	Nets      []string
	Instances []Instance
	Assigns   []Assign
	// Ports of the design read by the fragment.
	Inputs []string
	// Nets driven by the fragment and passed to the netlist top module.
	Outputs []string
	// Constraints on generated clocks, applied when the fragment is merged.
	Clocks []Clock
	// Nets to be preserved by synthesis.
	Keep []string
}

// Request asks for a platform resource to be turned into a top-level port.
type Request struct {
	Resource string
	Number   int
}

// MissingDomainFunc creates the domain `name` when the design uses it without defining it.
// It returns nil if it cannot provide the domain.
type MissingDomainFunc func(d *Design, name string) (*Fragment, error)

// Design is an elaborated design.
type Design struct {
	Name string
	// Top module of the netlist. Defaults to Name; must differ from Name if fragments are added,
	// because the generated top module then takes that name.
	Top string

	Ports    []Port
	Clocks   []Clock
	Domains  []Domain
	Requests []Request

	// Domains the netlist refers to.
	Uses []string

	Fragments []*Fragment
	NetAttrs  map[string]*util.OrderedMap[string, string]

	// Additional source files passed to synthesis.
	Files []string

	Verilog      string
	DebugVerilog string
	// Directory containing the design sources.
	SourceDir string

	requested map[Request]string
}

// Port returns the top-level port with the given name.
func (d *Design) Port(name string) (*Port, bool) {
	for i := range d.Ports {
		if d.Ports[i].Name == name {
			return &d.Ports[i], true
		}
	}
	return nil, false
}

// Domain returns the clock domain with the given name.
func (d *Design) Domain(name string) (*Domain, bool) {
	for i := range d.Domains {
		if d.Domains[i].Name == name {
			return &d.Domains[i], true
		}
	}
	return nil, false
}

// TopModule returns the name of the top module of the netlist.
func (d *Design) TopModule() string {
	if d.Top == "" {
		return d.Name
	}
	return d.Top
}

// AddPort adds a top-level port.
func (d *Design) AddPort(port Port) error {
	if _, exists := d.Port(port.Name); exists {
		return fmt.Errorf("port '%s' already exists", port.Name)
	}
	if port.Width == 0 {
		port.Width = 1
	}
	if port.Dir == "" {
		port.Dir = "io"
	}
	d.Ports = append(d.Ports, port)
	return nil
}

// Request turns the platform resource `name#number` into a top-level port and returns the port name.
// Clock resources get a clock constraint at their declared frequency.
func (d *Design) Request(p *platform.Platform, name string, number int) (string, error) {
	if err := d.CheckRequest(p, name, number); err != nil {
		return "", err
	}
	req := Request{Resource: name, Number: number}
	res, _ := p.Lookup(name, number)

	port := Port{
		Name:  fmt.Sprintf("%s_%d__io", res.Name, res.Number),
		Dir:   res.Dir,
		Width: len(res.Pins),
		Pins:  res.Pins,
		Attrs: res.Attrs.Clone(),
	}
	if err := d.AddPort(port); err != nil {
		return "", errors.Wrapf(err, "cannot request %s#%d", name, number)
	}
	if d.requested == nil {
		d.requested = map[Request]string{}
	}
	d.requested[req] = port.Name
	log.Debug("Requested resource %s#%d as port '%s'.\n", name, number, port.Name)

	if res.Clock != 0 {
		d.AddClockConstraint(port.Name, res.Clock)
	}
	return port.Name, nil
}

// CheckRequest reports whether Request would fail, without modifying the design.
func (d *Design) CheckRequest(p *platform.Platform, name string, number int) error {
	if _, ok := d.requested[Request{Resource: name, Number: number}]; ok {
		return fmt.Errorf("resource %s#%d has already been requested", name, number)
	}
	_, err := p.Lookup(name, number)
	return err
}

// AddClockConstraint constrains `net` to `frequency` Hz and marks the net to be kept by synthesis.
func (d *Design) AddClockConstraint(net string, frequency float64) {
	d.addClock(Clock{Net: net, Frequency: frequency})
}

func (d *Design) addClock(clock Clock) {
	defer d.SetNetAttr(clock.Net, "keep", "TRUE")
	for i := range d.Clocks {
		if d.Clocks[i].Net == clock.Net {
			log.Warning("Overriding clock constraint of '%s' (%g Hz -> %g Hz).\n", clock.Net, d.Clocks[i].Frequency, clock.Frequency)
			d.Clocks[i] = clock
			return
		}
	}
	d.Clocks = append(d.Clocks, clock)
}

// SetNetAttr sets a synthesis attribute on a net.
func (d *Design) SetNetAttr(net, name, value string) {
	if d.NetAttrs == nil {
		d.NetAttrs = map[string]*util.OrderedMap[string, string]{}
	}
	attrs, ok := d.NetAttrs[net]
	if !ok {
		attrs = &util.OrderedMap[string, string]{}
		d.NetAttrs[net] = attrs
	}
	// The zero value allows overrides, Insert cannot fail.
	_ = attrs.Insert(name, value)
}

// Elaborate requests the resources listed in the design and provisions every used domain the design does
// not define through `missing`.
func (d *Design) Elaborate(p *platform.Platform, missing MissingDomainFunc) error {
	for _, req := range d.Requests {
		if _, err := d.Request(p, req.Resource, req.Number); err != nil {
			return err
		}
	}

	for _, name := range d.Uses {
		if _, exists := d.Domain(name); exists {
			continue
		}
		if missing == nil {
			return fmt.Errorf("domain '%s' is used but not defined", name)
		}
		fragment, err := missing(d, name)
		if err != nil {
			return errors.Wrapf(err, "cannot create domain '%s'", name)
		}
		if fragment == nil {
			return fmt.Errorf("domain '%s' is used but not defined", name)
		}
		if err := d.addFragment(fragment); err != nil {
			return err
		}
	}

	if len(d.Fragments) > 0 && d.TopModule() == d.Name {
		return fmt.Errorf("the netlist top module must not be named '%s' when domains are added to the design; "+
			"set 'top' in the design manifest", d.Name)
	}
	return nil
}

func (d *Design) addFragment(f *Fragment) error {
	for _, domain := range f.Domains {
		if _, exists := d.Domain(domain.Name); exists {
			return fmt.Errorf("domain '%s' is defined more than once", domain.Name)
		}
	}
	for _, net := range f.Outputs {
		if _, exists := d.Port(net); exists {
			return fmt.Errorf("net '%s' of fragment '%s' collides with a port of the same name", net, f.Name)
		}
	}

	d.Domains = append(d.Domains, f.Domains...)
	for _, clock := range f.Clocks {
		clock.Generated = true
		d.addClock(clock)
	}
	for _, net := range f.Keep {
		d.SetNetAttr(net, "keep", "TRUE")
	}
	d.Fragments = append(d.Fragments, f)
	log.Debug("Added fragment '%s' with %d instances.\n", f.Name, len(f.Instances))
	return nil
}
