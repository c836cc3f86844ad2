// Package clock provisions the default `sync` clock domain of a design from the platform's default
// clock and reset sources.
package clock

import (
	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/design"
	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/util"
)

// DomainName is the only domain that can be created from platform defaults.
const DomainName = "sync"

// Nets of the generated domain. ClockNet and ResetNet are inputs of the netlist top module.
const (
	ClockNet      = DomainName + "_clk"
	ResetNet      = DomainName + "_rst"
	oscNet        = "sys_clk0"
	bufferedNet   = "clk_i"
	deassertedRst = "1'b0"
)

// Primitives instantiated for the internal oscillator and for reset synchronization.
const (
	OscillatorCell    = "qlal4s3b_cell_macro"
	ClockBufferCell   = "gclkbuff"
	ResetSynchronizer = "ResetSynchronizer"
	resetSyncInstance = "reset_sync"
)

// Synthesizer creates the default clock domain for a platform.
type Synthesizer struct {
	Platform *platform.Platform
}

// CreateMissingDomain is a design.MissingDomainFunc. It returns nil if the domain is not `sync` or the
// platform has no default clock. The design is only modified once all parameters and resources are
// known to be valid.
func (s Synthesizer) CreateMissingDomain(d *design.Design, name string) (*design.Fragment, error) {
	if name != DomainName || s.Platform.DefaultClock == nil {
		return nil, nil
	}
	if err := s.check(d); err != nil {
		return nil, err
	}

	f := &design.Fragment{
		Name:    DomainName,
		Outputs: []string{ClockNet, ResetNet},
		Keep:    []string{ClockNet},
	}

	var clkSource string
	switch clk := s.Platform.DefaultClock.(type) {
	case platform.InternalOscillator:
		f.Nets = append(f.Nets, oscNet, bufferedNet)
		f.Instances = append(f.Instances,
			design.Instance{
				Type:  OscillatorCell,
				Name:  "osc",
				Conns: []design.Conn{{Dir: "o", Port: "Sys_Clk0", Net: oscNet}},
			},
			design.Instance{
				Type: ClockBufferCell,
				Name: "osc_buf",
				Conns: []design.Conn{
					{Dir: "i", Port: "A", Net: oscNet},
					{Dir: "o", Port: "Z", Net: bufferedNet},
				},
			})
		clkSource = bufferedNet
		f.Clocks = append(f.Clocks, design.Clock{Net: ClockNet, Frequency: clk.Frequency()})
		log.Debug("Clocking domain '%s' from the internal oscillator (%d Hz / %d).\n", name, clk.Freq, clk.Div)
	case platform.ExternalPin:
		port, err := d.Request(s.Platform, clk.Resource, 0)
		if err != nil {
			return nil, errors.Wrap(err, "cannot request default clock")
		}
		f.Inputs = append(f.Inputs, port)
		clkSource = port
		log.Debug("Clocking domain '%s' from pin resource '%s'.\n", name, clk.Resource)
	}

	rstSource := deassertedRst
	if s.Platform.DefaultReset != "" {
		port, err := d.Request(s.Platform, s.Platform.DefaultReset, 0)
		if err != nil {
			return nil, errors.Wrap(err, "cannot request default reset")
		}
		f.Inputs = append(f.Inputs, port)
		rstSource = port
	}

	f.Domains = append(f.Domains, design.Domain{Name: DomainName, Clock: ClockNet, Reset: ResetNet})
	f.Assigns = append(f.Assigns, design.Assign{Lhs: ClockNet, Rhs: clkSource})

	params := util.NewOrderedMap[string, string]()
	params.Insert("domain", DomainName)
	f.Instances = append(f.Instances, design.Instance{
		Type:   ResetSynchronizer,
		Name:   resetSyncInstance,
		Params: params,
		Conns: []design.Conn{
			{Dir: "i", Port: "arst", Net: rstSource},
			{Dir: "i", Port: "clk", Net: ClockNet},
			{Dir: "o", Port: "rst", Net: ResetNet},
		},
	})

	return f, nil
}

// check validates the oscillator parameters and the clock and reset resources.
func (s Synthesizer) check(d *design.Design) error {
	switch clk := s.Platform.DefaultClock.(type) {
	case platform.InternalOscillator:
		if err := clk.Validate(); err != nil {
			return err
		}
	case platform.ExternalPin:
		if clk.Resource == s.Platform.DefaultReset {
			return errors.Errorf("resource '%s' cannot be both the default clock and the default reset", clk.Resource)
		}
		if err := d.CheckRequest(s.Platform, clk.Resource, 0); err != nil {
			return errors.Wrap(err, "cannot request default clock")
		}
	}
	if s.Platform.DefaultReset != "" {
		if err := d.CheckRequest(s.Platform, s.Platform.DefaultReset, 0); err != nil {
			return errors.Wrap(err, "cannot request default reset")
		}
	}
	return nil
}
