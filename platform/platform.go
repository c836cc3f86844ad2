// Package platform describes the target board: device and package identifiers, the default clock and
// reset sources, and the I/O resources that a design can request.
package platform

import (
	"fmt"

	"github.com/daedaleanai/qlflow/util"
)

// InternalOscillatorName selects the on-chip oscillator as the default clock.
const InternalOscillatorName = "sys_clk0"

// Toolchain is the name of the toolchain flavour this platform builds with. It also names the
// environment script variable (QLFLOW_ENV_QLSymbiflow).
const Toolchain = "QLSymbiflow"

// Oscillator parameter ranges.
const (
	MinOscFreq = 2100000
	MaxOscFreq = 80000000
	MinOscDiv  = 2
	MaxOscDiv  = 512
)

// ClockSource is the source of the default clock: either ExternalPin or InternalOscillator.
type ClockSource interface {
	fmt.Stringer
	clockSource()
}

// ExternalPin takes the default clock from a platform resource.
type ExternalPin struct {
	Resource string
}

func (ExternalPin) clockSource() {}

func (c ExternalPin) String() string {
	return c.Resource
}

// InternalOscillator takes the default clock from the on-chip oscillator through the fabric clock divider.
type InternalOscillator struct {
	// Oscillator frequency in Hz.
	Freq int
	// Fabric clock divider.
	Div int
}

func (InternalOscillator) clockSource() {}

func (c InternalOscillator) String() string {
	return InternalOscillatorName
}

// Validate checks that divider and frequency are within the range the device supports.
func (c InternalOscillator) Validate() error {
	if c.Div < MinOscDiv || c.Div > MaxOscDiv {
		return oscDivError(fmt.Sprint(c.Div))
	}
	if c.Freq < MinOscFreq || c.Freq > MaxOscFreq {
		return oscFreqError(fmt.Sprint(c.Freq))
	}
	return nil
}

// Frequency returns the resulting fabric clock frequency in Hz.
func (c InternalOscillator) Frequency() float64 {
	return float64(c.Freq) / float64(c.Div)
}

// Resource is a named group of pins on the board, e.g. a clock input or a button.
type Resource struct {
	Name   string
	Number int
	// One of "i", "o" or "io".
	Dir   string
	Pins  []string
	Attrs util.OrderedMap[string, string]
	// Clock frequency in Hz if the resource carries a clock, zero otherwise.
	Clock float64
}

// Platform holds the parameters of a board. It is immutable once loaded.
type Platform struct {
	Name    string
	Device  string
	Package string

	// nil when the platform has no default clock.
	DefaultClock ClockSource
	// Name of the default reset resource, empty when reset is never asserted.
	DefaultReset string

	// Oscillator parameters, set whenever the platform defines osc_freq and osc_div.
	Oscillator *InternalOscillator
	oscErr     error

	ToolchainVersion util.Version

	Resources []Resource
	Overrides map[string]string
}

// Lookup returns the resource with the given name and number.
func (p *Platform) Lookup(name string, number int) (Resource, error) {
	for _, res := range p.Resources {
		if res.Name == name && res.Number == number {
			return res, nil
		}
	}
	return Resource{}, fmt.Errorf("resource %s#%d does not exist", name, number)
}

// Override returns the value of a user-supplied override.
func (p *Platform) Override(name string) (string, bool) {
	value, ok := p.Overrides[name]
	return value, ok
}

// DefaultClockFrequency returns the frequency of the default clock, if known.
func (p *Platform) DefaultClockFrequency() (float64, bool) {
	switch clk := p.DefaultClock.(type) {
	case InternalOscillator:
		return clk.Frequency(), true
	case ExternalPin:
		res, err := p.Lookup(clk.Resource, 0)
		if err != nil || res.Clock == 0 {
			return 0, false
		}
		return res.Clock, true
	}
	return 0, false
}

// OscillatorParams returns the validated oscillator parameters. They are needed to generate the
// programming file even if the default clock is an external pin.
func (p *Platform) OscillatorParams() (InternalOscillator, error) {
	if p.Oscillator == nil {
		if p.oscErr != nil {
			return InternalOscillator{}, p.oscErr
		}
		return InternalOscillator{}, oscFreqError("")
	}
	if err := p.Oscillator.Validate(); err != nil {
		return InternalOscillator{}, err
	}
	return *p.Oscillator, nil
}
