package design

import (
	"fmt"
	"iter"

	"github.com/daedaleanai/qlflow/util"
)

// PortConstraint binds one bit of a top-level port to a physical pin.
type PortConstraint struct {
	Port  string
	Pin   string
	Attrs util.OrderedMap[string, string]
}

// ClockConstraint is a timing constraint on a net. Port is nil unless the net is a top-level port
// driven from outside the device.
type ClockConstraint struct {
	Net       string
	Port      *string
	Frequency float64
}

// ExtractionError reports a port bit that has no physical pin assigned.
type ExtractionError struct {
	Port string
	Bit  int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("port '%s' has no pin assigned to bit %d", e.Port, e.Bit)
}

// PortConstraints yields one constraint per port bit, in port declaration order and then bit order.
// Multi-bit ports are named `name[bit]`. The sequence ends with an *ExtractionError at the first bit
// without a pin.
func (d *Design) PortConstraints() iter.Seq2[PortConstraint, error] {
	return func(yield func(PortConstraint, error) bool) {
		for _, port := range d.Ports {
			for bit := 0; bit < port.Width; bit++ {
				if bit >= len(port.Pins) || port.Pins[bit] == "" {
					yield(PortConstraint{}, &ExtractionError{Port: port.Name, Bit: bit})
					return
				}
				name := port.Name
				if port.Width > 1 {
					name = fmt.Sprintf("%s[%d]", port.Name, bit)
				}
				if !yield(PortConstraint{Port: name, Pin: port.Pins[bit], Attrs: port.Attrs}, nil) {
					return
				}
			}
		}
	}
}

// ClockConstraints yields one constraint per clock with a defined frequency, in declaration order.
func (d *Design) ClockConstraints() iter.Seq[ClockConstraint] {
	return func(yield func(ClockConstraint) bool) {
		for _, clock := range d.Clocks {
			if clock.Frequency <= 0 {
				continue
			}
			c := ClockConstraint{Net: clock.Net, Frequency: clock.Frequency}
			if port, ok := d.Port(clock.Net); ok && !clock.Generated {
				name := port.Name
				c.Port = &name
			}
			if !yield(c) {
				return
			}
		}
	}
}

// CollectPortConstraints drains PortConstraints, failing on the first extraction error.
func (d *Design) CollectPortConstraints() ([]PortConstraint, error) {
	result := []PortConstraint{}
	for c, err := range d.PortConstraints() {
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// CollectClockConstraints drains ClockConstraints.
func (d *Design) CollectClockConstraints() []ClockConstraint {
	result := []ClockConstraint{}
	for c := range d.ClockConstraints() {
		result = append(result, c)
	}
	return result
}
