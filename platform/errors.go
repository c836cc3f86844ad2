package platform

import "fmt"

// ConfigError reports a missing or out-of-range platform parameter.
type ConfigError struct {
	Param string
	Descr string
	Min   int
	Max   int
	// Offending value as written in the configuration, empty if the parameter is missing.
	Value string
}

func (e *ConfigError) Error() string {
	value := e.Value
	if value == "" {
		value = "not set"
	} else {
		value = "not " + value
	}
	return fmt.Sprintf("%s (%s) must be an integer between %d and %d, %s", e.Descr, e.Param, e.Min, e.Max, value)
}

func oscDivError(value string) *ConfigError {
	return &ConfigError{Param: "osc_div", Descr: "OSC divider", Min: MinOscDiv, Max: MaxOscDiv, Value: value}
}

func oscFreqError(value string) *ConfigError {
	return &ConfigError{Param: "osc_freq", Descr: "OSC frequency", Min: MinOscFreq, Max: MaxOscFreq, Value: value}
}
