package platform

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/util"
)

// EnvPrefix is the prefix of environment variables overriding scalar platform parameters,
// e.g. QLFLOW_OSC_FREQ.
const EnvPrefix = "QLFLOW"

type resourceFile struct {
	Resources []resourceEntry `yaml:"resources"`
}

type resourceEntry struct {
	Name   string        `yaml:"name"`
	Number int           `yaml:"number"`
	Dir    string        `yaml:"dir"`
	Pins   []string      `yaml:"pins"`
	Attrs  yaml.MapSlice `yaml:"attrs"`
	Clock  float64       `yaml:"clock"`
}

// Load reads a platform description from a YAML file.
func Load(filePath string) (*Platform, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read platform file")
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid platform file '%s'", filePath)
	}
	log.Debug("Loaded platform '%s' from '%s'.\n", p.Name, filePath)
	return p, nil
}

// Parse decodes a platform description. Scalar parameters can be overridden through QLFLOW_*
// environment variables; the resource table is taken from the file as is.
func Parse(data []byte) (*Platform, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "failed to parse platform parameters")
	}

	var resFile resourceFile
	if err := yaml.Unmarshal(data, &resFile); err != nil {
		return nil, errors.Wrap(err, "failed to parse platform resources")
	}

	p := &Platform{
		Name:         v.GetString("name"),
		Device:       v.GetString("device"),
		Package:      v.GetString("package"),
		DefaultReset: v.GetString("default_rst"),
		Overrides:    v.GetStringMapString("overrides"),
	}
	if p.Device == "" {
		return nil, errors.New("platform does not define 'device'")
	}
	if p.Package == "" {
		return nil, errors.New("platform does not define 'package'")
	}

	for _, entry := range resFile.Resources {
		res, err := newResource(entry)
		if err != nil {
			return nil, err
		}
		if _, err := p.Lookup(res.Name, res.Number); err == nil {
			return nil, fmt.Errorf("resource %s#%d is defined more than once", res.Name, res.Number)
		}
		p.Resources = append(p.Resources, res)
	}

	if version := v.GetString("toolchain_version"); version != "" {
		parsed, err := util.ParseVersion(version)
		if err != nil {
			return nil, errors.Wrap(err, "invalid 'toolchain_version'")
		}
		p.ToolchainVersion = parsed
	}

	div, divErr := intParam(v, "osc_div", oscDivError)
	freq, freqErr := intParam(v, "osc_freq", oscFreqError)
	if divErr == nil && freqErr == nil {
		p.Oscillator = &InternalOscillator{Freq: freq, Div: div}
	} else if divErr != nil {
		p.oscErr = divErr
	} else {
		p.oscErr = freqErr
	}

	switch clk := v.GetString("default_clk"); clk {
	case "":
	case InternalOscillatorName:
		if divErr != nil {
			return nil, divErr
		}
		if freqErr != nil {
			return nil, freqErr
		}
		p.DefaultClock = *p.Oscillator
	default:
		if _, err := p.Lookup(clk, 0); err != nil {
			return nil, errors.Wrap(err, "invalid 'default_clk'")
		}
		p.DefaultClock = ExternalPin{Resource: clk}
	}

	if p.DefaultReset != "" {
		if _, err := p.Lookup(p.DefaultReset, 0); err != nil {
			return nil, errors.Wrap(err, "invalid 'default_rst'")
		}
	}

	return p, nil
}

func intParam(v *viper.Viper, key string, errFn func(string) *ConfigError) (int, error) {
	if !v.IsSet(key) {
		return 0, errFn("")
	}
	raw := strings.TrimSpace(v.GetString(key))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errFn(strconv.Quote(raw))
	}
	return value, nil
}

func newResource(entry resourceEntry) (Resource, error) {
	if entry.Name == "" {
		return Resource{}, errors.New("resource without a name")
	}
	res := Resource{
		Name:   entry.Name,
		Number: entry.Number,
		Dir:    entry.Dir,
		Pins:   entry.Pins,
		Attrs:  util.NewOrderedMap[string, string](),
		Clock:  entry.Clock,
	}
	if res.Dir == "" {
		res.Dir = "io"
	}
	switch res.Dir {
	case "i", "o", "io":
	default:
		return Resource{}, fmt.Errorf("resource %s#%d has invalid direction '%s'", res.Name, res.Number, res.Dir)
	}
	for _, item := range entry.Attrs {
		if err := res.Attrs.Insert(fmt.Sprint(item.Key), fmt.Sprint(item.Value)); err != nil {
			return Resource{}, errors.Wrapf(err, "resource %s#%d", res.Name, res.Number)
		}
	}
	return res, nil
}
