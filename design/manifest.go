package design

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/util"
)

// ManifestVersion is the current version of the design manifest format.
const ManifestVersion = 1

type manifestVersion struct {
	Version uint `yaml:"version"`
}

type manifestPort struct {
	Name  string        `yaml:"name"`
	Dir   string        `yaml:"dir"`
	Width int           `yaml:"width"`
	Pins  []string      `yaml:"pins"`
	Attrs yaml.MapSlice `yaml:"attrs"`
}

type manifestRequest struct {
	Resource string `yaml:"resource"`
	Number   int    `yaml:"number"`
}

type manifestClock struct {
	Net       string  `yaml:"net"`
	Frequency float64 `yaml:"frequency"`
}

type manifestDomain struct {
	Name  string `yaml:"name"`
	Clock string `yaml:"clock"`
	Reset string `yaml:"reset"`
}

type manifestFile struct {
	Version      uint              `yaml:"version"`
	Name         string            `yaml:"name"`
	Top          string            `yaml:"top"`
	Verilog      string            `yaml:"verilog"`
	DebugVerilog string            `yaml:"debug_verilog"`
	Files        []string          `yaml:"files"`
	Ports        []manifestPort    `yaml:"ports"`
	Requests     []manifestRequest `yaml:"requests"`
	Clocks       []manifestClock   `yaml:"clocks"`
	Domains      []manifestDomain  `yaml:"domains"`
	Uses         []string          `yaml:"uses"`
}

// Load reads a design manifest. Netlist files and additional sources are resolved relative to the
// directory of the manifest.
//
// The top module of the netlist (`top`, defaulting to `name`) has one port per manifest port and per
// requested resource, the latter named `<resource>_<number>__io`. If the design uses domains that
// are added during elaboration, it also has inputs for their clock and reset nets (`sync_clk` and
// `sync_rst` for the `sync` domain), and a generated top module named `name` instantiates it.
func Load(manifestPath string) (*Design, error) {
	var version manifestVersion
	if err := util.ReadYaml(manifestPath, &version); err != nil {
		return nil, err
	}
	if version.Version != ManifestVersion {
		return nil, fmt.Errorf("design manifest '%s' has version %d, but only version %d is supported",
			manifestPath, version.Version, ManifestVersion)
	}

	var manifest manifestFile
	if err := util.ReadYaml(manifestPath, &manifest); err != nil {
		return nil, err
	}

	sourceDir := filepath.Dir(manifestPath)
	d, err := fromManifest(manifest, sourceDir)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid design manifest '%s'", manifestPath)
	}
	log.Debug("Loaded design '%s' with %d ports from '%s'.\n", d.Name, len(d.Ports), manifestPath)
	return d, nil
}

func fromManifest(m manifestFile, sourceDir string) (*Design, error) {
	if m.Name == "" {
		return nil, errors.New("design has no name")
	}
	if m.Verilog == "" {
		return nil, errors.New("design has no verilog netlist")
	}

	d := &Design{
		Name:      m.Name,
		Top:       m.Top,
		Uses:      m.Uses,
		SourceDir: sourceDir,
	}

	verilog, err := os.ReadFile(resolve(sourceDir, m.Verilog))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read verilog netlist")
	}
	d.Verilog = string(verilog)
	d.DebugVerilog = d.Verilog
	if m.DebugVerilog != "" {
		debugVerilog, err := os.ReadFile(resolve(sourceDir, m.DebugVerilog))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read debug verilog netlist")
		}
		d.DebugVerilog = string(debugVerilog)
	}

	for _, file := range m.Files {
		d.Files = append(d.Files, resolve(sourceDir, file))
	}

	for _, mp := range m.Ports {
		port := Port{Name: mp.Name, Dir: mp.Dir, Width: mp.Width, Pins: mp.Pins, Attrs: util.NewOrderedMap[string, string]()}
		if port.Name == "" {
			return nil, errors.New("port without a name")
		}
		if port.Width == 0 {
			port.Width = len(port.Pins)
		} else if len(port.Pins) > 0 && len(port.Pins) != port.Width {
			return nil, fmt.Errorf("port '%s' has width %d but %d pins", port.Name, port.Width, len(port.Pins))
		}
		for _, item := range mp.Attrs {
			if err := port.Attrs.Insert(fmt.Sprint(item.Key), fmt.Sprint(item.Value)); err != nil {
				return nil, errors.Wrapf(err, "port '%s'", port.Name)
			}
		}
		if err := d.AddPort(port); err != nil {
			return nil, err
		}
	}

	for _, req := range m.Requests {
		d.Requests = append(d.Requests, Request{Resource: req.Resource, Number: req.Number})
	}
	for _, clock := range m.Clocks {
		d.AddClockConstraint(clock.Net, clock.Frequency)
	}
	for _, domain := range m.Domains {
		if _, exists := d.Domain(domain.Name); exists {
			return nil, fmt.Errorf("domain '%s' is defined more than once", domain.Name)
		}
		d.Domains = append(d.Domains, Domain{Name: domain.Name, Clock: domain.Clock, Reset: domain.Reset})
	}
	return d, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
