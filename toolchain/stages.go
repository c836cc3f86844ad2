// Package toolchain drives the QuickLogic SymbiFlow tools from the rendered design files to a
// bitstream and an OpenOCD programming file.
package toolchain

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/render"
	"github.com/daedaleanai/qlflow/util"
)

// Stage names, in pipeline order.
const (
	Synth          = "synth"
	Pack           = "pack"
	Place          = "place"
	Route          = "route"
	WriteFasm      = "write_fasm"
	WriteBitstream = "write_bitstream"
	WriteOpenOCD   = "write_openocd"
)

// Stage is one invocation of an external tool.
type Stage struct {
	Name string
	Tool string
	// Arguments rendered as a template and split with shell rules.
	Args string
	// Files moved to the output directory once the whole pipeline succeeded. `%s` is the design name.
	Products []string
	// Auxiliary stages post-process the bitstream and can be skipped.
	Auxiliary bool
}

var mandatoryStages = []Stage{
	{
		Name: Synth,
		Tool: "symbiflow_synth",
		Args: `-t {{.Name}} -v{{range .Files}} {{.}}{{end}} {{.Name}}.v -d {{.Device}} -p {{.Name}}.pcf -P {{.Package}} -x {{.Name}}.xdc`,
	},
	{
		Name: Pack,
		Tool: "symbiflow_pack",
		Args: `-e {{.Name}}.eblif -d {{.Device}} -s {{.Name}}.sdc`,
	},
	{
		Name: Place,
		Tool: "symbiflow_place",
		Args: `-e {{.Name}}.eblif -d {{.Device}} -p {{.Name}}.pcf -n {{.Name}}.net -P {{.Package}} -s {{.Name}}.sdc`,
	},
	{
		Name: Route,
		Tool: "symbiflow_route",
		Args: `-e {{.Name}}.eblif -d {{.Device}} -s {{.Name}}.sdc`,
	},
	{
		Name: WriteFasm,
		Tool: "symbiflow_write_fasm",
		Args: `-e {{.Name}}.eblif -d {{.Device}} -s {{.Name}}.sdc`,
	},
	{
		Name:     WriteBitstream,
		Tool:     "symbiflow_write_bitstream",
		Args:     `-f {{.Name}}.fasm -d {{.Device}} -P {{.Package}} -b {{.Name}}.bit`,
		Products: []string{"%s.bit"},
	},
}

const openOCDArgs = `{{.Name}}.bit {{.Name}}.openocd --osc-freq {{.OscFreq}} --fpga-clk-divider {{.OscDiv}}`

// OpenOCDStrategy selects how the programming file is generated.
type OpenOCDStrategy int

const (
	// InvokeWriteOpenOCD runs symbiflow_write_openocd.
	InvokeWriteOpenOCD OpenOCDStrategy = iota
	// ConvertBitstream runs the bitstream converter of quicklogic_fasm directly.
	ConvertBitstream
)

// Toolchain releases shipping a broken symbiflow_write_openocd.
var brokenWriteOpenOCD = []util.Version{
	{Major: 1, Minor: 3, Patch: 0},
}

func (s OpenOCDStrategy) String() string {
	switch s {
	case InvokeWriteOpenOCD:
		return "symbiflow_write_openocd"
	case ConvertBitstream:
		return "quicklogic_fasm.bitstream_to_openocd (workaround)"
	}
	return fmt.Sprintf("OpenOCDStrategy(%d)", int(s))
}

// SelectOpenOCDStrategy picks the strategy for a toolchain release. An unknown release is assumed to
// be affected.
func SelectOpenOCDStrategy(version util.Version) OpenOCDStrategy {
	if version.IsZero() {
		return ConvertBitstream
	}
	for _, broken := range brokenWriteOpenOCD {
		if version.Compare(broken) == 0 {
			return ConvertBitstream
		}
	}
	return InvokeWriteOpenOCD
}

func (s OpenOCDStrategy) stage() Stage {
	stage := Stage{
		Name:      WriteOpenOCD,
		Tool:      "symbiflow_write_openocd",
		Args:      openOCDArgs,
		Products:  []string{"%s.openocd"},
		Auxiliary: true,
	}
	if s == ConvertBitstream {
		stage.Tool = "python3"
		stage.Args = "-m quicklogic_fasm.bitstream_to_openocd " + openOCDArgs
	}
	return stage
}

// Stages returns the stages run with the given strategy, in order.
func Stages(strategy OpenOCDStrategy) []Stage {
	stages := append([]Stage{}, mandatoryStages...)
	return append(stages, strategy.stage())
}

type stageArgs struct {
	Name    string
	Device  string
	Package string
	Files   []string
	OscFreq int
	OscDiv  int
}

func (s Stage) render(args stageArgs) ([]string, error) {
	tmpl, err := template.New(s.Name).Option("missingkey=error").Parse(s.Args)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid arguments of stage '%s'", s.Name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args); err != nil {
		return nil, errors.Wrapf(err, "failed to render arguments of stage '%s'", s.Name)
	}
	argv, err := shlex.Split(buf.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to split arguments of stage '%s'", s.Name)
	}
	return argv, nil
}

// ProductNames returns the names of the stage products for design `name`.
func (s Stage) ProductNames(name string) []string {
	return util.MappedSlice(s.Products, func(p string) string { return fmt.Sprintf(p, name) })
}

// ToolEnvVar is the environment variable overriding the path of `tool`, e.g. SYMBIFLOW_SYNTH.
func ToolEnvVar(tool string) string {
	return strings.ToUpper(tool)
}

// resolveTool returns the path of `tool`: the environment override, then the configured path, then
// the bare name looked up in PATH.
func resolveTool(tool string, configured map[string]string) string {
	if path := os.Getenv(ToolEnvVar(tool)); path != "" {
		return path
	}
	if path, ok := configured[tool]; ok && path != "" {
		return path
	}
	return tool
}

func quoteAll(values []string) []string {
	return util.MappedSlice(values, render.ShQuote)
}
