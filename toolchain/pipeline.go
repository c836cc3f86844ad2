package toolchain

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/design"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/render"
	"github.com/daedaleanai/qlflow/util"
)

// Options determine the commands of a pipeline.
type Options struct {
	Name    string
	Device  string
	Package string
	// Additional sources, relative to the build directory, passed to synthesis before the netlist.
	Files []string
	// Required unless SkipOpenOCD is set.
	Oscillator *platform.InternalOscillator
	// Release of the installed toolchain, zero if unknown.
	Version util.Version
	// Tool paths from the user configuration. Environment overrides take precedence.
	Tools       map[string]string
	SkipOpenOCD bool
}

// NewOptions derives pipeline options from an elaborated design and its platform. The oscillator
// parameters are validated unless the programming file is skipped.
func NewOptions(d *design.Design, p *platform.Platform, skipOpenOCD bool) (Options, error) {
	opts := Options{
		Name:        d.Name,
		Device:      p.Device,
		Package:     p.Package,
		Files:       d.Files,
		Version:     p.ToolchainVersion,
		SkipOpenOCD: skipOpenOCD,
	}
	if !skipOpenOCD {
		osc, err := p.OscillatorParams()
		if err != nil {
			return Options{}, errors.Wrap(err, "cannot generate the programming file")
		}
		opts.Oscillator = &osc
	}
	return opts, nil
}

// Command is a fully resolved stage invocation. Args[0] is the tool.
type Command struct {
	Stage Stage
	Args  []string
}

func (c Command) String() string {
	return strings.Join(quoteAll(c.Args), " ")
}

// Pipeline is the ordered list of commands building one design.
type Pipeline struct {
	Name     string
	Strategy OpenOCDStrategy
	Commands []Command
}

// NewPipeline resolves the command of every stage. No command depends on the outcome of another.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Name == "" || opts.Device == "" || opts.Package == "" {
		return nil, errors.New("design name, device and package are required")
	}

	args := stageArgs{
		Name:    render.ShQuote(opts.Name),
		Device:  render.ShQuote(opts.Device),
		Package: render.ShQuote(opts.Package),
		Files:   quoteAll(opts.Files),
	}
	if opts.Oscillator != nil {
		args.OscFreq = opts.Oscillator.Freq
		args.OscDiv = opts.Oscillator.Div
	}

	pl := &Pipeline{Name: opts.Name, Strategy: SelectOpenOCDStrategy(opts.Version)}
	for _, stage := range Stages(pl.Strategy) {
		if stage.Auxiliary && opts.SkipOpenOCD {
			continue
		}
		if stage.Name == WriteOpenOCD && opts.Oscillator == nil {
			return nil, errors.New("stage 'write_openocd' needs the oscillator parameters")
		}
		argv, err := stage.render(args)
		if err != nil {
			return nil, err
		}
		tool := resolveTool(stage.Tool, opts.Tools)
		pl.Commands = append(pl.Commands, Command{Stage: stage, Args: append([]string{tool}, argv...)})
	}
	return pl, nil
}

// Argv returns the argument vectors of all commands, e.g. for the build script.
func (pl *Pipeline) Argv() [][]string {
	return util.MappedSlice(pl.Commands, func(c Command) []string { return c.Args })
}

// Products returns the file names the pipeline promotes to the output directory.
func (pl *Pipeline) Products() []string {
	products := []string{}
	for _, c := range pl.Commands {
		products = append(products, c.Stage.ProductNames(pl.Name)...)
	}
	return products
}

// Tools returns the distinct tools run by the pipeline, in stage order.
func (pl *Pipeline) Tools() []string {
	return util.Distinct(util.MappedSlice(pl.Commands, func(c Command) string { return c.Args[0] }))
}

// RequiredTools returns the tools run with `strategy`, resolved like the tools of a pipeline.
func RequiredTools(strategy OpenOCDStrategy, configured map[string]string) []string {
	return util.Distinct(util.MappedSlice(Stages(strategy), func(s Stage) string { return resolveTool(s.Tool, configured) }))
}

// CheckTools returns the tools that cannot be found in PATH.
func CheckTools(tools []string) []string {
	missing := []string{}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}
