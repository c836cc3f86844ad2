// Package flow prepares a build: it elaborates the design against its platform, renders the tool
// input files and resolves the toolchain pipeline.
package flow

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/clock"
	"github.com/daedaleanai/qlflow/design"
	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/platform"
	"github.com/daedaleanai/qlflow/render"
	"github.com/daedaleanai/qlflow/source"
	"github.com/daedaleanai/qlflow/toolchain"
	"github.com/daedaleanai/qlflow/util"
)

const scriptMode = 0775

// Options select the inputs of a build.
type Options struct {
	DesignPath   string
	PlatformPath string
	// Overrides the toolchain release of the platform file if set.
	ToolchainVersion string
	Tools            map[string]string
	SkipOpenOCD      bool
	// Trace the commands of the build script.
	Verbose bool
}

// Plan is a prepared build. Nothing has been written yet.
type Plan struct {
	Design    *design.Design
	Platform  *platform.Platform
	Pipeline  *toolchain.Pipeline
	Artifacts []render.Artifact
	// Additional sources, by file name in the build directory.
	Sources map[string]string
}

// Prepare loads and elaborates the design and renders every file. Configuration and extraction
// errors surface here, before any file is written.
func Prepare(opts Options) (*Plan, error) {
	d, err := design.Load(opts.DesignPath)
	if err != nil {
		return nil, err
	}
	p, err := platform.Load(opts.PlatformPath)
	if err != nil {
		return nil, err
	}
	if opts.ToolchainVersion != "" {
		version, err := util.ParseVersion(opts.ToolchainVersion)
		if err != nil {
			return nil, errors.Wrap(err, "invalid toolchain version")
		}
		p.ToolchainVersion = version
	}
	return prepare(d, p, opts)
}

func prepare(d *design.Design, p *platform.Platform, opts Options) (*Plan, error) {
	if err := d.Elaborate(p, clock.Synthesizer{Platform: p}.CreateMissingDomain); err != nil {
		return nil, errors.Wrapf(err, "failed to elaborate design '%s'", d.Name)
	}

	plan := &Plan{Design: d, Platform: p, Sources: map[string]string{}}
	files := []string{}
	for _, file := range d.Files {
		name := filepath.Base(file)
		if other, exists := plan.Sources[name]; exists {
			return nil, fmt.Errorf("source files '%s' and '%s' have the same name", other, file)
		}
		plan.Sources[name] = file
		files = append(files, name)
	}

	topts, err := toolchain.NewOptions(d, p, opts.SkipOpenOCD)
	if err != nil {
		return nil, err
	}
	topts.Files = files
	topts.Tools = opts.Tools
	if plan.Pipeline, err = toolchain.NewPipeline(topts); err != nil {
		return nil, err
	}

	rev := source.Revision{}
	if d.SourceDir != "" {
		if rev, err = source.Describe(d.SourceDir); err != nil {
			log.Warning("Cannot determine the source revision: %s.\n", err)
		}
	}
	ctx, err := render.NewContext(d, p, render.Banner(rev.String()))
	if err != nil {
		return nil, err
	}
	ctx.Commands = plan.Pipeline.Argv()
	ctx.Verbose = opts.Verbose

	if plan.Artifacts, err = render.RenderAll(ctx, render.IDs()...); err != nil {
		return nil, err
	}
	return plan, nil
}

// Write writes the rendered files and copies the additional sources into `buildDir`.
func (plan *Plan) Write(buildDir string) error {
	if err := render.WriteArtifacts(buildDir, plan.Artifacts); err != nil {
		return err
	}
	if err := os.Chmod(filepath.Join(buildDir, plan.BuildScript()), scriptMode); err != nil {
		return errors.Wrap(err, "failed to make the build script executable")
	}
	for _, name := range util.SortedKeys(plan.Sources) {
		if err := util.CopyFile(plan.Sources[name], filepath.Join(buildDir, name)); err != nil {
			return err
		}
	}
	log.Debug("Wrote %d files to '%s'.\n", len(plan.Artifacts)+len(plan.Sources), buildDir)
	return nil
}

// BuildScript returns the name of the rendered build script.
func (plan *Plan) BuildScript() string {
	t, _ := render.Lookup(render.BuildScript)
	return t.FileName(plan.Design.Name)
}
