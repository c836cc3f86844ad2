package toolchain

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/util"
)

// StageError reports a stage that exited with a non-zero status.
type StageError struct {
	Stage  string
	Status int
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage '%s' failed with exit status %d", e.Stage, e.Status)
}

// Driver runs pipelines.
type Driver struct {
	Executor Executor
	// Directory containing the rendered files. All stages run here.
	BuildDir string
	// Directory receiving the products. Products stay in BuildDir if empty.
	OutputDir string
	// Show a spinner while a stage runs.
	Progress bool
}

// Run runs all commands in order and stops at the first failure, which is returned as a
// *StageError. Products are promoted only when every stage succeeded. Run returns the paths of
// the products.
func (d *Driver) Run(ctx context.Context, pl *Pipeline) ([]string, error) {
	log.Log("Building '%s' (programming file via %s).\n", pl.Name, pl.Strategy)
	for i, c := range pl.Commands {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "build interrupted before stage '%s'", c.Stage.Name)
		}
		log.Log("[%d/%d] %s\n", i+1, len(pl.Commands), c.Stage.Name)
		log.Debug("%s\n", c)

		status, err := d.runStage(ctx, c)
		if err != nil {
			return nil, errors.Wrapf(err, "stage '%s'", c.Stage.Name)
		}
		if status != 0 {
			return nil, &StageError{Stage: c.Stage.Name, Status: status}
		}
	}
	return d.promote(pl)
}

func (d *Driver) runStage(ctx context.Context, c Command) (int, error) {
	if d.Progress {
		log.Spinner.Start()
		defer log.Spinner.Stop()
	}
	return d.Executor.Run(ctx, d.BuildDir, c.Args)
}

func (d *Driver) promote(pl *Pipeline) ([]string, error) {
	paths := []string{}
	for _, product := range pl.Products() {
		src := filepath.Join(d.BuildDir, product)
		if !util.FileExists(src) {
			return nil, fmt.Errorf("product '%s' was not generated", product)
		}
		if d.OutputDir == "" || filepath.Clean(d.OutputDir) == filepath.Clean(d.BuildDir) {
			paths = append(paths, src)
			continue
		}
		dst := filepath.Join(d.OutputDir, product)
		if err := util.CopyFile(src, dst); err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}
