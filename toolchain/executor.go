package toolchain

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Executor runs a single external command.
type Executor interface {
	// Run runs `args` in `dir` and returns its exit status. The error is reserved for commands that
	// could not be run at all.
	Run(ctx context.Context, dir string, args []string) (int, error)
}

// envScriptWrapper sources the script in $0 and replaces the shell with the command.
const envScriptWrapper = `. "$0" && exec "$@"`

// ProcessExecutor runs commands as child processes.
type ProcessExecutor struct {
	// Script sourced before every command, empty for none.
	EnvScript string
	// Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// NewProcessExecutor returns an executor sourcing the script named by environment variable `envVar`,
// if set.
func NewProcessExecutor(envVar string) *ProcessExecutor {
	return &ProcessExecutor{EnvScript: os.Getenv(envVar)}
}

// Run runs the command, wrapped in `sh -c` if an environment script is configured.
func (e *ProcessExecutor) Run(ctx context.Context, dir string, args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("empty command")
	}
	if e.EnvScript != "" {
		args = append([]string{"sh", "-c", envScriptWrapper, e.EnvScript}, args...)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to run '%s'", args[0])
	}
	return 0, nil
}
