package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/conneroisu/cwrap/internal/errors"
)

// Builder runs the external build step once.
type Builder interface {
	Run(ctx context.Context, mode Mode) Outcome
	Available() error
}

// Runner executes `<runtime> <script> [dev]` in the project directory.
type Runner struct {
	runtime string
	script  string
	dir     string
	echo    io.Writer
}

// NewRunner creates a Runner. script is resolved against dir when relative.
// Output of the build step is copied to echo as it is produced; a nil echo
// discards it.
func NewRunner(runtime, script, dir string, echo io.Writer) *Runner {
	if echo == nil {
		echo = io.Discard
	}
	return &Runner{
		runtime: runtime,
		script:  script,
		dir:     dir,
		echo:    echo,
	}
}

// ScriptPath returns the absolute path of the build script.
func (r *Runner) ScriptPath() string {
	if filepath.IsAbs(r.script) {
		return r.script
	}
	return filepath.Join(r.dir, r.script)
}

// Available reports a not-found error when the build script does not exist.
func (r *Runner) Available() error {
	info, err := os.Stat(r.ScriptPath())
	if err != nil || info.IsDir() {
		return errors.NewNotFoundError(errors.ErrCodeBuildUnavailable,
			fmt.Sprintf("%s file not found", filepath.Base(r.script)), err).
			WithPath(r.ScriptPath())
	}
	return nil
}

// Args returns the argument list for a build in the given mode.
func (r *Runner) Args(mode Mode) []string {
	args := []string{r.ScriptPath()}
	if mode == ModeDev {
		args = append(args, string(ModeDev))
	}
	return args
}

// Run executes the build step and captures its output. A non-zero exit or a
// failure to start is reported in Outcome.Err.
func (r *Runner) Run(ctx context.Context, mode Mode) Outcome {
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.runtime, r.Args(mode)...)
	cmd.Dir = r.dir
	cmd.Stdout = io.MultiWriter(&stdout, r.echo)
	cmd.Stderr = io.MultiWriter(&stderr, r.echo)

	err := cmd.Run()

	outcome := Outcome{
		Mode:     mode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		outcome.Err = errors.NewBuildError(errors.ErrCodeBuildFailed,
			fmt.Sprintf("%s %s failed", r.runtime, filepath.Base(r.script)), err)
	}

	return outcome
}
