// Package explorer opens project folders in the operating system's file
// browser.
package explorer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/conneroisu/cwrap/internal/errors"
)

// Launcher opens a directory for the user.
type Launcher interface {
	Open(ctx context.Context, dir string) error
}

// CommandFunc builds the command that opens dir.
type CommandFunc func(ctx context.Context, dir string) *exec.Cmd

// ExecLauncher opens folders with the platform's file browser command.
type ExecLauncher struct {
	command CommandFunc
}

// New returns a launcher for the current platform.
func New() *ExecLauncher {
	return &ExecLauncher{command: PlatformCommand(runtime.GOOS)}
}

// NewWithCommand returns a launcher that runs command instead of the
// platform default.
func NewWithCommand(command CommandFunc) *ExecLauncher {
	return &ExecLauncher{command: command}
}

// PlatformCommand returns the folder opening command for goos.
func PlatformCommand(goos string) CommandFunc {
	var name string
	switch goos {
	case "windows":
		name = "explorer.exe"
	case "darwin":
		name = "open"
	default:
		name = "xdg-open"
	}
	return func(ctx context.Context, dir string) *exec.Cmd {
		return exec.CommandContext(ctx, name, dir)
	}
}

// Open starts the file browser on dir. The directory must exist. The
// browser process is not waited for.
func (l *ExecLauncher) Open(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeLaunchFailed, "failed to resolve folder", err).WithPath(dir)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return errors.FromFS(err, "folder not available", abs)
	}
	if !info.IsDir() {
		return errors.NewValidationError(errors.ErrCodeInvalidPath, "not a directory").WithPath(abs)
	}

	// The browser outlives the request.
	cmd := l.command(context.WithoutCancel(ctx), abs)
	if err := cmd.Start(); err != nil {
		return errors.NewIOError(errors.ErrCodeLaunchFailed,
			fmt.Sprintf("failed to open folder with %s", filepath.Base(cmd.Path)), err).WithPath(abs)
	}
	go func() { _ = cmd.Wait() }()

	return nil
}

// EnsureDir creates dir when it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FromFS(err, "failed to create folder", dir)
	}
	return nil
}
