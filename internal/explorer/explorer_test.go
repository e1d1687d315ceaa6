package explorer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cwrap/internal/errors"
)

func TestPlatformCommand(t *testing.T) {
	testCases := []struct {
		goos     string
		expected string
	}{
		{"windows", "explorer.exe"},
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}

	for _, tc := range testCases {
		t.Run(tc.goos, func(t *testing.T) {
			cmd := PlatformCommand(tc.goos)(context.Background(), "/tmp/routes")
			assert.Equal(t, tc.expected, filepath.Base(cmd.Args[0]))
			assert.Equal(t, "/tmp/routes", cmd.Args[1])
		})
	}
}

func TestOpenRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell command")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "opened")

	launcher := NewWithCommand(func(ctx context.Context, target string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo \"$1\" > \"$2\"", "sh", target, marker)
	})

	require.NoError(t, launcher.Open(context.Background(), dir))

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(marker)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOpenMissingFolder(t *testing.T) {
	launcher := NewWithCommand(func(ctx context.Context, target string) *exec.Cmd {
		t.Fatal("command must not run")
		return nil
	})

	err := launcher.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOpenFileIsRejected(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err := NewWithCommand(PlatformCommand("linux")).Open(context.Background(), file)
	assert.True(t, errors.IsValidation(err))
}

func TestOpenLaunchFailure(t *testing.T) {
	launcher := NewWithCommand(func(ctx context.Context, target string) *exec.Cmd {
		return exec.CommandContext(ctx, "cwrap-no-such-file-browser", target)
	})

	err := launcher.Open(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))
	assert.Contains(t, err.Error(), errors.ErrCodeLaunchFailed)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
