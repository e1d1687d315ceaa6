package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/config"
	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/errors"
	"github.com/conneroisu/cwrap/internal/logging"
	"github.com/conneroisu/cwrap/internal/routes"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: config.DefaultPort},
		Project: config.ProjectConfig{
			Root:      root,
			RoutesDir: "routes",
			StaticDir: "static",
			UserDir:   filepath.Join(root, "user"),
		},
		Build: config.BuildConfig{Runtime: "sh", Script: "build.sh"},
		Log:   config.LogConfig{Level: "info", Format: "text"},
	}
}

func testApp(t *testing.T) *app {
	t.Helper()
	return newApp(testConfig(t), logging.NewNopLogger(), &bytes.Buffer{})
}

func saveSkeleton(t *testing.T, a *app, route string) {
	t.Helper()

	p, err := routes.Parse(route)
	require.NoError(t, err)
	require.NoError(t, a.documents.Save(context.Background(), p, documents.Skeleton, []byte(`{}`)))
}

func TestOutputFormatSet(t *testing.T) {
	tests := []struct {
		value   string
		want    outputFormat
		wantErr bool
	}{
		{"table", formatTable, false},
		{"json", formatJSON, false},
		{"YAML", formatYAML, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var f outputFormat
			err := f.Set(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "table, json, yaml")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("36969"))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("65536"))
	assert.Error(t, ValidatePort("http"))
}

func TestAddFlagValidation(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("port", 36969, "")
	AddFlagValidation(cmd, "port", ValidatePort)

	require.Error(t, cmd.Flags().Set("port", "70000"))

	require.NoError(t, cmd.Flags().Set("port", "8080"))
	port, err := cmd.Flags().GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)
}

func TestCollectRoutes(t *testing.T) {
	a := testApp(t)
	saveSkeleton(t, a, "")
	saveSkeleton(t, a, "blog/post1")

	p, err := routes.Parse("blog")
	require.NoError(t, err)
	require.NoError(t, a.documents.Save(context.Background(), p, documents.Templates, []byte(`[]`)))

	entries, err := collectRoutes(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, []routeEntry{
		{Route: "/", Depth: 0, Skeleton: true},
		{Route: "blog", Depth: 1, Templates: true},
		{Route: "blog/post1", Depth: 2, Skeleton: true},
	}, entries)
}

func TestCollectRoutesWithoutRoutesRoot(t *testing.T) {
	a := testApp(t)

	_, err := collectRoutes(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestWriteRoutes(t *testing.T) {
	entries := []routeEntry{
		{Route: "/", Skeleton: true},
		{Route: "blog", Depth: 1},
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeRoutes(&buf, entries, formatJSON, false))

		var decoded []routeEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, entries, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeRoutes(&buf, entries, formatYAML, false))

		var decoded []routeEntry
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, entries, decoded)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeRoutes(&buf, entries, formatTable, false))

		out := buf.String()
		assert.Contains(t, out, "Route")
		assert.Contains(t, out, "Skeleton")
		assert.Contains(t, out, "Templates")
		assert.Contains(t, out, "blog")
		assert.Contains(t, out, "yes")
		assert.NotContains(t, out, "\x1b[", "no colour without a terminal")
	})
}

func writeBuildScript(t *testing.T, a *app, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build scripts are shell scripts")
	}
	path := a.cfg.BuildScriptPath()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
}

func TestExecuteBuild(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a := testApp(t)
		writeBuildScript(t, a, "echo built\n")

		require.NoError(t, executeBuild(context.Background(), a, build.ModeProd))
		assert.False(t, a.builds.State().Get().Failed())
	})

	t.Run("failure", func(t *testing.T) {
		a := testApp(t)
		writeBuildScript(t, a, "echo 'SyntaxError: Unexpected token' >&2\nexit 1\n")

		err := executeBuild(context.Background(), a, build.ModeDev)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "build failed")

		page, err := os.ReadFile(a.cfg.ErrorPagePath())
		require.NoError(t, err)
		assert.Contains(t, string(page), "Unexpected token")
	})

	t.Run("missing script", func(t *testing.T) {
		a := testApp(t)

		err := executeBuild(context.Background(), a, build.ModeProd)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestServeRecoversAfterDocumentEditWithoutDev(t *testing.T) {
	if testing.Short() {
		t.Skip("watches the file system")
	}

	a := testApp(t)
	a.cfg.Development.Enabled = false
	a.cfg.Development.Debounce = 50 * time.Millisecond
	writeBuildScript(t, a, "if grep -q broken routes/skeleton.json; then\n  echo 'SyntaxError: Unexpected token' >&2\n  exit 1\nfi\n")

	skeleton := filepath.Join(a.cfg.RoutesRoot(), "skeleton.json")
	require.NoError(t, os.MkdirAll(a.cfg.RoutesRoot(), 0o755))
	require.NoError(t, os.WriteFile(skeleton, []byte(`{"state":"broken"}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		a.builds.Wait()
	})

	srv, err := newServer(a)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	fw, err := startWatcher(ctx, a)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	status := func(path string) int {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusInternalServerError, status("/api/build"))
	require.True(t, a.builds.State().Get().Failed())
	assert.Equal(t, http.StatusInternalServerError, status("/api/build"), "manual builds are gated while failed")

	require.NoError(t, os.WriteFile(skeleton, []byte(`{"state":"fixed"}`), 0o644))

	require.Eventually(t, func() bool {
		return status("/api/all-routes") == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond, "the watcher rebuilds outside development mode")
	assert.False(t, a.builds.State().Get().Failed())
}

func TestWriteConfig(t *testing.T) {
	cfg := testConfig(t)

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, ".cwrap.yml", formatJSON))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, ".cwrap.yml", decoded["file"])

	resolved, ok := decoded["resolved"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, cfg.RoutesRoot(), resolved["routes_root"])

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "", formatYAML))
	assert.Contains(t, buf.String(), "routes_dir: routes")

	assert.Error(t, writeConfig(&buf, cfg, "", formatTable))
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, "text", false, false))
	assert.True(t, strings.HasPrefix(buf.String(), "cwrap "))
	assert.Contains(t, buf.String(), "Go: ")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "json", false, false))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "version")

	assert.Error(t, writeVersion(&buf, "xml", false, false))
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cwrap.lock")

	first, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	require.Error(t, err, "a second server must not start")
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, first.Unlock())

	again, err := acquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "build", "routes", "config", "version"} {
		assert.True(t, names[want], want)
	}
}
