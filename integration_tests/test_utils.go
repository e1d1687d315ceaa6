//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/config"
	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/routes"
	"github.com/conneroisu/cwrap/internal/server"
	"github.com/conneroisu/cwrap/internal/watcher"
	"github.com/conneroisu/cwrap/internal/websocket"
)

// buildScript fails while routes/skeleton.json mentions "broken" and
// otherwise writes the compiled front-end to dist/.
const buildScript = `if grep -q broken routes/skeleton.json 2>/dev/null; then
  echo "SyntaxError: Unexpected token" >&2
  exit 1
fi
mkdir -p dist
echo '<html><body><main>compiled</main></body></html>' > dist/index.html
`

// devProject is a project directory served in development mode with a
// running watcher.
type devProject struct {
	root   string
	cfg    *config.Config
	builds *build.Orchestrator
	server *httptest.Server
}

func newDevProject(t *testing.T) *devProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build script is a shell script")
	}
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "build.sh"), []byte(buildScript), 0o755))

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: config.DefaultPort},
		Project: config.ProjectConfig{
			Root:      root,
			RoutesDir: "routes",
			StaticDir: "static",
			UserDir:   filepath.Join(root, "home"),
		},
		Build: config.BuildConfig{
			Runtime: "sh",
			Script:  "build.sh",
			Ignore:  []string{"dist/", "node_modules/", ".git/"},
		},
		Development: config.DevelopmentConfig{
			Enabled:    true,
			LiveReload: true,
			Debounce:   50 * time.Millisecond,
		},
	}

	project := osfs.New(cfg.ProjectRoot())
	errorPage := build.NewErrorPage(project)
	runner := build.NewRunner(cfg.Build.Runtime, cfg.Build.Script, cfg.ProjectRoot(), io.Discard)
	builds := build.NewOrchestrator(runner, build.NewState(errorPage, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		builds.Wait()
	})

	initial := builds.Build(ctx, build.ModeDev, "initial")
	require.False(t, initial.Outcome.Failed(), initial.Outcome.Stderr)

	liveReload := websocket.NewWebSocketManager(nil, nil)
	t.Cleanup(func() { _ = liveReload.Shutdown(context.Background()) })

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Documents:  documents.NewStore(project, osfs.New(cfg.UserDir()), cfg.Project.RoutesDir, nil),
		Routes:     routes.NewTree(project, cfg.Project.RoutesDir),
		Builds:     builds,
		ErrorPage:  errorPage,
		LiveReload: liveReload,
		App:        osfs.New(cfg.AppRoot()),
		Static:     osfs.New(cfg.StaticRoot()),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ignore := watcher.NewIgnoreMatcher(root, cfg.Build.Ignore...)
	fw, err := watcher.NewFileWatcher(root, cfg.Development.Debounce, ignore, nil)
	require.NoError(t, err)
	fw.AddFilter(watcher.JSONFilter)
	fw.AddHandler(watcher.RebuildHandler(builds, nil))
	require.NoError(t, fw.AddRecursive(root))
	require.NoError(t, fw.Start(ctx))
	t.Cleanup(func() { _ = fw.Stop() })

	return &devProject{root: root, cfg: cfg, builds: builds, server: ts}
}

// writeSkeleton edits the root skeleton on disk, as a text editor would.
func (p *devProject) writeSkeleton(t *testing.T, content string) {
	t.Helper()

	dir := filepath.Join(p.root, "routes")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skeleton.json"), []byte(content), 0o644))
}

// get fetches path and returns the status and body.
func (p *devProject) get(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := http.Get(p.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// waitForStatus polls path until it answers with status.
func (p *devProject) waitForStatus(t *testing.T, path string, status int) string {
	t.Helper()

	var body string
	require.Eventually(t, func() bool {
		var code int
		code, body = p.get(t, path)
		return code == status
	}, 10*time.Second, 50*time.Millisecond, "waiting for %s to return %d", path, status)
	return body
}
