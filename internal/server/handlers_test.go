package server

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/errors"
	"github.com/conneroisu/cwrap/internal/explorer"
)

func TestSaveSkeletonCreatesRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/save-skeleton/blog/post1", `{"a":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	assert.Equal(t, "{\n  \"a\": 1\n}\n", readFile(t, f.project, "routes/blog/post1/skeleton.json"))

	w = f.do(t, http.MethodGet, "/api/all-routes", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []string
	decode(t, w, &all)
	assert.Equal(t, []string{"blog", "blog/post1"}, all)

	w = f.do(t, http.MethodGet, "/api/list-directory?path=blog", "")
	require.Equal(t, http.StatusOK, w.Code)
	var children []string
	decode(t, w, &children)
	assert.Equal(t, []string{"post1"}, children)

	w = f.do(t, http.MethodGet, "/api/skeleton?path=blog/post1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":1}`, w.Body.String())
}

func TestSaveSkeletonAtRoot(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/save-skeleton", `{"root":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, readFile(t, f.project, "routes/skeleton.json"), `"root": true`)

	w = f.do(t, http.MethodGet, "/api/skeleton", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"root":true}`, w.Body.String())
}

func TestSaveOverwritesDocument(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/save-skeleton/home", `{"v":1,"old":true}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/save-skeleton/home", `{"v":2}`).Code)

	w := f.do(t, http.MethodGet, "/api/skeleton?path=home", "")
	assert.JSONEq(t, `{"v":2}`, w.Body.String())
}

func TestTemplatesRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/save-template/blog", `[{"name":"card"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, readFile(t, f.project, "routes/blog/templates.json"), `"name": "card"`)

	w = f.do(t, http.MethodGet, "/api/templates?path=blog", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"card"}]`, w.Body.String())
}

func TestConfigRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/save-config", `{"title":"site"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, readFile(t, f.project, "config.json"), `"title": "site"`)

	w = f.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"site"}`, w.Body.String())
}

func TestSettingsCreatesUserDir(t *testing.T) {
	userDir := filepath.Join(t.TempDir(), "home", ".cwrap")
	f := newFixture(t, withUserFS(osfs.New(userDir)))

	w := f.do(t, http.MethodGet, "/api/initial-settings", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/create-initial-settings", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, err := os.ReadFile(filepath.Join(userDir, "settings.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(data))

	w = f.do(t, http.MethodGet, "/api/initial-settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"theme":"dark"}`, w.Body.String())
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/save-skeleton/blog", `{"a":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body failureResponse
	decode(t, w, &body)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)

	_, err := f.project.Stat("routes/blog")
	assert.True(t, os.IsNotExist(err), "invalid documents must not create routes")
}

func TestRejectsTraversal(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"load query", http.MethodGet, "/api/skeleton?path=../secret", ""},
		{"list query", http.MethodGet, "/api/list-directory?path=blog/../../x", ""},
		{"templates query", http.MethodGet, "/api/templates?path=..", ""},
		{"save backslash", http.MethodPost, "/save-skeleton/a%5C..%5Cb", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body failureResponse
			decode(t, w, &body)
			assert.False(t, body.Success)
		})
	}
}

func TestMissingDocumentsAreNotFound(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/api/skeleton?path=nope",
		"/api/templates",
		"/api/config",
		"/api/initial-settings",
	} {
		w := f.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, w.Code, target)

		var body failureResponse
		decode(t, w, &body)
		assert.False(t, body.Success)
		assert.NotEmpty(t, body.Message, target)
	}
}

func TestMalformedDocumentIsServerError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.project.MkdirAll("routes/home", 0o755))
	writeFile(t, f.project, "routes/home/skeleton.json", "{broken")

	w := f.do(t, http.MethodGet, "/api/skeleton?path=home", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouteListingErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/all-routes", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "routes root does not exist yet")

	require.NoError(t, f.project.MkdirAll("routes", 0o755))

	w = f.do(t, http.MethodGet, "/api/all-routes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/list-directory?path=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/list-directory", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListDirectorySkipsFiles(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/save-skeleton/blog", `{}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/save-skeleton/blog/a", `{}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/save-skeleton/blog/b", `{}`).Code)

	w := f.do(t, http.MethodGet, "/api/list-directory?path=blog", "")
	require.Equal(t, http.StatusOK, w.Code)

	var children []string
	decode(t, w, &children)
	assert.ElementsMatch(t, []string{"a", "b"}, children)
}

func TestOpenFolders(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/open-folder/routes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/open-folder/static", "")
	require.Equal(t, http.StatusOK, w.Code)

	for _, dir := range []string{f.cfg.RoutesRoot(), f.cfg.StaticRoot()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, "%s is created before opening", dir)
		assert.True(t, info.IsDir())
	}

	assert.Equal(t, []string{f.cfg.RoutesRoot(), f.cfg.StaticRoot()}, f.launcher.opened())
}

func TestOpenRoutesFolderOnFreshProject(t *testing.T) {
	// The test binary with no tests selected stands in for the file browser.
	opener := explorer.NewWithCommand(func(ctx context.Context, dir string) *exec.Cmd {
		return exec.CommandContext(ctx, os.Args[0], "-test.run=^$")
	})
	f := newFixture(t, withLauncher(opener))

	_, err := os.Stat(f.cfg.RoutesRoot())
	require.True(t, os.IsNotExist(err))

	w := f.do(t, http.MethodGet, "/api/open-folder/routes", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestOpenFolderMissingIsServerError(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errors.NewNotFoundError(errors.ErrCodeFileNotFound, "folder not available", os.ErrNotExist)

	w := f.do(t, http.MethodGet, "/api/open-folder/routes", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body failureResponse
	decode(t, w, &body)
	assert.False(t, body.Success)
}

func TestOpenFolderFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errors.NewIOError(errors.ErrCodeLaunchFailed, "failed to open folder with xdg-open", nil)

	w := f.do(t, http.MethodGet, "/api/open-folder/routes", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body failureResponse
	decode(t, w, &body)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "xdg-open")
}

func TestOpenFolderNotADirectory(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errors.NewValidationError(errors.ErrCodeInvalidPath, "not a directory")

	w := f.do(t, http.MethodGet, "/api/open-folder/routes", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestManualBuildSuccess(t *testing.T) {
	f := newFixture(t)
	f.builder.succeed("built in 12ms")

	w := f.do(t, http.MethodGet, "/api/build", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body buildResponse
	decode(t, w, &body)
	assert.True(t, body.Success)
	assert.Equal(t, "built in 12ms", body.Output)

	assert.Equal(t, []build.Mode{build.ModeProd}, f.builder.ranModes())
}

func TestManualBuildFailureGatesServer(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.app, "index.html", "<html><body>app</body></html>")
	f.builder.fail("SyntaxError: Unexpected token")

	w := f.do(t, http.MethodGet, "/api/build", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Unexpected token")

	assert.True(t, f.server.state.Get().Failed())

	w = f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Unexpected token")
}

func TestManualBuildUnavailable(t *testing.T) {
	f := newFixture(t)
	f.builder.unavailable = errors.NewNotFoundError(errors.ErrCodeBuildUnavailable, "build.js file not found", nil)

	w := f.do(t, http.MethodGet, "/api/build", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body failureResponse
	decode(t, w, &body)
	assert.Contains(t, body.Error, "build.js")
	assert.Empty(t, f.builder.ranModes())
}

func TestBuildStatus(t *testing.T) {
	f := newFixture(t)
	f.builder.succeed("")
	f.do(t, http.MethodGet, "/api/build", "")

	w := f.do(t, http.MethodGet, "/api/build/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)

	state, ok := body["state"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "normal", state["status"])
	assert.EqualValues(t, 1, state["generation"])
	assert.Contains(t, body, "metrics")
}
