//go:build integration
// +build integration

package integration_tests

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevLoop_FailureGatesAndRecovers(t *testing.T) {
	p := newDevProject(t)

	body := p.waitForStatus(t, "/", http.StatusOK)
	assert.Contains(t, body, "compiled")
	assert.Contains(t, body, "/livereload")

	p.writeSkeleton(t, `{"state":"broken"}`)

	body = p.waitForStatus(t, "/", http.StatusInternalServerError)
	assert.Contains(t, body, "Build Error")
	assert.Contains(t, body, "Unexpected token")

	code, _ := p.get(t, "/api/all-routes")
	assert.Equal(t, http.StatusInternalServerError, code, "the API is gated too")

	page, err := os.ReadFile(filepath.Join(p.root, "error.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Unexpected token")

	p.writeSkeleton(t, `{"state":"fixed"}`)

	body = p.waitForStatus(t, "/", http.StatusOK)
	assert.Contains(t, body, "compiled")
}

func TestDevLoop_SaveThroughAPI(t *testing.T) {
	p := newDevProject(t)

	resp, err := http.Post(p.server.URL+"/save-skeleton/blog/post1", "application/json",
		strings.NewReader(`{"title":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := os.ReadFile(filepath.Join(p.root, "routes", "blog", "post1", "skeleton.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"title\": \"hello\"\n}\n", string(data))

	body := p.waitForStatus(t, "/api/all-routes", http.StatusOK)
	assert.JSONEq(t, `["blog","blog/post1"]`, body)

	// The save triggers a rebuild that must not touch the gate.
	require.Eventually(t, func() bool {
		return p.builds.State().Get().Generation >= 2
	}, 10*time.Second, 50*time.Millisecond)
	assert.False(t, p.builds.State().Get().Failed())
}
