package build

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cwrap/internal/errors"
)

func TestRenderErrorPage(t *testing.T) {
	page, err := RenderErrorPage(context.Background(), "SyntaxError: Unexpected token <div>")
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<title>Build Error</title>")
	assert.Contains(t, html, "<h1>Build Error</h1>")
	assert.Contains(t, html, "SyntaxError: Unexpected token &lt;div&gt;")
	assert.NotContains(t, html, "<div>")
}

func TestErrorPageWriteRead(t *testing.T) {
	fs := memfs.New()
	page := NewErrorPage(fs)

	_, err := page.Read()
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, page.Write(context.Background(), "first"))
	require.NoError(t, page.Write(context.Background(), "second"))

	data, err := page.Read()
	require.NoError(t, err)
	assert.Contains(t, string(data), "second")
	assert.NotContains(t, string(data), "first")

	_, err = fs.Stat(ErrorPageName)
	assert.NoError(t, err)
}
