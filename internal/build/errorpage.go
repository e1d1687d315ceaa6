package build

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/conneroisu/cwrap/internal/errors"
)

// ErrorPageName is the file name of the persisted error artifact.
const ErrorPageName = "error.html"

const errorPageHead = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Build Error</title>
  <style>
    body {
      font-family: Arial, sans-serif;
      text-align: center;
      padding: 50px;
    }
    h1 {
      color: red;
    }
    pre {
      text-align: left;
      background-color: #f8f8f8;
      padding: 10px;
      border: 1px solid #ddd;
      border-radius: 4px;
      overflow-x: auto;
    }
  </style>
</head>
<body>
  <h1>Build Error</h1>
  <p>Sorry, something went wrong during the build process. Please try again later.</p>
  <pre>`

const errorPageTail = `</pre>
</body>
</html>
`

// ErrorPageComponent renders the build failure page for a diagnostic. The
// diagnostic is HTML escaped.
func ErrorPageComponent(diagnostic string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, errorPageHead); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(diagnostic)); err != nil {
			return err
		}
		_, err := io.WriteString(w, errorPageTail)
		return err
	})
}

// RenderErrorPage renders the error page to bytes.
func RenderErrorPage(ctx context.Context, diagnostic string) ([]byte, error) {
	var buf bytes.Buffer
	if err := ErrorPageComponent(diagnostic).Render(ctx, &buf); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to render error page", err)
	}
	return buf.Bytes(), nil
}

// ErrorPage persists the rendered error page in the project directory.
type ErrorPage struct {
	fs   billy.Filesystem
	name string
}

// NewErrorPage creates an ErrorPage stored as error.html at the root of fs.
func NewErrorPage(fs billy.Filesystem) *ErrorPage {
	return &ErrorPage{fs: fs, name: ErrorPageName}
}

// Path returns the artifact location on its filesystem.
func (p *ErrorPage) Path() string {
	return p.fs.Join(p.fs.Root(), p.name)
}

// Write renders diagnostic and replaces the persisted page.
func (p *ErrorPage) Write(ctx context.Context, diagnostic string) error {
	page, err := RenderErrorPage(ctx, diagnostic)
	if err != nil {
		return err
	}
	if err := util.WriteFile(p.fs, p.name, page, 0o644); err != nil {
		return errors.FromFS(err, "failed to write error page", p.name)
	}
	return nil
}

// Read returns the persisted page.
func (p *ErrorPage) Read() ([]byte, error) {
	f, err := p.fs.Open(p.name)
	if err != nil {
		return nil, errors.FromFS(err, "failed to open error page", p.name)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.FromFS(err, "failed to read error page", p.name)
	}
	return data, nil
}
