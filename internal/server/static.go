package server

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/cwrap/internal/websocket"
)

const indexFile = "index.html"

// handleApp serves a file from the compiled application, then project static
// assets under their folder name (/static/logo.svg), and falls back to the
// application's index page so client side routes resolve.
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

	if name != "" {
		if s.serveFile(w, r, s.app, name) {
			return
		}
		if asset, ok := s.staticAsset(name); ok && s.serveFile(w, r, s.static, asset) {
			return
		}
	}

	if !s.serveFile(w, r, s.app, indexFile) {
		http.NotFound(w, r)
	}
}

// staticAsset maps a request path below the static folder's name to a path
// inside the static filesystem.
func (s *Server) staticAsset(name string) (string, bool) {
	dir := strings.Trim(path.Clean(filepath.ToSlash(s.config.Project.StaticDir)), "/")
	if dir == "" || dir == "." {
		return "", false
	}
	asset, ok := strings.CutPrefix(name, dir+"/")
	if !ok || asset == "" {
		return "", false
	}
	return asset, true
}

// serveFile writes name from fs and reports whether it existed as a regular
// file. HTML pages get the live reload script when it is enabled.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, fs billy.Filesystem, name string) bool {
	if fs == nil {
		return false
	}

	info, err := fs.Stat(name)
	if err != nil || info.IsDir() {
		return false
	}

	f, err := fs.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	if s.injectReload() && strings.EqualFold(path.Ext(name), ".html") {
		page, err := io.ReadAll(f)
		if err != nil {
			s.errs.Handle(r.Context(), err, "Failed to read page", "file", name)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return true
		}

		injected, err := InjectReloadScript(page)
		if err != nil {
			s.logger.Warn(r.Context(), err, "Serving page without live reload", "file", name)
			injected = page
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(injected))
		return true
	}

	http.ServeContent(w, r, name, info.ModTime(), f)
	return true
}

func (s *Server) injectReload() bool {
	return s.liveReload != nil && s.config.Development.LiveReload
}

// InjectReloadScript appends the live reload script to the body of page.
func InjectReloadScript(page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		// html.Parse always synthesizes a body.
		return page, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(websocket.ReloadScript), body)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		body.AppendChild(node)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
