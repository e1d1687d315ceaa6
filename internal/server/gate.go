package server

import (
	"net/http"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/websocket"
)

// gateExempt lists paths served even while the last build failed.
var gateExempt = map[string]bool{
	"/" + build.ErrorPageName: true,
	websocket.Path:            true,
}

// buildGate answers every request with the error page while the build state
// is Failed. The check reads the current snapshot and never waits for a
// running build.
func (s *Server) buildGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gateExempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		snap := s.state.Get()
		if !snap.Failed() {
			next.ServeHTTP(w, r)
			return
		}

		s.writeErrorArtifact(w, r, snap)
	})
}

// writeErrorArtifact serves the persisted error page, or renders it from the
// snapshot when the file was not written for this failure or cannot be read.
func (s *Server) writeErrorArtifact(w http.ResponseWriter, r *http.Request, snap build.Snapshot) {
	var page []byte
	if s.errorPage != nil && snap.PagePersisted {
		data, err := s.errorPage.Read()
		if err == nil {
			page = data
		} else {
			s.errs.Handle(r.Context(), err, "Error page unreadable, rendering from build state")
		}
	}

	if page == nil {
		rendered, err := build.RenderErrorPage(r.Context(), snap.Diagnostic)
		if err != nil {
			s.errs.Handle(r.Context(), err, "Failed to render error page")
			http.Error(w, "Build Error", http.StatusInternalServerError)
			return
		}
		page = rendered
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(s.withReload(r, page))
}

// withReload injects the live reload script so an open error page refreshes
// once the build is fixed.
func (s *Server) withReload(r *http.Request, page []byte) []byte {
	if !s.injectReload() {
		return page
	}
	injected, err := InjectReloadScript(page)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Serving error page without live reload")
		return page
	}
	return injected
}

// handleErrorPage serves the persisted error page directly.
func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	if s.errorPage == nil {
		http.NotFound(w, r)
		return
	}

	page, err := s.errorPage.Read()
	if err != nil {
		s.writeError(w, r, err, "Failed to read error page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(s.withReload(r, page))
}
