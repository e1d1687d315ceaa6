package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/errors"
	"github.com/conneroisu/cwrap/internal/explorer"
	"github.com/conneroisu/cwrap/internal/routes"
	"github.com/conneroisu/cwrap/internal/version"
)

// successResponse is the body of every successful mutating request.
type successResponse struct {
	Success bool `json:"success"`
}

// failureResponse is the body of every failed API request.
type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// buildResponse reports the outcome of a manual build.
type buildResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDocument(w http.ResponseWriter, doc json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// writeError logs err and maps it to a JSON failure body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	s.errs.Handle(r.Context(), err, msg, "path", r.URL.Path)

	status := errors.HTTPStatus(err)
	body := failureResponse{Success: false, Error: errors.PublicMessage(err)}
	if status == http.StatusNotFound {
		body.Message = body.Error
	}
	writeJSON(w, status, body)
}

// routeFromPath parses the {subPath...} wildcard of the save endpoints.
func routeFromPath(r *http.Request) (routes.RoutePath, error) {
	return routes.Parse(r.PathValue("subPath"))
}

// routeFromQuery parses the optional ?path= parameter.
func routeFromQuery(r *http.Request) (routes.RoutePath, error) {
	return routes.Parse(r.URL.Query().Get("path"))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument, "request body could not be read").
			WithContext("cause", err.Error())
	}
	return body, nil
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, scope routes.RoutePath, name documents.Name) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err, "Failed to read document")
		return
	}

	if err := s.documents.Save(r.Context(), scope, name, body); err != nil {
		s.writeError(w, r, err, "Failed to save document")
		return
	}

	s.logger.Info(r.Context(), "Document saved", "document", string(name), "route", scope.String())
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) load(w http.ResponseWriter, r *http.Request, scope routes.RoutePath, name documents.Name) {
	doc, err := s.documents.Load(r.Context(), scope, name)
	if err != nil {
		s.writeError(w, r, err, "Failed to load document")
		return
	}
	writeDocument(w, doc)
}

func (s *Server) handleSaveSkeleton(w http.ResponseWriter, r *http.Request) {
	scope, err := routeFromPath(r)
	if err != nil {
		s.writeError(w, r, err, "Invalid route")
		return
	}
	s.save(w, r, scope, documents.Skeleton)
}

func (s *Server) handleSaveTemplates(w http.ResponseWriter, r *http.Request) {
	scope, err := routeFromPath(r)
	if err != nil {
		s.writeError(w, r, err, "Invalid route")
		return
	}
	s.save(w, r, scope, documents.Templates)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, routes.Root, documents.Config)
}

func (s *Server) handleLoadSkeleton(w http.ResponseWriter, r *http.Request) {
	scope, err := routeFromQuery(r)
	if err != nil {
		s.writeError(w, r, err, "Invalid route")
		return
	}
	s.load(w, r, scope, documents.Skeleton)
}

func (s *Server) handleLoadTemplates(w http.ResponseWriter, r *http.Request) {
	scope, err := routeFromQuery(r)
	if err != nil {
		s.writeError(w, r, err, "Invalid route")
		return
	}
	s.load(w, r, scope, documents.Templates)
}

func (s *Server) handleLoadConfig(w http.ResponseWriter, r *http.Request) {
	s.load(w, r, routes.Root, documents.Config)
}

func (s *Server) handleInitialSettings(w http.ResponseWriter, r *http.Request) {
	s.load(w, r, routes.Root, documents.Settings)
}

func (s *Server) handleCreateInitialSettings(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, routes.Root, documents.Settings)
}

func (s *Server) handleAllRoutes(w http.ResponseWriter, r *http.Request) {
	all, err := s.routes.All(r.Context())
	if err != nil {
		s.writeError(w, r, err, "Failed to read routes directory")
		return
	}

	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.String())
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	scope, err := routeFromQuery(r)
	if err != nil {
		s.writeError(w, r, err, "Invalid route")
		return
	}

	children, err := s.routes.Children(r.Context(), scope)
	if err != nil {
		s.writeError(w, r, err, "Failed to read directory")
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleOpenRoutesFolder(w http.ResponseWriter, r *http.Request) {
	s.openFolder(w, r, s.config.RoutesRoot())
}

func (s *Server) handleOpenStaticFolder(w http.ResponseWriter, r *http.Request) {
	s.openFolder(w, r, s.config.StaticRoot())
}

// openFolder creates dir when missing and opens it. Every failure is
// reported as a server error.
func (s *Server) openFolder(w http.ResponseWriter, r *http.Request, dir string) {
	if err := explorer.EnsureDir(dir); err != nil {
		if errors.IsNotFound(err) {
			err = errors.NewIOError(errors.ErrCodeIO, "failed to create folder", err).WithPath(dir)
		}
		s.writeError(w, r, err, "Failed to create folder")
		return
	}

	if err := s.launcher.Open(r.Context(), dir); err != nil {
		if errors.IsValidation(err) || errors.IsNotFound(err) {
			err = errors.NewIOError(errors.ErrCodeLaunchFailed, "folder cannot be opened", err).WithPath(dir)
		}
		s.writeError(w, r, err, "Error opening folder")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleBuild runs a production build and waits for it. The build is not
// cancelled when the client goes away.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if err := s.builds.Available(); err != nil {
		s.writeError(w, r, err, "Build unavailable")
		return
	}

	result := s.builds.Build(context.WithoutCancel(r.Context()), build.ModeProd, "manual build")
	if result.Outcome.Failed() {
		s.logger.Error(r.Context(), result.Outcome.Err, "Error executing build")
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Success: false,
			Error:   result.Outcome.Diagnostic(),
		})
		return
	}

	writeJSON(w, http.StatusOK, buildResponse{
		Success: true,
		Output:  result.Outcome.Stdout,
		Error:   result.Outcome.Stderr,
	})
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state":     s.state.Get(),
		"metrics":   s.builds.Metrics().GetSnapshot(),
		"timestamp": time.Now().Unix(),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Get()

	clients := 0
	if s.liveReload != nil {
		clients = s.liveReload.GetConnectedClients()
	}

	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"build":      map[string]interface{}{"status": snap.Status.String(), "generation": snap.Generation},
			"livereload": map[string]interface{}{"clients": clients},
		},
	}
	writeJSON(w, http.StatusOK, health)
}
