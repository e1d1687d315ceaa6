// Package server implements the cwrap development HTTP server: the document
// API used by the editor front-end, the compiled application, and the build
// failure gate.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/config"
	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/errors"
	"github.com/conneroisu/cwrap/internal/explorer"
	"github.com/conneroisu/cwrap/internal/logging"
	"github.com/conneroisu/cwrap/internal/routes"
	"github.com/conneroisu/cwrap/internal/websocket"
)

// maxBodySize bounds documents posted to the save endpoints.
const maxBodySize = 10 << 20

// Deps are the collaborators the server is built from.
type Deps struct {
	Config     *config.Config
	Documents  *documents.Store
	Routes     *routes.Tree
	Builds     *build.Orchestrator
	ErrorPage  *build.ErrorPage
	LiveReload *websocket.WebSocketManager
	Launcher   explorer.Launcher
	// App and Static serve the compiled front-end and the project's own
	// static assets.
	App    billy.Filesystem
	Static billy.Filesystem
	Logger logging.Logger
}

// Server is the development server.
type Server struct {
	config     *config.Config
	documents  *documents.Store
	routes     *routes.Tree
	builds     *build.Orchestrator
	state      *build.State
	errorPage  *build.ErrorPage
	liveReload *websocket.WebSocketManager
	launcher   explorer.Launcher
	app        billy.Filesystem
	static     billy.Filesystem
	logger     logging.Logger
	errs       *errors.ErrorHandler

	handler http.Handler

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a server. Documents, Routes and Builds are required.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Documents == nil || deps.Routes == nil || deps.Builds == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server requires config, documents, routes and builds")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	launcher := deps.Launcher
	if launcher == nil {
		launcher = explorer.New()
	}

	s := &Server{
		config:     deps.Config,
		documents:  deps.Documents,
		routes:     deps.Routes,
		builds:     deps.Builds,
		state:      deps.Builds.State(),
		errorPage:  deps.ErrorPage,
		liveReload: deps.LiveReload,
		launcher:   launcher,
		app:        deps.App,
		static:     deps.Static,
		logger:     logger,
		errs:       errors.NewErrorHandler(logger),
	}

	if s.liveReload != nil {
		s.builds.AddListener(s.liveReload.OnBuild)
	}

	s.handler = s.requestLogger(s.buildGate(s.routesMux()))
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routesMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /save-skeleton", s.handleSaveSkeleton)
	mux.HandleFunc("POST /save-skeleton/{subPath...}", s.handleSaveSkeleton)
	mux.HandleFunc("POST /save-template", s.handleSaveTemplates)
	mux.HandleFunc("POST /save-template/{subPath...}", s.handleSaveTemplates)
	mux.HandleFunc("POST /save-config", s.handleSaveConfig)

	mux.HandleFunc("GET /api/skeleton", s.handleLoadSkeleton)
	mux.HandleFunc("GET /api/templates", s.handleLoadTemplates)
	mux.HandleFunc("GET /api/config", s.handleLoadConfig)
	mux.HandleFunc("GET /api/all-routes", s.handleAllRoutes)
	mux.HandleFunc("GET /api/list-directory", s.handleListDirectory)
	mux.HandleFunc("GET /api/initial-settings", s.handleInitialSettings)
	mux.HandleFunc("POST /api/create-initial-settings", s.handleCreateInitialSettings)
	mux.HandleFunc("GET /api/open-folder/routes", s.handleOpenRoutesFolder)
	mux.HandleFunc("GET /api/open-folder/static", s.handleOpenStaticFolder)
	mux.HandleFunc("GET /api/build", s.handleBuild)
	mux.HandleFunc("GET /api/build/status", s.handleBuildStatus)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /"+build.ErrorPageName, s.handleErrorPage)
	if s.liveReload != nil {
		mux.HandleFunc("GET "+websocket.Path, s.liveReload.HandleWebSocket)
	}

	mux.HandleFunc("GET /", s.handleApp)

	return mux
}

// Start listens on the configured address and serves until Shutdown is
// called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return errors.NewIOError(errors.ErrCodeIO, "failed to listen", err).
			WithContext("address", s.config.Address())
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.serverMutex.Lock()
	s.httpServer = server
	s.serverMutex.Unlock()

	url := fmt.Sprintf("http://%s", listener.Addr().String())
	s.logger.Info(ctx, "Server running", "url", url)

	if s.config.Server.Open {
		go s.openBrowser(ctx, url)
	}

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	time.Sleep(100 * time.Millisecond) // Give server time to start

	cmd := explorer.PlatformCommand(runtime.GOOS)(context.WithoutCancel(ctx), url)
	if err := cmd.Start(); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
		return
	}
	go func() { _ = cmd.Wait() }()
}

// Shutdown closes live reload clients and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if s.liveReload != nil {
			if err := s.liveReload.Shutdown(ctx); err != nil {
				s.logger.Warn(ctx, err, "Live reload shutdown failed")
			}
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
