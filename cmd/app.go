package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/conneroisu/cwrap/internal/build"
	"github.com/conneroisu/cwrap/internal/config"
	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/logging"
	"github.com/conneroisu/cwrap/internal/routes"
)

// app holds the components every command is built from.
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	documents *documents.Store
	routes    *routes.Tree
	errorPage *build.ErrorPage
	builds    *build.Orchestrator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: out,
	}), nil
}

// newApp wires the store, route tree and build pipeline for cfg. Build
// output is echoed to echo.
func newApp(cfg *config.Config, logger logging.Logger, echo io.Writer) *app {
	project := osfs.New(cfg.ProjectRoot())
	user := osfs.New(cfg.UserDir())

	errorPage := build.NewErrorPage(project)
	runner := build.NewRunner(cfg.Build.Runtime, cfg.Build.Script, cfg.ProjectRoot(), echo)
	state := build.NewState(errorPage, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		documents: documents.NewStore(project, user, cfg.Project.RoutesDir, logger),
		routes:    routes.NewTree(project, cfg.Project.RoutesDir),
		errorPage: errorPage,
		builds:    build.NewOrchestrator(runner, state, logger),
	}
}

// setup loads the configuration and wires the app for a command writing
// logs to stderr.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger, os.Stderr), nil
}
