package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cwrap/internal/explorer"
	"github.com/conneroisu/cwrap/internal/server"
	"github.com/conneroisu/cwrap/internal/watcher"
	"github.com/conneroisu/cwrap/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server",
	Long: `Start the cwrap server for the project in the current directory.

The server watches the project's JSON documents, runs the development
build after every change, and reloads connected browsers. While the last
build is failing every page shows the build error. With --dev the compiled
front-end is served from dist/ instead of the packaged framework.

Examples:
  cwrap serve                      # Serve the packaged front-end
  cwrap serve --dev                # Serve the locally built front-end
  cwrap serve --port 3000 --open   # Custom port, open the browser`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 36969, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open the browser once the server is up")
	serveCmd.Flags().Bool("dev", false, "Serve the front-end built into dist/")
	AddFlagValidation(serveCmd, "port", ValidatePort)

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
	_ = viper.BindPFlag("development.enabled", serveCmd.Flags().Lookup("dev"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	cfg := a.cfg

	lock, err := acquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to release lock: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(a)
	if err != nil {
		return err
	}

	fw, err := startWatcher(ctx, a)
	if err != nil {
		return err
	}
	defer func() {
		if err := fw.Stop(); err != nil {
			a.logger.Warn(ctx, err, "Failed to stop file watcher")
		}
	}()

	fmt.Printf("Starting cwrap server at http://%s\n", cfg.Address())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(ctx) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	fmt.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn(shutdownCtx, err, "Error during server shutdown")
	}
	a.builds.Wait()

	return <-serveErr
}

// newServer wires the HTTP server and its live reload hub for a.
func newServer(a *app) (*server.Server, error) {
	cfg := a.cfg
	liveReload := websocket.NewWebSocketManager(
		websocket.LocalOrigins{Host: cfg.Server.Host, Port: cfg.Server.Port},
		a.logger,
	)

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Documents:  a.documents,
		Routes:     a.routes,
		Builds:     a.builds,
		ErrorPage:  a.errorPage,
		LiveReload: liveReload,
		Launcher:   explorer.New(),
		App:        osfs.New(cfg.AppRoot()),
		Static:     osfs.New(cfg.StaticRoot()),
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}

// acquireLock takes the advisory lock that allows one server per project.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another cwrap server is already running for this project (lock %s)", path)
	}
	return lock, nil
}

// startWatcher watches the project for document changes and rebuilds on
// every batch.
func startWatcher(ctx context.Context, a *app) (*watcher.FileWatcher, error) {
	root := a.cfg.ProjectRoot()
	ignore := watcher.NewIgnoreMatcher(root, a.cfg.Build.Ignore...)

	fw, err := watcher.NewFileWatcher(root, a.cfg.Development.Debounce, ignore, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.JSONFilter)
	fw.AddHandler(watcher.RebuildHandler(a.builds, a.logger))

	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	a.logger.Info(ctx, "Watching project documents", "root", root)
	return fw, nil
}
