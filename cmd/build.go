package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cwrap/internal/build"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Run the project build once",
	Long: `Run the project's build script once without starting the server.
The script output is streamed to the terminal. A failing build exits with a
non-zero status and leaves the rendered error page in the project root.

Examples:
  cwrap build                     # Production build (node build.js)
  cwrap build --dev               # Development build (node build.js dev)`,
	RunE: runBuild,
}

var buildDev bool

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildDev, "dev", false, "Run the development build")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mode := build.ModeProd
	if buildDev {
		mode = build.ModeDev
	}

	return executeBuild(ctx, a, mode)
}

func executeBuild(ctx context.Context, a *app, mode build.Mode) error {
	if err := a.builds.Available(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Running %s build...\n", mode)

	result := a.builds.Build(ctx, mode, "cli")
	if result.Skipped {
		return fmt.Errorf("build cancelled")
	}
	if result.Outcome.Failed() {
		return fmt.Errorf("build failed: %w", result.Outcome.Err)
	}

	fmt.Fprintf(os.Stderr, "Build completed in %s\n", result.Outcome.Duration.Round(time.Millisecond))
	return nil
}
