// Package cmd provides the command-line interface for cwrap with configuration
// loaded from multiple sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. CWRAP_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (CWRAP_SERVER_PORT, etc.)
//	4. Configuration files (.cwrap.yml) - lowest priority
//
// Environment Variables:
//
//	CWRAP_CONFIG_FILE: Path to custom configuration file
//	CWRAP_SERVER_PORT: Override server port
//	CWRAP_SERVER_HOST: Override server host
//	CWRAP_DEVELOPMENT_ENABLED: Enable development mode
//	And the rest following the CWRAP_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cwrap",
	Short: "Development server for cwrap projects",
	Long: `cwrap serves the visual site builder, persists its JSON documents under
the project's route tree, and runs the project build whenever they change.

Quick Start:
  cwrap serve --dev               Serve the front-end built into dist/
  cwrap build                     Run the production build once
  cwrap routes                    List the project's routes
  cwrap version                   Show version information

Command Aliases:
  serve (s), build (b), routes (r)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .cwrap.yml, can also use CWRAP_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("root", ".", "project root directory")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("project.root", rootCmd.PersistentFlags().Lookup("root"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. CWRAP_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .cwrap.yml in current directory
//
// Every configuration value can also be set from the environment with the
// CWRAP_ prefix (e.g., CWRAP_SERVER_PORT=8080).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CWRAP_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cwrap")
	}

	viper.SetEnvPrefix("CWRAP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
