package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cwrap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after loading .cwrap.yml, applying CWRAP_*
environment overrides, defaults and command-line flags. Derived paths
(routes root, compiled app, user directory) are shown resolved.

Examples:
  cwrap config                    # YAML output
  cwrap config -o json            # JSON output`,
	RunE: runConfig,
}

var configFormat outputFormat

func init() {
	rootCmd.AddCommand(configCmd)
	addOutputFlag(configCmd, &configFormat, formatYAML)
}

// resolvedConfig is the configuration plus the paths derived from it.
type resolvedConfig struct {
	Config   *config.Config `json:"config" yaml:"config"`
	File     string         `json:"file,omitempty" yaml:"file,omitempty"`
	Resolved resolvedPaths  `json:"resolved" yaml:"resolved"`
}

type resolvedPaths struct {
	ProjectRoot string `json:"project_root" yaml:"project_root"`
	RoutesRoot  string `json:"routes_root" yaml:"routes_root"`
	StaticRoot  string `json:"static_root" yaml:"static_root"`
	AppRoot     string `json:"app_root" yaml:"app_root"`
	UserDir     string `json:"user_dir" yaml:"user_dir"`
	BuildScript string `json:"build_script" yaml:"build_script"`
	ErrorPage   string `json:"error_page" yaml:"error_page"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return writeConfig(os.Stdout, cfg, viper.ConfigFileUsed(), configFormat)
}

func resolve(cfg *config.Config, file string) resolvedConfig {
	return resolvedConfig{
		Config: cfg,
		File:   file,
		Resolved: resolvedPaths{
			ProjectRoot: cfg.ProjectRoot(),
			RoutesRoot:  cfg.RoutesRoot(),
			StaticRoot:  cfg.StaticRoot(),
			AppRoot:     cfg.AppRoot(),
			UserDir:     cfg.UserDir(),
			BuildScript: cfg.BuildScriptPath(),
			ErrorPage:   cfg.ErrorPagePath(),
		},
	}
}

func writeConfig(w io.Writer, cfg *config.Config, file string, format outputFormat) error {
	out := resolve(cfg, file)

	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(out)
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml)", format)
	}
}
