// Package config provides configuration management for the cwrap dev server
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the CWRAP_ prefix, defaults, and validation. It manages server
// settings, the project layout (routes tree, static folder, compiled app),
// the external build step, and development options like live reload.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// DefaultPort is the port the original tool always listened on.
	DefaultPort = 36969

	// DevAppDir holds the compiled front-end in development mode.
	DevAppDir = "dist"

	// PackagedAppDir holds the compiled front-end when installed as a package.
	PackagedAppDir = "node_modules/cwrap-framework"

	// UserDirName is the per-user base directory under the home directory.
	UserDirName = ".cwrap"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Project     ProjectConfig     `mapstructure:"project" yaml:"project"`
	Build       BuildConfig       `mapstructure:"build" yaml:"build"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

type ProjectConfig struct {
	Root      string `mapstructure:"root" yaml:"root"`
	RoutesDir string `mapstructure:"routes_dir" yaml:"routes_dir"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`
	AppDir    string `mapstructure:"app_dir" yaml:"app_dir"`
	UserDir   string `mapstructure:"user_dir" yaml:"user_dir"`
}

type BuildConfig struct {
	Runtime string   `mapstructure:"runtime" yaml:"runtime"`
	Script  string   `mapstructure:"script" yaml:"script"`
	Ignore  []string `mapstructure:"ignore" yaml:"ignore"`
}

type DevelopmentConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	LiveReload bool          `mapstructure:"live_reload" yaml:"live_reload"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on the global viper instance.
func SetDefaults() {
	viper.SetDefault("server.port", DefaultPort)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.open", false)

	viper.SetDefault("project.root", ".")
	viper.SetDefault("project.routes_dir", "routes")
	viper.SetDefault("project.static_dir", "static")

	viper.SetDefault("build.runtime", "node")
	viper.SetDefault("build.script", "build.js")
	viper.SetDefault("build.ignore", []string{"dist/", "node_modules/", ".git/"})

	viper.SetDefault("development.enabled", false)
	viper.SetDefault("development.live_reload", true)
	viper.SetDefault("development.debounce", 150*time.Millisecond)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle ignore patterns given as a comma separated env var or flag
	if len(config.Build.Ignore) == 1 && strings.Contains(config.Build.Ignore[0], ",") {
		config.Build.Ignore = strings.Split(config.Build.Ignore[0], ",")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ProjectRoot returns the absolute project root.
func (c *Config) ProjectRoot() string {
	root := c.Project.Root
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// RoutesRoot returns the absolute directory holding the route tree.
func (c *Config) RoutesRoot() string {
	return filepath.Join(c.ProjectRoot(), c.Project.RoutesDir)
}

// StaticRoot returns the absolute directory for user static assets.
func (c *Config) StaticRoot() string {
	return filepath.Join(c.ProjectRoot(), c.Project.StaticDir)
}

// AppRoot returns the directory holding the compiled front-end application.
func (c *Config) AppRoot() string {
	dir := c.Project.AppDir
	if dir == "" {
		if c.Development.Enabled {
			dir = DevAppDir
		} else {
			dir = PackagedAppDir
		}
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.ProjectRoot(), filepath.FromSlash(dir))
}

// UserDir returns the per-user base directory holding settings.json.
func (c *Config) UserDir() string {
	if c.Project.UserDir != "" {
		return c.Project.UserDir
	}
	return filepath.Join(xdg.Home, UserDirName)
}

// ErrorPagePath is where the rendered build failure page is persisted.
func (c *Config) ErrorPagePath() string {
	return filepath.Join(c.ProjectRoot(), "error.html")
}

// LockPath is the advisory lock held by a running dev server.
func (c *Config) LockPath() string {
	return filepath.Join(c.ProjectRoot(), ".cwrap.lock")
}

// BuildScriptPath returns the absolute path of the build script.
func (c *Config) BuildScriptPath() string {
	if filepath.IsAbs(c.Build.Script) {
		return c.Build.Script
	}
	return filepath.Join(c.ProjectRoot(), c.Build.Script)
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateProjectConfig(&config.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if config.Development.Debounce < 0 {
		return fmt.Errorf("development config: debounce must not be negative")
	}

	switch config.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validateProjectConfig validates the project layout
func validateProjectConfig(config *ProjectConfig) error {
	if err := validateRelativeDir("routes_dir", config.RoutesDir); err != nil {
		return err
	}
	if err := validateRelativeDir("static_dir", config.StaticDir); err != nil {
		return err
	}
	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	if strings.TrimSpace(config.Runtime) == "" {
		return fmt.Errorf("runtime must not be empty")
	}
	if strings.TrimSpace(config.Script) == "" {
		return fmt.Errorf("script must not be empty")
	}
	return validatePath(config.Script)
}

func validateRelativeDir(field, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	if filepath.IsAbs(dir) {
		return fmt.Errorf("%s should be a relative path: %s", field, dir)
	}
	if err := validatePath(dir); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
