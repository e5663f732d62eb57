// Package config provides configuration management for filaserve.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (FILASERVE_ prefix)
//  3. Config file (.filaserve.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Supported restart modes.
const (
	// RestartModeLoop re-enters the startup sequence inside the same process.
	RestartModeLoop = "loop"
	// RestartModeExec replaces the process image with a fresh invocation.
	RestartModeExec = "exec"
)

// DefaultPort is the fixed TCP port the static server binds to.
const DefaultPort = 8000

// Config represents the global configuration for filaserve.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Root is the repository root. Empty means three levels above HarnessDir.
	Root string `mapstructure:"root" json:"root"`

	// HarnessDir holds the page and script fixtures and is the watched tree.
	// Empty means the current working directory.
	HarnessDir string `mapstructure:"harness-dir" json:"harnessDir"`

	// BuildDir is the web build output directory. Relative to Root when not absolute.
	BuildDir string `mapstructure:"build-dir" json:"buildDir"`

	// ToolsDir holds the host tool binaries. Relative to Root when not absolute.
	ToolsDir string `mapstructure:"tools-dir" json:"toolsDir"`

	// ServeDir is the serving directory. Relative to BuildDir when not absolute.
	ServeDir string `mapstructure:"serve-dir" json:"serveDir"`

	// VendorDir is the vector-math script directory. Relative to Root when not absolute.
	VendorDir string `mapstructure:"vendor-dir" json:"vendorDir"`

	// Port is the TCP port of the static server.
	Port int `mapstructure:"port" json:"port"`

	// RestartMode selects how a detected change restarts the harness.
	RestartMode string `mapstructure:"restart-mode" json:"restartMode"`

	// Debounce coalesces modification events. Zero delivers every event.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`

	// Ignore lists glob patterns of paths that never trigger a restart.
	Ignore []string `mapstructure:"ignore" json:"ignore"`

	// Manifest is an optional asset manifest replacing the built-in plan.
	Manifest string `mapstructure:"manifest" json:"manifest"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), never read from the config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:    LogLevelInfo,
		LogFormat:   LogFormatText,
		BuildDir:    filepath.Join("out", "cmake-webgl-release"),
		ToolsDir:    filepath.Join("out", "cmake-release", "tools"),
		ServeDir:    filepath.Join("libs", "filamentjs"),
		VendorDir:   filepath.Join("third_party", "gl-matrix"),
		Port:        DefaultPort,
		RestartMode: RestartModeLoop,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	switch c.RestartMode {
	case RestartModeLoop, RestartModeExec:
		// valid
	default:
		return fmt.Errorf("invalid restart mode %q: must be one of loop, exec", c.RestartMode)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}

	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("quiet", false)
	v.SetDefault("root", "")
	v.SetDefault("harness-dir", "")
	v.SetDefault("build-dir", d.BuildDir)
	v.SetDefault("tools-dir", d.ToolsDir)
	v.SetDefault("serve-dir", d.ServeDir)
	v.SetDefault("vendor-dir", d.VendorDir)
	v.SetDefault("port", d.Port)
	v.SetDefault("restart-mode", d.RestartMode)
	v.SetDefault("debounce", time.Duration(0))
	v.SetDefault("ignore", []string{})
	v.SetDefault("manifest", "")
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("FILASERVE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	v.SetConfigName(".filaserve")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "filaserve"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
