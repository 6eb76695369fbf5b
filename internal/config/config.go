// Package config loads grabctx settings with viper: defaults, then a config
// file, then GRABCTX_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirikodevv/grabctx/internal/bootstrap"
	"github.com/kirikodevv/grabctx/internal/languages"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/runner"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	AppName = "grabctx"
	// EnvPrefix prefixes every environment override, e.g. GRABCTX_TIMEOUT.
	EnvPrefix = "GRABCTX"
	// ProjectConfigFile is looked up in the project root.
	ProjectConfigFile = ".grabctx.yaml"
	// UserConfigFile is looked up in the user config directory.
	UserConfigFile = "config.yaml"
)

const (
	KeyPackage                  = "package"
	KeyStrategy                 = "strategy"
	KeyTimeout                  = "timeout"
	KeyShell                    = "shell"
	KeyAssumeYes                = "assume_yes"
	KeyIgnoreWorkspaceRootCheck = "ignore_workspace_root_check"
	KeyLanguages                = "languages"
	KeyLogLevel                 = "log_level"
)

var (
	// ErrConfigNotFound is returned when an explicit config file is missing.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrInvalidConfig is returned when a value fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}

// Config holds the resolved settings for one invocation.
type Config struct {
	Package                  string        `mapstructure:"package" json:"package"`
	Strategy                 string        `mapstructure:"strategy" json:"strategy"`
	Timeout                  time.Duration `mapstructure:"timeout" json:"timeout"`
	Shell                    string        `mapstructure:"shell" json:"shell"`
	AssumeYes                bool          `mapstructure:"assume_yes" json:"assume_yes"`
	IgnoreWorkspaceRootCheck bool          `mapstructure:"ignore_workspace_root_check" json:"ignore_workspace_root_check"`
	Languages                []string      `mapstructure:"languages" json:"languages"`
	LogLevel                 string        `mapstructure:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Package:                  bootstrap.DefaultPackage,
		Strategy:                 string(pkgenv.StrategyWalk),
		Shell:                    runner.DefaultShell,
		IgnoreWorkspaceRootCheck: true,
		Languages:                append([]string(nil), languages.DefaultLanguages...),
		LogLevel:                 "warn",
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Fs is read for config files; defaults to the OS filesystem
	Fs afero.Fs
	// ConfigFile is an explicit config path and must exist when set
	ConfigFile string
	// ProjectRoot is searched for ProjectConfigFile
	ProjectRoot string
	// ConfigDir overrides the user config directory
	ConfigDir string
	// Flags are bound to their config keys; only changed flags override
	Flags *pflag.FlagSet
	// FlagKeys maps config keys to flag names
	FlagKeys map[string]string
}

// Load resolves the configuration and returns it with the config file path
// that was used, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	v := viper.New()
	v.SetFs(opts.Fs)

	defaults := DefaultConfig()
	v.SetDefault(KeyPackage, defaults.Package)
	v.SetDefault(KeyStrategy, defaults.Strategy)
	v.SetDefault(KeyTimeout, defaults.Timeout)
	v.SetDefault(KeyShell, defaults.Shell)
	v.SetDefault(KeyAssumeYes, defaults.AssumeYes)
	v.SetDefault(KeyIgnoreWorkspaceRootCheck, defaults.IgnoreWorkspaceRootCheck)
	v.SetDefault(KeyLanguages, defaults.Languages)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, "", fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Package) == "" {
		return fmt.Errorf("%w: package must not be empty", ErrInvalidConfig)
	}
	if _, err := pkgenv.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidConfig, c.Timeout)
	}
	if strings.TrimSpace(c.Shell) == "" {
		return fmt.Errorf("%w: shell must not be empty", ErrInvalidConfig)
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("%w: at least one language must be enabled", ErrInvalidConfig)
	}
	for _, lang := range c.Languages {
		if _, err := languages.CanonicalLanguage(lang); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if !logLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// StrategyValue returns the parsed environment strategy.
func (c *Config) StrategyValue() pkgenv.Strategy {
	s, err := pkgenv.ParseStrategy(c.Strategy)
	if err != nil {
		return pkgenv.StrategyWalk
	}
	return s
}

// ConfigDir returns $XDG_CONFIG_HOME/grabctx, defaulting to ~/.config.
func ConfigDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		exists, err := afero.Exists(opts.Fs, opts.ConfigFile)
		if err != nil {
			return "", fmt.Errorf("failed to inspect %s: %w", opts.ConfigFile, err)
		}
		if !exists {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFile)
		}
		return opts.ConfigFile, nil
	}

	candidates := make([]string, 0, 2)
	if opts.ProjectRoot != "" {
		candidates = append(candidates, filepath.Join(opts.ProjectRoot, ProjectConfigFile))
	}
	dir := opts.ConfigDir
	if dir == "" {
		if d, err := ConfigDir(); err == nil {
			dir = d
		}
	}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, UserConfigFile))
	}

	for _, candidate := range candidates {
		exists, err := afero.Exists(opts.Fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to inspect %s: %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}
	}
	return "", nil
}
