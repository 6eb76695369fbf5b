package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kirikodevv/grabctx/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// session is the per-command state shared by every subcommand.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *log.Logger
}

func newSession(cmd *cobra.Command, projectRoot string) (*session, error) {
	configFile, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}

	cfg, path, err := config.Load(config.LoadOptions{
		Fs:          afero.NewOsFs(),
		ConfigFile:  configFile,
		ProjectRoot: projectRoot,
		Flags:       cmd.Flags(),
		FlagKeys:    configFlags,
	})
	if err != nil {
		return nil, err
	}

	verbose, err := OptionalBoolFlag(cmd, "verbose", false)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel, verbose)
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	return &session{cfg: cfg, configPath: path, logger: logger}, nil
}

func newLogger(level string, verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "grabctx"})
	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = log.WarnLevel
	}
	if verbose {
		parsed = log.DebugLevel
	}
	logger.SetLevel(parsed)
	return logger
}
