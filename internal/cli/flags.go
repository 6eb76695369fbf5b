package cli

import (
	"fmt"
	"strings"

	"github.com/kirikodevv/grabctx/internal/config"
	"github.com/spf13/cobra"
)

// configFlags maps config keys to the flags that override them.
var configFlags = map[string]string{
	config.KeyPackage:   "package",
	config.KeyStrategy:  "strategy",
	config.KeyTimeout:   "timeout",
	config.KeyShell:     "shell",
	config.KeyAssumeYes: "yes",
	config.KeyLanguages: "lang",
	config.KeyLogLevel:  "log-level",
}

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

func OptionalBoolFlag(cmd *cobra.Command, name string, defaultValue bool) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return defaultValue, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

func OptionalIntFlag(cmd *cobra.Command, name string, defaultValue int) (int, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return defaultValue, nil
	}
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return 0, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

// flagChanged reports whether name was set on the command line.
func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}
