package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kirikodevv/grabctx/internal/command"
	"github.com/kirikodevv/grabctx/internal/fileutil"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// EnvSummary describes the package environment governing a directory.
type EnvSummary struct {
	Mode            string         `json:"mode"`
	StartDir        string         `json:"start_dir"`
	Found           bool           `json:"found"`
	ManifestDir     string         `json:"manifest_dir,omitempty"`
	Manager         pkgenv.Manager `json:"manager"`
	Package         string         `json:"package"`
	HelperDir       string         `json:"helper_dir,omitempty"`
	HelperInstalled bool           `json:"helper_installed"`
	InstallCommand  string         `json:"install_command,omitempty"`
}

func RunEnv(cmd *cobra.Command, args []string) error {
	startDir := ""
	if len(args) > 0 {
		startDir = args[0]
	} else {
		wd, err := resolveWorkingDirectory()
		if err != nil {
			return err
		}
		startDir = wd
	}
	startDir, err := filepath.Abs(startDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, startDir)
	if err != nil {
		return err
	}

	summary, err := summarizeEnv(pkgenv.NewLocator(afero.NewOsFs()), startDir, s.cfg.Package, s.cfg.IgnoreWorkspaceRootCheck)
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	if !summary.Found {
		fmt.Printf("env: no %s found above %s\n", pkgenv.ManifestFile, summary.StartDir)
		return &ExitError{Code: 1, Reported: true}
	}
	fmt.Printf("manifest: %s\n", summary.ManifestDir)
	fmt.Printf("manager: %s\n", summary.Manager)
	fmt.Printf("helper: %s installed=%t\n", summary.Package, summary.HelperInstalled)
	if summary.InstallCommand != "" && !summary.HelperInstalled {
		fmt.Printf("next: %s\n", summary.InstallCommand)
	}
	return nil
}

func summarizeEnv(locator *pkgenv.Locator, startDir, pkg string, ignoreWorkspaceRoot bool) (*EnvSummary, error) {
	summary := &EnvSummary{Mode: "env", StartDir: startDir, Package: pkg}

	env, err := locator.Locate(startDir)
	if err != nil {
		if errors.Is(err, pkgenv.ErrNoManifest) {
			return summary, nil
		}
		return nil, err
	}

	summary.Found = true
	summary.ManifestDir = env.ManifestDir
	summary.Manager = env.Manager
	summary.HelperDir = env.HelperDir(pkg)
	summary.HelperInstalled, err = locator.HelperInstalled(env, pkg)
	if err != nil {
		return nil, err
	}
	if env.HasManager() {
		summary.InstallCommand, err = command.InstallLine(env.Manager, pkg, ignoreWorkspaceRoot)
		if err != nil {
			return nil, err
		}
	}
	return summary, nil
}
