package cli

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/kirikodevv/grabctx/internal/fileutil"
	"github.com/kirikodevv/grabctx/internal/languages"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/toolchain"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// DoctorSummary is the machine-readable output of the doctor command.
type DoctorSummary struct {
	Mode        string                          `json:"mode"`
	RootPath    string                          `json:"root_path"`
	ConfigPath  string                          `json:"config_path,omitempty"`
	Languages   []string                        `json:"languages"`
	Extensions  []string                        `json:"extensions"`
	Shell       string                          `json:"shell"`
	ShellFound  bool                            `json:"shell_found"`
	Env         *EnvSummary                     `json:"env"`
	Tools       map[string]toolchain.Capability `json:"tools"`
	Missing     []string                        `json:"missing,omitempty"`
	Suggestions []string                        `json:"suggestions,omitempty"`
	Healthy     bool                            `json:"healthy"`
}

func RunDoctor(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, rootPath)
	if err != nil {
		return err
	}

	summary, err := diagnose(rootPath, s, exec.LookPath)
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Printf("doctor: %s\n", status)
	if summary.ConfigPath != "" {
		fmt.Printf("config: %s\n", summary.ConfigPath)
	}
	fmt.Printf("languages: %s (%s)\n", strings.Join(summary.Languages, ","), strings.Join(summary.Extensions, " "))
	fmt.Printf("shell: %s found=%t\n", summary.Shell, summary.ShellFound)
	if summary.Env.Found {
		fmt.Printf("env: manifest=%s manager=%s helper_installed=%t\n",
			summary.Env.ManifestDir, summary.Env.Manager, summary.Env.HelperInstalled)
	} else {
		fmt.Printf("env: no %s above %s\n", pkgenv.ManifestFile, rootPath)
	}
	for _, tool := range toolchain.Tools() {
		capability := summary.Tools[tool]
		fmt.Printf("tool %s: available=%t required=%t %s\n", tool, capability.Available, capability.Required, capability.Path)
	}
	if len(summary.Missing) > 0 {
		fmt.Printf("missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("next: %s\n", suggestion)
	}
	return nil
}

func diagnose(rootPath string, s *session, lookPath func(string) (string, error)) (*DoctorSummary, error) {
	registry, err := languages.NewRegistry(s.cfg.Languages)
	if err != nil {
		return nil, err
	}
	env, err := summarizeEnv(pkgenv.NewLocator(afero.NewOsFs()), rootPath, s.cfg.Package, s.cfg.IgnoreWorkspaceRootCheck)
	if err != nil {
		return nil, err
	}

	summary := &DoctorSummary{
		Mode:       "doctor",
		RootPath:   rootPath,
		ConfigPath: s.configPath,
		Languages:  registry.Languages(),
		Extensions: registry.SupportedExtensions(),
		Shell:      s.cfg.Shell,
		Env:        env,
	}
	_, shellErr := lookPath(s.cfg.Shell)
	summary.ShellFound = shellErr == nil
	if !summary.ShellFound {
		summary.Missing = append(summary.Missing, "shell "+s.cfg.Shell)
	}

	manager := env.Manager
	summary.Tools = toolchain.ProbeWithLookPath(toolchain.RequiredTools(manager), lookPath)
	for _, tool := range toolchain.Missing(summary.Tools) {
		summary.Missing = append(summary.Missing, "tool "+tool)
	}

	switch {
	case !env.Found:
		summary.Missing = append(summary.Missing, pkgenv.ManifestFile)
	case manager == pkgenv.ManagerNone:
		summary.Missing = append(summary.Missing, "lockfile")
		summary.Suggestions = append(summary.Suggestions, "run npm install or yarn install to create a lockfile")
	case !env.HelperInstalled:
		summary.Suggestions = append(summary.Suggestions, env.InstallCommand)
	}

	summary.Missing = fileutil.DedupeStrings(summary.Missing)
	summary.Healthy = len(summary.Missing) == 0
	return summary, nil
}
