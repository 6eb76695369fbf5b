package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/kirikodevv/grabctx/internal/ui"
	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "grabctx",
		Short: "Grab the context of the function under the cursor",
		Long: ui.TitleStyle.Render("grabctx") + ui.SubtitleStyle.Render(" - grab the context of the function under the cursor") + `

grabctx finds the function enclosing a cursor position, resolves the
nearest package.json and its package manager, makes sure the context
helper package is installed and runs it to copy the function's context
to the clipboard.

` + ui.SubtitleStyle.Render("Examples:") + `
  grabctx run src/app.js:42        Grab the function around line 42
  grabctx run src/app.ts --offset 1200 --yes
  grabctx locate src/app.js:42:7   Only print the enclosing function
  grabctx env                      Show the package environment here
  grabctx doctor                   Check node, npm and yarn on PATH`,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default: .grabctx.yaml in the project, then $XDG_CONFIG_HOME/grabctx/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run <file[:line[:col]]>",
		Short: "Grab the context of the function at a cursor position",
		Args:  cobra.ExactArgs(1),
		RunE:  RunGrab,
	}
	runCmd.Flags().Int("offset", 0, "Cursor byte offset (overrides line and column)")
	runCmd.Flags().String("project", "", "Project root (default: enclosing git worktree)")
	runCmd.Flags().String("strategy", "", "Environment strategy: walk|root")
	runCmd.Flags().BoolP("yes", "y", false, "Install the helper package without asking")
	runCmd.Flags().Duration("timeout", 0, "Kill the helper after this long (0 disables)")
	runCmd.Flags().String("package", "", "Helper package name")
	runCmd.Flags().String("shell", "", "Shell used to run commands")
	runCmd.Flags().StringSlice("lang", nil, "Languages to enable (javascript,typescript,go,python,ruby)")
	runCmd.Flags().Bool("json", false, "Print the outcome as JSON")

	locateCmd := &cobra.Command{
		Use:   "locate <file[:line[:col]]>",
		Short: "Print the function enclosing a cursor position",
		Args:  cobra.ExactArgs(1),
		RunE:  RunLocate,
	}
	locateCmd.Flags().Int("offset", 0, "Cursor byte offset (overrides line and column)")
	locateCmd.Flags().StringSlice("lang", nil, "Languages to enable (javascript,typescript,go,python,ruby)")
	locateCmd.Flags().Bool("json", false, "Print machine-readable result")

	envCmd := &cobra.Command{
		Use:   "env [dir]",
		Short: "Show the package environment governing a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunEnv,
	}
	envCmd.Flags().String("package", "", "Helper package name")
	envCmd.Flags().Bool("json", false, "Print machine-readable environment")

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the toolchain and environment grabctx depends on",
		Args:  cobra.NoArgs,
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "grabctx %s\n", version)
		},
	}

	rootCmd.AddCommand(
		runCmd,
		locateCmd,
		envCmd,
		doctorCmd,
		versionCmd,
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	err := fang.Execute(
		ctx,
		NewRootCommand(version),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// handleError skips errors whose outcome was already presented.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
