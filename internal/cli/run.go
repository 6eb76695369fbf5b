package cli

import (
	"context"

	"github.com/kirikodevv/grabctx/internal/bootstrap"
	"github.com/kirikodevv/grabctx/internal/fileutil"
	"github.com/kirikodevv/grabctx/internal/grab"
	"github.com/kirikodevv/grabctx/internal/languages"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/runner"
	"github.com/kirikodevv/grabctx/internal/ui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// pausingConfirmer hides the spinner while a prompt is on screen.
type pausingConfirmer struct {
	spinner   *ui.Spinner
	confirmer bootstrap.Confirmer
}

func (c pausingConfirmer) Confirm(ctx context.Context, title, message, yes, no string) (bool, error) {
	c.spinner.Stop()
	defer c.spinner.Start()
	return c.confirmer.Confirm(ctx, title, message, yes, no)
}

func RunGrab(cmd *cobra.Command, args []string) error {
	target, err := resolveTarget(cmd, args[0])
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	projectRoot, err := OptionalStringFlag(cmd, "project")
	if err != nil {
		return err
	}
	if projectRoot == "" {
		projectRoot, err = pkgenv.ProjectRoot(target.File)
		if err != nil {
			return err
		}
	}

	s, err := newSession(cmd, projectRoot)
	if err != nil {
		return err
	}
	registry, err := languages.NewRegistry(s.cfg.Languages)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	locator := pkgenv.NewLocator(fs)
	shell := runner.NewShellRunner(s.cfg.Shell, s.cfg.Timeout, s.logger)
	presenter := ui.NewTerminal()
	spinner := ui.NewSpinner("Grabbing context", asJSON)

	installer := bootstrap.New(locator, shell, pausingConfirmer{spinner: spinner, confirmer: presenter}, bootstrap.Options{
		Package:             s.cfg.Package,
		AssumeYes:           s.cfg.AssumeYes,
		IgnoreWorkspaceRoot: s.cfg.IgnoreWorkspaceRootCheck,
	}, s.logger)

	pipeline := grab.New(grab.Options{
		Registry:     registry,
		Locator:      locator,
		Bootstrapper: installer,
		Runner:       shell,
		Strategy:     s.cfg.StrategyValue(),
		Fs:           fs,
		Logger:       s.logger,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spinner.Start()
	task := pipeline.Start(ctx, grab.Invocation{
		File:        target.File,
		Offset:      target.Offset,
		ProjectRoot: projectRoot,
		Source:      target.Content,
	})
	outcome := task.Wait()
	spinner.Stop()

	if asJSON {
		if err := fileutil.PrintJSON(outcome); err != nil {
			return err
		}
	} else {
		grab.Report(presenter, outcome)
	}
	if !outcome.Success() {
		return &ExitError{Code: 1, Reported: true, Err: outcome.Err}
	}
	return nil
}
