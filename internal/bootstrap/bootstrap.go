// Package bootstrap makes sure the context helper package is installed in a
// package environment before it is invoked.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/kirikodevv/grabctx/internal/command"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/runner"
)

// DefaultPackage is the helper package that performs the extraction.
const DefaultPackage = "@kirikodevv/context-grab"

const (
	installTitle   = "Install context helper"
	installConfirm = "Install"
	installCancel  = "Cancel"
)

var (
	// ErrInstallFailed is returned when the install command could not run or
	// exited non-zero.
	ErrInstallFailed = errors.New("failed to install helper package")
	// ErrConfirm is returned when the install prompt itself failed.
	ErrConfirm = errors.New("install confirmation failed")
)

// Status is the result of EnsureInstalled.
type Status int

const (
	StatusAlreadyInstalled Status = iota
	StatusInstalled
	StatusDeclined
)

func (s Status) String() string {
	switch s {
	case StatusAlreadyInstalled:
		return "already-installed"
	case StatusInstalled:
		return "installed"
	case StatusDeclined:
		return "declined"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Confirmer asks the user a yes/no question. A done ctx should close the
// prompt.
type Confirmer interface {
	Confirm(ctx context.Context, title, message, yes, no string) (bool, error)
}

// InstallError carries the output of a failed install command.
type InstallError struct {
	Line     string
	ExitCode int
	Output   string
	Err      error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrInstallFailed, e.Line, e.Err)
	}
	return fmt.Sprintf("%v: %s exited with code %d", ErrInstallFailed, e.Line, e.ExitCode)
}

func (e *InstallError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInstallFailed, e.Err}
	}
	return []error{ErrInstallFailed}
}

// Options configures a Bootstrapper.
type Options struct {
	Package             string
	AssumeYes           bool
	IgnoreWorkspaceRoot bool
}

// Bootstrapper installs the helper package on demand.
type Bootstrapper struct {
	locator   *pkgenv.Locator
	runner    runner.Runner
	confirmer Confirmer
	opts      Options
	logger    *log.Logger
	locks     *keyedMutex
}

// New creates a Bootstrapper. confirmer may be nil when opts.AssumeYes is set;
// otherwise a nil confirmer declines every install.
func New(locator *pkgenv.Locator, r runner.Runner, confirmer Confirmer, opts Options, logger *log.Logger) *Bootstrapper {
	if opts.Package == "" {
		opts.Package = DefaultPackage
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bootstrapper{
		locator:   locator,
		runner:    r,
		confirmer: confirmer,
		opts:      opts,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// Package returns the helper package name.
func (b *Bootstrapper) Package() string {
	return b.opts.Package
}

// EnsureInstalled installs the helper package into env unless it is already
// present. Installs for the same manifest directory are serialized, and
// presence is checked again once the lock is held.
func (b *Bootstrapper) EnsureInstalled(ctx context.Context, env *pkgenv.Environment) (Status, error) {
	installed, err := b.locator.HelperInstalled(env, b.opts.Package)
	if err != nil {
		return StatusDeclined, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	if installed {
		return StatusAlreadyInstalled, nil
	}

	unlock, err := b.lock(ctx, env.ManifestDir)
	if err != nil {
		return StatusDeclined, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	defer unlock()

	installed, err = b.locator.HelperInstalled(env, b.opts.Package)
	if err != nil {
		return StatusDeclined, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	if installed {
		b.logger.Debug("helper installed concurrently", "manifest_dir", env.ManifestDir)
		return StatusAlreadyInstalled, nil
	}

	ok, err := b.confirm(ctx, env)
	if err != nil {
		return StatusDeclined, fmt.Errorf("%w: %w", ErrConfirm, err)
	}
	if !ok {
		b.logger.Info("helper install declined", "package", b.opts.Package, "manifest_dir", env.ManifestDir)
		return StatusDeclined, nil
	}

	line, err := command.InstallLine(env.Manager, b.opts.Package, b.opts.IgnoreWorkspaceRoot)
	if err != nil {
		return StatusDeclined, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	b.logger.Info("installing helper", "command", line, "dir", env.ManifestDir)
	res, err := b.runner.Run(ctx, runner.Command{Line: line, Dir: env.ManifestDir})
	if err != nil {
		installErr := &InstallError{Line: line, Err: err}
		var interrupted *runner.InterruptedError
		if errors.As(err, &interrupted) {
			installErr.Output = interrupted.Output
		}
		return StatusDeclined, installErr
	}
	if !res.Success() {
		return StatusDeclined, &InstallError{Line: line, ExitCode: res.ExitCode, Output: res.Output}
	}

	b.logger.Info("helper installed", "package", b.opts.Package, "duration", res.Duration)
	return StatusInstalled, nil
}

func (b *Bootstrapper) confirm(ctx context.Context, env *pkgenv.Environment) (bool, error) {
	if b.opts.AssumeYes {
		return true, nil
	}
	if b.confirmer == nil {
		return false, nil
	}
	message := fmt.Sprintf("%s is not installed in %s. Install it with %s?",
		b.opts.Package, env.ManifestDir, env.Manager)
	return b.confirmer.Confirm(ctx, installTitle, message, installConfirm, installCancel)
}

// lock serializes installs for one manifest directory inside this process
// and, where supported, across processes. Waiting ends early when ctx is done.
func (b *Bootstrapper) lock(ctx context.Context, manifestDir string) (func(), error) {
	release, err := b.locks.Lock(ctx, manifestDir)
	if err != nil {
		return nil, err
	}

	fileLock, err := acquireEnvLock(ctx, manifestDir, b.logger)
	if err != nil {
		if errors.Is(err, errFlockUnavailable) {
			return release, nil
		}
		release()
		return nil, err
	}
	return func() {
		fileLock.Release()
		release()
	}, nil
}
