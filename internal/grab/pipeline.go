// Package grab runs the context extraction pipeline: locate the function at
// the cursor, resolve its package environment, make sure the helper package
// is installed and invoke it.
package grab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/kirikodevv/grabctx/internal/bootstrap"
	"github.com/kirikodevv/grabctx/internal/command"
	"github.com/kirikodevv/grabctx/internal/parser"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/runner"
	"github.com/spf13/afero"
)

const (
	msgSuccess           = "Context saved to clipboard successfully"
	msgNoFunction        = "No function found at cursor position"
	msgNoManifest        = "No package.json found in parent directories"
	msgNoPackageManager  = "No yarn.lock or package-lock.json found"
	msgLanguageMissing   = "Language support is not available for %s"
	msgPathNotUnder      = "%s is not inside the package directory %s"
	msgHelperMissing     = "The %s package is not installed in %s\nCommand: %s"
	msgCommandNotFound   = "Command not found:\nCommand: %s\nOutput:\n%s"
	msgNonZeroExit       = "Error grabbing context:\nCommand: %s\nOutput:\n%s\nPath: %s"
	msgLaunchFailure     = "Error executing command: %v\nCommand: %s\nPath: %s"
	msgInterrupted       = "Command interrupted: %v\nCommand: %s\nOutput:\n%s"
	msgInstallFailed     = "Failed to install %s: %v"
	msgInstallFailedFull = "Failed to install %s\nCommand: %s\nOutput:\n%s"
	msgInstallCancelled  = "Cancelled while preparing %s: %v"
	msgBuildFailed       = "Failed to build the helper command: %v"
)

// Invocation is everything one run of the pipeline needs from its caller.
type Invocation struct {
	// File is the absolute path of the active file
	File string
	// Offset is the cursor byte offset in the file
	Offset int
	// ProjectRoot anchors the root strategy
	ProjectRoot string
	// Source is the file content; when nil the file is read from disk
	Source []byte
}

// Options wires a Pipeline.
type Options struct {
	Registry     *parser.Registry
	Locator      *pkgenv.Locator
	Bootstrapper *bootstrap.Bootstrapper
	Runner       runner.Runner
	Strategy     pkgenv.Strategy
	// Fs backs file reads and helper directory checks; defaults to the OS
	Fs     afero.Fs
	Logger *log.Logger
}

// Pipeline is the single entry point for extractions. It is safe for
// concurrent use.
type Pipeline struct {
	registry     *parser.Registry
	locator      *pkgenv.Locator
	bootstrapper *bootstrap.Bootstrapper
	runner       runner.Runner
	strategy     pkgenv.Strategy
	fs           afero.Fs
	logger       *log.Logger
}

// New creates a pipeline from opts.
func New(opts Options) *Pipeline {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Locator == nil {
		opts.Locator = pkgenv.NewLocator(opts.Fs)
	}
	if opts.Strategy == "" {
		opts.Strategy = pkgenv.StrategyWalk
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Pipeline{
		registry:     opts.Registry,
		locator:      opts.Locator,
		bootstrapper: opts.Bootstrapper,
		runner:       opts.Runner,
		strategy:     opts.Strategy,
		fs:           opts.Fs,
		logger:       opts.Logger,
	}
}

// Run executes the pipeline and returns exactly one outcome. It never
// panics and never exits the process.
func (p *Pipeline) Run(ctx context.Context, inv Invocation) (out *Outcome) {
	id := uuid.NewString()
	logger := p.logger.With("invocation", id)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "panic", r)
			out = fail(KindInvalidInvocation, fmt.Errorf("internal error: %v", r), "internal error: %v", r)
		}
		out.InvocationID = id
		out.Duration = time.Since(start)
		logger.Debug("pipeline finished", "kind", out.Kind, "duration", out.Duration)
	}()

	logger.Debug("pipeline started", "file", inv.File, "offset", inv.Offset, "strategy", p.strategy)
	return p.run(ctx, inv, logger)
}

func (p *Pipeline) run(ctx context.Context, inv Invocation, logger *log.Logger) *Outcome {
	if inv.File == "" || !filepath.IsAbs(inv.File) {
		return fail(KindInvalidInvocation, fmt.Errorf("file path must be absolute: %q", inv.File),
			"File path must be absolute: %q", inv.File)
	}
	if inv.Offset < 0 {
		return fail(KindInvalidInvocation, parser.ErrInvalidOffset, "Invalid cursor offset %d", inv.Offset)
	}
	if p.registry == nil {
		return fail(KindLanguageSupportUnavailable, parser.ErrNoLocator, msgLanguageMissing, filepath.Base(inv.File))
	}
	if _, ok := p.registry.LocatorForFile(inv.File); !ok {
		return fail(KindLanguageSupportUnavailable, parser.ErrNoLocator, msgLanguageMissing, filepath.Base(inv.File))
	}

	source := inv.Source
	if source == nil {
		data, err := afero.ReadFile(p.fs, inv.File)
		if err != nil {
			return fail(KindInvalidInvocation, err, "Failed to read %s: %v", inv.File, err)
		}
		source = data
	}

	fn, err := p.registry.Locate(ctx, inv.File, source, inv.Offset)
	switch {
	case errors.Is(err, parser.ErrNoLocator):
		return fail(KindLanguageSupportUnavailable, err, msgLanguageMissing, filepath.Base(inv.File))
	case err != nil:
		return fail(KindInvalidInvocation, err, "An error occurred: %v", err)
	case fn == nil:
		return fail(KindNoFunctionAtCursor, nil, msgNoFunction)
	}
	logger.Debug("function located", "name", fn.Name, "kind", fn.Kind, "line", fn.Line)
	if fn.IsAnonymous() {
		logger.Warn("function at cursor has no name", "kind", fn.Kind, "line", fn.Line)
	}

	env, err := p.locator.Resolve(p.strategy, inv.ProjectRoot, inv.File)
	if err != nil {
		o := fail(KindNoManifestFound, err, msgNoManifest)
		o.Function = fn
		return o
	}
	if !env.HasManager() {
		o := fail(KindNoPackageManagerResolved, nil, msgNoPackageManager)
		o.Function, o.Environment = fn, env
		return o
	}
	logger.Debug("environment resolved", "manifest_dir", env.ManifestDir, "manager", env.Manager)

	out := &Outcome{Function: fn, Environment: env}
	pkg := bootstrap.DefaultPackage
	if p.bootstrapper != nil {
		pkg = p.bootstrapper.Package()
		status, err := p.bootstrapper.EnsureInstalled(ctx, env)
		if err != nil {
			return p.bootstrapFailure(out, pkg, err)
		}
		out.Bootstrap = status.String()
		if status == bootstrap.StatusDeclined {
			logger.Warn("helper install declined, continuing", "package", pkg)
		}
	}

	helperDir := env.HelperDir(pkg)
	spec, err := command.Build(env, inv.File, fn.Name, helperDir)
	switch {
	case errors.Is(err, command.ErrPathNotUnderManifest):
		return out.with(KindPathNotUnderManifest, err, msgPathNotUnder, inv.File, env.ManifestDir)
	case err != nil:
		return out.with(KindInvalidInvocation, err, msgBuildFailed, err)
	}
	out.Command = spec.Line()

	workDir, err := p.canonicalDir(helperDir)
	if err != nil {
		return out.with(KindExecutableMissing, err, msgHelperMissing, pkg, env.ManifestDir, spec.Line())
	}
	out.WorkDir = workDir

	if p.runner == nil {
		return out.with(KindProcessLaunchFailure, runner.ErrLaunch, msgLaunchFailure, runner.ErrLaunch, spec.Line(), workDir)
	}

	logger.Info("running helper", "command", spec.Line(), "dir", workDir)
	res, err := p.runner.Run(ctx, runner.Command{Line: spec.Line(), Dir: workDir})
	if err != nil {
		var interrupted *runner.InterruptedError
		if errors.As(err, &interrupted) {
			out.Output = interrupted.Output
			return out.with(KindProcessWaitInterrupted, err, msgInterrupted, interrupted.Err, spec.Line(), interrupted.Output)
		}
		return out.with(KindProcessLaunchFailure, err, msgLaunchFailure, err, spec.Line(), workDir)
	}

	out.ExitCode = res.ExitCode
	out.Output = res.Output
	switch {
	case res.ExitCode == runner.CommandNotFoundExitCode:
		return out.with(KindExecutableMissing, fmt.Errorf("command exited with code %d", res.ExitCode),
			msgCommandNotFound, spec.Line(), res.Output)
	case !res.Success():
		return out.with(KindNonZeroExit, fmt.Errorf("command exited with code %d", res.ExitCode),
			msgNonZeroExit, spec.Line(), res.Output, workDir)
	}
	return out.with(KindSuccess, nil, msgSuccess)
}

func (p *Pipeline) bootstrapFailure(out *Outcome, pkg string, err error) *Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var interrupted *runner.InterruptedError
		if errors.As(err, &interrupted) {
			out.Command = interrupted.Line
			out.Output = interrupted.Output
		}
		return out.with(KindProcessWaitInterrupted, err, msgInstallCancelled, pkg, err)
	}

	var installErr *bootstrap.InstallError
	if errors.As(err, &installErr) && installErr.Err == nil {
		out.Command = installErr.Line
		out.ExitCode = installErr.ExitCode
		out.Output = installErr.Output
		return out.with(KindBootstrapFailed, err, msgInstallFailedFull, pkg, installErr.Line, installErr.Output)
	}
	if installErr != nil {
		out.Command = installErr.Line
		out.Output = installErr.Output
	}
	return out.with(KindBootstrapFailed, err, msgInstallFailed, pkg, err)
}

// canonicalDir resolves dir to its on-disk location. Symlinks are only
// followed on the OS filesystem.
func (p *Pipeline) canonicalDir(dir string) (string, error) {
	if _, ok := p.fs.(*afero.OsFs); ok {
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return "", err
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	exists, err := afero.DirExists(p.fs, dir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", &os.PathError{Op: "stat", Path: dir, Err: os.ErrNotExist}
	}
	return filepath.Clean(dir), nil
}

func fail(kind Kind, err error, format string, args ...any) *Outcome {
	return (&Outcome{}).with(kind, err, format, args...)
}

func (o *Outcome) with(kind Kind, err error, format string, args ...any) *Outcome {
	o.Kind = kind
	o.Severity = kind.Severity()
	o.Title = Title
	o.Message = fmt.Sprintf(format, args...)
	o.Err = err
	return o
}
