package grab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirikodevv/grabctx/internal/bootstrap"
	"github.com/kirikodevv/grabctx/internal/command"
	"github.com/kirikodevv/grabctx/internal/languages"
	"github.com/kirikodevv/grabctx/internal/pkgenv"
	"github.com/kirikodevv/grabctx/internal/runner"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperPkg = bootstrap.DefaultPackage

const sampleJS = `import x from "y";

function foo(a) {
  return a + 1;
}
`

// fakeRunner records commands and answers with a canned result. Install
// commands (run in the manifest dir) create the helper directory.
type fakeRunner struct {
	fs     afero.Fs
	result *runner.Result
	err    error
	block  bool

	mu    sync.Mutex
	calls []runner.Command
}

func (r *fakeRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, &runner.InterruptedError{Line: cmd.Line, Output: "partial\n", Err: ctx.Err()}
	}
	if r.err != nil {
		return nil, r.err
	}
	if strings.Contains(cmd.Line, " add ") || strings.Contains(cmd.Line, " install ") {
		if err := r.fs.MkdirAll(filepath.Join(cmd.Dir, pkgenv.DependenciesDir, helperPkg), 0o755); err != nil {
			return nil, err
		}
		return &runner.Result{Output: "installed\n"}, nil
	}
	if r.result != nil {
		return r.result, nil
	}
	return &runner.Result{Output: "copied\n"}, nil
}

func (r *fakeRunner) commands() []runner.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Command(nil), r.calls...)
}

type fakeConfirmer struct {
	answer bool
	asked  int
}

func (c *fakeConfirmer) Confirm(context.Context, string, string, string, string) (bool, error) {
	c.asked++
	return c.answer, nil
}

// countingFs counts every filesystem access.
type countingFs struct {
	afero.Fs
	ops atomic.Int32
}

func (f *countingFs) Stat(name string) (os.FileInfo, error) {
	f.ops.Add(1)
	return f.Fs.Stat(name)
}

func (f *countingFs) Open(name string) (afero.File, error) {
	f.ops.Add(1)
	return f.Fs.Open(name)
}

func (f *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.ops.Add(1)
	return f.Fs.OpenFile(name, flag, perm)
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func newPipeline(t *testing.T, fs afero.Fs, r runner.Runner, c bootstrap.Confirmer) *Pipeline {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	locator := pkgenv.NewLocator(fs)
	return New(Options{
		Registry:     languages.NewDefaultRegistry(),
		Locator:      locator,
		Bootstrapper: bootstrap.New(locator, r, c, bootstrap.Options{IgnoreWorkspaceRoot: true}, nil),
		Runner:       r,
		Fs:           fs,
	})
}

func offsetOf(t *testing.T, src, needle string) int {
	t.Helper()
	idx := strings.Index(src, needle)
	require.GreaterOrEqual(t, idx, 0, "needle %q not found", needle)
	return idx
}

func TestScenarioSuccessRunsHelperInHelperDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs}
	c := &fakeConfirmer{answer: true}
	p := newPipeline(t, fs, r, c)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	require.True(t, out.Success(), "outcome %s: %s", out.Kind, out.Message)
	assert.Equal(t, SeverityInfo, out.Severity)
	assert.Equal(t, "Context saved to clipboard successfully", out.Message)
	assert.Equal(t, Title, out.Title)
	assert.Equal(t, "npm run  start /p src/a.js foo", out.Command)
	assert.Equal(t, "/p/node_modules/"+helperPkg, out.WorkDir)
	assert.Equal(t, bootstrap.StatusAlreadyInstalled.String(), out.Bootstrap)
	assert.NotEmpty(t, out.InvocationID)
	assert.Zero(t, c.asked)

	calls := r.commands()
	require.Len(t, calls, 1)
	assert.Equal(t, "npm run  start /p src/a.js foo", calls[0].Line)
	assert.Equal(t, "/p/node_modules/"+helperPkg, calls[0].Dir)
	assert.NotEqual(t, "/p", calls[0].Dir)
}

func TestScenarioNoLockfileStopsBeforeProcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json": "{}",
		"/p/src/a.js":     sampleJS,
	})
	r := &fakeRunner{fs: fs}
	p := newPipeline(t, fs, r, &fakeConfirmer{answer: true})

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindNoPackageManagerResolved, out.Kind)
	assert.Equal(t, SeverityError, out.Severity)
	assert.Equal(t, "No yarn.lock or package-lock.json found", out.Message)
	assert.Empty(t, r.commands())
}

func TestScenarioNoFunctionTouchesNothing(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	r := &fakeRunner{fs: fs}
	p := newPipeline(t, fs, r, &fakeConfirmer{answer: true})

	out := p.Run(context.Background(), Invocation{
		File:   "/p/src/a.js",
		Offset: offsetOf(t, sampleJS, "import"),
		Source: []byte(sampleJS),
	})

	assert.Equal(t, KindNoFunctionAtCursor, out.Kind)
	assert.Equal(t, SeverityWarning, out.Severity)
	assert.Equal(t, "No function found at cursor position", out.Message)
	assert.Zero(t, fs.ops.Load())
	assert.Empty(t, r.commands())
}

func TestScenarioDeclinedInstallFailsDownstream(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json": "{}",
		"/p/yarn.lock":    "",
		"/p/src/a.js":     sampleJS,
	})
	r := &fakeRunner{fs: fs}
	c := &fakeConfirmer{answer: false}
	p := newPipeline(t, fs, r, c)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, 1, c.asked)
	assert.Equal(t, KindExecutableMissing, out.Kind)
	assert.Equal(t, bootstrap.StatusDeclined.String(), out.Bootstrap)
	assert.Equal(t, "yarn run  start /p src/a.js foo", out.Command)
	assert.Contains(t, out.Message, "Command: yarn run  start /p src/a.js foo")
	// The attempt stops when the helper directory cannot be resolved as the
	// working directory, so nothing is spawned.
	assert.Empty(t, r.commands())
}

func TestAcceptedInstallThenRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json": "{}",
		"/p/yarn.lock":    "",
		"/p/src/a.js":     sampleJS,
	})
	r := &fakeRunner{fs: fs}
	c := &fakeConfirmer{answer: true}
	p := newPipeline(t, fs, r, c)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	require.True(t, out.Success(), "outcome %s: %s", out.Kind, out.Message)
	assert.Equal(t, bootstrap.StatusInstalled.String(), out.Bootstrap)
	calls := r.commands()
	require.Len(t, calls, 2)
	assert.Equal(t, "/p", calls[0].Dir)
	assert.True(t, strings.HasPrefix(calls[0].Line, "yarn add --ignore-workspace-root-check --dev "))
	assert.Equal(t, "yarn run  start /p src/a.js foo", calls[1].Line)
}

func TestNoManifestFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/p/src/a.js": sampleJS})
	p := newPipeline(t, fs, &fakeRunner{fs: fs}, nil)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindNoManifestFound, out.Kind)
	assert.Equal(t, "No package.json found in parent directories", out.Message)
	require.NotNil(t, out.Function)
	assert.Equal(t, "foo", out.Function.Name)
}

func TestLanguageSupportUnavailable(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	p := newPipeline(t, fs, &fakeRunner{fs: fs}, nil)

	out := p.Run(context.Background(), Invocation{File: "/p/main.rs", Offset: 0, Source: []byte("fn main() {}")})

	assert.Equal(t, KindLanguageSupportUnavailable, out.Kind)
	assert.Equal(t, SeverityError, out.Severity)
	assert.Zero(t, fs.ops.Load())
}

func TestInvalidInvocation(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newPipeline(t, fs, &fakeRunner{fs: fs}, nil)

	tests := []Invocation{
		{File: "", Offset: 0},
		{File: "relative/a.js", Offset: 0},
		{File: "/p/a.js", Offset: -1},
		{File: "/p/missing.js", Offset: 0},
	}
	for _, inv := range tests {
		out := p.Run(context.Background(), inv)
		assert.Equal(t, KindInvalidInvocation, out.Kind, "invocation %+v", inv)
	}
}

func TestNonZeroExitCarriesCommandAndOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs, result: &runner.Result{ExitCode: 2, Output: "TypeError: boom\n"}}
	p := newPipeline(t, fs, r, nil)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindNonZeroExit, out.Kind)
	assert.Equal(t, 2, out.ExitCode)
	assert.Contains(t, out.Message, "Command: npm run  start /p src/a.js foo")
	assert.Contains(t, out.Message, "TypeError: boom")
	assert.Contains(t, out.Message, "Path: /p/node_modules/"+helperPkg)
}

func TestExitCode127IsExecutableMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs, result: &runner.Result{ExitCode: runner.CommandNotFoundExitCode, Output: "sh: npm: not found\n"}}
	p := newPipeline(t, fs, r, nil)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindExecutableMissing, out.Kind)
	assert.Contains(t, out.Message, "sh: npm: not found")
}

func TestLaunchFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs, err: &runner.LaunchError{Line: "x", Dir: "/", Err: errors.New("permission denied")}}
	p := newPipeline(t, fs, r, nil)

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindProcessLaunchFailure, out.Kind)
	assert.ErrorIs(t, out.Err, runner.ErrLaunch)
	assert.Contains(t, out.Message, "Command: npm run  start /p src/a.js foo")
}

func TestBootstrapFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
	})
	r := &fakeRunner{fs: fs, err: &runner.LaunchError{Line: "npm", Dir: "/p", Err: errors.New("not found")}}
	p := newPipeline(t, fs, r, &fakeConfirmer{answer: true})

	out := p.Run(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})

	assert.Equal(t, KindBootstrapFailed, out.Kind)
	assert.ErrorIs(t, out.Err, bootstrap.ErrInstallFailed)
	assert.Contains(t, out.Command, "npm install --save-dev ")
}

func TestRootStrategyUsesProjectRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/package.json":                                "{}",
		"/repo/package-lock.json":                           "{}",
		"/repo/node_modules/" + helperPkg + "/package.json": "{}",
		"/repo/web/package.json":                            "{}",
		"/repo/web/yarn.lock":                               "",
		"/repo/web/src/a.js":                                sampleJS,
	})
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	r := &fakeRunner{fs: fs}
	locator := pkgenv.NewLocator(fs)
	p := New(Options{
		Registry:     languages.NewDefaultRegistry(),
		Locator:      locator,
		Bootstrapper: bootstrap.New(locator, r, nil, bootstrap.Options{}, nil),
		Runner:       r,
		Strategy:     pkgenv.StrategyRoot,
		Fs:           fs,
	})

	out := p.Run(context.Background(), Invocation{
		File:        "/repo/web/src/a.js",
		Offset:      offsetOf(t, sampleJS, "a + 1"),
		ProjectRoot: "/repo",
	})

	require.True(t, out.Success(), "outcome %s: %s", out.Kind, out.Message)
	assert.Equal(t, "npm run  start /repo web/src/a.js foo", out.Command)
}

func TestStartDeliversOneOutcome(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	p := newPipeline(t, fs, &fakeRunner{fs: fs}, nil)

	task := p.Start(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("task did not finish")
	}
	out := task.Outcome()
	require.NotNil(t, out)
	assert.True(t, out.Success())
	assert.Same(t, out, task.Wait())
}

func TestStartCancelInterruptsCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs, block: true}
	p := newPipeline(t, fs, r, nil)

	task := p.Start(context.Background(), Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")})
	assert.Nil(t, task.Outcome())

	require.Eventually(t, func() bool { return len(r.commands()) == 1 }, 5*time.Second, 10*time.Millisecond)
	task.Cancel()

	out := task.Wait()
	assert.Equal(t, KindProcessWaitInterrupted, out.Kind)
	assert.Equal(t, "partial\n", out.Output)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

// heldConfirmer keeps the install prompt open until released.
type heldConfirmer struct {
	entered chan struct{}
	release chan struct{}
}

func (c *heldConfirmer) Confirm(context.Context, string, string, string, string) (bool, error) {
	close(c.entered)
	<-c.release
	return false, nil
}

func TestStartCancelWhileQueuedBehindInstallPrompt(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		"/p/src/a.js":          sampleJS,
	})
	r := &fakeRunner{fs: fs}
	c := &heldConfirmer{entered: make(chan struct{}), release: make(chan struct{})}
	p := newPipeline(t, fs, r, c)
	inv := Invocation{File: "/p/src/a.js", Offset: offsetOf(t, sampleJS, "a + 1")}

	first := p.Start(context.Background(), inv)
	<-c.entered

	second := p.Start(context.Background(), inv)
	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, second.Outcome())
	second.Cancel()

	select {
	case <-second.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled task still waiting for the install lock")
	}
	out := second.Outcome()
	assert.Equal(t, KindProcessWaitInterrupted, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)

	close(c.release)
	assert.Equal(t, KindExecutableMissing, first.Wait().Kind)
	assert.Empty(t, r.commands())
}

func TestNonPrintableFileNameIsQuoted(t *testing.T) {
	file := "/p/src/my\u00a0file.js"
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/p/package.json":      "{}",
		"/p/package-lock.json": "{}",
		file:                   sampleJS,
		"/p/node_modules/" + helperPkg + "/package.json": "{}",
	})
	r := &fakeRunner{fs: fs}
	p := newPipeline(t, fs, r, nil)

	out := p.Run(context.Background(), Invocation{File: file, Offset: offsetOf(t, sampleJS, "a + 1")})

	require.True(t, out.Success(), "outcome %s: %s", out.Kind, out.Message)
	calls := r.commands()
	require.Len(t, calls, 1)
	assert.Equal(t, "npm run  start /p 'src/my\u00a0file.js' foo", calls[0].Line)
}

func TestRootStrategyFileOutsideProjectRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/package.json":                                "{}",
		"/repo/package-lock.json":                           "{}",
		"/repo/node_modules/" + helperPkg + "/package.json": "{}",
		"/elsewhere/src/a.js":                               sampleJS,
	})
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	r := &fakeRunner{fs: fs}
	locator := pkgenv.NewLocator(fs)
	p := New(Options{
		Registry:     languages.NewDefaultRegistry(),
		Locator:      locator,
		Bootstrapper: bootstrap.New(locator, r, nil, bootstrap.Options{}, nil),
		Runner:       r,
		Strategy:     pkgenv.StrategyRoot,
		Fs:           fs,
	})

	out := p.Run(context.Background(), Invocation{
		File:        "/elsewhere/src/a.js",
		Offset:      offsetOf(t, sampleJS, "a + 1"),
		ProjectRoot: "/repo",
	})

	assert.Equal(t, KindPathNotUnderManifest, out.Kind)
	assert.ErrorIs(t, out.Err, command.ErrPathNotUnderManifest)
	assert.Equal(t, "/elsewhere/src/a.js is not inside the package directory /repo", out.Message)
	assert.Empty(t, out.Command)
	assert.Empty(t, r.commands())
}

type recordingPresenter struct {
	level, title, message string
}

func (p *recordingPresenter) Info(title, message string)    { p.record("info", title, message) }
func (p *recordingPresenter) Warning(title, message string) { p.record("warning", title, message) }
func (p *recordingPresenter) Error(title, message string)   { p.record("error", title, message) }

func (p *recordingPresenter) record(level, title, message string) {
	p.level, p.title, p.message = level, title, message
}

func TestReportMapsSeverity(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSuccess, "info"},
		{KindNoFunctionAtCursor, "warning"},
		{KindNoManifestFound, "error"},
		{KindNonZeroExit, "error"},
	}
	for _, tt := range tests {
		p := &recordingPresenter{}
		Report(p, fail(tt.kind, nil, "message for %s", tt.kind))
		assert.Equal(t, tt.want, p.level, "kind %s", tt.kind)
		assert.Equal(t, Title, p.title)
		assert.Equal(t, "message for "+tt.kind.String(), p.message)
	}

	Report(nil, fail(KindSuccess, nil, "ignored"))
	Report(&recordingPresenter{}, nil)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "path-not-under-manifest", KindPathNotUnderManifest.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
