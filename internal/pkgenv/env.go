// Package pkgenv resolves the Node package environment that governs a source
// file: the nearest directory holding a package manifest and the package
// manager its lockfile selects.
package pkgenv

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	ManifestFile    = "package.json"
	YarnLockFile    = "yarn.lock"
	NpmLockFile     = "package-lock.json"
	DependenciesDir = "node_modules"
)

var (
	// ErrNoManifest is returned when no ancestor directory holds a manifest.
	ErrNoManifest = errors.New("no package.json found in parent directories")
	// ErrInvalidStrategy is returned for unknown resolution strategies.
	ErrInvalidStrategy = errors.New("invalid environment strategy")
)

// Manager identifies the package manager governing a manifest directory.
type Manager string

const (
	ManagerNone Manager = ""
	ManagerYarn Manager = "yarn"
	ManagerNpm  Manager = "npm"
)

func (m Manager) String() string {
	if m == ManagerNone {
		return "none"
	}
	return string(m)
}

// MarshalText renders ManagerNone as "none" in JSON output.
func (m Manager) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Strategy selects where the manifest search starts and how far it walks.
type Strategy string

const (
	// StrategyWalk searches upward from the active file's directory.
	StrategyWalk Strategy = "walk"
	// StrategyRoot only considers the project root itself.
	StrategyRoot Strategy = "root"
)

// ParseStrategy validates a strategy name. Empty selects StrategyWalk.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyWalk:
		return StrategyWalk, nil
	case StrategyRoot:
		return StrategyRoot, nil
	}
	return "", fmt.Errorf("%w %q (supported: walk, root)", ErrInvalidStrategy, raw)
}

// Environment is the resolved package environment for one invocation.
type Environment struct {
	ManifestDir string  `json:"manifest_dir"`
	Manager     Manager `json:"manager"`
}

// HasManager reports whether a lockfile selected a package manager.
func (e *Environment) HasManager() bool {
	return e != nil && e.Manager != ManagerNone
}

// HelperDir returns the install location of pkg inside the environment.
func (e *Environment) HelperDir(pkg string) string {
	return filepath.Join(e.ManifestDir, DependenciesDir, filepath.FromSlash(pkg))
}

// Locator performs the read-only filesystem probes.
type Locator struct {
	fs afero.Fs
}

// NewLocator creates a locator over fs. A nil fs probes the OS filesystem.
func NewLocator(fs afero.Fs) *Locator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Locator{fs: fs}
}

// Resolve applies strategy to find the environment for file.
func (l *Locator) Resolve(strategy Strategy, projectRoot, file string) (*Environment, error) {
	switch strategy {
	case StrategyRoot:
		if projectRoot == "" {
			return nil, fmt.Errorf("%w: project root is required for the root strategy", ErrNoManifest)
		}
		return l.locate(projectRoot, 0)
	case StrategyWalk, "":
		return l.Locate(filepath.Dir(file))
	}
	return nil, fmt.Errorf("%w %q", ErrInvalidStrategy, strategy)
}

// Locate walks upward from startDir, inclusive, to the first directory with a
// manifest and detects its package manager.
func (l *Locator) Locate(startDir string) (*Environment, error) {
	return l.locate(startDir, -1)
}

// locate walks at most depth parents above startDir; a negative depth walks
// to the filesystem root.
func (l *Locator) locate(startDir string, depth int) (*Environment, error) {
	dir := filepath.Clean(startDir)
	for step := 0; depth < 0 || step <= depth; step++ {
		found, err := afero.Exists(l.fs, filepath.Join(dir, ManifestFile))
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", dir, err)
		}
		if found {
			manager, err := l.DetectManager(dir)
			if err != nil {
				return nil, err
			}
			return &Environment{ManifestDir: dir, Manager: manager}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, ErrNoManifest
}

// DetectManager inspects dir for lockfiles. yarn.lock wins over
// package-lock.json when both exist.
func (l *Locator) DetectManager(dir string) (Manager, error) {
	probes := []struct {
		file    string
		manager Manager
	}{
		{YarnLockFile, ManagerYarn},
		{NpmLockFile, ManagerNpm},
	}
	for _, probe := range probes {
		found, err := afero.Exists(l.fs, filepath.Join(dir, probe.file))
		if err != nil {
			return ManagerNone, fmt.Errorf("failed to inspect %s: %w", probe.file, err)
		}
		if found {
			return probe.manager, nil
		}
	}
	return ManagerNone, nil
}

// HelperInstalled reports whether pkg is present under the environment's
// dependency directory.
func (l *Locator) HelperInstalled(env *Environment, pkg string) (bool, error) {
	installed, err := afero.DirExists(l.fs, env.HelperDir(pkg))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", env.HelperDir(pkg), err)
	}
	return installed, nil
}
