package pkgenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ProjectRoot returns the root of the project containing path: the enclosing
// git worktree when there is one, otherwise the directory of path itself.
func ProjectRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to inspect %s: %w", abs, err)
	} else if err != nil {
		dir = filepath.Dir(abs)
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return dir, nil
		}
		return "", fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree to anchor on.
		if errors.Is(err, git.ErrIsBareRepository) {
			return dir, nil
		}
		return "", fmt.Errorf("failed to resolve git worktree: %w", err)
	}
	return worktree.Filesystem.Root(), nil
}
