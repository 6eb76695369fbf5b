//go:build linux

package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// errFlockUnavailable keeps the signature shared with lock_other.go; on Linux
// acquireEnvLock never returns it.
var errFlockUnavailable = errors.New("flock not available on this platform")

const (
	flockPollMin = 10 * time.Millisecond
	flockPollMax = 250 * time.Millisecond
)

// envLock is an exclusive flock on a per-environment lock file. The kernel
// drops the lock when the descriptor closes, so an orphaned file is harmless.
type envLock struct {
	file   *os.File
	logger *log.Logger
}

func acquireEnvLock(ctx context.Context, manifestDir string, logger *log.Logger) (*envLock, error) {
	return acquireEnvLockAt(ctx, lockFilePathWith(os.Getenv, manifestDir), logger)
}

// acquireEnvLockAt polls a non-blocking flock until it is granted or ctx is
// done.
func acquireEnvLockAt(ctx context.Context, path string, logger *log.Logger) (*envLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	wait := flockPollMin
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &envLock{file: f, logger: logger}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, flockPollMax)
	}
}

// Release unlocks and closes the file. Safe to call more than once.
func (l *envLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil && l.logger != nil {
		l.logger.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil && l.logger != nil {
		l.logger.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}

// lockFilePathWith places the lock in $XDG_RUNTIME_DIR, falling back to the
// temp dir, named after a hash of the manifest directory.
func lockFilePathWith(getenv func(string) string, manifestDir string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	sum := sha256.Sum256([]byte(manifestDir))
	return filepath.Join(dir, "grabctx-"+hex.EncodeToString(sum[:8])+".lock")
}
