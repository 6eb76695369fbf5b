//go:build !linux

package bootstrap

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
)

// errFlockUnavailable makes the caller fall back to the in-process mutex.
var errFlockUnavailable = errors.New("flock not available on this platform")

func acquireEnvLock(context.Context, string, *log.Logger) (*envLock, error) {
	return nil, errFlockUnavailable
}

type envLock struct{}

func (l *envLock) Release() {}
