package bootstrap

import (
	"context"
	"sync"
)

// keyedMutex hands out one lock per key. Entries are dropped once no holder
// or waiter remains.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	// sem holds a token while the key is locked.
	sem  chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done, and returns the matching
// unlock func.
func (k *keyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, entry)
		return nil, ctx.Err()
	}
	return func() {
		<-entry.sem
		k.drop(key, entry)
	}, nil
}

func (k *keyedMutex) drop(key string, entry *keyedEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
