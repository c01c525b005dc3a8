// SPDX-License-Identifier: Apache-2.0

package modifier

import (
	"context"
	"sync"
)

// pathLock is a channel with a buffer of one so waiting can be abandoned when the
// context ends. refs counts holders and waiters.
type pathLock struct {
	ch   chan struct{}
	refs int
}

// pathLocks hands out one exclusive lock per path. Entries are dropped once nobody
// holds or waits for them, so the map only covers paths in use.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// acquire blocks until the path is free or ctx is done and returns the release function
func (l *pathLocks) acquire(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[path]
	if !ok {
		lock = &pathLock{ch: make(chan struct{}, 1)}
		l.locks[path] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.ch
				l.unref(path, lock)
			})
		}, nil
	case <-ctx.Done():
		l.unref(path, lock)
		return nil, ctx.Err()
	}
}

func (l *pathLocks) unref(path string, lock *pathLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, path)
	}
}

// size reports how many paths currently have an entry
func (l *pathLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
