// Package lock provides the exclusive lock that serializes mutations of a
// store. Locks are keyed by the store's absolute path, so every Store value
// opened on the same file within a process shares one lock; an advisory
// flock on "<path>.lock" extends the exclusion to other processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pollInterval is how often a blocked acquirer retries the file lock.
const pollInterval = 5 * time.Millisecond

var registry = struct {
	mu    sync.Mutex
	locks map[string]*Lock
}{locks: make(map[string]*Lock)}

// Lock is an exclusive, context-aware lock scoped to one store path.
type Lock struct {
	key  string
	sem  chan struct{}
	file string
}

// For returns the process-wide lock for the store at path.
func For(path string) (*Lock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve lock path: %w", err)
	}
	abs = filepath.Clean(abs)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if l, ok := registry.locks[abs]; ok {
		return l, nil
	}
	l := &Lock{
		key:  abs,
		sem:  make(chan struct{}, 1),
		file: abs + ".lock",
	}
	registry.locks[abs] = l
	return l, nil
}

// Key returns the absolute store path the lock is scoped to.
func (l *Lock) Key() string {
	return l.key
}

// Acquire blocks until the lock is held or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire store lock %s: %w", l.key, ctx.Err())
	}

	return l.acquireHeld(ctx)
}

// TryAcquire acquires the lock without waiting. ok is false when another
// holder has it.
func (l *Lock) TryAcquire() (release func(), ok bool, err error) {
	select {
	case l.sem <- struct{}{}:
	default:
		return nil, false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release, err = l.acquireHeld(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return release, true, nil
}

// acquireHeld takes the file lock once the in-process semaphore is held.
func (l *Lock) acquireHeld(ctx context.Context) (func(), error) {
	f, err := l.lockFile(ctx)
	if err != nil {
		<-l.sem
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			unlockFile(f)
			f.Close()
			<-l.sem
		})
	}, nil
}

func (l *Lock) lockFile(ctx context.Context) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.file), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.file, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		locked, err := tryLockFile(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", l.file, err)
		}
		if locked {
			return f, nil
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("acquire store lock %s: %w", l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}
