package lock_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asecn/memcore/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_SamePathSameLock(t *testing.T) {
	dir := t.TempDir()
	a, err := lock.For(filepath.Join(dir, "memory-state.json"))
	require.NoError(t, err)
	b, err := lock.For(filepath.Join(dir, ".", "sub", "..", "memory-state.json"))
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := lock.For(filepath.Join(dir, "other.json"))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestLock_AcquireRelease(t *testing.T) {
	l, err := lock.For(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	_, ok, err := l.TryAcquire()
	require.NoError(t, err)
	assert.False(t, ok, "lock should be held")

	release()
	release() // idempotent

	release2, ok, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	release2()
}

func TestLock_AcquireHonorsContext(t *testing.T) {
	l, err := lock.For(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLock_MutualExclusion(t *testing.T) {
	l, err := lock.For(filepath.Join(t.TempDir(), "s.json"))
	require.NoError(t, err)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLock_CreatesLockFile(t *testing.T) {
	dir := t.TempDir()
	l, err := lock.For(filepath.Join(dir, "s.json"))
	require.NoError(t, err)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()
	assert.FileExists(t, filepath.Join(dir, "s.json.lock"))
	assert.Equal(t, filepath.Join(dir, "s.json"), l.Key())
}
