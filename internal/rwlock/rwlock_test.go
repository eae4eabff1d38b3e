package rwlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tanaylab/daf-go/internal/daferr"
)

func TestWriteLockIsReentrant(t *testing.T) {
	l := New()
	token := new(int)

	require.NoError(t, l.Lock(token))
	require.NoError(t, l.Lock(token))
	l.Unlock(token)
	l.Unlock(token)

	// Fully released: another token can now acquire.
	other := new(int)
	require.NoError(t, l.Lock(other))
	l.Unlock(other)
}

func TestReadInsideWriteAllowed(t *testing.T) {
	l := New()
	token := new(int)

	require.NoError(t, l.Lock(token))
	l.RLock(token)
	l.RUnlock(token)
	l.Unlock(token)
}

func TestUpgradeForbidden(t *testing.T) {
	l := New()
	token := new(int)

	l.RLock(token)
	err := l.Lock(token)
	require.ErrorIs(t, err, daferr.ErrLockUpgradeForbidden)
	l.RUnlock(token)

	// After dropping the read lock the same token may write.
	require.NoError(t, l.Lock(token))
	l.Unlock(token)
}

func TestManyReadersShareTheLock(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := new(int)
			l.RLock(token)
			time.Sleep(time.Millisecond)
			l.RUnlock(token)
		}()
	}
	wg.Wait()
}

func TestWriterExcludesReaders(t *testing.T) {
	l := New()
	writer := new(int)
	require.NoError(t, l.Lock(writer))

	acquired := make(chan struct{})
	go func() {
		token := new(int)
		l.RLock(token)
		close(acquired)
		l.RUnlock(token)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	case <-time.After(10 * time.Millisecond):
	}

	l.Unlock(writer)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer released")
	}
}

func TestReentrantReadDepth(t *testing.T) {
	l := New()
	token := new(int)
	l.RLock(token)
	l.RLock(token)
	l.RUnlock(token)

	// Still held at depth 1: a writer must wait.
	blocked := make(chan struct{})
	go func() {
		w := new(int)
		require.NoError(t, l.Lock(w))
		close(blocked)
		l.Unlock(w)
	}()
	select {
	case <-blocked:
		t.Fatal("writer acquired while a read lock was still held")
	case <-time.After(10 * time.Millisecond):
	}

	l.RUnlock(token)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired after final read release")
	}
}
