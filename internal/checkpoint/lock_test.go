// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseLocker runs concurrent critical sections on one thread and
// checks that they never overlap.
func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "thread")
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load(), "critical sections overlapped")
}

func TestKeyedMutexExclusive(t *testing.T) {
	k := NewKeyedMutex()
	exerciseLocker(t, k)
	assert.Zero(t, k.size(), "entries should be released")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexContextCancelled(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Zero(t, k.size())
}

func TestRedisLockerExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, "test:")
	l.RetryInterval = time.Millisecond
	exerciseLocker(t, l)
	assert.False(t, mr.Exists("test:lock:thread"))
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, "test:")
	unlock, err := l.Lock(context.Background(), "t1")
	require.NoError(t, err)

	// Simulate expiry and takeover by another process.
	mr.Set("test:lock:t1", "someone-else")
	unlock()

	got, err := mr.Get("test:lock:t1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerWaitsThenTimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, "")
	l.RetryInterval = time.Millisecond
	unlock, err := l.Lock(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("research-assistant:lock:t1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("research-assistant:lock:t1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := l.Lock(context.Background(), "t1")
	require.NoError(t, err)
	again()
}

// sharedSQLite opens two stores on one database file, as two CLI
// processes would.
func sharedSQLite(t *testing.T) (*SQLiteStore, *SQLiteStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threads.db")
	a, err := NewSQLiteStore(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := NewSQLiteStore(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return a, b
}

func TestSQLiteLockerExclusive(t *testing.T) {
	a, _ := sharedSQLite(t)
	l := a.Locker()
	l.RetryInterval = time.Millisecond
	exerciseLocker(t, l)
}

func TestSQLiteLockerAcrossHandles(t *testing.T) {
	a, b := sharedSQLite(t)
	la, lb := a.Locker(), b.Locker()
	lb.RetryInterval = time.Millisecond

	unlock, err := la.Lock(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = lb.Lock(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a lease held through another handle must block")

	other, err := lb.Lock(context.Background(), "t2")
	require.NoError(t, err, "other threads are independent")
	other()

	unlock()
	again, err := lb.Lock(context.Background(), "t1")
	require.NoError(t, err)
	again()
}

func TestSQLiteLockerExpiredLeaseIsTakenOver(t *testing.T) {
	a, b := sharedSQLite(t)
	la, lb := a.Locker(), b.Locker()
	lb.RetryInterval = time.Millisecond

	stale, err := la.Lock(context.Background(), "t1")
	require.NoError(t, err)

	// Make b's clock run past a's lease.
	lb.now = func() time.Time { return time.Now().Add(la.TTL + time.Minute) }
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := lb.Lock(ctx, "t1")
	require.NoError(t, err)

	// Releasing the stale lease must not drop b's.
	stale()
	var token string
	require.NoError(t, b.db.QueryRow(`SELECT token FROM threads_locks WHERE thread_id = ?`, "t1").Scan(&token))
	assert.NotEmpty(t, token)

	unlock()
	var n int
	require.NoError(t, b.db.QueryRow(`SELECT COUNT(*) FROM threads_locks`).Scan(&n))
	assert.Zero(t, n)
}
