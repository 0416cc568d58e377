// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"sync"
	"time"
)

// Locker serializes turns on the same thread. Lock blocks until the thread
// is free or ctx is done; the returned func releases it and is safe to
// call more than once.
type Locker interface {
	Lock(ctx context.Context, threadID string) (func(), error)
}

// Lease defaults shared by the Redis, SQLite and Postgres lockers.
const (
	defaultLeaseTTL      = 5 * time.Minute
	defaultRetryInterval = 50 * time.Millisecond
)

// pollLock calls try until it takes the lock, ctx is done or try fails.
func pollLock(ctx context.Context, interval time.Duration, try func(context.Context) (bool, error)) error {
	for {
		ok, err := try(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// releaseOnce makes release idempotent. It runs on a fresh context since
// the caller's may already be done.
func releaseOnce(release func(context.Context)) func() {
	var once sync.Once
	return func() {
		once.Do(func() { release(context.Background()) })
	}
}

// KeyedMutex is an in-process Locker. Entries are dropped once no caller
// holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for threadID.
func (k *KeyedMutex) Lock(ctx context.Context, threadID string) (func(), error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[threadID]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		k.locks[threadID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(threadID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(threadID, l)
		})
	}, nil
}

func (k *KeyedMutex) release(threadID string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, threadID)
	}
}

// size reports the number of live entries.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
