// Package lock provides keyed mutexes used to serialize events per match.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned by WithLockContext when the key stays held past
// the wait budget.
var ErrLockTimeout = errors.New("timed out waiting for key lock")

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock hands out one mutex per key. Events for the same key run one at a
// time while different keys proceed in parallel. A key's mutex is dropped
// once nobody holds or waits on it.
type KeyLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// New creates an empty KeyLock.
func New[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{locks: make(map[K]*keyMutex)}
}

func (kl *KeyLock[K]) acquire(key K) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refCount++
	return km
}

func (kl *KeyLock[K]) release(key K, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	km.refCount--
	if km.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key.
func (kl *KeyLock[K]) Lock(key K) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock[K]) Unlock(key K) {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	km.mu.Unlock()
	kl.release(key, km)
}

// Len returns the number of keys currently held or waited on.
func (kl *KeyLock[K]) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

// WithLockContext executes fn while holding the lock for key, giving up after
// timeout or when ctx is cancelled.
func (kl *KeyLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	km := kl.acquire(key)

	done := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
	case <-timeoutCtx.Done():
		// The waiter still acquires eventually; release on its behalf.
		go func() {
			<-done
			km.mu.Unlock()
			kl.release(key, km)
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	defer func() {
		km.mu.Unlock()
		kl.release(key, km)
	}()
	return fn()
}
