package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any set of concurrent read-modify-write steps on one key, the result
// equals sequential execution.
func TestKeyLock_SerializesSameKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		key := rapid.StringMatching(`[A-Z0-9]{6}`).Draw(t, "key")

		kl := New[string]()
		counter := 0
		expected := 0

		var wg sync.WaitGroup
		for i := 0; i < numOps; i++ {
			delta := rapid.IntRange(-50, 50).Draw(t, "delta")
			expected += delta
			wg.Add(1)
			go func(d int) {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + d
			}(delta)
		}
		wg.Wait()

		if counter != expected {
			t.Fatalf("expected %d, got %d", expected, counter)
		}
	})
}

// Distinct keys never block each other.
func TestKeyLock_IndependentKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z]{4}`), 2, 10, rapid.ID[string]).Draw(t, "keys")

		kl := New[string]()
		held := keys[0]
		kl.Lock(held)
		for _, k := range keys[1:] {
			err := kl.WithLockContext(context.Background(), k, time.Second, func() error { return nil })
			if err != nil {
				t.Fatalf("key %s blocked by %s: %v", k, held, err)
			}
		}
		kl.Unlock(held)
		if kl.Len() != 0 {
			t.Fatalf("expected no tracked keys, got %d", kl.Len())
		}
	})
}

func TestKeyLock_WithLockContextPropagatesError(t *testing.T) {
	kl := New[string]()
	want := errors.New("boom")

	err := kl.WithLockContext(context.Background(), "m1", time.Second, func() error { return want })
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 0, kl.Len(), "lock must be released after fn returns")
}

func TestKeyLock_WithLockContextTimeout(t *testing.T) {
	kl := New[string]()
	kl.Lock("m1")

	err := kl.WithLockContext(context.Background(), "m1", 20*time.Millisecond, func() error {
		t.Fatal("fn must not run while the key is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)

	kl.Unlock("m1")

	ran := false
	require.Eventually(t, func() bool {
		err := kl.WithLockContext(context.Background(), "m1", 50*time.Millisecond, func() error {
			ran = true
			return nil
		})
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.True(t, ran)
	require.Eventually(t, func() bool { return kl.Len() == 0 }, time.Second, 5*time.Millisecond,
		"abandoned waiter must release its reference")
}

func TestKeyLock_WithLockContextCancelled(t *testing.T) {
	kl := New[string]()
	kl.Lock("m1")
	defer kl.Unlock("m1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := kl.WithLockContext(ctx, "m1", time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyLock_ReleasesIdleKeys(t *testing.T) {
	kl := New[string]()
	kl.Unlock("never-locked")
	assert.Equal(t, 0, kl.Len())

	kl.Lock("m1")
	kl.Lock("m2")
	assert.Equal(t, 2, kl.Len())

	kl.Unlock("m1")
	kl.Unlock("m2")
	assert.Equal(t, 0, kl.Len())
}
