package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesPerKey(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "results")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "homepage")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "homepage")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(context.Background(), "detail")
	require.NoError(t, err)
	other()
}

func TestLocalLockerMultipleKeysIsDeadlockFree(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"results", "homepage"}
			if i%2 == 0 {
				keys = []string{"homepage", "results", "homepage"}
			}
			unlock, err := locker.Lock(ctx, keys...)
			if assert.NoError(t, err) {
				unlock()
			}
		}(i)
	}
	wg.Wait()
}

func TestChainLockerReleasesOnFailure(t *testing.T) {
	first := NewLocalLocker()
	second := NewLocalLocker()
	hold, err := second.Lock(context.Background(), "results")
	require.NoError(t, err)

	chain := NewChainLocker(first, second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = chain.Lock(ctx, "results")
	require.Error(t, err)
	hold()

	// first locker must have been released
	unlock, err := first.Lock(context.Background(), "results")
	require.NoError(t, err)
	unlock()
}
