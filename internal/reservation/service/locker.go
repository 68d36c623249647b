package service

import (
	"context"
	"sort"
	"sync"

	"github.com/smallbiznis/spotlight/internal/reservation/domain"
)

// localLocker is a process-wide keyed mutex. It honours ctx while waiting.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() domain.PlacementLocker {
	return &localLocker{locks: map[string]*keyLock{}}
}

func (l *localLocker) Lock(ctx context.Context, placements ...string) (func(), error) {
	keys := stableKeys(placements)
	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (l *localLocker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *localLocker) unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		return
	}
	<-kl.ch
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// chainLocker takes the local lock before the distributed one so a single
// instance never contends with itself on Redis.
type chainLocker struct {
	lockers []domain.PlacementLocker
}

func NewChainLocker(lockers ...domain.PlacementLocker) domain.PlacementLocker {
	return &chainLocker{lockers: lockers}
}

func (c *chainLocker) Lock(ctx context.Context, placements ...string) (func(), error) {
	keys := stableKeys(placements)
	releases := make([]func(), 0, len(c.lockers))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, locker := range c.lockers {
		release, err := locker.Lock(ctx, keys...)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func stableKeys(placements []string) []string {
	seen := make(map[string]struct{}, len(placements))
	keys := make([]string, 0, len(placements))
	for _, p := range placements {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}
