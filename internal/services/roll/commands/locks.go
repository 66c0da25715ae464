package commands

import (
	"slices"
	"sync"
)

// keyedMutex serializes work per message id. Entries are dropped once no
// caller holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires every key in sorted order and returns the release function.
// Duplicate and empty keys are ignored.
func (k *keyedMutex) Lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			sorted = append(sorted, key)
		}
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	entries := make([]*keyedEntry, len(sorted))
	k.mu.Lock()
	for i, key := range sorted {
		entry, ok := k.locks[key]
		if !ok {
			entry = &keyedEntry{}
			k.locks[key] = entry
		}
		entry.refs++
		entries[i] = entry
	}
	k.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(entries) - 1; i >= 0; i-- {
				entries[i].mu.Unlock()
			}
			k.mu.Lock()
			for i, key := range sorted {
				entries[i].refs--
				if entries[i].refs == 0 {
					delete(k.locks, key)
				}
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// claimSet tracks message ids with work in flight that must not start twice.
type claimSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{held: make(map[string]struct{})}
}

// tryClaim marks key as in flight. It reports false when another caller
// already holds the claim.
func (c *claimSet) tryClaim(key string) (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.held[key]; ok {
		return nil, false
	}
	c.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.held, key)
			c.mu.Unlock()
		})
	}, true
}

func (c *claimSet) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.held)
}
