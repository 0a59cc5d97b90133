package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"repomap/internal/tags"
)

type memoryEntry struct {
	fp   tags.Fingerprint
	tags []tags.Tag
}

// Memory is an in-memory Cache. It backs cacheless runs and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	locks   stripedLocks

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// GetOrParse returns cached tags when the fingerprint matches, otherwise
// parses and stores.
func (m *Memory) GetOrParse(ctx context.Context, path string, content []byte, mtime int64, parse ParseFunc) ([]tags.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp := tags.FingerprintOf(content, mtime)

	lock := m.locks.forPath(path)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	e, ok := m.entries[path]
	m.mu.RUnlock()
	if ok && e.fp == fp {
		m.hits.Add(1)
		return e.tags, nil
	}

	m.misses.Add(1)
	parsed, err := parse()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entries[path] = memoryEntry{fp: fp, tags: parsed}
	m.mu.Unlock()
	return parsed, nil
}

// Invalidate drops one entry.
func (m *Memory) Invalidate(path string) {
	m.mu.Lock()
	delete(m.entries, path)
	m.mu.Unlock()
}

// Prune drops entries for paths not in keep.
func (m *Memory) Prune(keep map[string]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path := range m.entries {
		if _, ok := keep[path]; !ok {
			delete(m.entries, path)
		}
	}
	return nil
}

// Stats reports hit/miss counts. IOErrors is always zero for the memory cache.
func (m *Memory) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
