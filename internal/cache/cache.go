// Package cache provides the fingerprint-keyed tag cache that sits in
// front of the extractor so unchanged files are never re-parsed.
package cache

import (
	"context"
	"hash/fnv"
	"sync"

	"repomap/internal/tags"
)

// ParseFunc produces tags for a file on a cache miss.
type ParseFunc func() ([]tags.Tag, error)

// Stats counts cache activity. IOErrors covers recoverable storage
// failures that degraded to parse-without-store.
type Stats struct {
	Hits     int64
	Misses   int64
	IOErrors int64
}

// Cache is the tag cache contract. Implementations must be safe for
// concurrent use by many extraction workers with per-entry granularity:
// a miss on one path must not serialize lookups on other paths.
type Cache interface {
	GetOrParse(ctx context.Context, path string, content []byte, mtime int64, parse ParseFunc) ([]tags.Tag, error)
	Invalidate(path string)
	Prune(keep map[string]struct{}) error
	Stats() Stats
	Close() error
}

const lockStripes = 64

// stripedLocks provides per-entry synchronization keyed by path hash.
type stripedLocks [lockStripes]sync.Mutex

func (s *stripedLocks) forPath(path string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &s[h.Sum32()%lockStripes]
}
