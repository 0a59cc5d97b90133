package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"repomap/internal/tags"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	path       TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	mtime      INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is a sqlite-backed Cache that survives process restarts.
// Entry writes happen in their own transaction, so an aborted run never
// leaves a partially written row. Storage failures are recoverable: the
// store falls back to parse-without-store and counts the error.
type Store struct {
	db    *sql.DB
	locks stripedLocks

	hits     atomic.Int64
	misses   atomic.Int64
	ioErrors atomic.Int64
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring cache db: %w", err)
	}
	return &Store{db: db}, nil
}

// GetOrParse returns cached tags when the stored fingerprint matches the
// current one, otherwise parses, stores, and returns. A corrupted or
// unreadable row is a cache miss, never a fatal error.
func (s *Store) GetOrParse(ctx context.Context, path string, content []byte, mtime int64, parse ParseFunc) ([]tags.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp := tags.FingerprintOf(content, mtime)

	lock := s.locks.forPath(path)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := s.lookup(ctx, path, fp); ok {
		s.hits.Add(1)
		return cached, nil
	}

	s.misses.Add(1)
	parsed, err := parse()
	if err != nil {
		return nil, err
	}

	if err := s.put(ctx, path, fp, parsed); err != nil {
		s.ioErrors.Add(1)
	}
	return parsed, nil
}

func (s *Store) lookup(ctx context.Context, path string, fp tags.Fingerprint) ([]tags.Tag, bool) {
	var hash string
	var mtime int64
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, mtime, data FROM tags WHERE path = ?`, path,
	).Scan(&hash, &mtime, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.ioErrors.Add(1)
		return nil, false
	}
	if hash != fp.Hash || mtime != fp.MTime {
		return nil, false
	}
	var cached []tags.Tag
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted entry: treat as a miss and let the fresh parse overwrite it.
		s.ioErrors.Add(1)
		return nil, false
	}
	return cached, true
}

func (s *Store) put(ctx context.Context, path string, fp tags.Fingerprint, parsed []tags.Tag) error {
	data, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tags (path, hash, mtime, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			mtime = excluded.mtime,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, path, fp.Hash, fp.MTime, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing tags for %s: %w", path, err)
	}
	return nil
}

// Invalidate drops one entry.
func (s *Store) Invalidate(path string) {
	if _, err := s.db.Exec(`DELETE FROM tags WHERE path = ?`, path); err != nil {
		s.ioErrors.Add(1)
	}
}

// Prune drops entries for files no longer in the candidate set.
func (s *Store) Prune(keep map[string]struct{}) error {
	rows, err := s.db.Query(`SELECT path FROM tags`)
	if err != nil {
		return fmt.Errorf("listing cache entries: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return fmt.Errorf("scanning cache entry: %w", err)
		}
		if _, ok := keep[path]; !ok {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("listing cache entries: %w", err)
	}
	rows.Close()

	for _, path := range stale {
		if _, err := s.db.Exec(`DELETE FROM tags WHERE path = ?`, path); err != nil {
			return fmt.Errorf("pruning %s: %w", path, err)
		}
	}
	return nil
}

// Stats reports cache activity since Open.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		IOErrors: s.ioErrors.Load(),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
