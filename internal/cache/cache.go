// Package cache provides the persistent summary cache for precis.
//
// Summaries are expensive (one model call per chunk plus a consolidation
// pass), so results are cached by source fingerprint in a single SQLite
// database, fronted by a small in-process expirable LRU. Entries are
// invalidated lazily on lookup when the source signature changes or the
// entry outlives its TTL, and capacity overflow evicts oldest-first.
//
// A corrupted database is never fatal: the cache rebuilds itself cold and
// summarization proceeds through the non-cached path.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "modernc.org/sqlite"

	"github.com/precis-ai/precis/internal/fingerprint"
)

// DefaultDBPath is the default cache database location.
const DefaultDBPath = "~/.precis/precis.db"

// DefaultCapacity is the maximum number of persisted entries before
// oldest-first eviction kicks in.
const DefaultCapacity = 100

// DefaultTTL is how long an entry stays valid after creation.
const DefaultTTL = 7 * 24 * time.Hour

// SchemaVersion is written into every entry; bumping it invalidates all
// previously persisted summaries on read.
const SchemaVersion = 1

// memoryLRUSize bounds the in-process front tier. It is deliberately smaller
// than the persisted capacity: the hot set in one session is a handful of
// documents.
const memoryLRUSize = 32

// Entry is one cached summary. Entries are immutable once written;
// re-summarization overwrites by fingerprint.
type Entry struct {
	Fingerprint      string    `json:"fingerprint"`
	Summary          string    `json:"summary"`
	CreatedAt        time.Time `json:"created_at"`
	SourceSize       int64     `json:"source_size"`
	SourceModifiedAt time.Time `json:"source_modified_at"`
	Version          int       `json:"version"`
}

// Stats holds observability counters for the cache.
type Stats struct {
	EntryCount  int64 `json:"entry_count"`
	DBSizeBytes int64 `json:"db_size_bytes"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
}

// Config holds configuration for New.
type Config struct {
	DBPath   string        // "" = DefaultDBPath, ":memory:" for tests
	Capacity int           // ≤0 = DefaultCapacity
	TTL      time.Duration // ≤0 = DefaultTTL
}

// Cache is the sqlite-backed summary cache.
type Cache struct {
	db       *sql.DB
	dbPath   string
	capacity int
	ttl      time.Duration
	lru      *expirable.LRU[string, Entry]
	hits     atomic.Int64
	misses   atomic.Int64
}

// New opens (or creates) the cache database.
// Pass ":memory:" for in-memory databases (testing).
//
// An unreadable or corrupted database file is removed and recreated empty
// rather than surfaced as an error.
func New(cfg Config) (*Cache, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	db, err := openAndMigrate(cfg.DBPath)
	if err != nil {
		if cfg.DBPath == ":memory:" {
			return nil, err
		}
		// Corrupted store: cold start beats a fatal error. Summarization
		// always has a valid non-cached path.
		removeDBFiles(cfg.DBPath)
		db, err = openAndMigrate(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("recreating cache database: %w", err)
		}
	}

	return &Cache{
		db:       db,
		dbPath:   cfg.DBPath,
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		lru:      expirable.NewLRU[string, Entry](memoryLRUSize, nil, cfg.TTL),
	}, nil
}

func openAndMigrate(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	// Timestamps are stored as unix nanos so round-tripping is exact.
	const ddl = `
	CREATE TABLE IF NOT EXISTS summaries (
		fingerprint        TEXT PRIMARY KEY,
		summary            TEXT NOT NULL,
		created_at         INTEGER NOT NULL,
		source_size        INTEGER NOT NULL,
		source_modified_at INTEGER NOT NULL,
		version            INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries(created_at);
	`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating summaries table: %w", err)
	}

	return db, nil
}

func removeDBFiles(dbPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(dbPath + suffix)
	}
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get looks up the entry for the given source fingerprint. A stale entry
// (TTL expired, source signature changed, or schema version mismatch) is
// treated as a miss and removed as part of the lookup.
//
// Returns (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error) {
	if e, ok := c.lru.Get(fp.Value); ok {
		if c.entryValid(&e, fp) {
			c.hits.Add(1)
			return &e, nil
		}
		c.lru.Remove(fp.Value)
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT fingerprint, summary, created_at, source_size, source_modified_at, version
		FROM summaries WHERE fingerprint = ?`, fp.Value)

	var e Entry
	var createdNanos, modifiedNanos int64
	err := row.Scan(&e.Fingerprint, &e.Summary, &createdNanos, &e.SourceSize, &modifiedNanos, &e.Version)
	if err == sql.ErrNoRows {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdNanos)
	e.SourceModifiedAt = time.Unix(0, modifiedNanos)

	if !c.entryValid(&e, fp) {
		// Lazy eviction: the entry no longer describes the source.
		if _, derr := c.db.ExecContext(ctx, `DELETE FROM summaries WHERE fingerprint = ?`, fp.Value); derr != nil {
			return nil, fmt.Errorf("evicting stale cache entry: %w", derr)
		}
		c.misses.Add(1)
		return nil, nil
	}

	c.lru.Add(fp.Value, e)
	c.hits.Add(1)
	return &e, nil
}

// entryValid reports whether a stored entry still describes the source
// identified by fp.
func (c *Cache) entryValid(e *Entry, fp fingerprint.Fingerprint) bool {
	if e.Version != SchemaVersion {
		return false
	}
	if time.Since(e.CreatedAt) > c.ttl {
		return false
	}
	if e.SourceSize != fp.Size {
		return false
	}
	if !e.SourceModifiedAt.Equal(fp.ModifiedAt) {
		return false
	}
	return true
}

// Put stores a summary for the given fingerprint, overwriting any existing
// entry with the same key. If the store then exceeds capacity, the entries
// with the oldest created_at are evicted until back under the bound.
func (c *Cache) Put(ctx context.Context, fp fingerprint.Fingerprint, summary string) error {
	now := time.Now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO summaries (fingerprint, summary, created_at, source_size, source_modified_at, version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			summary = excluded.summary,
			created_at = excluded.created_at,
			source_size = excluded.source_size,
			source_modified_at = excluded.source_modified_at,
			version = excluded.version`,
		fp.Value, summary, now.UnixNano(), fp.Size, fp.ModifiedAt.UnixNano(), SchemaVersion)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	c.lru.Add(fp.Value, Entry{
		Fingerprint:      fp.Value,
		Summary:          summary,
		CreatedAt:        now,
		SourceSize:       fp.Size,
		SourceModifiedAt: fp.ModifiedAt,
		Version:          SchemaVersion,
	})

	return c.evictOverCapacity(ctx)
}

// evictOverCapacity removes oldest entries until the store is at or under
// capacity. Evicted keys are purged from the front tier as well.
func (c *Cache) evictOverCapacity(ctx context.Context) error {
	var count int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&count); err != nil {
		return fmt.Errorf("counting cache entries: %w", err)
	}
	excess := count - int64(c.capacity)
	if excess <= 0 {
		return nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT fingerprint FROM summaries ORDER BY created_at ASC LIMIT ?`, excess)
	if err != nil {
		return fmt.Errorf("selecting eviction candidates: %w", err)
	}
	var victims []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			rows.Close()
			return fmt.Errorf("scanning eviction candidate: %w", err)
		}
		victims = append(victims, fp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating eviction candidates: %w", err)
	}

	for _, fp := range victims {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM summaries WHERE fingerprint = ?`, fp); err != nil {
			return fmt.Errorf("evicting cache entry: %w", err)
		}
		c.lru.Remove(fp)
	}
	return nil
}

// Invalidate explicitly removes the entry for a fingerprint, if present.
// Used when a file-change notification arrives from outside the core.
func (c *Cache) Invalidate(ctx context.Context, fingerprintValue string) error {
	c.lru.Remove(fingerprintValue)
	if _, err := c.db.ExecContext(ctx, `DELETE FROM summaries WHERE fingerprint = ?`, fingerprintValue); err != nil {
		return fmt.Errorf("invalidating cache entry: %w", err)
	}
	return nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Purge()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM summaries`); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// Recent returns up to limit entries in most-recent-first order.
func (c *Cache) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT fingerprint, summary, created_at, source_size, source_modified_at, version
		FROM summaries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var createdNanos, modifiedNanos int64
		if err := rows.Scan(&e.Fingerprint, &e.Summary, &createdNanos, &e.SourceSize, &modifiedNanos, &e.Version); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdNanos)
		e.SourceModifiedAt = time.Unix(0, modifiedNanos)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache entries: %w", err)
	}
	return entries, nil
}

// Stats returns entry count, database size, and hit/miss counters.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&stats.EntryCount); err != nil {
		return nil, fmt.Errorf("counting cache entries: %w", err)
	}
	if c.dbPath != ":memory:" {
		if info, err := os.Stat(c.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
