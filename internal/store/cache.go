// Package store persists catalog responses in a local SQLite database so
// repeated lookups of the same show do not hit the remote API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

const busyTimeout = 5 * time.Second

// Cache is a key/value cache with a fixed time-to-live per entry.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates (if needed) and opens the cache database at path. Entries
// older than ttl are treated as missing and are deleted on open.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	// One writer; the cache is tiny and contention is not a concern.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	c := &Cache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if _, err := c.Purge(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("purge expired entries: %w", err)
	}
	return c, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_cache (
		key TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_cache_stored_at ON catalog_cache(stored_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached body for key. ok is false when the key is absent
// or expired.
func (c *Cache) Get(ctx context.Context, key string) (body []byte, ok bool, err error) {
	var storedAt int64
	err = c.db.QueryRowContext(ctx,
		`SELECT body, stored_at FROM catalog_cache WHERE key = ?`, key,
	).Scan(&body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if c.expired(storedAt) {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores body under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.db.ExecContext(ctx, `
	INSERT INTO catalog_cache (key, body, stored_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at
	`, key, body, c.now().Unix())
	return err
}

// Purge deletes expired entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM catalog_cache WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// expired reports whether an entry stored at the given unix time is past
// the TTL. A non-positive TTL never expires.
func (c *Cache) expired(storedAt int64) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(time.Unix(storedAt, 0)) > c.ttl
}
