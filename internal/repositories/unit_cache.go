package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// UnitCache is the lifecycle cache: a key to serialized-snapshot map stored in SQLite.
//
// Get, Put and Delete each run in their own transaction, so a reader never
// observes a half-written entry. Values are opaque to the cache.
type UnitCache struct {
	db  *sql.DB
	now func() time.Time
}

// NewUnitCache wraps an open, migrated database.
func NewUnitCache(db *sql.DB) *UnitCache {
	return &UnitCache{db: db, now: time.Now}
}

// OpenUnitCache opens (creating and migrating if needed) the cache database at path.
func OpenUnitCache(path string) (*UnitCache, error) {
	db, err := shared.OpenDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unit cache: %w", err)
	}
	return NewUnitCache(db), nil
}

// Close closes the underlying database.
func (c *UnitCache) Close() error {
	return c.db.Close()
}

// Get returns the snapshot stored under key, or [shared.ErrCacheMiss].
func (c *UnitCache) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := builder.Select("snapshot").From("unit_cache").Where(sq.Eq{"key": key}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cache query: %w", err)
	}

	var snapshot []byte
	err = WithTx(ctx, c.db, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, query, args...).Scan(&snapshot)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	return snapshot, nil
}

// Put stores snapshot under key, replacing any previous value.
func (c *UnitCache) Put(ctx context.Context, key, unitID string, snapshot []byte) error {
	query, args, err := builder.
		Insert("unit_cache").
		Columns("key", "unit_id", "snapshot", "cached_at").
		Values(key, unitID, snapshot, c.now().UTC()).
		Suffix("ON CONFLICT(key) DO UPDATE SET snapshot = excluded.snapshot, cached_at = excluded.cached_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cache insert: %w", err)
	}

	err = WithTx(ctx, c.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry under key. Deleting a missing key is not an error.
func (c *UnitCache) Delete(ctx context.Context, key string) error {
	query, args, err := builder.Delete("unit_cache").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cache delete: %w", err)
	}

	err = WithTx(ctx, c.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// Count returns the number of cached entries.
func (c *UnitCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM unit_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
