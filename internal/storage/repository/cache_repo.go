package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

// CacheRepository persists cache entries with a per-entry TTL.
type CacheRepository interface {
	// Get returns the live entry for key and bumps its access count.
	// Missing and expired entries both return nil.
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Put upserts an entry, resetting its timestamp. Last writer wins.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Purge deletes expired entries and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}

type cacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCacheRepository creates a new cache repository.
func NewCacheRepository(db *sql.DB) CacheRepository {
	return &cacheRepository{db: db, now: time.Now}
}

// Get returns the live entry for key.
func (r *cacheRepository) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	query := `SELECT key, payload, ttl_seconds, access_count, last_updated FROM cache_entries WHERE key = ?`

	entry := &models.CacheEntry{}
	var ttlSeconds int64
	var lastUpdated string
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key, &entry.Payload, &ttlSeconds, &entry.AccessCount, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	entry.TTL = time.Duration(ttlSeconds) * time.Second
	entry.LastUpdated = parseTime(lastUpdated)

	if entry.Expired(r.now().UTC()) {
		return nil, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE cache_entries SET access_count = access_count + 1 WHERE key = ?`, key,
	); err != nil {
		return nil, fmt.Errorf("failed to update cache access count: %w", err)
	}
	entry.AccessCount++

	return entry, nil
}

// Put upserts an entry.
func (r *cacheRepository) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	query := `
		INSERT INTO cache_entries (key, payload, ttl_seconds, access_count, last_updated)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			ttl_seconds = excluded.ttl_seconds,
			last_updated = excluded.last_updated
	`
	_, err := r.db.ExecContext(ctx, query,
		key, payload, int64(ttl/time.Second), r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries.
func (r *cacheRepository) Purge(ctx context.Context) (int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, ttl_seconds, last_updated FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	now := r.now().UTC()
	type stale struct {
		key    string
		cutoff string
	}
	var expired []stale
	for rows.Next() {
		var key, lastUpdated string
		var ttlSeconds int64
		if err := rows.Scan(&key, &ttlSeconds, &lastUpdated); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		ttl := time.Duration(ttlSeconds) * time.Second
		entry := models.CacheEntry{TTL: ttl, LastUpdated: parseTime(lastUpdated)}
		if entry.Expired(now) {
			expired = append(expired, stale{key: key, cutoff: now.Add(-ttl).Format(timeLayout)})
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("failed to iterate cache entries: %w", err)
	}
	_ = rows.Close()

	// An entry rewritten since the scan has a newer timestamp and survives.
	var removed int64
	for _, e := range expired {
		result, err := r.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ? AND last_updated <= ?`, e.key, e.cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to delete cache entry: %w", err)
		}
		n, _ := result.RowsAffected()
		removed += n
	}
	return removed, nil
}
