package cache

import (
	"context"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
)

// SQLiteStore keeps entries in the cache_entries table.
type SQLiteStore struct {
	repo repository.CacheRepository
}

// NewSQLiteStore wraps a cache repository.
func NewSQLiteStore(repo repository.CacheRepository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

// Get returns the payload for a live key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// Put upserts key.
func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.repo.Put(ctx, key, payload, ttl)
}

// Purge deletes expired rows.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	return s.repo.Purge(ctx)
}
