// Package cache is the key/value cache in front of card lookups and search
// results. Entries carry their own TTL; an expired entry reads as absent.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"github.com/ramonehamilton/cardsynergy/internal/metrics"
)

// SearchTTL is the default lifetime of a cached search page.
const SearchTTL = time.Hour

// Store is a TTL key/value store. Get reports ok=false for missing and
// expired keys; a miss is never an error. Put is last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Purge drops expired entries where the backend does not do it itself.
	Purge(ctx context.Context) (int64, error)
}

// SearchKey is the cache key of one page of search results. filterKey must
// be a canonical encoding of the filter.
func SearchKey(filterKey string, page, pageSize int) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s|%d|%d", filterKey, page, pageSize)))
	return "search:" + hex.EncodeToString(sum[:])
}

// kind returns the key prefix used as a metrics label.
func kind(key string) string {
	if prefix, _, ok := strings.Cut(key, ":"); ok {
		return prefix
	}
	return "other"
}

// Load decodes the cached value for key into v. Undecodable payloads are
// treated as misses.
func Load(ctx context.Context, s Store, key string, v any) (bool, error) {
	payload, ok, err := s.Get(ctx, key)
	metrics.RecordCacheLookup(kind(key), ok, err)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// Save encodes v and stores it under key.
func Save(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return s.Put(ctx, key, payload, ttl)
}
