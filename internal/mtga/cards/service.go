package cards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/metrics"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/scryfall"
)

// ErrUpstreamUnavailable is returned when a card is not stored locally and
// the remote card source could not be reached.
var ErrUpstreamUnavailable = errors.New("card source unavailable")

// DefaultCacheTTL is how long a card stays in the cache.
const DefaultCacheTTL = 24 * time.Hour

// Store is the persistent card catalog.
type Store interface {
	GetCard(ctx context.Context, id string) (*Card, error)
	GetRandomCard(ctx context.Context) (*Card, error)
	ScanCards(ctx context.Context, excludeID string, limit int, keep func(*Card) bool) ([]*Card, error)
	UpsertCards(ctx context.Context, batch []*Card) error
}

// Cache is a TTL key/value cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Fetcher retrieves cards from a remote source.
type Fetcher interface {
	GetCard(ctx context.Context, id string) (*scryfall.Card, error)
}

// ServiceConfig holds configuration for the card service.
type ServiceConfig struct {
	// CacheTTL is the lifetime of cached cards. Default: 24 hours.
	CacheTTL time.Duration

	// FallbackToAPI fetches cards missing from the store and saves them.
	FallbackToAPI bool
}

// DefaultServiceConfig returns a ServiceConfig with defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		CacheTTL:      DefaultCacheTTL,
		FallbackToAPI: true,
	}
}

// Service looks cards up through the cache, then the store, then optionally
// the remote source.
type Service struct {
	store   Store
	cache   Cache
	fetcher Fetcher
	config  *ServiceConfig
}

// NewService creates a card service. cache and fetcher may be nil.
func NewService(store Store, cache Cache, fetcher Fetcher, config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	return &Service{
		store:   store,
		cache:   cache,
		fetcher: fetcher,
		config:  config,
	}
}

func cacheKey(id string) string {
	return "card:" + id
}

// GetCard returns the card with id, or nil if no source knows it.
func (s *Service) GetCard(ctx context.Context, id string) (*Card, error) {
	if card := s.fromCache(ctx, id); card != nil {
		return card, nil
	}

	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load card %s: %w", id, err)
	}

	if card == nil && s.config.FallbackToAPI && s.fetcher != nil {
		card, err = s.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if card != nil {
		s.toCache(ctx, card)
	}
	return card, nil
}

// GetCards resolves several ids. Unknown ids are absent from the result.
func (s *Service) GetCards(ctx context.Context, ids []string) (map[string]*Card, error) {
	out := make(map[string]*Card, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		card, err := s.GetCard(ctx, id)
		if err != nil {
			return nil, err
		}
		if card != nil {
			out[id] = card
		}
	}
	return out, nil
}

// RandomCard returns any stored card, or nil for an empty catalog.
func (s *Service) RandomCard(ctx context.Context) (*Card, error) {
	card, err := s.store.GetRandomCard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load random card: %w", err)
	}
	return card, nil
}

// Pool returns up to limit stored cards other than excludeID that pass keep,
// ordered by id. A nil keep accepts every card.
func (s *Service) Pool(ctx context.Context, excludeID string, limit int, keep func(*Card) bool) ([]*Card, error) {
	pool, err := s.store.ScanCards(ctx, excludeID, limit, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate pool: %w", err)
	}
	return pool, nil
}

func (s *Service) fetch(ctx context.Context, id string) (*Card, error) {
	sc, err := s.fetcher.GetCard(ctx, id)
	if scryfall.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	card := FromScryfall(sc)
	if err := s.store.UpsertCards(ctx, []*Card{card}); err != nil {
		log.Warn().Err(err).Str("card_id", id).Msg("Failed to store fetched card")
	}
	return card, nil
}

func (s *Service) fromCache(ctx context.Context, id string) *Card {
	if s.cache == nil {
		return nil
	}
	payload, ok, err := s.cache.Get(ctx, cacheKey(id))
	metrics.RecordCacheLookup("card", ok, err)
	if err != nil {
		log.Warn().Err(err).Str("card_id", id).Msg("Card cache read failed")
		return nil
	}
	if !ok {
		return nil
	}

	var card Card
	if err := json.Unmarshal(payload, &card); err != nil {
		log.Warn().Err(err).Str("card_id", id).Msg("Discarding undecodable cached card")
		return nil
	}
	return &card
}

func (s *Service) toCache(ctx context.Context, card *Card) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(card)
	if err != nil {
		log.Warn().Err(err).Str("card_id", card.ID).Msg("Failed to encode card for cache")
		return
	}
	if err := s.cache.Put(ctx, cacheKey(card.ID), payload, s.config.CacheTTL); err != nil {
		log.Warn().Err(err).Str("card_id", card.ID).Msg("Card cache write failed")
	}
}
