// Package engine exposes the recommendation operations over the card
// catalog: search, synergy and similarity recommendations, theme suggestions
// and votes. Every operation that returns cards filters them with
// filter.Matches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/cache"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
	"github.com/ramonehamilton/cardsynergy/internal/metrics"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/scoring"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/similarity"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/synergy"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
	"github.com/ramonehamilton/cardsynergy/internal/themes"
)

var (
	// ErrNotFound is returned when the requested card does not exist.
	ErrNotFound = errors.New("card not found")

	// ErrUnknownType is returned for a recommendation type other than
	// synergy or functional_similarity.
	ErrUnknownType = errors.New("unknown recommendation type")
)

// Config holds the tunables applied per request.
type Config struct {
	// PoolSize bounds the candidate pool scanned per recommendation request.
	// Zero scans the whole catalog.
	PoolSize int

	// DefaultLimit is the recommendation count when the caller gives none.
	DefaultLimit int

	// SearchPageSize and MaxPageSize bound search pages.
	SearchPageSize int
	MaxPageSize    int

	// SearchTTL is how long a search page stays cached.
	SearchTTL time.Duration

	// Workers bounds concurrent pair evaluations. Read at construction.
	Workers int
}

// DefaultConfig returns the default engine tunables.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:       40000,
		DefaultLimit:   15,
		SearchPageSize: 20,
		MaxPageSize:    100,
		SearchTTL:      cache.SearchTTL,
	}
}

// Catalog streams stored cards whose name contains a substring.
type Catalog interface {
	Each(ctx context.Context, name string, fn func(*cards.Card) error) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Cards           *cards.Service
	Catalog         Catalog
	Cache           cache.Store
	Recommendations repository.RecommendationRepository
	Themes          *themes.Service
	Votes           *feedback.Service
}

// Engine implements the exposed recommendation operations.
type Engine struct {
	cards      *cards.Service
	catalog    Catalog
	cache      cache.Store
	recs       repository.RecommendationRepository
	themes     *themes.Service
	votes      *feedback.Service
	synergy    *synergy.Scorer
	similarity *similarity.Scorer

	config atomic.Pointer[Config]
}

// New creates an engine.
func New(deps Deps, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{
		cards:      deps.Cards,
		catalog:    deps.Catalog,
		cache:      deps.Cache,
		recs:       deps.Recommendations,
		themes:     deps.Themes,
		votes:      deps.Votes,
		synergy:    synergy.NewScorer(config.Workers),
		similarity: similarity.NewScorer(config.Workers),
	}
	e.config.Store(config)
	return e
}

// SetConfig replaces the per-request tunables.
func (e *Engine) SetConfig(config *Config) {
	if config != nil {
		e.config.Store(config)
	}
}

// Card returns a card by id.
func (e *Engine) Card(ctx context.Context, id string) (*cards.Card, error) {
	card, err := e.cards.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrNotFound
	}
	return card, nil
}

// RandomCard returns any card from the catalog.
func (e *Engine) RandomCard(ctx context.Context) (*cards.Card, error) {
	card, err := e.cards.RandomCard(ctx)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrNotFound
	}
	return card, nil
}

// SearchResult is one page of search results.
type SearchResult struct {
	Cards      []*cards.Card `json:"cards"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasMore    bool          `json:"has_more"`
	TotalCount int           `json:"total_count"`
}

// Search returns one page of cards matching f, ordered by name. Pages are
// 1-based. Results are cached per (filter, page, page size).
func (e *Engine) Search(ctx context.Context, f *filter.Filter, page, pageSize int) (*SearchResult, error) {
	config := e.config.Load()
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = config.SearchPageSize
	}
	if config.MaxPageSize > 0 && pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}

	key := cache.SearchKey(f.CacheKey(), page, pageSize)
	if e.cache != nil {
		var cached SearchResult
		hit, err := cache.Load(ctx, e.cache, key, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("Search cache read failed")
		}
		if hit {
			return &cached, nil
		}
	}

	result := &SearchResult{Cards: []*cards.Card{}, Page: page, PageSize: pageSize}
	offset := (page - 1) * pageSize
	name := ""
	if f != nil {
		name = f.Name
	}

	err := e.catalog.Each(ctx, name, func(card *cards.Card) error {
		if !filter.Matches(card, f) {
			return nil
		}
		if result.TotalCount >= offset && len(result.Cards) < pageSize {
			result.Cards = append(result.Cards, card)
		}
		result.TotalCount++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	result.HasMore = offset+len(result.Cards) < result.TotalCount

	if e.cache != nil {
		if err := cache.Save(ctx, e.cache, key, result, config.SearchTTL); err != nil {
			log.Warn().Err(err).Msg("Search cache write failed")
		}
	}
	return result, nil
}

// Recommendation is one ranked recommended card.
type Recommendation struct {
	ID        int64       `json:"id,omitempty"`
	Card      *cards.Card `json:"card"`
	Score     int         `json:"score"`
	BaseScore int         `json:"base_score"`
	Reason    string      `json:"reason"`
	Upvotes   int         `json:"upvotes"`
	Downvotes int         `json:"downvotes"`
}

// Recommendations ranks the candidate pool against the card with the scorer
// for recType. Only candidates passing f are considered. Results are
// persisted so they can be voted on; the returned score includes votes.
func (e *Engine) Recommendations(ctx context.Context, cardID, recType string, limit int, f *filter.Filter) ([]Recommendation, error) {
	if recType == "" {
		recType = models.RecommendationSynergy
	}
	if recType != models.RecommendationSynergy && recType != models.RecommendationSimilarity {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, recType)
	}

	source, err := e.Card(ctx, cardID)
	if err != nil {
		return nil, err
	}

	config := e.config.Load()
	if limit <= 0 {
		limit = config.DefaultLimit
	}

	var keep func(*cards.Card) bool
	if !f.IsZero() {
		keep = func(c *cards.Card) bool { return filter.Matches(c, f) }
	}
	candidates, err := e.cards.Pool(ctx, source.ID, config.PoolSize, keep)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var matches []scoring.Match
	if recType == models.RecommendationSynergy {
		matches, err = e.synergy.Find(ctx, source, candidates, limit)
	} else {
		matches, err = e.similarity.Find(ctx, source, candidates, limit)
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordScoring(recType, time.Since(start), len(matches))

	return e.persist(ctx, source.ID, recType, matches), nil
}

// persist stores matches and folds existing votes into their scores. A
// storage failure is logged and the unadjusted ranking returned.
func (e *Engine) persist(ctx context.Context, sourceID, recType string, matches []scoring.Match) []Recommendation {
	out := make([]Recommendation, len(matches))
	rows := make([]*models.Recommendation, len(matches))
	for i, m := range matches {
		out[i] = Recommendation{Card: m.Card, Score: m.Score, BaseScore: m.Score, Reason: m.Reason()}
		rows[i] = &models.Recommendation{
			SourceCardID:      sourceID,
			RecommendedCardID: m.CardID(),
			Type:              recType,
			BaseScore:         m.Score,
			Reason:            m.Reason(),
		}
	}
	if e.recs == nil || len(rows) == 0 {
		return out
	}

	if err := e.recs.UpsertBatch(ctx, rows, feedback.AdjustConfidence); err != nil {
		log.Warn().Err(err).Str("card_id", sourceID).Str("type", recType).Msg("Failed to store recommendations")
		return out
	}
	for i, row := range rows {
		out[i].ID = row.ID
		out[i].Score = row.Score
		out[i].Upvotes = row.Upvotes
		out[i].Downvotes = row.Downvotes
	}
	sortRecommendations(out)
	return out
}

func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Card.ID < recs[j].Card.ID
	})
}

// ThemeSuggestion is a stored theme of a card.
type ThemeSuggestion struct {
	ID             int64  `json:"id"`
	ThemeName      string `json:"theme_name"`
	Description    string `json:"description"`
	Confidence     int    `json:"confidence"`
	BaseConfidence int    `json:"base_confidence"`
	Upvotes        int    `json:"upvotes"`
	Downvotes      int    `json:"downvotes"`
	MatchingCards  int    `json:"matching_cards"`
}

// ThemeSuggestions returns the card's themes, classifying it on first use.
// Every stored theme is returned; f only drives MatchingCards.
func (e *Engine) ThemeSuggestions(ctx context.Context, cardID string, f *filter.Filter) ([]ThemeSuggestion, error) {
	card, err := e.Card(ctx, cardID)
	if err != nil {
		return nil, err
	}

	suggestions, err := e.themes.Suggestions(ctx, card, f)
	if err != nil {
		return nil, err
	}

	out := make([]ThemeSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		a := s.Assignment
		out = append(out, ThemeSuggestion{
			ID:             a.ID,
			ThemeName:      a.ThemeName,
			Description:    s.Description,
			Confidence:     a.Confidence,
			BaseConfidence: a.BaseConfidence,
			Upvotes:        a.Upvotes,
			Downvotes:      a.Downvotes,
			MatchingCards:  s.MatchingCards,
		})
	}
	return out, nil
}

// ThemeCards lists other cards of a theme that pass f.
func (e *Engine) ThemeCards(ctx context.Context, cardID, themeName string, f *filter.Filter) ([]*cards.Card, error) {
	if _, err := e.Card(ctx, cardID); err != nil {
		return nil, err
	}
	return e.themes.CardsForTheme(ctx, themeName, cardID, f)
}

// Themes returns the theme catalog.
func (e *Engine) Themes() []themes.Theme {
	return themes.All()
}

// Vote records a user's vote.
func (e *Engine) Vote(ctx context.Context, req feedback.Request) (*feedback.Result, error) {
	return e.votes.Vote(ctx, req)
}

// VoteFor returns the user's existing vote on a target, or nil.
func (e *Engine) VoteFor(ctx context.Context, userID, targetType string, targetID int64) (*models.Vote, error) {
	return e.votes.HasVoted(ctx, userID, targetType, targetID)
}

// ResetThemes deletes stored themes for one card or, with an empty id, all cards.
func (e *Engine) ResetThemes(ctx context.Context, cardID string) (int64, error) {
	return e.themes.Reset(ctx, cardID)
}
