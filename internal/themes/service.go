package themes

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
)

// CardResolver looks cards up by id. Unknown ids are absent from the result.
type CardResolver interface {
	GetCards(ctx context.Context, ids []string) (map[string]*cards.Card, error)
}

// ServiceConfig tunes theme card listings.
type ServiceConfig struct {
	// MinConfidence is the cutoff for listing a card under a theme.
	MinConfidence int

	// CardLimit caps assignments loaded per theme listing.
	CardLimit int
}

// DefaultServiceConfig returns the default listing cutoffs.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MinConfidence: 40,
		CardLimit:     60,
	}
}

// Suggestion is a stored theme of a card together with how many other cards
// of the theme pass the caller's filter.
type Suggestion struct {
	Assignment    *models.ThemeAssignment
	Description   string
	MatchingCards int
}

// Service classifies cards on first request and serves stored assignments.
type Service struct {
	repo       repository.ThemeRepository
	classifier *Classifier
	cards      CardResolver
	config     atomic.Pointer[ServiceConfig]

	// inflight collapses concurrent first requests for one card into a single
	// generator call.
	inflight singleflight.Group
}

// NewService creates a theme service.
func NewService(repo repository.ThemeRepository, classifier *Classifier, resolver CardResolver, config *ServiceConfig) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	s := &Service{
		repo:       repo,
		classifier: classifier,
		cards:      resolver,
	}
	s.config.Store(config)
	return s
}

// SetConfig swaps the listing cutoffs.
func (s *Service) SetConfig(config *ServiceConfig) {
	if config != nil {
		s.config.Store(config)
	}
}

// Themes returns the card's stored assignments, classifying it first if it
// has never been classified successfully. A generator failure yields an
// empty list and persists nothing, so the next call retries.
func (s *Service) Themes(ctx context.Context, card *cards.Card) ([]*models.ThemeAssignment, error) {
	marker, err := s.repo.GetClassification(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if marker != nil {
		return s.repo.GetByCard(ctx, card.ID)
	}

	v, err, _ := s.inflight.Do(card.ID, func() (any, error) {
		return s.classify(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.ThemeAssignment), nil
}

func (s *Service) classify(ctx context.Context, card *cards.Card) ([]*models.ThemeAssignment, error) {
	proposals, ok := s.classifier.Classify(ctx, card)
	if !ok {
		return []*models.ThemeAssignment{}, nil
	}

	assignments := make([]*models.ThemeAssignment, 0, len(proposals))
	for _, p := range proposals {
		assignments = append(assignments, &models.ThemeAssignment{
			CardID:         card.ID,
			ThemeName:      p.Theme,
			BaseConfidence: p.Confidence,
			Confidence:     p.Confidence,
		})
	}
	if err := s.repo.SaveClassification(ctx, card.ID, assignments); err != nil {
		return nil, fmt.Errorf("failed to save themes: %w", err)
	}

	stored, err := s.repo.GetByCard(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = []*models.ThemeAssignment{}
	}
	return stored, nil
}

// Suggestions returns every stored theme of card. The filter only decides
// each suggestion's MatchingCards count.
func (s *Service) Suggestions(ctx context.Context, card *cards.Card, f *filter.Filter) ([]Suggestion, error) {
	assignments, err := s.Themes(ctx, card)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(assignments))
	for _, a := range assignments {
		matching, err := s.CardsForTheme(ctx, a.ThemeName, card.ID, f)
		if err != nil {
			return nil, err
		}
		theme, _ := Lookup(a.ThemeName)
		out = append(out, Suggestion{
			Assignment:    a,
			Description:   theme.Description,
			MatchingCards: len(matching),
		})
	}
	return out, nil
}

// CardsForTheme lists cards assigned to a theme at or above the confidence
// cutoff, strongest first, excluding excludingID and cards that no longer
// resolve, then applies the filter. An unknown theme yields an empty list.
func (s *Service) CardsForTheme(ctx context.Context, themeName, excludingID string, f *filter.Filter) ([]*cards.Card, error) {
	theme, ok := Lookup(themeName)
	if !ok {
		return []*cards.Card{}, nil
	}

	config := s.config.Load()
	assignments, err := s.repo.GetCardsForTheme(ctx, theme.Name, config.MinConfidence, config.CardLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.CardID != excludingID {
			ids = append(ids, a.CardID)
		}
	}
	resolved, err := s.cards.GetCards(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*cards.Card, 0, len(ids))
	for _, a := range assignments {
		if a.CardID == excludingID {
			continue
		}
		card := resolved[a.CardID]
		if card == nil {
			log.Debug().Str("card_id", a.CardID).Str("theme", theme.Name).Msg("Skipping unresolved theme card")
			continue
		}
		if filter.Matches(card, f) {
			out = append(out, card)
		}
	}
	return out, nil
}

// Reset removes theme data for one card, or every card when cardID is empty.
func (s *Service) Reset(ctx context.Context, cardID string) (int64, error) {
	n, err := s.repo.Reset(ctx, cardID)
	if err != nil {
		return 0, err
	}
	log.Info().Str("card_id", cardID).Int64("assignments", n).Msg("Reset card themes")
	return n, nil
}
