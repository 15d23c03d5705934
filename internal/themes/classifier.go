package themes

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/llm"
	"github.com/ramonehamilton/cardsynergy/internal/metrics"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
)

// DefaultTimeout bounds one classification call.
const DefaultTimeout = 20 * time.Second

// Classifier asks a text generator which catalog themes a card belongs to.
type Classifier struct {
	generator llm.Generator
	timeout   time.Duration
}

// NewClassifier creates a classifier. A non-positive timeout uses DefaultTimeout.
func NewClassifier(generator llm.Generator, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{generator: generator, timeout: timeout}
}

// Classify makes exactly one generator call for card. When the generator
// fails or times out the failure is logged and ok is false; the returned
// list is empty either way rather than nil.
func (c *Classifier) Classify(ctx context.Context, card *cards.Card) (proposals []Proposal, ok bool) {
	if card == nil || c.generator == nil {
		return []Proposal{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.generator.Generate(ctx, BuildPrompt(card))
	if err != nil {
		log.Warn().Err(err).
			Str("card_id", card.ID).
			Dur("elapsed", time.Since(start)).
			Msg("Theme classification failed")
		return []Proposal{}, false
	}

	proposals = ParseResponse(text)
	if proposals == nil {
		proposals = []Proposal{}
	}
	metrics.RecordThemesAccepted(len(proposals))

	log.Debug().
		Str("card_id", card.ID).
		Int("themes", len(proposals)).
		Dur("elapsed", time.Since(start)).
		Msg("Classified card")
	return proposals, true
}
