// Package synergy scores enabler/payoff relationships between pairs of cards.
//
// Scores come from a fixed rule table evaluated against the lower-cased
// oracle text and type line of both cards. Each satisfied rule adds its weight
// and reason once. A detected combo adds ComboWeight once on top of the rule
// hits, however many combo patterns match, and its reason is listed first;
// the combined score is then capped at 100. Candidates below Threshold are
// dropped.
package synergy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/scoring"
)

// DefaultLimit is the number of results returned when no limit is given.
const DefaultLimit = 15

// MaxLimit bounds the number of results regardless of the requested limit.
const MaxLimit = 20

// Scorer finds cards that synergize with a source card.
type Scorer struct {
	workers int
}

// NewScorer creates a synergy scorer that evaluates pools with up to workers
// goroutines (<= 0 uses GOMAXPROCS).
func NewScorer(workers int) *Scorer {
	return &Scorer{workers: workers}
}

// Find ranks pool by synergy with source. Limit is clamped to [1, MaxLimit],
// with <= 0 meaning DefaultLimit.
func (s *Scorer) Find(ctx context.Context, source *cards.Card, pool []*cards.Card, limit int) ([]scoring.Match, error) {
	return scoring.Rank(ctx, s, source, pool, scoring.Options{
		Threshold: Threshold,
		Limit:     clampLimit(limit),
		Workers:   s.workers,
	})
}

// Score evaluates a single pair. It is pure and safe for concurrent use.
func (s *Scorer) Score(source, candidate *cards.Card) scoring.Match {
	a, b := newProfile(source), newProfile(candidate)

	score := 0
	var reasons []string

	for _, r := range rules {
		if r.applies(a, b) {
			score += r.Weight
			reasons = append(reasons, r.Reason)
		}
	}

	if name, ok := sharedTribe(a, b); ok {
		score += TribalWeight
		reasons = append(reasons, fmt.Sprintf("shared creature type: %s", name))
	}

	for _, c := range combos {
		if c.applies(a, b) {
			score += ComboWeight
			reasons = append([]string{c.Reason}, reasons...)
			break
		}
	}

	return scoring.Match{
		Card:    candidate,
		Score:   scoring.Clamp(score),
		Reasons: reasons,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// profile is the pre-lowered view of a card the rules run against.
type profile struct {
	text          string
	typeLine      string
	mv            float64
	subtypes      map[string]bool
	creatureTyped bool
	changeling    bool
}

func newProfile(c *cards.Card) *profile {
	// Self-references would otherwise read as tribal mentions ("Goblin Guide attacks").
	text := replaceName(c.Text(), strings.ToLower(c.Name))

	typeLine := c.Type()
	p := &profile{
		text:          text,
		typeLine:      typeLine,
		mv:            c.CMC,
		subtypes:      make(map[string]bool),
		creatureTyped: strings.Contains(typeLine, "creature") || strings.Contains(typeLine, "kindred") || strings.Contains(typeLine, "tribal"),
		changeling:    changelingRe.MatchString(text),
	}
	for _, st := range c.Subtypes() {
		p.subtypes[st] = true
	}
	return p
}

// replaceName substitutes "~" for whole-word occurrences of name in text, so
// "Opt" leaves "adopt" alone.
func replaceName(text, name string) string {
	if name == "" {
		return text
	}

	var b strings.Builder
	last := 0
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], name)
		if i < 0 {
			break
		}
		start, end := from+i, from+i+len(name)
		if wordEdge(text, start-1, name[0]) && wordEdge(text, end, name[len(name)-1]) {
			b.WriteString(text[last:start])
			b.WriteByte('~')
			last = end
			from = end
			continue
		}
		from = start + 1
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// wordEdge reports whether the byte at i of text does not extend the word that
// edge (the first or last byte of the name) belongs to.
func wordEdge(text string, i int, edge byte) bool {
	if i < 0 || i >= len(text) || !isWordByte(edge) {
		return true
	}
	return !isWordByte(text[i])
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c >= 0x80
}
