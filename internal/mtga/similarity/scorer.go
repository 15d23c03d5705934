// Package similarity scores how interchangeable two cards are: whether they
// perform the same primary function at a similar cost, type, color identity
// and keyword profile.
package similarity

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/scoring"
)

// Scoring weights for the secondary signals.
const (
	Threshold = 25

	ManaValueExactWeight = 20 // |Δmv| <= 1
	ManaValueNearWeight  = 10 // |Δmv| <= 2
	SameTypeWeight       = 15
	StatLineWeight       = 20 // creatures within ±1 power and ±1 toughness
	IdentityHighWeight   = 15 // overlap >= 0.8
	IdentityMidWeight    = 8  // overlap >= 0.5
	KeywordWeight        = 8  // per shared evergreen keyword

	DefaultLimit = 15
	MaxLimit     = 20
)

// Scorer finds functionally similar cards.
type Scorer struct {
	workers int
}

// NewScorer creates a similarity scorer that evaluates pools with up to
// workers goroutines (<= 0 uses GOMAXPROCS).
func NewScorer(workers int) *Scorer {
	return &Scorer{workers: workers}
}

// Find ranks pool by functional similarity to source.
func (s *Scorer) Find(ctx context.Context, source *cards.Card, pool []*cards.Card, limit int) ([]scoring.Match, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return scoring.Rank(ctx, s, source, pool, scoring.Options{
		Threshold: Threshold,
		Limit:     limit,
		Workers:   s.workers,
	})
}

// Score evaluates a single pair. It is pure and safe for concurrent use.
func (s *Scorer) Score(source, candidate *cards.Card) scoring.Match {
	score := 0
	var reasons []string

	if fa, ok := primaryFunction(source.Text()); ok {
		if fb, ok := primaryFunction(candidate.Text()); ok && fa.Name == fb.Name {
			score += fa.Weight
			reasons = append(reasons, fa.Reason)
		}
	}

	switch diff := math.Abs(source.CMC - candidate.CMC); {
	case diff <= 1:
		score += ManaValueExactWeight
		reasons = append(reasons, "similar mana value")
	case diff <= 2:
		score += ManaValueNearWeight
		reasons = append(reasons, "close mana value")
	}

	if t := source.PrimaryType(); t != "" && t == candidate.PrimaryType() {
		score += SameTypeWeight
		reasons = append(reasons, "both are "+pluralType(t))
		if t == "creature" && statsClose(source, candidate) {
			score += StatLineWeight
			reasons = append(reasons, "similar power and toughness")
		}
	}

	switch overlap := IdentityOverlap(source.ColorIdentity, candidate.ColorIdentity); {
	case overlap >= 0.8:
		score += IdentityHighWeight
		reasons = append(reasons, "matching color identity")
	case overlap >= 0.5:
		score += IdentityMidWeight
		reasons = append(reasons, "overlapping color identity")
	}

	if shared := SharedKeywords(source, candidate); len(shared) > 0 {
		score += KeywordWeight * len(shared)
		reasons = append(reasons, fmt.Sprintf("shared keywords: %s", strings.Join(shared, ", ")))
	}

	return scoring.Match{
		Card:    candidate,
		Score:   scoring.Clamp(score),
		Reasons: reasons,
	}
}

func pluralType(t string) string {
	if t == "sorcery" {
		return "sorceries"
	}
	return t + "s"
}

func statsClose(a, b *cards.Card) bool {
	ap, ok1 := a.PowerValue()
	bp, ok2 := b.PowerValue()
	at, ok3 := a.ToughnessValue()
	bt, ok4 := b.ToughnessValue()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return abs(ap-bp) <= 1 && abs(at-bt) <= 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// IdentityOverlap is the Jaccard ratio of two color identities. Two colorless
// identities overlap completely.
func IdentityOverlap(a, b []string) float64 {
	setA := colorSet(a)
	setB := colorSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for c := range setA {
		if setB[c] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func colorSet(colors []string) map[string]bool {
	out := make(map[string]bool, len(colors))
	for _, c := range colors {
		out[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return out
}

// SharedKeywords returns the evergreen keywords both cards have, sorted.
func SharedKeywords(a, b *cards.Card) []string {
	ka := keywords(a)
	kb := keywords(b)

	var shared []string
	for kw := range ka {
		if kb[kw] {
			shared = append(shared, kw)
		}
	}
	slices.Sort(shared)
	return shared
}

var reminderText = regexp.MustCompile(`\([^)]*\)`)

// keywords collects evergreen keywords from the card's keyword list and from
// keyword-only lines of its rules text ("Flying, vigilance"). Mentions inside
// sentences ("can block creatures with flying") are not abilities and are skipped.
func keywords(c *cards.Card) map[string]bool {
	out := make(map[string]bool)
	for _, kw := range c.Keywords {
		if kw = strings.ToLower(kw); evergreen[kw] {
			out[kw] = true
		}
	}

	for _, line := range strings.Split(c.Text(), "\n") {
		line = strings.TrimSpace(reminderText.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		parts := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ';' })
		found := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if !evergreen[part] {
				found = nil
				break
			}
			found = append(found, part)
		}
		for _, kw := range found {
			out[kw] = true
		}
	}
	return out
}
