// Package scoring holds the pieces shared by the pairwise card scorers:
// the Match result, bounded parallel evaluation of a candidate pool and
// deterministic ranking.
package scoring

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
)

// MaxScore caps every pairwise score.
const MaxScore = 100

// Match is the score of one candidate against a source card.
type Match struct {
	Card    *cards.Card `json:"card"`
	Score   int         `json:"score"`
	Reasons []string    `json:"reasons,omitempty"`
}

// CardID returns the candidate's identifier.
func (m Match) CardID() string {
	if m.Card == nil {
		return ""
	}
	return m.Card.ID
}

// Reason joins the contributing reasons into one display string.
func (m Match) Reason() string {
	return strings.Join(m.Reasons, "; ")
}

// PairScorer scores a candidate against a source card. Implementations must be
// pure: the same pair always yields the same Match.
type PairScorer interface {
	Score(source, candidate *cards.Card) Match
}

// Options bound a ranking pass.
type Options struct {
	Threshold int // matches scoring below this are dropped
	Limit     int // maximum results, <= 0 means unbounded
	Workers   int // concurrent evaluations, <= 0 means GOMAXPROCS
}

// Rank scores every candidate in pool against source, drops the source itself,
// nil cards and matches below the threshold, then sorts by score descending and
// card id ascending before truncating to the limit.
func Rank(ctx context.Context, scorer PairScorer, source *cards.Card, pool []*cards.Card, opts Options) ([]Match, error) {
	if source == nil || len(pool) == 0 {
		return nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Each worker writes only its own index, so the slice needs no locking
	// and result order is independent of scheduling.
	results := make([]Match, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, candidate := range pool {
		if candidate == nil || candidate.ID == source.ID {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = scorer.Score(source, candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, m := range results {
		if m.Card == nil || m.Score < opts.Threshold {
			continue
		}
		matches = append(matches, m)
	}

	Sort(matches)

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// Sort orders matches by score descending, breaking ties by card id ascending.
func Sort(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].CardID() < matches[j].CardID()
	})
}

// Clamp bounds a raw score to [0, MaxScore].
func Clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
