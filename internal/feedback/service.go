// Package feedback records user votes on theme assignments and
// recommendations and folds them into the stored confidence.
package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/metrics"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
)

var (
	// ErrDuplicateVote is returned when the user already voted on the target.
	// Nothing is changed.
	ErrDuplicateVote = errors.New("user has already voted on this target")

	// ErrNotFound is returned when the vote target does not exist.
	ErrNotFound = errors.New("vote target not found")

	// ErrInvalidVote is returned for an unknown target type or direction, or
	// a missing user id.
	ErrInvalidVote = errors.New("invalid vote")
)

// Confidence bounds after vote adjustment.
const (
	MinAdjusted = 10
	MaxAdjusted = 100
)

// AdjustConfidence dampens or boosts a base confidence by the share of
// upvotes: clamp(round(base * (0.7 + 0.6*up/(up+down))), 10, 100). With no
// votes the base is returned unchanged.
func AdjustConfidence(base, up, down int) int {
	total := up + down
	if total <= 0 {
		return base
	}
	ratio := float64(up) / float64(total)
	adjusted := int(math.Round(float64(base) * (0.7 + 0.6*ratio)))
	switch {
	case adjusted < MinAdjusted:
		return MinAdjusted
	case adjusted > MaxAdjusted:
		return MaxAdjusted
	}
	return adjusted
}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn storage.TxFunc) error
}

// Request is a validated vote.
type Request struct {
	UserID     string `validate:"required,max=128"`
	TargetType string `validate:"required,oneof=theme recommendation"`
	TargetID   int64  `validate:"gt=0"`
	Direction  string `validate:"required,oneof=up down"`
}

// Result describes the target after a recorded vote.
type Result struct {
	Vote       *models.Vote `json:"vote"`
	Confidence int          `json:"confidence"`
	Upvotes    int          `json:"upvotes"`
	Downvotes  int          `json:"downvotes"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Service records votes.
type Service struct {
	db     Transactor
	votes  repository.VoteRepository
	themes repository.ThemeRepository
	recs   repository.RecommendationRepository
}

// NewService creates a vote service.
func NewService(db Transactor, votes repository.VoteRepository, themes repository.ThemeRepository, recs repository.RecommendationRepository) *Service {
	return &Service{
		db:     db,
		votes:  votes,
		themes: themes,
		recs:   recs,
	}
}

// Vote records one vote and recomputes the target's confidence in a single
// transaction. The (user, target type, target id) uniqueness is enforced by
// the database, so concurrent duplicates cannot both succeed.
func (s *Service) Vote(ctx context.Context, req Request) (*Result, error) {
	if err := validatorInstance().Struct(req); err != nil {
		metrics.RecordVote(req.TargetType, "invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidVote, err)
	}

	vote := &models.Vote{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Direction:  req.Direction,
		CreatedAt:  time.Now().UTC(),
	}
	up := req.Direction == models.VoteUp

	var result *Result
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		inserted, err := s.votes.Insert(ctx, tx, vote)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicateVote
		}

		switch req.TargetType {
		case models.TargetTheme:
			result, err = s.voteTheme(ctx, tx, req.TargetID, up)
		default:
			result, err = s.voteRecommendation(ctx, tx, req.TargetID, up)
		}
		return err
	})

	switch {
	case errors.Is(err, ErrDuplicateVote):
		metrics.RecordVote(req.TargetType, "duplicate")
		return nil, err
	case errors.Is(err, ErrNotFound):
		metrics.RecordVote(req.TargetType, "not_found")
		return nil, err
	case err != nil:
		metrics.RecordVote(req.TargetType, "error")
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	metrics.RecordVote(req.TargetType, "recorded")
	result.Vote = vote
	log.Debug().
		Str("target_type", req.TargetType).
		Int64("target_id", req.TargetID).
		Str("direction", req.Direction).
		Int("confidence", result.Confidence).
		Msg("Recorded vote")
	return result, nil
}

func (s *Service) voteTheme(ctx context.Context, tx *sql.Tx, id int64, up bool) (*Result, error) {
	a, err := s.themes.RecordVote(ctx, tx, id, up)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	confidence := AdjustConfidence(a.BaseConfidence, a.Upvotes, a.Downvotes)
	if err := s.themes.SetConfidence(ctx, tx, id, confidence); err != nil {
		return nil, err
	}
	return &Result{Confidence: confidence, Upvotes: a.Upvotes, Downvotes: a.Downvotes}, nil
}

func (s *Service) voteRecommendation(ctx context.Context, tx *sql.Tx, id int64, up bool) (*Result, error) {
	rec, err := s.recs.RecordVote(ctx, tx, id, up)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	score := AdjustConfidence(rec.BaseScore, rec.Upvotes, rec.Downvotes)
	if err := s.recs.SetScore(ctx, tx, id, score); err != nil {
		return nil, err
	}
	return &Result{Confidence: score, Upvotes: rec.Upvotes, Downvotes: rec.Downvotes}, nil
}

// HasVoted returns the user's vote on a target, or nil. It never writes.
func (s *Service) HasVoted(ctx context.Context, userID, targetType string, targetID int64) (*models.Vote, error) {
	if userID == "" {
		return nil, nil
	}
	if targetType != models.TargetTheme && targetType != models.TargetRecommendation {
		return nil, fmt.Errorf("%w: unknown target type %q", ErrInvalidVote, targetType)
	}
	return s.votes.Get(ctx, userID, targetType, targetID)
}
