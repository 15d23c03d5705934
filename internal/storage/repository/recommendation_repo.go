package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

// ScoreFunc recomputes a displayed score from a base score and vote counters.
type ScoreFunc func(base, upvotes, downvotes int) int

// RecommendationRepository persists computed recommendations so they can be
// voted on.
type RecommendationRepository interface {
	// UpsertBatch stores recommendations keyed by (source, recommended, type).
	// Existing rows keep their vote counters; their score is recomputed from
	// the new base score with score. ID, Score and the counters are written
	// back into each element.
	UpsertBatch(ctx context.Context, recs []*models.Recommendation, score ScoreFunc) error

	// GetByID returns a recommendation, or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.Recommendation, error)

	// RecordVote increments a vote counter and returns the updated row, or
	// nil if it does not exist.
	RecordVote(ctx context.Context, q DBTX, id int64, up bool) (*models.Recommendation, error)

	// SetScore stores a recomputed score.
	SetScore(ctx context.Context, q DBTX, id int64, score int) error
}

type recommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a new recommendation repository.
func NewRecommendationRepository(db *sql.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

const recommendationColumns = `id, source_card_id, recommended_card_id, type, base_score, score, reason, upvotes, downvotes, created_at, updated_at`

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	rec := &models.Recommendation{}
	var createdAt, updatedAt string
	err := row.Scan(
		&rec.ID, &rec.SourceCardID, &rec.RecommendedCardID, &rec.Type, &rec.BaseScore, &rec.Score,
		&rec.Reason, &rec.Upvotes, &rec.Downvotes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// UpsertBatch stores recommendations in one transaction.
func (r *recommendationRepository) UpsertBatch(ctx context.Context, recs []*models.Recommendation, score ScoreFunc) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recommendation upsert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	nowStr := now.Format(timeLayout)
	for _, rec := range recs {
		var up, down int
		err := tx.QueryRowContext(ctx, `
			SELECT upvotes, downvotes FROM recommendations
			WHERE source_card_id = ? AND recommended_card_id = ? AND type = ?
		`, rec.SourceCardID, rec.RecommendedCardID, rec.Type).Scan(&up, &down)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read recommendation votes: %w", err)
		}

		current := rec.BaseScore
		if score != nil {
			current = score(rec.BaseScore, up, down)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO recommendations (
				source_card_id, recommended_card_id, type, base_score, score, reason,
				upvotes, downvotes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
			ON CONFLICT(source_card_id, recommended_card_id, type) DO UPDATE SET
				base_score = excluded.base_score,
				score = excluded.score,
				reason = excluded.reason,
				updated_at = excluded.updated_at
			RETURNING id
		`, rec.SourceCardID, rec.RecommendedCardID, rec.Type, rec.BaseScore, current, rec.Reason,
			nowStr, nowStr,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert recommendation: %w", err)
		}

		rec.Score = current
		rec.Upvotes = up
		rec.Downvotes = down
		rec.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendation upsert: %w", err)
	}
	return nil
}

// GetByID returns a recommendation by id.
func (r *recommendationRepository) GetByID(ctx context.Context, id int64) (*models.Recommendation, error) {
	rec, err := scanRecommendation(r.db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

// RecordVote increments a vote counter on the recommendation.
func (r *recommendationRepository) RecordVote(ctx context.Context, q DBTX, id int64, up bool) (*models.Recommendation, error) {
	counter := "downvotes"
	if up {
		counter = "upvotes"
	}
	result, err := q.ExecContext(ctx, `
		UPDATE recommendations SET `+counter+` = `+counter+` + 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("failed to record recommendation vote: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}

	rec, err := scanRecommendation(q.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload recommendation: %w", err)
	}
	return rec, nil
}

// SetScore stores a recomputed score.
func (r *recommendationRepository) SetScore(ctx context.Context, q DBTX, id int64, score int) error {
	if _, err := q.ExecContext(ctx, `UPDATE recommendations SET score = ? WHERE id = ?`, score, id); err != nil {
		return fmt.Errorf("failed to set recommendation score: %w", err)
	}
	return nil
}
