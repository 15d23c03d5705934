package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

// VoteRepository stores user votes. Uniqueness of (user, target type, target
// id) is enforced by the schema.
type VoteRepository interface {
	// Insert records a vote. It reports false, without error, when the user
	// already voted on the target.
	Insert(ctx context.Context, q DBTX, vote *models.Vote) (bool, error)

	// Get returns the user's vote on a target, or nil.
	Get(ctx context.Context, userID, targetType string, targetID int64) (*models.Vote, error)
}

type voteRepository struct {
	db *sql.DB
}

// NewVoteRepository creates a new vote repository.
func NewVoteRepository(db *sql.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Insert records a vote unless one already exists for the target.
func (r *voteRepository) Insert(ctx context.Context, q DBTX, vote *models.Vote) (bool, error) {
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO votes (id, user_id, target_type, target_id, direction, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, target_type, target_id) DO NOTHING
	`, vote.ID, vote.UserID, vote.TargetType, vote.TargetID, vote.Direction,
		vote.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check inserted vote: %w", err)
	}
	return n == 1, nil
}

// Get returns the user's vote on a target.
func (r *voteRepository) Get(ctx context.Context, userID, targetType string, targetID int64) (*models.Vote, error) {
	vote := &models.Vote{}
	var createdAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, target_type, target_id, direction, created_at
		FROM votes
		WHERE user_id = ? AND target_type = ? AND target_id = ?
	`, userID, targetType, targetID).Scan(
		&vote.ID, &vote.UserID, &vote.TargetType, &vote.TargetID, &vote.Direction, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	vote.CreatedAt = parseTime(createdAt)
	return vote, nil
}
