package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repository methods can
// take part in a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ThemeRepository stores theme assignments and classification markers.
type ThemeRepository interface {
	// GetByCard returns a card's assignments, highest confidence first.
	GetByCard(ctx context.Context, cardID string) ([]*models.ThemeAssignment, error)

	// GetByID returns an assignment, or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.ThemeAssignment, error)

	// GetClassification returns the classification marker for a card, or nil.
	GetClassification(ctx context.Context, cardID string) (*models.ThemeClassification, error)

	// SaveClassification inserts assignments (existing (card, theme) pairs are
	// kept) and records the classification marker in one transaction.
	SaveClassification(ctx context.Context, cardID string, assignments []*models.ThemeAssignment) error

	// GetCardsForTheme returns assignments for a theme with confidence at or
	// above minConfidence, ordered by confidence desc then card id.
	GetCardsForTheme(ctx context.Context, themeName string, minConfidence, limit int) ([]*models.ThemeAssignment, error)

	// Reset deletes assignments, markers and theme votes for one card, or for
	// every card when cardID is empty. It returns the number of assignments removed.
	Reset(ctx context.Context, cardID string) (int64, error)

	// RecordVote increments a counter on the assignment and returns the
	// updated row, or nil if it does not exist.
	RecordVote(ctx context.Context, q DBTX, id int64, up bool) (*models.ThemeAssignment, error)

	// SetConfidence stores a recomputed confidence.
	SetConfidence(ctx context.Context, q DBTX, id int64, confidence int) error
}

type themeRepository struct {
	db *sql.DB
}

// NewThemeRepository creates a new theme repository.
func NewThemeRepository(db *sql.DB) ThemeRepository {
	return &themeRepository{db: db}
}

const themeColumns = `id, card_id, theme_name, base_confidence, confidence, upvotes, downvotes, vote_count, created_at, updated_at`

func scanTheme(row rowScanner) (*models.ThemeAssignment, error) {
	a := &models.ThemeAssignment{}
	var createdAt, updatedAt string
	err := row.Scan(
		&a.ID, &a.CardID, &a.ThemeName, &a.BaseConfidence, &a.Confidence,
		&a.Upvotes, &a.Downvotes, &a.VoteCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func queryThemes(ctx context.Context, q DBTX, query string, args ...any) ([]*models.ThemeAssignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.ThemeAssignment
	for rows.Next() {
		a, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetByCard returns a card's assignments.
func (r *themeRepository) GetByCard(ctx context.Context, cardID string) ([]*models.ThemeAssignment, error) {
	query := `SELECT ` + themeColumns + ` FROM theme_assignments
		WHERE card_id = ?
		ORDER BY confidence DESC, theme_name`

	themes, err := queryThemes(ctx, r.db, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get themes for card: %w", err)
	}
	return themes, nil
}

// GetByID returns an assignment by id.
func (r *themeRepository) GetByID(ctx context.Context, id int64) (*models.ThemeAssignment, error) {
	query := `SELECT ` + themeColumns + ` FROM theme_assignments WHERE id = ?`

	a, err := scanTheme(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme assignment: %w", err)
	}
	return a, nil
}

// GetClassification returns the classification marker for a card.
func (r *themeRepository) GetClassification(ctx context.Context, cardID string) (*models.ThemeClassification, error) {
	c := &models.ThemeClassification{}
	var classifiedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT card_id, theme_count, classified_at FROM theme_classifications WHERE card_id = ?`, cardID,
	).Scan(&c.CardID, &c.ThemeCount, &classifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme classification: %w", err)
	}
	c.ClassifiedAt = parseTime(classifiedAt)
	return c, nil
}

// SaveClassification stores the result of a successful classification.
func (r *themeRepository) SaveClassification(ctx context.Context, cardID string, assignments []*models.ThemeAssignment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin theme save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(timeLayout)
	for _, a := range assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO theme_assignments (
				card_id, theme_name, base_confidence, confidence, upvotes, downvotes, vote_count, created_at, updated_at
			) VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?)
			ON CONFLICT(card_id, theme_name) DO NOTHING
		`, cardID, a.ThemeName, a.BaseConfidence, a.BaseConfidence, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert theme assignment: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO theme_classifications (card_id, theme_count, classified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			theme_count = excluded.theme_count,
			classified_at = excluded.classified_at
	`, cardID, len(assignments), now)
	if err != nil {
		return fmt.Errorf("failed to record theme classification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit theme save: %w", err)
	}
	return nil
}

// GetCardsForTheme returns assignments for a theme above a confidence cutoff.
func (r *themeRepository) GetCardsForTheme(ctx context.Context, themeName string, minConfidence, limit int) ([]*models.ThemeAssignment, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + themeColumns + ` FROM theme_assignments
		WHERE theme_name = ? COLLATE NOCASE AND confidence >= ?
		ORDER BY confidence DESC, card_id
		LIMIT ?`

	themes, err := queryThemes(ctx, r.db, query, themeName, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for theme: %w", err)
	}
	return themes, nil
}

// Reset deletes theme data for one card or all cards.
func (r *themeRepository) Reset(ctx context.Context, cardID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin theme reset: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	where, args := "", []any{}
	if cardID != "" {
		where, args = " WHERE card_id = ?", []any{cardID}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM votes WHERE target_type = 'theme'
		AND target_id IN (SELECT id FROM theme_assignments`+where+`)`, args...); err != nil {
		return 0, fmt.Errorf("failed to delete theme votes: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM theme_assignments`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete theme assignments: %w", err)
	}
	removed, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM theme_classifications`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to delete theme classifications: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit theme reset: %w", err)
	}
	return removed, nil
}

// RecordVote increments a vote counter on the assignment.
func (r *themeRepository) RecordVote(ctx context.Context, q DBTX, id int64, up bool) (*models.ThemeAssignment, error) {
	counter := "downvotes"
	if up {
		counter = "upvotes"
	}
	result, err := q.ExecContext(ctx, `
		UPDATE theme_assignments
		SET `+counter+` = `+counter+` + 1, vote_count = vote_count + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("failed to record theme vote: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}

	a, err := scanTheme(q.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM theme_assignments WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload theme assignment: %w", err)
	}
	return a, nil
}

// SetConfidence stores a recomputed confidence.
func (r *themeRepository) SetConfidence(ctx context.Context, q DBTX, id int64, confidence int) error {
	if _, err := q.ExecContext(ctx,
		`UPDATE theme_assignments SET confidence = ? WHERE id = ?`, confidence, id,
	); err != nil {
		return fmt.Errorf("failed to set theme confidence: %w", err)
	}
	return nil
}
