// Package repository implements the SQL data access for the catalog, cache,
// recommendation, theme and vote tables.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
)

// timeLayout is how timestamps are stored in DATETIME columns.
const timeLayout = "2006-01-02 15:04:05.999999"

// CardRepository reads and writes the card catalog.
type CardRepository interface {
	// GetCard returns the card with id, or nil if it does not exist.
	GetCard(ctx context.Context, id string) (*cards.Card, error)

	// GetRandomCard returns any card, or nil if the catalog is empty.
	GetRandomCard(ctx context.Context) (*cards.Card, error)

	// ScanCards returns up to limit cards ordered by id, skipping excludeID
	// and cards rejected by keep (nil keeps all). The limit counts kept cards
	// only; a limit <= 0 returns every kept card.
	ScanCards(ctx context.Context, excludeID string, limit int, keep func(*cards.Card) bool) ([]*cards.Card, error)

	// Each streams cards whose name contains name (case-insensitive; empty
	// matches all) in name order. Iteration stops at the first error from fn.
	Each(ctx context.Context, name string, fn func(*cards.Card) error) error

	// UpsertCards inserts or replaces cards in one transaction.
	UpsertCards(ctx context.Context, batch []*cards.Card) error

	// Count returns the number of stored cards.
	Count(ctx context.Context) (int, error)
}

type cardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *sql.DB) CardRepository {
	return &cardRepository{db: db}
}

const cardColumns = `
	id, oracle_id, name, type_line, mana_cost, cmc, colors, color_identity, keywords,
	rarity, set_code, set_name, power, toughness, loyalty, oracle_text, image_uri,
	prices, legalities, updated_at`

// parseTime reads a stored timestamp. The sqlite driver may hand DATETIME
// columns back already converted, in which case database/sql formats them as
// RFC 3339.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*cards.Card, error) {
	card := &cards.Card{}
	var oracleID sql.NullString
	var colors, identity, keywords, prices, legalities, updatedAt string

	err := row.Scan(
		&card.ID, &oracleID, &card.Name, &card.TypeLine, &card.ManaCost, &card.CMC,
		&colors, &identity, &keywords,
		&card.Rarity, &card.SetCode, &card.SetName,
		&card.Power, &card.Toughness, &card.Loyalty, &card.OracleText, &card.ImageURI,
		&prices, &legalities, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.OracleID = oracleID.String
	if err := decodeColumns(
		column{"colors", colors, &card.Colors},
		column{"color_identity", identity, &card.ColorIdentity},
		column{"keywords", keywords, &card.Keywords},
		column{"prices", prices, &card.Prices},
		column{"legalities", legalities, &card.Legalities},
	); err != nil {
		return nil, fmt.Errorf("card %s: %w", card.ID, err)
	}
	card.UpdatedAt = parseTime(updatedAt)

	return card, nil
}

type column struct {
	name string
	raw  string
	dest any
}

func decodeColumns(cols ...column) error {
	for _, c := range cols {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dest); err != nil {
			return fmt.Errorf("failed to decode %s: %w", c.name, err)
		}
	}
	return nil
}

// GetCard returns the card with id, or nil if it does not exist.
func (r *cardRepository) GetCard(ctx context.Context, id string) (*cards.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = ?`

	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// GetRandomCard returns any card, or nil if the catalog is empty.
func (r *cardRepository) GetRandomCard(ctx context.Context) (*cards.Card, error) {
	// Offset into the rowid range instead of ORDER BY RANDOM(), which sorts the table.
	query := `SELECT ` + cardColumns + ` FROM cards
		LIMIT 1 OFFSET (ABS(RANDOM()) % MAX((SELECT COUNT(*) FROM cards), 1))`

	card, err := scanCard(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get random card: %w", err)
	}
	return card, nil
}

// ScanCards returns up to limit kept cards ordered by id, skipping excludeID.
func (r *cardRepository) ScanCards(ctx context.Context, excludeID string, limit int, keep func(*cards.Card) bool) ([]*cards.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id <> ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*cards.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		if keep != nil && !keep(card) {
			continue
		}
		out = append(out, card)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return out, nil
}

// Each streams matching cards to fn in name order.
func (r *cardRepository) Each(ctx context.Context, name string, fn func(*cards.Card) error) error {
	query := `SELECT ` + cardColumns + ` FROM cards`
	var args []any
	if name = strings.TrimSpace(name); name != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(name)+"%")
	}
	query += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return fmt.Errorf("failed to scan card row: %w", err)
		}
		if err := fn(card); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate cards: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpsertCards inserts or replaces cards in one transaction.
func (r *cardRepository) UpsertCards(ctx context.Context, batch []*cards.Card) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin card upsert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			oracle_id = excluded.oracle_id,
			name = excluded.name,
			type_line = excluded.type_line,
			mana_cost = excluded.mana_cost,
			cmc = excluded.cmc,
			colors = excluded.colors,
			color_identity = excluded.color_identity,
			keywords = excluded.keywords,
			rarity = excluded.rarity,
			set_code = excluded.set_code,
			set_name = excluded.set_name,
			power = excluded.power,
			toughness = excluded.toughness,
			loyalty = excluded.loyalty,
			oracle_text = excluded.oracle_text,
			image_uri = excluded.image_uri,
			prices = excluded.prices,
			legalities = excluded.legalities,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := time.Now().UTC().Format(timeLayout)
	for _, card := range batch {
		if card == nil || card.ID == "" {
			continue
		}
		encoded, err := encodeColumns(card.Colors, card.ColorIdentity, card.Keywords, card.Prices, card.Legalities)
		if err != nil {
			return fmt.Errorf("failed to encode card %s: %w", card.ID, err)
		}

		updatedAt := now
		if !card.UpdatedAt.IsZero() {
			updatedAt = card.UpdatedAt.UTC().Format(timeLayout)
		}

		_, err = stmt.ExecContext(ctx,
			card.ID, nullString(card.OracleID), card.Name, card.TypeLine, card.ManaCost, card.CMC,
			encoded[0], encoded[1], encoded[2],
			card.Rarity, card.SetCode, card.SetName,
			card.Power, card.Toughness, card.Loyalty, card.OracleText, card.ImageURI,
			encoded[3], encoded[4], updatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card upsert: %w", err)
	}
	return nil
}

// encodeColumns marshals values to JSON text. Nil slices and maps are stored
// as empty containers.
func encodeColumns(values ...any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		switch s := string(b); s {
		case "null":
			switch v.(type) {
			case map[string]string:
				out[i] = "{}"
			default:
				out[i] = "[]"
			}
		default:
			out[i] = s
		}
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Count returns the number of stored cards.
func (r *cardRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}
