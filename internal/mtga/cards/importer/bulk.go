// Package importer loads Scryfall card data into the catalog, either from a
// downloaded bulk file or from a live search query.
package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/scryfall"
)

// Store receives imported cards.
type Store interface {
	UpsertCards(ctx context.Context, batch []*cards.Card) error
}

// Searcher pages through Scryfall search results.
type Searcher interface {
	SearchAll(ctx context.Context, query string, fn func([]scryfall.Card) error) error
}

// Options configures an import.
type Options struct {
	// BatchSize is the number of cards written per transaction.
	BatchSize int

	// Progress, when set, is called after each written batch.
	Progress func(imported int)
}

// DefaultOptions returns the default import options.
func DefaultOptions() Options {
	return Options{BatchSize: 500}
}

// Stats summarizes an import.
type Stats struct {
	Processed int
	Imported  int
	Skipped   int
	Errors    int
	Duration  time.Duration
}

// Importer writes Scryfall cards to a Store.
type Importer struct {
	store   Store
	options Options
}

// New creates an importer.
func New(store Store, options Options) *Importer {
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultOptions().BatchSize
	}
	return &Importer{store: store, options: options}
}

// skippedLayouts are Scryfall objects that are not playable cards.
var skippedLayouts = map[string]bool{
	"token":              true,
	"double_faced_token": true,
	"emblem":             true,
	"art_series":         true,
	"vanguard":           true,
	"planar":             true,
	"scheme":             true,
}

func skip(sc *scryfall.Card) bool {
	if sc.ID == "" || sc.Name == "" {
		return true
	}
	if sc.Lang != "" && sc.Lang != "en" {
		return true
	}
	return skippedLayouts[sc.Layout]
}

// ImportFile imports a Scryfall bulk data file: a JSON array of cards,
// optionally gzip-compressed. The array is decoded one element at a time.
// A malformed element is counted and skipped.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bulk file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = bufio.NewReaderSize(file, 256*1024)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return im.ImportReader(ctx, r)
}

// ImportReader imports a JSON array of Scryfall cards from r.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	batch := newBatch(im, stats)

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read bulk file: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("bulk file must contain a JSON array")
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return stats, fmt.Errorf("failed to read card %d: %w", stats.Processed+1, err)
		}
		stats.Processed++

		var sc scryfall.Card
		if err := json.Unmarshal(raw, &sc); err != nil {
			stats.Errors++
			log.Debug().Err(err).Int("index", stats.Processed).Msg("Skipping malformed card")
			continue
		}
		if err := batch.add(ctx, &sc); err != nil {
			return stats, err
		}
	}

	if err := batch.flush(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// ImportQuery imports every card matching a Scryfall search query.
func (im *Importer) ImportQuery(ctx context.Context, client Searcher, query string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	batch := newBatch(im, stats)

	err := client.SearchAll(ctx, query, func(page []scryfall.Card) error {
		for i := range page {
			stats.Processed++
			if err := batch.add(ctx, &page[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to import query %q: %w", query, err)
	}

	if err := batch.flush(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

type batcher struct {
	im    *Importer
	stats *Stats
	cards []*cards.Card
}

func newBatch(im *Importer, stats *Stats) *batcher {
	return &batcher{im: im, stats: stats, cards: make([]*cards.Card, 0, im.options.BatchSize)}
}

func (b *batcher) add(ctx context.Context, sc *scryfall.Card) error {
	if skip(sc) {
		b.stats.Skipped++
		return nil
	}
	b.cards = append(b.cards, cards.FromScryfall(sc))
	if len(b.cards) >= b.im.options.BatchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.cards) == 0 {
		return nil
	}
	if err := b.im.store.UpsertCards(ctx, b.cards); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	b.stats.Imported += len(b.cards)
	if b.im.options.Progress != nil {
		b.im.options.Progress(b.stats.Imported)
	}
	b.cards = b.cards[:0]
	return nil
}
