package importer

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/scryfall"
)

type recordingStore struct {
	batches [][]*cards.Card
	err     error
}

func (s *recordingStore) UpsertCards(_ context.Context, batch []*cards.Card) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]*cards.Card(nil), batch...))
	return nil
}

func (s *recordingStore) ids() []string {
	var ids []string
	for _, b := range s.batches {
		for _, c := range b {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

const bulkFixture = `[
	{"id": "c1", "name": "Raise the Alarm", "lang": "en", "layout": "normal", "cmc": 2,
	 "type_line": "Instant", "oracle_text": "Create two 1/1 white Soldier creature tokens.",
	 "color_identity": ["W"], "set": "m21", "rarity": "common", "legalities": {"standard": "legal"}},
	{"id": "c2", "name": "Soldier", "lang": "en", "layout": "token", "type_line": "Token Creature — Soldier"},
	{"id": "c3", "name": "Alarme", "lang": "fr", "layout": "normal", "type_line": "Instant"},
	{"id": 42, "name": "Broken"},
	{"id": "c4", "name": "Shock", "lang": "en", "layout": "normal", "cmc": 1,
	 "type_line": "Instant", "oracle_text": "Shock deals 2 damage to any target.", "color_identity": ["R"]},
	{"id": "c5", "name": "Rally the Peasants", "lang": "en", "layout": "normal", "cmc": 3,
	 "type_line": "Instant", "color_identity": ["W"]}
]`

func writeFixture(t *testing.T, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	if gz {
		w := gzip.NewWriter(f)
		_, err = w.Write([]byte(bulkFixture))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return path
	}
	_, err = f.WriteString(bulkFixture)
	require.NoError(t, err)
	return path
}

func TestImportFile(t *testing.T) {
	for _, gz := range []bool{false, true} {
		name := "cards.json"
		if gz {
			name += ".gz"
		}
		t.Run(name, func(t *testing.T) {
			store := &recordingStore{}
			var progress []int
			im := New(store, Options{BatchSize: 2, Progress: func(n int) { progress = append(progress, n) }})

			stats, err := im.ImportFile(context.Background(), writeFixture(t, name, gz))
			require.NoError(t, err)

			assert.Equal(t, 6, stats.Processed)
			assert.Equal(t, 3, stats.Imported)
			assert.Equal(t, 2, stats.Skipped)
			assert.Equal(t, 1, stats.Errors)
			assert.Equal(t, []string{"c1", "c4", "c5"}, store.ids())
			assert.Len(t, store.batches, 2)
			assert.Equal(t, []int{2, 3}, progress)

			first := store.batches[0][0]
			assert.Equal(t, "Raise the Alarm", first.Name)
			assert.Equal(t, []string{"W"}, first.ColorIdentity)
		})
	}
}

func TestImportReader_NotAnArray(t *testing.T) {
	im := New(&recordingStore{}, DefaultOptions())

	_, err := im.ImportReader(context.Background(), strings.NewReader(`{"object": "list"}`))
	assert.Error(t, err)
}

func TestImportReader_StoreError(t *testing.T) {
	im := New(&recordingStore{err: errors.New("disk full")}, DefaultOptions())

	_, err := im.ImportReader(context.Background(), strings.NewReader(bulkFixture))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestImportReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &recordingStore{}
	_, err := New(store, DefaultOptions()).ImportReader(ctx, strings.NewReader(bulkFixture))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.batches)
}

func TestImportFile_Missing(t *testing.T) {
	_, err := New(&recordingStore{}, DefaultOptions()).ImportFile(context.Background(), "/does/not/exist.json")
	assert.Error(t, err)
}

func TestImportQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cards/search", r.URL.Path)
		assert.Equal(t, "o:token", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("page") == "2" {
			_, _ = fmt.Fprint(w, `{"object": "list", "has_more": false, "data": [
				{"id": "q3", "name": "Secure the Wastes", "lang": "en", "layout": "normal", "type_line": "Instant"}
			]}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"object": "list", "has_more": true, "data": [
			{"id": "q1", "name": "Raise the Alarm", "lang": "en", "layout": "normal", "type_line": "Instant"},
			{"id": "q2", "name": "Soldier", "lang": "en", "layout": "token", "type_line": "Token Creature"}
		]}`)
	}))
	defer server.Close()

	client := scryfall.NewClient(scryfall.WithBaseURL(server.URL), scryfall.WithRateLimit(time.Millisecond))
	store := &recordingStore{}

	stats, err := New(store, DefaultOptions()).ImportQuery(context.Background(), client, "o:token")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Imported)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{"q1", "q3"}, store.ids())
}

func TestImportQuery_NoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"object": "error", "code": "not_found", "status": 404, "details": "no cards"}`)
	}))
	defer server.Close()

	client := scryfall.NewClient(scryfall.WithBaseURL(server.URL), scryfall.WithRateLimit(time.Millisecond))
	stats, err := New(&recordingStore{}, DefaultOptions()).ImportQuery(context.Background(), client, "name:nothing")
	require.NoError(t, err)
	assert.Zero(t, stats.Imported)
}
