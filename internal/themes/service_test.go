package themes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardsynergy/internal/llm"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
)

type cardMap map[string]*cards.Card

func (m cardMap) GetCards(_ context.Context, ids []string) (map[string]*cards.Card, error) {
	out := make(map[string]*cards.Card, len(ids))
	for _, id := range ids {
		if c, ok := m[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// countingGenerator answers every prompt with the same text.
type countingGenerator struct {
	answer string
	err    error
	calls  atomic.Int32
}

func (g *countingGenerator) Generate(context.Context, string) (string, error) {
	g.calls.Add(1)
	return g.answer, g.err
}

var (
	goblinMaker = &cards.Card{ID: "gob", Name: "Krenko's Command", TypeLine: "Sorcery", Colors: []string{"R"}, ColorIdentity: []string{"R"},
		OracleText: "Create two 1/1 red Goblin creature tokens."}
	elfMaker = &cards.Card{ID: "elf", Name: "Elvish Warmaster", TypeLine: "Creature — Elf Warrior", Colors: []string{"G"}, ColorIdentity: []string{"G"},
		OracleText: "Whenever one or more other Elves enter the battlefield under your control, create a 1/1 green Elf Warrior creature token."}
	spiritMaker = &cards.Card{ID: "spi", Name: "Spectral Procession", TypeLine: "Sorcery", Colors: []string{"W"}, ColorIdentity: []string{"W"},
		OracleText: "Create three 1/1 white Spirit creature tokens with flying."}
)

func newTestService(t *testing.T, gen llm.Generator) (*Service, repository.ThemeRepository) {
	t.Helper()
	db := storage.NewTestDB(t)
	repo := repository.NewThemeRepository(db.Conn())
	resolver := cardMap{goblinMaker.ID: goblinMaker, elfMaker.ID: elfMaker, spiritMaker.ID: spiritMaker}
	return NewService(repo, NewClassifier(gen, time.Second), resolver, nil), repo
}

func TestClassifier_GeneratorFailureIsEmpty(t *testing.T) {
	c := NewClassifier(llm.Failing(), time.Second)

	proposals, ok := c.Classify(context.Background(), goblinMaker)
	assert.False(t, ok)
	assert.NotNil(t, proposals)
	assert.Empty(t, proposals)
}

func TestClassifier_Timeout(t *testing.T) {
	slow := llm.Func(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := NewClassifier(slow, 10*time.Millisecond)

	start := time.Now()
	proposals, ok := c.Classify(context.Background(), goblinMaker)
	assert.False(t, ok)
	assert.Empty(t, proposals)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClassifier_OneCall(t *testing.T) {
	gen := &countingGenerator{answer: "Tokens: 85%\nGoblins: 60%\nGo Wide: 55%\nAggro: 50%"}
	c := NewClassifier(gen, time.Second)

	proposals, ok := c.Classify(context.Background(), goblinMaker)
	require.True(t, ok)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, []Proposal{{"Tokens", 85}, {"Goblins", 60}, {"Go Wide", 55}}, proposals)
}

func TestService_ThemesPersistAndCache(t *testing.T) {
	gen := &countingGenerator{answer: "Tokens: 85%\nGoblins: 60%"}
	svc, repo := newTestService(t, gen)
	ctx := context.Background()

	got, err := svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tokens", got[0].ThemeName)
	assert.Equal(t, 85, got[0].Confidence)
	assert.Equal(t, 85, got[0].BaseConfidence)

	again, err := svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, int32(1), gen.calls.Load(), "classification is stored per card")

	marker, err := repo.GetClassification(ctx, goblinMaker.ID)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, 2, marker.ThemeCount)
}

func TestService_FailurePersistsNothing(t *testing.T) {
	gen := &countingGenerator{err: llm.ErrUnavailable}
	svc, repo := newTestService(t, gen)
	ctx := context.Background()

	got, err := svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)
	assert.Empty(t, got)

	marker, err := repo.GetClassification(ctx, goblinMaker.ID)
	require.NoError(t, err)
	assert.Nil(t, marker)

	_, err = svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gen.calls.Load(), "failed classification is retried")
}

func TestService_ZeroThemesStillMarked(t *testing.T) {
	gen := &countingGenerator{answer: "Nothing fits."}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := svc.Themes(ctx, goblinMaker)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestService_ConcurrentFirstRequestsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	gen := llm.Func(func(context.Context, string) (string, error) {
		calls.Add(1)
		<-release
		return "Tokens: 70%", nil
	})
	svc, _ := newTestService(t, gen)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Themes(context.Background(), goblinMaker)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func seedTokens(t *testing.T, repo repository.ThemeRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.SaveClassification(ctx, goblinMaker.ID, []*models.ThemeAssignment{{ThemeName: "Tokens", BaseConfidence: 90}}))
	require.NoError(t, repo.SaveClassification(ctx, elfMaker.ID, []*models.ThemeAssignment{{ThemeName: "Tokens", BaseConfidence: 70}}))
	require.NoError(t, repo.SaveClassification(ctx, spiritMaker.ID, []*models.ThemeAssignment{{ThemeName: "Tokens", BaseConfidence: 80}}))
	require.NoError(t, repo.SaveClassification(ctx, "gone", []*models.ThemeAssignment{{ThemeName: "Tokens", BaseConfidence: 95}}))
	require.NoError(t, repo.SaveClassification(ctx, "weak", []*models.ThemeAssignment{{ThemeName: "Tokens", BaseConfidence: 39}}))
}

func ids(cs []*cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestService_CardsForTheme(t *testing.T) {
	svc, repo := newTestService(t, llm.Failing())
	seedTokens(t, repo)
	ctx := context.Background()

	t.Run("cutoff, order, exclusion and stale entries", func(t *testing.T) {
		got, err := svc.CardsForTheme(ctx, "tokens", goblinMaker.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"spi", "elf"}, ids(got))
	})

	t.Run("filter applied", func(t *testing.T) {
		got, err := svc.CardsForTheme(ctx, "Tokens", "", &filter.Filter{Colors: []string{"green"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"elf"}, ids(got))
	})

	t.Run("malformed filter fails open", func(t *testing.T) {
		got, err := svc.CardsForTheme(ctx, "Tokens", "", &filter.Filter{Colors: []string{"plaid"}})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("unknown theme", func(t *testing.T) {
		got, err := svc.CardsForTheme(ctx, "Cosmic Horror", "", nil)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("config cutoff", func(t *testing.T) {
		svc.SetConfig(&ServiceConfig{MinConfidence: 85, CardLimit: 10})
		defer svc.SetConfig(DefaultServiceConfig())

		got, err := svc.CardsForTheme(ctx, "Tokens", "", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"gob"}, ids(got))
	})
}

func TestService_SuggestionsFilterOnlyCountsMatches(t *testing.T) {
	svc, repo := newTestService(t, llm.Failing())
	seedTokens(t, repo)
	ctx := context.Background()

	all, err := svc.Suggestions(ctx, goblinMaker, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Tokens", all[0].Assignment.ThemeName)
	assert.NotEmpty(t, all[0].Description)
	assert.Equal(t, 2, all[0].MatchingCards)

	white, err := svc.Suggestions(ctx, goblinMaker, &filter.Filter{Colors: []string{"W"}})
	require.NoError(t, err)
	require.Len(t, white, 1, "the filter never hides the card's own themes")
	assert.Equal(t, 1, white[0].MatchingCards)
}

func TestService_Reset(t *testing.T) {
	gen := &countingGenerator{answer: "Tokens: 85%"}
	svc, repo := newTestService(t, gen)
	ctx := context.Background()

	_, err := svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)

	n, err := svc.Reset(ctx, goblinMaker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	marker, err := repo.GetClassification(ctx, goblinMaker.ID)
	require.NoError(t, err)
	assert.Nil(t, marker)

	_, err = svc.Themes(ctx, goblinMaker)
	require.NoError(t, err)
	assert.Equal(t, int32(2), gen.calls.Load(), "reset cards are classified again")
}

func TestService_RepositoryErrorsPropagate(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := repository.NewThemeRepository(db.Conn())
	svc := NewService(repo, NewClassifier(llm.Failing(), time.Second), cardMap{}, nil)
	require.NoError(t, db.Close())

	_, err := svc.Themes(context.Background(), goblinMaker)
	require.Error(t, err)
	assert.False(t, errors.Is(err, llm.ErrUnavailable))
}
