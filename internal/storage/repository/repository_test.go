package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
)

func strPtr(s string) *string { return &s }

func testCards() []*cards.Card {
	return []*cards.Card{
		{
			ID: "c-3", Name: "Llanowar Elves", TypeLine: "Creature — Elf Druid", ManaCost: "{G}", CMC: 1,
			Colors: []string{"G"}, ColorIdentity: []string{"G"}, Rarity: "common", SetCode: "dom", SetName: "Dominaria",
			Power: strPtr("1"), Toughness: strPtr("1"), OracleText: "{T}: Add {G}.",
			Legalities: map[string]string{"modern": "legal", "standard": "not_legal"},
			Prices:     cards.Prices{USD: strPtr("0.25")},
		},
		{
			ID: "c-1", Name: "Shock", TypeLine: "Instant", ManaCost: "{R}", CMC: 1,
			Colors: []string{"R"}, ColorIdentity: []string{"R"}, Rarity: "common", SetCode: "m21",
			OracleText: "Shock deals 2 damage to any target.",
		},
		{
			ID: "c-2", Name: "Elvish Mystic", TypeLine: "Creature — Elf Druid", CMC: 1,
			Keywords: []string{}, SetCode: "m14",
		},
	}
}

func newCardRepo(t *testing.T) (CardRepository, *storage.DB) {
	t.Helper()
	db := storage.NewTestDB(t)
	repo := NewCardRepository(db.Conn())
	require.NoError(t, repo.UpsertCards(context.Background(), testCards()))
	return repo, db
}

func TestCardRepository_GetCard(t *testing.T) {
	repo, _ := newCardRepo(t)
	ctx := context.Background()

	card, err := repo.GetCard(ctx, "c-3")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "Llanowar Elves", card.Name)
	assert.Equal(t, []string{"G"}, card.ColorIdentity)
	assert.Equal(t, "1", *card.Power)
	assert.True(t, card.IsLegal("modern"))
	assert.False(t, card.IsLegal("standard"))
	require.NotNil(t, card.Prices.USD)
	assert.Equal(t, "0.25", *card.Prices.USD)
	assert.False(t, card.UpdatedAt.IsZero())

	missing, err := repo.GetCard(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCardRepository_UpsertReplaces(t *testing.T) {
	repo, _ := newCardRepo(t)
	ctx := context.Background()

	updated := testCards()[1]
	updated.OracleText = "Shock deals 2 damage to any target. (errata)"
	require.NoError(t, repo.UpsertCards(ctx, []*cards.Card{updated}))

	card, err := repo.GetCard(ctx, "c-1")
	require.NoError(t, err)
	assert.Contains(t, card.OracleText, "errata")

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCardRepository_ScanCards(t *testing.T) {
	repo, _ := newCardRepo(t)
	ctx := context.Background()

	all, err := repo.ScanCards(ctx, "", 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c-1", "c-2", "c-3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	some, err := repo.ScanCards(ctx, "c-1", 1, nil)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "c-2", some[0].ID)

	// The limit applies after keep, so a card past the first rows still makes it in.
	kept, err := repo.ScanCards(ctx, "", 1, func(c *cards.Card) bool { return c.ID == "c-3" })
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "c-3", kept[0].ID)
}

func TestCardRepository_Each(t *testing.T) {
	repo, _ := newCardRepo(t)
	ctx := context.Background()

	var names []string
	err := repo.Each(ctx, "elv", func(c *cards.Card) error {
		names = append(names, c.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Elvish Mystic", "Llanowar Elves"}, names)

	names = nil
	require.NoError(t, repo.Each(ctx, "100%", func(c *cards.Card) error {
		names = append(names, c.Name)
		return nil
	}))
	assert.Empty(t, names, "LIKE wildcards in the query are literal")
}

func TestCardRepository_GetRandomCard(t *testing.T) {
	repo, _ := newCardRepo(t)

	card, err := repo.GetRandomCard(context.Background())
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Contains(t, []string{"c-1", "c-2", "c-3"}, card.ID)

	empty := NewCardRepository(storage.NewTestDB(t).Conn())
	card, err = empty.GetRandomCard(context.Background())
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestCacheRepository(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewCacheRepository(db.Conn()).(*cacheRepository)
	ctx := context.Background()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Put(ctx, "card:1", []byte(`{"id":"1"}`), time.Hour))

	entry, err := repo.Get(ctx, "card:1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte(`{"id":"1"}`), entry.Payload)
	assert.Equal(t, 1, entry.AccessCount)

	entry, err = repo.Get(ctx, "card:1")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.AccessCount)

	t.Run("last writer wins", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "card:1", []byte(`{"id":"1","v":2}`), time.Hour))
		entry, err := repo.Get(ctx, "card:1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"1","v":2}`), entry.Payload)
	})

	t.Run("expired entries are absent", func(t *testing.T) {
		now = now.Add(time.Hour)
		entry, err := repo.Get(ctx, "card:1")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("missing", func(t *testing.T) {
		entry, err := repo.Get(ctx, "card:404")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("purge removes only expired", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, "search:fresh", []byte(`[]`), time.Hour))

		removed, err := repo.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		entry, err := repo.Get(ctx, "search:fresh")
		require.NoError(t, err)
		assert.NotNil(t, entry)
	})
}

func TestThemeRepository(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewThemeRepository(db.Conn())
	votes := NewVoteRepository(db.Conn())
	ctx := context.Background()

	marker, err := repo.GetClassification(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, marker)

	require.NoError(t, repo.SaveClassification(ctx, "c-1", []*models.ThemeAssignment{
		{ThemeName: "Elves", BaseConfidence: 90},
		{ThemeName: "Ramp", BaseConfidence: 60},
	}))
	require.NoError(t, repo.SaveClassification(ctx, "c-2", []*models.ThemeAssignment{
		{ThemeName: "Elves", BaseConfidence: 90},
	}))
	require.NoError(t, repo.SaveClassification(ctx, "c-3", nil))

	marker, err = repo.GetClassification(ctx, "c-3")
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, 0, marker.ThemeCount)

	themes, err := repo.GetByCard(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, themes, 2)
	assert.Equal(t, "Elves", themes[0].ThemeName)
	assert.Equal(t, 90, themes[0].Confidence)

	t.Run("cards for theme ordered and cut off", func(t *testing.T) {
		elves, err := repo.GetCardsForTheme(ctx, "elves", 40, 0)
		require.NoError(t, err)
		require.Len(t, elves, 2)
		assert.Equal(t, "c-1", elves[0].CardID)
		assert.Equal(t, "c-2", elves[1].CardID)

		ramp, err := repo.GetCardsForTheme(ctx, "Ramp", 70, 10)
		require.NoError(t, err)
		assert.Empty(t, ramp)
	})

	t.Run("record vote", func(t *testing.T) {
		a, err := repo.RecordVote(ctx, db.Conn(), themes[1].ID, true)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, 1, a.Upvotes)
		assert.Equal(t, 1, a.VoteCount)

		require.NoError(t, repo.SetConfidence(ctx, db.Conn(), a.ID, 78))
		a, err = repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 78, a.Confidence)
		assert.Equal(t, 60, a.BaseConfidence)

		missing, err := repo.RecordVote(ctx, db.Conn(), 9999, true)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("reset one card", func(t *testing.T) {
		inserted, err := votes.Insert(ctx, db.Conn(), &models.Vote{
			ID: "v-1", UserID: "u", TargetType: models.TargetTheme, TargetID: themes[0].ID, Direction: models.VoteUp,
		})
		require.NoError(t, err)
		require.True(t, inserted)

		removed, err := repo.Reset(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		marker, err := repo.GetClassification(ctx, "c-1")
		require.NoError(t, err)
		assert.Nil(t, marker)

		vote, err := votes.Get(ctx, "u", models.TargetTheme, themes[0].ID)
		require.NoError(t, err)
		assert.Nil(t, vote)

		other, err := repo.GetByCard(ctx, "c-2")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("reset all", func(t *testing.T) {
		_, err := repo.Reset(ctx, "")
		require.NoError(t, err)
		other, err := repo.GetByCard(ctx, "c-2")
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestRecommendationRepository_UpsertBatch(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewRecommendationRepository(db.Conn())
	ctx := context.Background()

	double := func(base, up, down int) int { return base + 10*up - 10*down }

	rec := &models.Recommendation{
		SourceCardID: "a", RecommendedCardID: "b", Type: models.RecommendationSynergy,
		BaseScore: 50, Reason: "tokens",
	}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.Recommendation{rec}, double))
	require.NotZero(t, rec.ID)
	assert.Equal(t, 50, rec.Score)

	_, err := repo.RecordVote(ctx, db.Conn(), rec.ID, true)
	require.NoError(t, err)

	again := &models.Recommendation{
		SourceCardID: "a", RecommendedCardID: "b", Type: models.RecommendationSynergy,
		BaseScore: 60, Reason: "tokens; combo",
	}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.Recommendation{again}, double))
	assert.Equal(t, rec.ID, again.ID, "same key keeps its row")
	assert.Equal(t, 70, again.Score, "score recomputed from the new base and kept votes")
	assert.Equal(t, 1, again.Upvotes)

	stored, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.BaseScore)
	assert.Equal(t, 70, stored.Score)
	assert.Equal(t, "tokens; combo", stored.Reason)

	other := &models.Recommendation{
		SourceCardID: "a", RecommendedCardID: "b", Type: models.RecommendationSimilarity, BaseScore: 30,
	}
	require.NoError(t, repo.UpsertBatch(ctx, []*models.Recommendation{other}, double))
	assert.NotEqual(t, rec.ID, other.ID)
}

func TestVoteRepository_Unique(t *testing.T) {
	db := storage.NewTestDB(t)
	repo := NewVoteRepository(db.Conn())
	ctx := context.Background()

	vote := &models.Vote{ID: "v-1", UserID: "u1", TargetType: models.TargetRecommendation, TargetID: 7, Direction: models.VoteUp}
	ok, err := repo.Insert(ctx, db.Conn(), vote)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := &models.Vote{ID: "v-2", UserID: "u1", TargetType: models.TargetRecommendation, TargetID: 7, Direction: models.VoteDown}
	ok, err = repo.Insert(ctx, db.Conn(), dup)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.Get(ctx, "u1", models.TargetRecommendation, 7)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.VoteUp, stored.Direction, "the first vote is kept")

	ok, err = repo.Insert(ctx, db.Conn(), &models.Vote{ID: "v-3", UserID: "u1", TargetType: models.TargetTheme, TargetID: 7, Direction: models.VoteDown})
	require.NoError(t, err)
	assert.True(t, ok, "a different target type is a different target")

	none, err := repo.Get(ctx, "u2", models.TargetRecommendation, 7)
	require.NoError(t, err)
	assert.Nil(t, none)
}
