package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ramonehamilton/cardsynergy/internal/cache"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
	"github.com/ramonehamilton/cardsynergy/internal/llm"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
	"github.com/ramonehamilton/cardsynergy/internal/themes"
)

func strPtr(s string) *string { return &s }

func white(id, name, typeLine string, cmc float64, text string) *cards.Card {
	return &cards.Card{
		ID: id, Name: name, TypeLine: typeLine, CMC: cmc, OracleText: text,
		Colors: []string{"W"}, ColorIdentity: []string{"W"}, Rarity: "common", SetCode: "tst",
		Legalities: map[string]string{"standard": "legal"},
	}
}

var (
	raiseTheAlarm = white("w-raise", "Raise the Alarm", "Instant", 2,
		"Create two 1/1 white Soldier creature tokens.")
	rallyCall = white("w-rally", "Rally Call", "Instant", 2,
		"Create three 1/1 white Soldier creature tokens.")
	dawnAcolyte = func() *cards.Card {
		c := white("w-acolyte", "Dawn Acolyte", "Creature — Human Cleric", 2, "Sacrifice a creature: You gain 2 life.")
		c.Power, c.Toughness = strPtr("1"), strPtr("2")
		return c
	}()
	// orzhovPriest synergizes with and resembles the white cards but its
	// color identity is outside {W}.
	orzhovPriest = &cards.Card{
		ID: "wb-priest", Name: "Orzhov Priest", TypeLine: "Creature — Human Cleric", CMC: 2,
		OracleText: "Sacrifice a creature: Each opponent loses 1 life.",
		Colors:     []string{"W", "B"}, ColorIdentity: []string{"W", "B"}, Rarity: "uncommon", SetCode: "tst",
		Power: strPtr("1"), Toughness: strPtr("2"),
		Legalities: map[string]string{"standard": "legal"},
	}
	shock = &cards.Card{
		ID: "r-shock", Name: "Shock", TypeLine: "Instant", CMC: 1,
		OracleText: "Shock deals 2 damage to any target.",
		Colors:     []string{"R"}, ColorIdentity: []string{"R"}, Rarity: "common", SetCode: "tst",
	}
)

type EngineSuite struct {
	suite.Suite

	ctx       context.Context
	db        *storage.DB
	cardRepo  repository.CardRepository
	engine    *Engine
	generated atomic.Int32
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = storage.NewTestDB(s.T())
	s.generated.Store(0)
	s.engine = s.buildEngine(llm.Func(func(context.Context, string) (string, error) {
		s.generated.Add(1)
		return "Tokens: 90%", nil
	}))

	s.Require().NoError(s.cardRepo.UpsertCards(s.ctx, []*cards.Card{
		raiseTheAlarm, rallyCall, dawnAcolyte, orzhovPriest, shock,
	}))
}

func (s *EngineSuite) buildEngine(gen llm.Generator) *Engine {
	conn := s.db.Conn()
	s.cardRepo = repository.NewCardRepository(conn)
	store := cache.NewSQLiteStore(repository.NewCacheRepository(conn))
	cardService := cards.NewService(s.cardRepo, store, nil, nil)

	themeRepo := repository.NewThemeRepository(conn)
	recRepo := repository.NewRecommendationRepository(conn)
	return New(Deps{
		Cards:           cardService,
		Catalog:         s.cardRepo,
		Cache:           store,
		Recommendations: recRepo,
		Themes:          themes.NewService(themeRepo, themes.NewClassifier(gen, time.Second), cardService, nil),
		Votes:           feedback.NewService(s.db, repository.NewVoteRepository(conn), themeRepo, recRepo),
	}, &Config{PoolSize: 0, DefaultLimit: 15, SearchPageSize: 20, MaxPageSize: 100, SearchTTL: time.Hour, Workers: 4})
}

func ids(cs []*cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func recIDs(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Card.ID
	}
	return out
}

func (s *EngineSuite) classifyAll() {
	for _, c := range []*cards.Card{raiseTheAlarm, rallyCall, dawnAcolyte, orzhovPriest, shock} {
		_, err := s.engine.ThemeSuggestions(s.ctx, c.ID, nil)
		s.Require().NoError(err)
	}
}

func (s *EngineSuite) TestPoolLimitCountsFilteredCards() {
	s.engine.SetConfig(&Config{PoolSize: 1, DefaultLimit: 15, SearchPageSize: 20, MaxPageSize: 100, SearchTTL: time.Hour})

	// The only uncommon sorts last by id; a pool truncated before filtering
	// would never reach it.
	f := &filter.Filter{Rarities: []string{"uncommon"}}
	recs, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 20, f)
	s.Require().NoError(err)
	s.Equal([]string{orzhovPriest.ID}, recIDs(recs))

	recs, err = s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 20, nil)
	s.Require().NoError(err)
	s.NotContains(recIDs(recs), orzhovPriest.ID)
}

func (s *EngineSuite) TestFilterConsistencyAcrossOutputs() {
	s.classifyAll()
	f := &filter.Filter{ColorIdentity: []string{"W"}}
	excluded := orzhovPriest.ID
	s.Require().False(filter.Matches(orzhovPriest, f))

	// Without the filter the excluded card shows up everywhere, so its
	// absence below is the filter's doing.
	search, err := s.engine.Search(s.ctx, nil, 1, 50)
	s.Require().NoError(err)
	s.Contains(ids(search.Cards), excluded)
	syn, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 20, nil)
	s.Require().NoError(err)
	s.Contains(recIDs(syn), excluded)
	sim, err := s.engine.Recommendations(s.ctx, dawnAcolyte.ID, models.RecommendationSimilarity, 20, nil)
	s.Require().NoError(err)
	s.Contains(recIDs(sim), excluded)
	themed, err := s.engine.ThemeCards(s.ctx, raiseTheAlarm.ID, "Tokens", nil)
	s.Require().NoError(err)
	s.Contains(ids(themed), excluded)

	search, err = s.engine.Search(s.ctx, f, 1, 50)
	s.Require().NoError(err)
	s.NotContains(ids(search.Cards), excluded)
	s.NotEmpty(search.Cards)

	syn, err = s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 20, f)
	s.Require().NoError(err)
	s.NotContains(recIDs(syn), excluded)
	s.NotEmpty(syn)

	sim, err = s.engine.Recommendations(s.ctx, dawnAcolyte.ID, models.RecommendationSimilarity, 20, f)
	s.Require().NoError(err)
	s.NotContains(recIDs(sim), excluded)

	themed, err = s.engine.ThemeCards(s.ctx, raiseTheAlarm.ID, "Tokens", f)
	s.Require().NoError(err)
	s.NotContains(ids(themed), excluded)
	s.NotEmpty(themed)

	for _, c := range search.Cards {
		s.True(filter.Matches(c, f))
	}
	for _, r := range append(syn, sim...) {
		s.True(filter.Matches(r.Card, f))
	}
	for _, c := range themed {
		s.True(filter.Matches(c, f))
	}
}

func (s *EngineSuite) TestTokenGeneratorFindsSacrificePayoff() {
	recs, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 0, nil)
	s.Require().NoError(err)

	var acolyte *Recommendation
	for i := range recs {
		if recs[i].Card.ID == dawnAcolyte.ID {
			acolyte = &recs[i]
		}
		s.GreaterOrEqual(recs[i].Score, 20)
		s.LessOrEqual(recs[i].Score, 100)
		s.NotEqual(raiseTheAlarm.ID, recs[i].Card.ID)
	}
	s.Require().NotNil(acolyte)
	s.GreaterOrEqual(acolyte.Score, 35)
	s.Contains(strings.ToLower(acolyte.Reason), "token")
	s.NotZero(acolyte.ID, "recommendations are persisted")
}

func (s *EngineSuite) TestRecommendationsDeterministic() {
	first, err := s.engine.Recommendations(s.ctx, dawnAcolyte.ID, models.RecommendationSimilarity, 0, nil)
	s.Require().NoError(err)
	for i := 0; i < 3; i++ {
		again, err := s.engine.Recommendations(s.ctx, dawnAcolyte.ID, models.RecommendationSimilarity, 0, nil)
		s.Require().NoError(err)
		s.Equal(recIDs(first), recIDs(again))
		for j := range first {
			s.Equal(first[j].Score, again[j].Score)
			s.Equal(first[j].ID, again[j].ID, "upsert keeps row identity")
		}
	}
}

func (s *EngineSuite) TestRecommendationVoteAdjustsScore() {
	recs, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 0, nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(recs)
	target := recs[0]

	res, err := s.engine.Vote(s.ctx, feedback.Request{
		UserID: "alice", TargetType: models.TargetRecommendation, TargetID: target.ID, Direction: models.VoteUp,
	})
	s.Require().NoError(err)
	s.Equal(feedback.AdjustConfidence(target.BaseScore, 1, 0), res.Confidence)

	again, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 0, nil)
	s.Require().NoError(err)
	for _, r := range again {
		if r.ID == target.ID {
			s.Equal(1, r.Upvotes)
			s.Equal(res.Confidence, r.Score)
			s.Equal(target.BaseScore, r.BaseScore)
		}
	}

	vote, err := s.engine.VoteFor(s.ctx, "alice", models.TargetRecommendation, target.ID)
	s.Require().NoError(err)
	s.Require().NotNil(vote)
	s.Equal(models.VoteUp, vote.Direction)

	_, err = s.engine.Vote(s.ctx, feedback.Request{
		UserID: "alice", TargetType: models.TargetRecommendation, TargetID: target.ID, Direction: models.VoteDown,
	})
	s.ErrorIs(err, feedback.ErrDuplicateVote)
}

func (s *EngineSuite) TestRecommendationsLimit() {
	recs, err := s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, models.RecommendationSynergy, 1, nil)
	s.Require().NoError(err)
	s.Len(recs, 1)
}

func (s *EngineSuite) TestRecommendationsErrors() {
	_, err := s.engine.Recommendations(s.ctx, "missing", models.RecommendationSynergy, 0, nil)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.engine.Recommendations(s.ctx, raiseTheAlarm.ID, "vibes", 0, nil)
	s.ErrorIs(err, ErrUnknownType)
}

func (s *EngineSuite) TestSearchPaging() {
	f := &filter.Filter{ColorIdentity: []string{"W"}}

	page1, err := s.engine.Search(s.ctx, f, 1, 2)
	s.Require().NoError(err)
	s.Equal(3, page1.TotalCount)
	s.True(page1.HasMore)
	s.Equal([]string{"w-acolyte", "w-raise"}, ids(page1.Cards), "ordered by name")

	page2, err := s.engine.Search(s.ctx, f, 2, 2)
	s.Require().NoError(err)
	s.False(page2.HasMore)
	s.Equal([]string{"w-rally"}, ids(page2.Cards))

	past, err := s.engine.Search(s.ctx, f, 5, 2)
	s.Require().NoError(err)
	s.Empty(past.Cards)
	s.False(past.HasMore)
	s.Equal(3, past.TotalCount)
}

func (s *EngineSuite) TestSearchByName() {
	res, err := s.engine.Search(s.ctx, &filter.Filter{Name: "ALARM"}, 1, 10)
	s.Require().NoError(err)
	s.Equal([]string{"w-raise"}, ids(res.Cards))
}

func (s *EngineSuite) TestSearchIsCached() {
	f := &filter.Filter{Types: []string{"instant"}}
	first, err := s.engine.Search(s.ctx, f, 1, 10)
	s.Require().NoError(err)
	s.Equal(3, first.TotalCount)

	s.Require().NoError(s.cardRepo.UpsertCards(s.ctx, []*cards.Card{
		white("w-new", "Another Instant", "Instant", 1, ""),
	}))

	cached, err := s.engine.Search(s.ctx, f, 1, 10)
	s.Require().NoError(err)
	s.Equal(3, cached.TotalCount, "served from the search cache")

	fresh, err := s.engine.Search(s.ctx, f, 1, 11)
	s.Require().NoError(err)
	s.Equal(4, fresh.TotalCount, "different page size is a different key")
}

func (s *EngineSuite) TestThemeSuggestionsClassifyOnce() {
	first, err := s.engine.ThemeSuggestions(s.ctx, raiseTheAlarm.ID, nil)
	s.Require().NoError(err)
	s.Require().Len(first, 1)
	s.Equal("Tokens", first[0].ThemeName)
	s.Equal(90, first[0].Confidence)
	s.NotEmpty(first[0].Description)

	_, err = s.engine.ThemeSuggestions(s.ctx, raiseTheAlarm.ID, nil)
	s.Require().NoError(err)
	s.Equal(int32(1), s.generated.Load())

	_, err = s.engine.ThemeSuggestions(s.ctx, "missing", nil)
	s.ErrorIs(err, ErrNotFound)
}

func (s *EngineSuite) TestThemeVoteAndReset() {
	suggestions, err := s.engine.ThemeSuggestions(s.ctx, raiseTheAlarm.ID, nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(suggestions)

	_, err = s.engine.Vote(s.ctx, feedback.Request{
		UserID: "bob", TargetType: models.TargetTheme, TargetID: suggestions[0].ID, Direction: models.VoteDown,
	})
	s.Require().NoError(err)

	after, err := s.engine.ThemeSuggestions(s.ctx, raiseTheAlarm.ID, nil)
	s.Require().NoError(err)
	s.Equal(63, after[0].Confidence) // round(90 * 0.7)
	s.Equal(90, after[0].BaseConfidence)

	n, err := s.engine.ResetThemes(s.ctx, raiseTheAlarm.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	vote, err := s.engine.VoteFor(s.ctx, "bob", models.TargetTheme, suggestions[0].ID)
	s.Require().NoError(err)
	s.Nil(vote, "reset removes the card's theme votes")
}

func (s *EngineSuite) TestCardLookups() {
	card, err := s.engine.Card(s.ctx, shock.ID)
	s.Require().NoError(err)
	s.Equal("Shock", card.Name)

	_, err = s.engine.Card(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	random, err := s.engine.RandomCard(s.ctx)
	s.Require().NoError(err)
	s.NotNil(random)

	s.Len(s.engine.Themes(), themes.Len())
}

func TestThemeSuggestions_GeneratorDownIsEmpty(t *testing.T) {
	s := &EngineSuite{}
	s.SetT(t)
	s.ctx = context.Background()
	s.db = storage.NewTestDB(t)
	e := s.buildEngine(llm.Failing())
	require.NoError(t, s.cardRepo.UpsertCards(s.ctx, []*cards.Card{raiseTheAlarm}))

	got, err := e.ThemeSuggestions(s.ctx, raiseTheAlarm.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_EmptyCatalog(t *testing.T) {
	s := &EngineSuite{}
	s.SetT(t)
	s.ctx = context.Background()
	s.db = storage.NewTestDB(t)
	e := s.buildEngine(llm.Failing())

	_, err := e.RandomCard(s.ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := e.Search(s.ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
	assert.NotNil(t, res.Cards)
	assert.Zero(t, res.TotalCount)
}
