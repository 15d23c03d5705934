package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cardsynergy/internal/api/handlers"
	"github.com/ramonehamilton/cardsynergy/internal/engine"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/themes"
)

// fakeEngine records the arguments it was called with.
type fakeEngine struct {
	cards map[string]*cards.Card

	lastFilter   *filter.Filter
	lastPage     int
	lastPageSize int
	lastRecType  string
	lastLimit    int
	lastTheme    string
	lastVote     feedback.Request
	lastReset    string

	voteErr error
	votes   map[string]*models.Vote
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		cards: map[string]*cards.Card{
			"abc": {ID: "abc", Name: "Raise the Alarm", TypeLine: "Instant", ColorIdentity: []string{"W"}},
		},
		votes: map[string]*models.Vote{},
	}
}

func (f *fakeEngine) Card(_ context.Context, id string) (*cards.Card, error) {
	if c, ok := f.cards[id]; ok {
		return c, nil
	}
	return nil, engine.ErrNotFound
}

func (f *fakeEngine) RandomCard(ctx context.Context) (*cards.Card, error) {
	return f.Card(ctx, "abc")
}

func (f *fakeEngine) Search(_ context.Context, flt *filter.Filter, page, pageSize int) (*engine.SearchResult, error) {
	f.lastFilter, f.lastPage, f.lastPageSize = flt, page, pageSize
	return &engine.SearchResult{Cards: []*cards.Card{f.cards["abc"]}, Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (f *fakeEngine) Recommendations(ctx context.Context, cardID, recType string, limit int, flt *filter.Filter) ([]engine.Recommendation, error) {
	f.lastRecType, f.lastLimit, f.lastFilter = recType, limit, flt
	if recType == "vibes" {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownType, recType)
	}
	if _, err := f.Card(ctx, cardID); err != nil {
		return nil, err
	}
	return []engine.Recommendation{{ID: 7, Card: f.cards["abc"], Score: 65, BaseScore: 50, Reason: "tokens"}}, nil
}

func (f *fakeEngine) ThemeSuggestions(ctx context.Context, cardID string, flt *filter.Filter) ([]engine.ThemeSuggestion, error) {
	f.lastFilter = flt
	if _, err := f.Card(ctx, cardID); err != nil {
		return nil, err
	}
	return []engine.ThemeSuggestion{}, nil
}

func (f *fakeEngine) ThemeCards(_ context.Context, _, themeName string, flt *filter.Filter) ([]*cards.Card, error) {
	f.lastTheme, f.lastFilter = themeName, flt
	return []*cards.Card{}, nil
}

func (f *fakeEngine) Themes() []themes.Theme {
	return themes.All()
}

func (f *fakeEngine) Vote(_ context.Context, req feedback.Request) (*feedback.Result, error) {
	f.lastVote = req
	if f.voteErr != nil {
		return nil, f.voteErr
	}
	if req.UserID == "" {
		return nil, feedback.ErrInvalidVote
	}
	v := &models.Vote{ID: "v1", UserID: req.UserID, TargetType: req.TargetType, TargetID: req.TargetID,
		Direction: req.Direction, CreatedAt: time.Now()}
	f.votes[fmt.Sprintf("%s/%s/%d", req.UserID, req.TargetType, req.TargetID)] = v
	return &feedback.Result{Vote: v, Confidence: 65, Upvotes: 1}, nil
}

func (f *fakeEngine) VoteFor(_ context.Context, userID, targetType string, targetID int64) (*models.Vote, error) {
	if targetType != models.TargetTheme && targetType != models.TargetRecommendation {
		return nil, feedback.ErrInvalidVote
	}
	return f.votes[fmt.Sprintf("%s/%s/%d", userID, targetType, targetID)], nil
}

func (f *fakeEngine) ResetThemes(_ context.Context, cardID string) (int64, error) {
	f.lastReset = cardID
	return 3, nil
}

func newTestServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	fake := newFakeEngine()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, fake), fake
}

func do(t *testing.T, s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "cardsynergy", body["service"])
	assert.Contains(t, body, "scoring")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/api/v1/cards/abc", "", nil)

	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cardsynergy_api_request_duration_seconds")
}

func TestSearch_QueryFilter(t *testing.T) {
	s, fake := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/v1/cards?color_identity=W,U&min_mv=oops&page=2&page_size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, fake.lastFilter)
	assert.Equal(t, []string{"W", "U"}, fake.lastFilter.ColorIdentity)
	assert.Nil(t, fake.lastFilter.MinMV)
	assert.Equal(t, 2, fake.lastPage)
	assert.Equal(t, 5, fake.lastPageSize)
	assert.Equal(t, "min_mv", rec.Header().Get(handlers.IgnoredFilterHeader))

	var body struct {
		Data engine.SearchResult `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 1, body.Data.TotalCount)
}

func TestSearch_PostBody(t *testing.T) {
	s, fake := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/cards/search",
		`{"filter":{"types":["instant"],"colors":"plaid"},"page":3}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"instant"}, fake.lastFilter.Types)
	assert.Equal(t, 3, fake.lastPage)
	assert.NotEmpty(t, rec.Header().Get(handlers.IgnoredFilterHeader))
}

func TestSearch_RequiresJSONContentType(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/search", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestGetCard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/cards/abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data cards.Card `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Raise the Alarm", body.Data.Name)

	rec = do(t, s, http.MethodGet, "/api/v1/cards/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/cards/random", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecommendations(t *testing.T) {
	s, fake := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/cards/abc/recommendations?type=functional_similarity&limit=5&rarities=common", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "functional_similarity", fake.lastRecType)
	assert.Equal(t, 5, fake.lastLimit)
	assert.Equal(t, []string{"common"}, fake.lastFilter.Rarities)

	var body struct {
		Data []engine.Recommendation `json:"data"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 65, body.Data[0].Score)

	rec = do(t, s, http.MethodGet, "/api/v1/cards/abc/recommendations?type=vibes", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/cards/nope/recommendations", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThemes(t *testing.T) {
	s, fake := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/cards/abc/themes?colors=W", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"W"}, fake.lastFilter.Colors)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/cards/abc/themes/%2B1%2F%2B1%20Counters/cards", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+1/+1 Counters", fake.lastTheme)

	rec = do(t, s, http.MethodGet, "/api/v1/themes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog struct {
		Data []themes.Theme `json:"data"`
	}
	decode(t, rec, &catalog)
	assert.Len(t, catalog.Data, themes.Len())

	rec = do(t, s, http.MethodDelete, "/api/v1/admin/themes?card_id=abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", fake.lastReset)
	assert.JSONEq(t, `{"data":{"deleted":3}}`, rec.Body.String())
}

func TestVotes(t *testing.T) {
	s, fake := newTestServer(t)
	user := map[string]string{handlers.UserHeader: "alice"}

	rec := do(t, s, http.MethodPost, "/api/v1/votes",
		`{"target_type":"theme","target_id":12,"direction":"up"}`, user)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", fake.lastVote.UserID)
	assert.Equal(t, int64(12), fake.lastVote.TargetID)

	var created struct {
		Data handlers.VoteResponse `json:"data"`
	}
	decode(t, rec, &created)
	assert.Equal(t, 65, created.Data.Confidence)
	assert.Equal(t, "up", created.Data.Direction)

	rec = do(t, s, http.MethodGet, "/api/v1/votes/theme/12", "", user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"voted":true,"direction":"up"}}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/votes/theme/12", "", map[string]string{handlers.UserHeader: "bob"})
	assert.JSONEq(t, `{"data":{"voted":false}}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/votes/theme/twelve", "", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/votes/card/12", "", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVotes_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate", feedback.ErrDuplicateVote, http.StatusConflict},
		{"missing target", feedback.ErrNotFound, http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: bad direction", feedback.ErrInvalidVote), http.StatusBadRequest},
		{"storage", fmt.Errorf("failed to record vote: disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fake := newTestServer(t)
			fake.voteErr = tt.err
			rec := do(t, s, http.MethodPost, "/api/v1/votes",
				`{"target_type":"theme","target_id":1,"direction":"up"}`, map[string]string{handlers.UserHeader: "alice"})
			assert.Equal(t, tt.want, rec.Code)

			var body struct {
				Code      int    `json:"code"`
				Message   string `json:"message"`
				RequestID string `json:"request_id"`
			}
			decode(t, rec, &body)
			assert.Equal(t, tt.want, body.Code)
			assert.NotEmpty(t, body.RequestID)
			assert.NotContains(t, body.Message, "disk full", "internal errors are not leaked")
		})
	}
}

func TestVotes_MissingUser(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/v1/votes", `{"target_type":"theme","target_id":1,"direction":"up"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	s := NewServer(cfg, newFakeEngine())

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, s, http.MethodGet, "/api/v1/cards/abc", "", nil).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/votes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", handlers.UserHeader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), strings.ToLower(handlers.UserHeader))
}
