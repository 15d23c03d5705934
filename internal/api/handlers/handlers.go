// Package handlers implements the /api/v1 HTTP handlers over the engine.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ramonehamilton/cardsynergy/internal/api/response"
	"github.com/ramonehamilton/cardsynergy/internal/engine"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
	"github.com/ramonehamilton/cardsynergy/internal/storage/models"
	"github.com/ramonehamilton/cardsynergy/internal/themes"
)

// Engine is the set of engine operations served over HTTP.
type Engine interface {
	Card(ctx context.Context, id string) (*cards.Card, error)
	RandomCard(ctx context.Context) (*cards.Card, error)
	Search(ctx context.Context, f *filter.Filter, page, pageSize int) (*engine.SearchResult, error)
	Recommendations(ctx context.Context, cardID, recType string, limit int, f *filter.Filter) ([]engine.Recommendation, error)
	ThemeSuggestions(ctx context.Context, cardID string, f *filter.Filter) ([]engine.ThemeSuggestion, error)
	ThemeCards(ctx context.Context, cardID, themeName string, f *filter.Filter) ([]*cards.Card, error)
	Themes() []themes.Theme
	Vote(ctx context.Context, req feedback.Request) (*feedback.Result, error)
	VoteFor(ctx context.Context, userID, targetType string, targetID int64) (*models.Vote, error)
	ResetThemes(ctx context.Context, cardID string) (int64, error)
}

// UserHeader carries the caller's user id for votes.
const UserHeader = "X-User-ID"

// IgnoredFilterHeader lists filter fields that could not be interpreted and
// were therefore not applied.
const IgnoredFilterHeader = "X-Filter-Ignored"

// writeError maps engine errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, feedback.ErrNotFound):
		response.NotFound(w, r, err)
	case errors.Is(err, feedback.ErrDuplicateVote):
		response.Conflict(w, r, err)
	case errors.Is(err, feedback.ErrInvalidVote), errors.Is(err, engine.ErrUnknownType):
		response.BadRequest(w, r, err)
	case errors.Is(err, cards.ErrUpstreamUnavailable):
		response.ServiceUnavailable(w, r, err)
	default:
		response.InternalError(w, r, err)
	}
}

// queryFilter parses the filter parameters of r and reports ignored fields.
func queryFilter(w http.ResponseWriter, r *http.Request) *filter.Filter {
	f := filter.Parse(r.URL.Query())
	reportIgnored(w, f)
	return f
}

func reportIgnored(w http.ResponseWriter, f *filter.Filter) {
	if f != nil && len(f.Ignored) > 0 {
		w.Header().Set(IgnoredFilterHeader, strings.Join(f.Ignored, ","))
	}
}

// intParam returns a positive integer query parameter, or 0 when absent or
// invalid.
func intParam(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
