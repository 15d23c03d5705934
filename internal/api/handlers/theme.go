package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/cardsynergy/internal/api/response"
)

// ThemeHandler handles theme requests.
type ThemeHandler struct {
	engine Engine
}

// NewThemeHandler creates a new ThemeHandler.
func NewThemeHandler(engine Engine) *ThemeHandler {
	return &ThemeHandler{engine: engine}
}

// GetSuggestions returns the path card's themes. Filter parameters only
// affect each theme's matching card count.
func (h *ThemeHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	f := queryFilter(w, r)
	suggestions, err := h.engine.ThemeSuggestions(r.Context(), chi.URLParam(r, "cardID"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, suggestions)
}

// GetThemeCards lists other cards of a theme passing the filter.
func (h *ThemeHandler) GetThemeCards(w http.ResponseWriter, r *http.Request) {
	theme, err := url.PathUnescape(chi.URLParam(r, "theme"))
	if err != nil {
		response.BadRequest(w, r, err)
		return
	}

	f := queryFilter(w, r)
	found, err := h.engine.ThemeCards(r.Context(), chi.URLParam(r, "cardID"), theme, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, found)
}

// GetCatalog returns every known theme.
func (h *ThemeHandler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.engine.Themes())
}

// ResetThemes deletes stored themes for card_id, or for every card.
func (h *ThemeHandler) ResetThemes(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.ResetThemes(r.Context(), r.URL.Query().Get("card_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, map[string]int64{"deleted": n})
}
