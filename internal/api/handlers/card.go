package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cardsynergy/internal/api/response"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/filter"
)

// CardHandler handles card search, lookup and recommendation requests.
type CardHandler struct {
	engine Engine
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(engine Engine) *CardHandler {
	return &CardHandler{engine: engine}
}

// SearchCards searches with filter query parameters.
func (h *CardHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	f := queryFilter(w, r)
	h.search(w, r, f, intParam(r, "page"), intParam(r, "page_size"))
}

// SearchRequest is the body of POST /cards/search.
type SearchRequest struct {
	Filter   *filter.Filter `json:"filter"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// SearchCardsPost searches with a JSON filter body.
func (h *CardHandler) SearchCardsPost(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, err)
		return
	}
	reportIgnored(w, req.Filter)
	h.search(w, r, req.Filter, req.Page, req.PageSize)
}

func (h *CardHandler) search(w http.ResponseWriter, r *http.Request, f *filter.Filter, page, pageSize int) {
	result, err := h.engine.Search(r.Context(), f, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, result)
}

// GetCard returns a card by id.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.engine.Card(r.Context(), chi.URLParam(r, "cardID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, card)
}

// GetRandomCard returns any card.
func (h *CardHandler) GetRandomCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.engine.RandomCard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, card)
}

// GetRecommendations ranks cards against the path card. The type parameter
// selects synergy (default) or functional_similarity.
func (h *CardHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	f := queryFilter(w, r)
	recs, err := h.engine.Recommendations(r.Context(),
		chi.URLParam(r, "cardID"), r.URL.Query().Get("type"), intParam(r, "limit"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, recs)
}
