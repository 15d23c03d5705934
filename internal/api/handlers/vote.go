package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cardsynergy/internal/api/response"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
)

// VoteHandler handles vote requests.
type VoteHandler struct {
	engine Engine
}

// NewVoteHandler creates a new VoteHandler.
func NewVoteHandler(engine Engine) *VoteHandler {
	return &VoteHandler{engine: engine}
}

// VoteRequest is the body of POST /votes.
type VoteRequest struct {
	TargetType string `json:"target_type"`
	TargetID   int64  `json:"target_id"`
	Direction  string `json:"direction"`
}

// VoteResponse describes a recorded vote and the target's new confidence.
type VoteResponse struct {
	ID         string    `json:"id"`
	TargetType string    `json:"target_type"`
	TargetID   int64     `json:"target_id"`
	Direction  string    `json:"direction"`
	CreatedAt  time.Time `json:"created_at"`
	Confidence int       `json:"confidence"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
}

// VoteStatus reports whether the caller has voted on a target.
type VoteStatus struct {
	Voted     bool   `json:"voted"`
	Direction string `json:"direction,omitempty"`
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// SubmitVote records the caller's vote.
func (h *VoteHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var body VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, r, err)
		return
	}

	result, err := h.engine.Vote(r.Context(), feedback.Request{
		UserID:     userID(r),
		TargetType: body.TargetType,
		TargetID:   body.TargetID,
		Direction:  body.Direction,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	v := result.Vote
	response.Created(w, VoteResponse{
		ID:         v.ID,
		TargetType: v.TargetType,
		TargetID:   v.TargetID,
		Direction:  v.Direction,
		CreatedAt:  v.CreatedAt,
		Confidence: result.Confidence,
		Upvotes:    result.Upvotes,
		Downvotes:  result.Downvotes,
	})
}

// GetVote reports the caller's vote on a target.
func (h *VoteHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "targetID"), 10, 64)
	if err != nil {
		response.BadRequest(w, r, errors.New("target id must be an integer"))
		return
	}

	vote, err := h.engine.VoteFor(r.Context(), userID(r), chi.URLParam(r, "targetType"), targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := VoteStatus{}
	if vote != nil {
		status = VoteStatus{Voted: true, Direction: vote.Direction}
	}
	response.Success(w, status)
}
