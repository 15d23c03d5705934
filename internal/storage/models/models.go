package models

import "time"

// Recommendation types.
const (
	RecommendationSynergy    = "synergy"
	RecommendationSimilarity = "functional_similarity"
)

// Vote targets and directions.
const (
	TargetTheme          = "theme"
	TargetRecommendation = "recommendation"

	VoteUp   = "up"
	VoteDown = "down"
)

// CacheEntry is a row of the key/value cache table.
type CacheEntry struct {
	Key         string
	Payload     []byte
	TTL         time.Duration
	AccessCount int
	LastUpdated time.Time
}

// Expired reports whether the entry is past its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.LastUpdated.Add(e.TTL))
}

// Recommendation is a persisted synergy or similarity result. Score is
// BaseScore adjusted by the vote counters.
type Recommendation struct {
	ID                int64
	SourceCardID      string
	RecommendedCardID string
	Type              string // "synergy" or "functional_similarity"
	BaseScore         int
	Score             int
	Reason            string
	Upvotes           int
	Downvotes         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ThemeAssignment links a card to a catalog theme.
type ThemeAssignment struct {
	ID             int64
	CardID         string
	ThemeName      string
	BaseConfidence int
	Confidence     int
	Upvotes        int
	Downvotes      int
	VoteCount      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ThemeClassification marks a card as successfully classified.
type ThemeClassification struct {
	CardID       string
	ThemeCount   int
	ClassifiedAt time.Time
}

// Vote is a single user's vote on a theme assignment or recommendation.
type Vote struct {
	ID         string
	UserID     string
	TargetType string // "theme" or "recommendation"
	TargetID   int64
	Direction  string // "up" or "down"
	CreatedAt  time.Time
}
