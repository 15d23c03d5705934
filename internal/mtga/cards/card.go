// Package cards defines the card record shared by storage, scoring and the API.
package cards

import (
	"strconv"
	"strings"
	"time"
)

// Card represents comprehensive metadata about a Magic card.
// The engine treats cards as read-only input.
type Card struct {
	// Scryfall identifiers
	ID       string `json:"id"`
	OracleID string `json:"oracle_id,omitempty"`

	// Basic card information
	Name     string `json:"name"`
	TypeLine string `json:"type_line"`
	SetCode  string `json:"set"`
	SetName  string `json:"set_name"`

	// Mana information
	ManaCost string  `json:"mana_cost,omitempty"`
	CMC      float64 `json:"cmc"`

	// Colors and identity
	Colors        []string `json:"colors"`
	ColorIdentity []string `json:"color_identity"`
	Keywords      []string `json:"keywords,omitempty"`

	Rarity string `json:"rarity"` // "common", "uncommon", "rare", "mythic"

	// Power/Toughness (for creatures)
	Power     *string `json:"power,omitempty"`
	Toughness *string `json:"toughness,omitempty"`
	Loyalty   *string `json:"loyalty,omitempty"`

	OracleText string  `json:"oracle_text,omitempty"`
	ImageURI   *string `json:"image_uri,omitempty"`

	Prices     Prices            `json:"prices"`
	Legalities map[string]string `json:"legalities,omitempty"` // format -> "legal", "not_legal", "banned", "restricted"

	UpdatedAt time.Time `json:"updated_at"`
}

// Prices is a price snapshot taken at import time.
type Prices struct {
	USD     *string `json:"usd,omitempty"`
	USDFoil *string `json:"usd_foil,omitempty"`
	EUR     *string `json:"eur,omitempty"`
	TIX     *string `json:"tix,omitempty"`
}

// Text returns the lower-cased oracle text.
func (c *Card) Text() string {
	return strings.ToLower(c.OracleText)
}

// Type returns the lower-cased type line.
func (c *Card) Type() string {
	return strings.ToLower(c.TypeLine)
}

// HasText reports whether the card carries any rules text.
func (c *Card) HasText() bool {
	return strings.TrimSpace(c.OracleText) != ""
}

// IsCreature reports whether the card is a creature.
func (c *Card) IsCreature() bool {
	return strings.Contains(c.Type(), "creature")
}

// primaryTypes is ordered by precedence: an "Artifact Creature" is a creature.
var primaryTypes = []string{
	"creature", "planeswalker", "battle", "instant", "sorcery", "artifact", "enchantment", "land",
}

// PrimaryType returns the most significant card type on the type line,
// or an empty string if none is recognized.
func (c *Card) PrimaryType() string {
	typeLine := c.Type()
	if i := strings.Index(typeLine, "—"); i >= 0 {
		typeLine = typeLine[:i]
	}
	for _, t := range primaryTypes {
		if strings.Contains(typeLine, t) {
			return t
		}
	}
	return ""
}

// Subtypes returns the lower-cased subtypes after the type line dash.
// Double-faced type lines contribute the subtypes of every face.
func (c *Card) Subtypes() []string {
	var subtypes []string
	for _, face := range strings.Split(c.Type(), "//") {
		_, after, found := strings.Cut(face, "—")
		if !found {
			continue
		}
		subtypes = append(subtypes, strings.Fields(after)...)
	}
	return subtypes
}

// PowerValue parses power as an integer. Variable values like "*" report false.
func (c *Card) PowerValue() (int, bool) {
	return statValue(c.Power)
}

// ToughnessValue parses toughness as an integer. Variable values like "*" report false.
func (c *Card) ToughnessValue() (int, bool) {
	return statValue(c.Toughness)
}

func statValue(s *string) (int, bool) {
	if s == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsLegal reports whether the card is legal in format.
func (c *Card) IsLegal(format string) bool {
	return c.Legalities[strings.ToLower(format)] == "legal"
}
