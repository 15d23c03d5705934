package cards

import (
	"strings"
	"time"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/scryfall"
)

// FromScryfall converts a Scryfall card to our internal Card representation.
// Multi-faced cards carry their rules text on the faces, so faces are folded
// into a single oracle text, type line and mana cost.
func FromScryfall(sc *scryfall.Card) *Card {
	card := &Card{
		ID:            sc.ID,
		OracleID:      sc.OracleID,
		Name:          sc.Name,
		TypeLine:      sc.TypeLine,
		SetCode:       sc.SetCode,
		SetName:       sc.SetName,
		ManaCost:      sc.ManaCost,
		CMC:           sc.CMC,
		Colors:        nonNil(sc.Colors),
		ColorIdentity: nonNil(sc.ColorIdentity),
		Keywords:      sc.Keywords,
		Rarity:        sc.Rarity,
		OracleText:    sc.OracleText,
		Legalities:    sc.Legalities,
		Prices: Prices{
			USD:     sc.Prices.USD,
			USDFoil: sc.Prices.USDFoil,
			EUR:     sc.Prices.EUR,
			TIX:     sc.Prices.TIX,
		},
		UpdatedAt: time.Now().UTC(),
	}

	if sc.Power != "" {
		card.Power = &sc.Power
	}
	if sc.Toughness != "" {
		card.Toughness = &sc.Toughness
	}
	if sc.Loyalty != "" {
		card.Loyalty = &sc.Loyalty
	}
	if sc.ImageURIs != nil && sc.ImageURIs.Normal != "" {
		card.ImageURI = &sc.ImageURIs.Normal
	}

	if len(sc.CardFaces) > 0 {
		foldFaces(card, sc.CardFaces)
	}

	return card
}

func foldFaces(card *Card, faces []scryfall.CardFace) {
	front := faces[0]

	if card.OracleText == "" {
		texts := make([]string, 0, len(faces))
		for _, f := range faces {
			if f.OracleText != "" {
				texts = append(texts, f.OracleText)
			}
		}
		card.OracleText = strings.Join(texts, "\n//\n")
	}
	if card.ManaCost == "" {
		card.ManaCost = front.ManaCost
	}
	if card.TypeLine == "" {
		types := make([]string, 0, len(faces))
		for _, f := range faces {
			types = append(types, f.TypeLine)
		}
		card.TypeLine = strings.Join(types, " // ")
	}
	if len(card.Colors) == 0 && len(front.Colors) > 0 {
		card.Colors = front.Colors
	}
	if card.Power == nil && front.Power != "" {
		card.Power = &front.Power
	}
	if card.Toughness == nil && front.Toughness != "" {
		card.Toughness = &front.Toughness
	}
	if card.Loyalty == nil && front.Loyalty != "" {
		card.Loyalty = &front.Loyalty
	}
	if card.ImageURI == nil && front.ImageURIs != nil && front.ImageURIs.Normal != "" {
		card.ImageURI = &front.ImageURIs.Normal
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
