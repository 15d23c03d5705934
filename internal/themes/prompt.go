package themes

import (
	"strings"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
)

// MaxThemes is the most themes accepted for one card.
const MaxThemes = 3

// BuildPrompt asks the generator to pick up to MaxThemes catalog themes for
// card and answer one "ThemeName: NN%" line per theme.
func BuildPrompt(card *cards.Card) string {
	var sb strings.Builder

	sb.WriteString("You are a Magic: The Gathering deckbuilding expert.\n")
	sb.WriteString("Classify the card below into the strategic themes it supports.\n\n")

	sb.WriteString("## Card\n")
	sb.WriteString("Name: " + card.Name + "\n")
	sb.WriteString("Type: " + card.TypeLine + "\n")
	if card.ManaCost != "" {
		sb.WriteString("Mana Cost: " + card.ManaCost + "\n")
	}
	if text := strings.TrimSpace(card.OracleText); text != "" {
		sb.WriteString("Text: " + text + "\n")
	}

	sb.WriteString("\n## Themes\n")
	for _, t := range All() {
		sb.WriteString("- " + t.Name + ": " + t.Description + "\n")
	}

	sb.WriteString("\n## Instructions\n")
	sb.WriteString("Choose at most 3 themes from the list above, using the exact names.\n")
	sb.WriteString("Give each a confidence from 25 to 100 for how strongly the card belongs to it.\n")
	sb.WriteString("Respond with one line per theme in the form ThemeName: NN%\n")
	sb.WriteString("Do not add explanations or any other text.\n")

	return sb.String()
}
