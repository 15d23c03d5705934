package similarity

import "regexp"

// Function is a primary verb-effect a card can perform. A card is assigned
// the first function in the table whose pattern matches its oracle text.
type Function struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  int
	Reason  string
}

// functions is ordered by precedence.
var functions = []Function{
	{
		Name:    "counter",
		Pattern: regexp.MustCompile(`\bcounter target [^.]*\b(spell|ability)\b`),
		Weight:  45,
		Reason:  "both counter spells",
	},
	{
		Name:    "destroy_creature",
		Pattern: regexp.MustCompile(`\bdestroy (target|each|all|up to \w+ target) [^.]*\bcreatures?\b`),
		Weight:  40,
		Reason:  "both destroy creatures",
	},
	{
		Name:    "exile_removal",
		Pattern: regexp.MustCompile(`\bexile (target|each|all|up to \w+ target) [^.]*\b(creatures?|permanents?|nonland permanents?)\b`),
		Weight:  40,
		Reason:  "both exile permanents",
	},
	{
		Name:    "damage",
		Pattern: regexp.MustCompile(`\bdeals? (\d+|x) damage\b`),
		Weight:  35,
		Reason:  "both deal direct damage",
	},
	{
		Name:    "draw",
		Pattern: regexp.MustCompile(`\bdraws? (a|one|two|three|four|x|\d+) cards?\b`),
		Weight:  35,
		Reason:  "both draw cards",
	},
	{
		Name:    "tutor",
		Pattern: regexp.MustCompile(`\bsearch your library for\b`),
		Weight:  35,
		Reason:  "both tutor from the library",
	},
	{
		Name:    "reanimate",
		Pattern: regexp.MustCompile(`\breturn [^.]*\bfrom your graveyard\b`),
		Weight:  30,
		Reason:  "both return cards from the graveyard",
	},
	{
		Name:    "lifegain",
		Pattern: regexp.MustCompile(`\bgains? (\d+|x) life\b`),
		Weight:  25,
		Reason:  "both gain life",
	},
}

// primaryFunction returns the first function matching text.
func primaryFunction(text string) (Function, bool) {
	if text == "" {
		return Function{}, false
	}
	for _, f := range functions {
		if f.Pattern.MatchString(text) {
			return f, true
		}
	}
	return Function{}, false
}

// evergreen keyword abilities compared between cards.
var evergreen = map[string]bool{
	"flying": true, "trample": true, "lifelink": true, "deathtouch": true, "vigilance": true,
	"haste": true, "reach": true, "first strike": true, "double strike": true, "hexproof": true,
	"indestructible": true, "flash": true, "defender": true,
}
