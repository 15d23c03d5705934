package synergy

import (
	"regexp"
	"slices"
	"strings"
)

// tribe is a creature type with the plural form used in rules text.
type tribe struct {
	Name   string
	Plural string
	re     *regexp.Regexp
}

// tribes lists creature types that commonly carry tribal payoffs.
var tribes = buildTribes(map[string]string{
	"Advisor": "Advisors", "Ally": "Allies", "Angel": "Angels", "Artificer": "Artificers",
	"Assassin": "Assassins", "Bat": "Bats", "Bear": "Bears", "Beast": "Beasts", "Bird": "Birds",
	"Cat": "Cats", "Centaur": "Centaurs", "Cleric": "Clerics", "Construct": "Constructs",
	"Demon": "Demons", "Devil": "Devils", "Dinosaur": "Dinosaurs", "Dog": "Dogs",
	"Dragon": "Dragons", "Drake": "Drakes", "Druid": "Druids", "Dwarf": "Dwarves",
	"Eldrazi": "Eldrazi", "Elemental": "Elementals", "Elf": "Elves", "Faerie": "Faeries",
	"Fox": "Foxes", "Frog": "Frogs", "Fungus": "Fungi", "Giant": "Giants", "Goblin": "Goblins",
	"Golem": "Golems", "Horror": "Horrors", "Human": "Humans", "Hydra": "Hydras",
	"Illusion": "Illusions", "Insect": "Insects", "Knight": "Knights", "Kor": "Kor",
	"Merfolk": "Merfolk", "Minotaur": "Minotaurs", "Monk": "Monks", "Mouse": "Mice",
	"Myr": "Myr", "Ninja": "Ninjas", "Noble": "Nobles", "Ooze": "Oozes", "Orc": "Orcs",
	"Otter": "Otters", "Phyrexian": "Phyrexians", "Pirate": "Pirates", "Rabbit": "Rabbits",
	"Rat": "Rats", "Rogue": "Rogues", "Samurai": "Samurai", "Saproling": "Saprolings",
	"Scout": "Scouts", "Shaman": "Shamans", "Skeleton": "Skeletons", "Sliver": "Slivers",
	"Snake": "Snakes", "Soldier": "Soldiers", "Sphinx": "Sphinxes", "Spider": "Spiders",
	"Spirit": "Spirits", "Squirrel": "Squirrels", "Thopter": "Thopters", "Treefolk": "Treefolk",
	"Vampire": "Vampires", "Warrior": "Warriors", "Werewolf": "Werewolves", "Wizard": "Wizards",
	"Wolf": "Wolves", "Wurm": "Wurms", "Zombie": "Zombies",
})

func buildTribes(plurals map[string]string) []tribe {
	out := make([]tribe, 0, len(plurals))
	for name, plural := range plurals {
		pattern := `\b(` + regexp.QuoteMeta(strings.ToLower(name))
		if !strings.EqualFold(plural, name) {
			pattern += `|` + regexp.QuoteMeta(strings.ToLower(plural))
		}
		pattern += `)\b`
		out = append(out, tribe{Name: name, Plural: plural, re: regexp.MustCompile(pattern)})
	}
	// Map iteration order is random; the table must not be.
	slices.SortFunc(out, func(a, b tribe) int { return strings.Compare(a.Name, b.Name) })
	return out
}

var changelingRe = regexp.MustCompile(`\bchangeling\b|\bis every creature type\b`)

// sharedTribe returns the first creature type (alphabetically) linking two
// cards: both carry it, or one card's text names a type the other carries.
// A changeling carries every type.
func sharedTribe(a, b *profile) (string, bool) {
	for _, t := range tribes {
		key := strings.ToLower(t.Name)
		aHas := a.hasSubtype(key)
		bHas := b.hasSubtype(key)
		if aHas && bHas {
			return t.Name, true
		}
		if aHas && b.mentions(t) || bHas && a.mentions(t) {
			return t.Name, true
		}
	}
	return "", false
}

func (p *profile) hasSubtype(key string) bool {
	if !p.creatureTyped {
		return false
	}
	return p.changeling || p.subtypes[key]
}

func (p *profile) mentions(t tribe) bool {
	return p.text != "" && t.re.MatchString(p.text)
}
