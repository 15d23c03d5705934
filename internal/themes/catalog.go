// Package themes classifies cards into strategic themes from a fixed catalog
// and serves the stored assignments.
package themes

import (
	"sort"
	"strings"
)

// Theme is one catalog entry.
type Theme struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Theme{
	// Board and tokens
	{"Tokens", "Creates creature or artifact tokens and rewards having many permanents."},
	{"Go Wide", "Floods the board with many small creatures and pumps them together."},
	{"Go Tall", "Invests auras, equipment and counters into a single large threat."},
	{"Treasure", "Creates or sacrifices Treasure tokens for mana and value."},
	{"Food", "Creates Food tokens and rewards sacrificing them."},
	{"Clues", "Creates Clue tokens and draws cards by cracking them."},
	{"Blood Tokens", "Creates Blood tokens to rummage and fuel discard payoffs."},
	{"Map Tokens", "Creates Map tokens to explore and grow creatures."},
	{"Populate", "Copies existing creature tokens."},
	{"Token Doubling", "Doubles the number of tokens created."},
	{"Copy Effects", "Copies creatures, spells or permanents."},
	{"Clones", "Creatures that enter as copies of other creatures."},

	// Sacrifice and death
	{"Aristocrats", "Sacrifices creatures for value and drains opponents on death."},
	{"Sacrifice Outlets", "Free or repeatable ways to sacrifice permanents."},
	{"Death Triggers", "Rewards creatures dying with cards, damage or tokens."},
	{"Fodder", "Cheap creatures or tokens that exist to be sacrificed."},
	{"Exploit", "Creatures that sacrifice another creature when they enter."},
	{"Morbid", "Gets better if a creature died this turn."},
	{"Drain", "Makes opponents lose life while you gain it."},

	// Graveyard
	{"Self-Mill", "Puts cards from your library into your graveyard."},
	{"Mill", "Puts cards from opponents' libraries into their graveyards to deck them."},
	{"Reanimator", "Returns creatures from a graveyard to the battlefield."},
	{"Graveyard Recursion", "Returns cards from the graveyard to hand or play repeatedly."},
	{"Flashback", "Casts spells from the graveyard with flashback or similar."},
	{"Escape", "Casts cards from the graveyard by exiling other cards."},
	{"Delirium", "Rewards having many card types in the graveyard."},
	{"Threshold", "Rewards having seven or more cards in the graveyard."},
	{"Graveyard Hate", "Exiles or punishes cards in graveyards."},
	{"Dredge", "Replaces draws with milling to refill the graveyard."},
	{"Unearth", "Temporarily returns creatures from the graveyard for one attack."},
	{"Disturb", "Casts creatures transformed from the graveyard."},
	{"Embalm and Eternalize", "Creates token copies of creatures from the graveyard."},

	// Spells
	{"Spellslinger", "Casts many instants and sorceries and rewards each one."},
	{"Prowess", "Creatures that grow whenever you cast noncreature spells."},
	{"Magecraft", "Triggers whenever you cast or copy an instant or sorcery."},
	{"Spell Copy", "Copies instants and sorceries."},
	{"Storm", "Counts or rewards many spells cast in a single turn."},
	{"Cost Reduction", "Makes spells or abilities cheaper to cast."},
	{"Counterspells", "Counters opposing spells or abilities."},
	{"Flash", "Plays threats at instant speed."},
	{"Cantrips", "Cheap spells that replace themselves with a card."},
	{"X Spells", "Spells whose effect scales with mana spent on X."},
	{"Cascade", "Casts free spells from the top of the library."},
	{"Kicker", "Spells with optional additional costs for bigger effects."},
	{"Adventure", "Creatures with an attached adventure spell."},
	{"Foretell", "Exiles cards face down to cast later at a discount."},

	// Card flow
	{"Card Draw", "Draws extra cards for card advantage."},
	{"Wheels", "Makes every player discard hands and draw new ones."},
	{"Looting", "Draws then discards, or discards then draws."},
	{"Discard Payoffs", "Rewards discarding cards, including madness."},
	{"Madness", "Casts cards cheaply when they are discarded."},
	{"Hand Disruption", "Makes opponents discard or reveals and takes cards from their hands."},
	{"Impulse Draw", "Exiles cards from the top of the library and lets you play them briefly."},
	{"Scry and Surveil", "Manipulates the top of the library with scry or surveil."},
	{"Tutors", "Searches the library for specific cards."},
	{"Top of Library", "Plays or reveals cards from the top of the library."},
	{"Connive", "Draws and discards, growing creatures when nonlands are discarded."},

	// Counters
	{"+1/+1 Counters", "Places and rewards +1/+1 counters."},
	{"-1/-1 Counters", "Places -1/-1 counters to shrink or kill creatures."},
	{"Proliferate", "Adds more of each kind of counter already present."},
	{"Counter Doubling", "Doubles counters placed on permanents."},
	{"Modular and Graft", "Moves counters between creatures."},
	{"Charge Counters", "Accumulates counters on artifacts or enchantments for effects."},
	{"Oil Counters", "Uses oil counters on permanents."},
	{"Superfriends", "Builds around many planeswalkers and loyalty abilities."},
	{"Sagas", "Uses chapter abilities of Sagas and lore counters."},
	{"Poison", "Wins with poison or infect and toxic."},

	// Artifacts and enchantments
	{"Artifacts", "Plays many artifacts and rewards artifact count."},
	{"Equipment", "Attaches equipment to creatures."},
	{"Vehicles", "Crews vehicles with creatures."},
	{"Affinity", "Reduces costs based on the number of artifacts."},
	{"Metalcraft", "Rewards controlling three or more artifacts."},
	{"Improvise", "Taps artifacts to help cast spells."},
	{"Enchantress", "Draws cards or gains value when enchantments are cast."},
	{"Auras", "Enchants creatures with auras for big threats."},
	{"Constellation", "Triggers when enchantments enter."},
	{"Shrines", "Enchantments that scale with each other."},
	{"Role Tokens", "Creates Role aura tokens on creatures."},

	// Lands and mana
	{"Ramp", "Accelerates mana with extra lands or mana producers."},
	{"Big Mana", "Generates large amounts of mana for expensive spells."},
	{"Mana Rocks", "Artifacts that tap for mana."},
	{"Mana Dorks", "Creatures that tap for mana."},
	{"Landfall", "Triggers whenever a land enters under your control."},
	{"Lands Matter", "Plays extra lands and rewards land count."},
	{"Land Destruction", "Destroys opponents' lands."},
	{"Domain", "Counts basic land types among lands you control."},
	{"Deserts", "Rewards controlling or sacrificing Deserts."},
	{"Color Fixing", "Produces mana of multiple colors."},
	{"Untap Effects", "Untaps permanents to reuse them."},
	{"Big Spells", "Casts spells with mana value six or greater."},

	// Entering and leaving
	{"ETB Value", "Creatures with valuable enter-the-battlefield abilities."},
	{"Blink", "Exiles and returns permanents to reuse their enter abilities."},
	{"Bounce", "Returns permanents to their owners' hands."},
	{"Leaves the Battlefield", "Rewards permanents leaving the battlefield."},
	{"Evoke", "Casts creatures for their enter ability and immediately sacrifices them."},

	// Combat
	{"Aggro", "Plays cheap creatures and attacks early."},
	{"Burn", "Deals direct damage to players and creatures."},
	{"Voltron", "Wins by suiting up one creature with auras or equipment."},
	{"Evasion", "Creatures that are hard to block."},
	{"Flyers", "Attacks with creatures with flying."},
	{"Combat Tricks", "Instant-speed pump and protection during combat."},
	{"Extra Combat", "Takes additional combat phases."},
	{"Attack Triggers", "Rewards attacking with abilities that trigger on attack."},
	{"Goad", "Forces opponents' creatures to attack others."},
	{"Trample", "Pushes damage past blockers with trample."},
	{"First Strike", "Uses first strike and double strike in combat."},
	{"Deathtouch", "Kills blockers and attackers with deathtouch."},
	{"Power Matters", "Rewards creatures with high power."},
	{"Toughness Matters", "Deals damage or attacks based on toughness."},
	{"Defenders", "Walls and defenders that reward blocking."},
	{"Pump", "Grants temporary power and toughness boosts."},
	{"Anthems", "Static effects that boost all your creatures."},
	{"Fight", "Makes creatures fight or bite other creatures."},
	{"Mentor and Training", "Creatures that grow smaller or weaker allies when attacking."},
	{"Exert", "Exerts attackers for bonuses."},
	{"Monarch and Initiative", "Takes the monarch or initiative for ongoing value."},

	// Life
	{"Lifegain", "Gains life and rewards each life gain event."},
	{"Lifelink", "Creatures with lifelink."},
	{"Pay Life", "Uses life as a resource."},

	// Control
	{"Control", "Answers threats and wins late."},
	{"Removal", "Destroys or exiles creatures and other permanents."},
	{"Board Wipes", "Destroys or damages every creature at once."},
	{"Stax", "Taxes or restricts opponents' resources."},
	{"Tapper", "Taps down opposing creatures."},
	{"Pillow Fort", "Discourages opponents from attacking you."},
	{"Theft", "Gains control of opponents' permanents."},
	{"Steal and Cast", "Exiles opponents' cards and lets you cast them."},
	{"Protection", "Grants hexproof, indestructible or protection."},
	{"Fog", "Prevents combat damage."},
	{"Group Hug", "Helps every player with cards or mana."},
	{"Politics", "Bargains and rewards in multiplayer games."},
	{"Alternate Win", "Wins the game outside normal damage."},

	// Tribes
	{"Tribal", "Rewards creatures sharing a creature type."},
	{"Elves", "Elf creatures and elf payoffs."},
	{"Goblins", "Goblin creatures and goblin payoffs."},
	{"Zombies", "Zombie creatures and zombie payoffs."},
	{"Vampires", "Vampire creatures and vampire payoffs."},
	{"Dragons", "Dragon creatures and dragon payoffs."},
	{"Angels", "Angel creatures and angel payoffs."},
	{"Merfolk", "Merfolk creatures and merfolk payoffs."},
	{"Humans", "Human creatures and human payoffs."},
	{"Wizards", "Wizard creatures and wizard payoffs."},
	{"Knights", "Knight creatures and knight payoffs."},
	{"Soldiers", "Soldier creatures and soldier payoffs."},
	{"Spirits", "Spirit creatures and spirit payoffs."},
	{"Dinosaurs", "Dinosaur creatures and enrage payoffs."},
	{"Pirates", "Pirate creatures and pirate payoffs."},
	{"Cats", "Cat creatures and cat payoffs."},
	{"Elementals", "Elemental creatures and elemental payoffs."},
	{"Slivers", "Sliver creatures that share abilities."},
	{"Rogues", "Rogue creatures and rogue payoffs."},
	{"Faeries", "Faerie creatures and flash payoffs."},
	{"Squirrels", "Squirrel creatures and squirrel payoffs."},
	{"Rats", "Rat creatures and rat payoffs."},
	{"Changelings", "Creatures with every creature type."},

	// Multiplayer and misc
	{"Historic", "Rewards casting artifacts, legendaries and Sagas."},
	{"Legends Matter", "Rewards legendary permanents."},
	{"Snow", "Snow permanents and snow mana payoffs."},
	{"Day and Night", "Transforms with day and night."},
	{"Transform", "Double-faced cards that transform."},
	{"Venture", "Ventures into dungeons."},
	{"Dice Rolling", "Rolls dice for effects."},
	{"Coin Flipping", "Flips coins for effects."},
	{"Energy", "Gets and spends energy counters."},
	{"Experience Counters", "Accumulates experience counters."},
	{"Cycling", "Cycles cards and rewards cycling."},
	{"Morph", "Plays creatures face down and turns them up."},
	{"Ninjutsu", "Swaps unblocked attackers for ninjas."},
	{"Mutate", "Merges mutating creatures."},
	{"Party", "Rewards Cleric, Rogue, Warrior and Wizard in play."},
}

var byName = func() map[string]Theme {
	m := make(map[string]Theme, len(catalog))
	for _, t := range catalog {
		m[strings.ToLower(t.Name)] = t
	}
	return m
}()

// Lookup finds a catalog theme by case-insensitive name.
func Lookup(name string) (Theme, bool) {
	t, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// All returns the catalog sorted by name.
func All() []Theme {
	out := make([]Theme, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of catalog themes.
func Len() int {
	return len(byName)
}
