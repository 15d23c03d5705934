package synergy

import (
	"regexp"
	"strings"
)

// Pattern identifies one side of a rule. A card satisfies the pattern when
// any criterion matches: a text regexp, a type line substring or a minimum
// mana value.
type Pattern struct {
	Text  []*regexp.Regexp
	Types []string
	MinMV float64
}

func (p Pattern) matches(c *profile) bool {
	if c.text != "" {
		for _, re := range p.Text {
			if re.MatchString(c.text) {
				return true
			}
		}
	}
	for _, t := range p.Types {
		if strings.Contains(c.typeLine, t) {
			return true
		}
	}
	return p.MinMV > 0 && c.mv >= p.MinMV
}

// Rule awards Weight when one card of the pair is the enabler and the other the payoff.
type Rule struct {
	Name    string
	Enabler Pattern
	Payoff  Pattern
	Weight  int
	Reason  string
}

// applies checks both orientations of the pair.
func (r Rule) applies(a, b *profile) bool {
	return r.Enabler.matches(a) && r.Payoff.matches(b) ||
		r.Enabler.matches(b) && r.Payoff.matches(a)
}

// Combo is a complementary pair that is strong enough to be worth ComboWeight
// on its own. Several combo hits on one pair are reported once.
type Combo struct {
	Name   string
	Piece  Pattern
	Other  Pattern
	Reason string
}

func (c Combo) applies(a, b *profile) bool {
	return c.Piece.matches(a) && c.Other.matches(b) ||
		c.Piece.matches(b) && c.Other.matches(a)
}

const (
	// Threshold is the minimum score for a candidate to be returned.
	Threshold = 20
	// ComboWeight is the flat contribution of a detected combo.
	ComboWeight = 40
	// TribalWeight is awarded for a shared or referenced creature type.
	TribalWeight = 20
)

func re(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// rules is evaluated in order; every rule contributes at most once per pair.
var rules = []Rule{
	{
		Name: "tokens",
		Enabler: Pattern{Text: re(
			`\bcreates? [^.]*\btokens?\b`,
			`\bpopulate\b`,
			`\bamass\b`,
		)},
		Payoff: Pattern{Text: re(
			`\bsacrifices? (a|an|another|one or more) [^.:]*(creature|permanent|artifact|token)`,
			`\bfor each (creature|token)[^.]* you control`,
			`\bwhenever (a|an|another|one or more) [^.]*(creatures?|tokens?) [^.]*(die|dies|enter|enters)\b`,
			`\b(creatures|tokens) you control get \+`,
			`\bconvoke\b`,
		)},
		Weight: 35,
		Reason: "token generation feeds sacrifice and go-wide token payoffs",
	},
	{
		Name: "self_mill",
		Enabler: Pattern{Text: re(
			`\bmills?\b`,
			`\bput the top [^.]* into your graveyard`,
			`\bsurveil\b`,
		)},
		Payoff: Pattern{Text: re(
			`\bfrom your graveyard\b`,
			`\bcards? in your graveyard\b`,
			`\b(flashback|escape|unearth|delve|threshold|delirium|embalm|eternalize)\b`,
		)},
		Weight: 30,
		Reason: "self-mill fills the graveyard for graveyard payoffs",
	},
	{
		Name: "ramp",
		Enabler: Pattern{Text: re(
			`\badd \{`,
			`\badd (one|two|three|x) mana\b`,
			`\badds? [^.]*\bmana\b`,
			`\bsearch your library for [^.]*\blands? cards?[^.]* onto the battlefield`,
		)},
		Payoff: Pattern{MinMV: 6},
		Weight: 25,
		Reason: "mana acceleration casts expensive spells sooner",
	},
	{
		Name: "artifacts",
		Enabler: Pattern{
			Types: []string{"artifact"},
			Text: re(
				`\bcreates? [^.]*\b(treasure|clue|food|blood|map|powerstone|thopter|servo|gold)\b[^.]*\btokens?\b`,
				`\bartifact creature tokens?\b`,
			),
		},
		Payoff: Pattern{Text: re(
			`\bmetalcraft\b`,
			`\baffinity for artifacts\b`,
			`\bimprovise\b`,
			`\bfor each artifact\b`,
			`\bartifacts you control\b`,
			`\bwhenever (an|another|one or more) [^.]*artifacts? [^.]*(enter|enters|put into)\b`,
		)},
		Weight: 30,
		Reason: "artifacts power metalcraft and artifact-count payoffs",
	},
	{
		Name: "blink",
		Enabler: Pattern{Text: re(
			`\bwhen [^.]*\benters\b`,
		)},
		Payoff: Pattern{Text: re(
			`\breturn [^.]* to (its|their) owner'?s'? hands?\b`,
			`\bexile [^.]*\breturn (it|that card|them|those cards) to the battlefield\b`,
			`\bflicker\b`,
		)},
		Weight: 25,
		Reason: "bounce and blink effects re-trigger enter-the-battlefield abilities",
	},
	{
		Name: "lifegain",
		Enabler: Pattern{Text: re(
			`\bgains? (\d+|x|that much) life\b`,
			`\blifelink\b`,
		)},
		Payoff: Pattern{Text: re(
			`\bwhenever you gain life\b`,
			`\bif you gained life\b`,
			`\bfor each 1 life you gained\b`,
		)},
		Weight: 25,
		Reason: "incidental lifegain triggers life-matters payoffs",
	},
	{
		Name: "counters",
		Enabler: Pattern{Text: re(
			`\bputs? (a|one|two|three|x|\d+) \+1/\+1 counters?\b`,
			`\benters (the battlefield )?with [^.]*\+1/\+1 counters?\b`,
		)},
		Payoff: Pattern{Text: re(
			`\bproliferate\b`,
			`\b(creatures?|permanents?) you control with [^.]*counters?\b`,
			`\bwhenever one or more \+1/\+1 counters\b`,
			`\bdouble the number of [^.]*counters\b`,
		)},
		Weight: 20,
		Reason: "+1/+1 counters feed counter-matters payoffs",
	},
	{
		Name:    "spells",
		Enabler: Pattern{Types: []string{"instant", "sorcery"}},
		Payoff: Pattern{Text: re(
			`\bprowess\b`,
			`\bmagecraft\b`,
			`\bwhenever you cast (an instant or sorcery|a noncreature) spell\b`,
			`\bwhenever you cast or copy\b`,
		)},
		Weight: 20,
		Reason: "instants and sorceries trigger spellcast payoffs",
	},
	{
		Name: "discard",
		Enabler: Pattern{Text: re(
			`\bdiscards? (a|one|two|x|one or more|your hand|any number of) ?cards?\b`,
			`\b(cycling|connive|connives)\b`,
		)},
		Payoff: Pattern{Text: re(
			`\bmadness\b`,
			`\bwhenever you (discard|cycle)\b`,
			`\bwhenever a player discards\b`,
		)},
		Weight: 20,
		Reason: "discard outlets enable madness and discard payoffs",
	},
	{
		Name: "landfall",
		Enabler: Pattern{Text: re(
			`\bsearch your library for [^.]*\blands?\b`,
			`\bplay an additional land\b`,
			`\bput [^.]*\bland cards? [^.]*onto the battlefield\b`,
		)},
		Payoff: Pattern{Text: re(
			`\blandfall\b`,
			`\bwhenever (a|one or more) lands? (you control )?enters?\b`,
		)},
		Weight: 20,
		Reason: "extra land drops trigger landfall payoffs",
	},
}

// combos detect complementary pairs that go infinite or near-infinite.
var combos = []Combo{
	{
		Name: "untap_tap",
		Piece: Pattern{Text: re(
			`\buntap (target|another target|up to \w+ target|all|each)\b[^.]*\b(permanents?|creatures?|artifacts?|lands?)\b`,
		)},
		Other:  Pattern{Text: re(`\{t\}(, [^:]*)?:`)},
		Reason: "combo: untap effect reuses a tap ability",
	},
	{
		Name:  "mana_untap_or_copy",
		Piece: Pattern{Text: re(`\{t\}(, [^:]*)?: add\b`)},
		Other: Pattern{Text: re(
			`\buntap (target|another target|up to \w+ target|all|each|it|that|~)\b`,
			`\bcopy (target|that|it)\b[^.]*\b(spell|ability|permanent|creature|artifact)\b`,
			`\bcreate a token that's a copy\b`,
		)},
		Reason: "combo: mana source paired with untap or copy effect",
	},
}

