// Package filter implements the card filter predicate shared by search,
// recommendations and theme card listings.
//
// Matching is fail-open: a filter field that cannot be interpreted is ignored
// rather than excluding cards.
package filter

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
)

// FormatAll disables the legality check.
const FormatAll = "all"

// Filter is an optional set of constraints. Zero values impose no constraint.
type Filter struct {
	Name          string   `json:"name,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	ColorIdentity []string `json:"color_identity,omitempty"`
	Types         []string `json:"types,omitempty"`
	MinMV         *float64 `json:"min_mv,omitempty"`
	MaxMV         *float64 `json:"max_mv,omitempty"`
	Format        string   `json:"format,omitempty"`
	Rarities      []string `json:"rarities,omitempty"`
	Set           string   `json:"set,omitempty"`
	Power         string   `json:"power,omitempty"`
	Toughness     string   `json:"toughness,omitempty"`
	OracleText    string   `json:"oracle_text,omitempty"`

	// Ignored lists fields that were present but could not be interpreted.
	Ignored []string `json:"-"`
}

var colorAliases = map[string]string{
	"w": "W", "white": "W",
	"u": "U", "blue": "U",
	"b": "B", "black": "B",
	"r": "R", "red": "R",
	"g": "G", "green": "G",
	"c": "C", "colorless": "C",
}

// knownFormats mirrors the legality keys Scryfall publishes.
var knownFormats = map[string]bool{
	"standard": true, "future": true, "historic": true, "timeless": true, "gladiator": true,
	"pioneer": true, "explorer": true, "modern": true, "legacy": true, "pauper": true,
	"vintage": true, "penny": true, "commander": true, "oathbreaker": true, "standardbrawl": true,
	"brawl": true, "historicbrawl": true, "alchemy": true, "paupercommander": true, "duel": true,
	"oldschool": true, "premodern": true, "predh": true,
}

// Matches reports whether card satisfies every interpretable constraint in f.
// A nil filter matches every card; a nil card matches nothing.
func Matches(card *cards.Card, f *Filter) bool {
	if card == nil {
		return false
	}
	if f == nil {
		return true
	}

	if f.Name != "" && !containsFold(card.Name, f.Name) {
		return false
	}

	if colors := normalizeColors(f.Colors); len(colors) > 0 && !matchesColors(card, colors) {
		return false
	}

	if identity := normalizeColors(f.ColorIdentity); len(identity) > 0 && !withinIdentity(card, identity) {
		return false
	}

	if types := nonBlank(f.Types); len(types) > 0 {
		matched := false
		for _, t := range types {
			if containsFold(card.TypeLine, t) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if lo, hi, ok := f.manaBounds(); ok {
		if lo != nil && card.CMC < *lo {
			return false
		}
		if hi != nil && card.CMC > *hi {
			return false
		}
	}

	if format := strings.ToLower(strings.TrimSpace(f.Format)); format != "" && format != FormatAll && knownFormats[format] {
		if !card.IsLegal(format) {
			return false
		}
	}

	if rarities := nonBlank(f.Rarities); len(rarities) > 0 {
		matched := false
		for _, r := range rarities {
			if strings.EqualFold(card.Rarity, r) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if set := strings.TrimSpace(f.Set); set != "" {
		if !strings.EqualFold(card.SetCode, set) && !strings.EqualFold(card.SetName, set) {
			return false
		}
	}

	if p := strings.TrimSpace(f.Power); p != "" && (card.Power == nil || strings.TrimSpace(*card.Power) != p) {
		return false
	}
	if t := strings.TrimSpace(f.Toughness); t != "" && (card.Toughness == nil || strings.TrimSpace(*card.Toughness) != t) {
		return false
	}

	if f.OracleText != "" && !containsFold(card.OracleText, f.OracleText) {
		return false
	}

	return true
}

// IsZero reports whether f imposes no constraint at all.
func (f *Filter) IsZero() bool {
	if f == nil {
		return true
	}
	return f.Name == "" && len(f.Colors) == 0 && len(f.ColorIdentity) == 0 && len(f.Types) == 0 &&
		f.MinMV == nil && f.MaxMV == nil && f.Format == "" && len(f.Rarities) == 0 &&
		f.Set == "" && f.Power == "" && f.Toughness == "" && f.OracleText == ""
}

// manaBounds returns the usable mana value bounds. Negative bounds and an
// inverted range are malformed, so the range check is skipped entirely.
func (f *Filter) manaBounds() (lo, hi *float64, ok bool) {
	if f.MinMV == nil && f.MaxMV == nil {
		return nil, nil, false
	}
	if f.MinMV != nil && *f.MinMV < 0 || f.MaxMV != nil && *f.MaxMV < 0 {
		return nil, nil, false
	}
	if f.MinMV != nil && f.MaxMV != nil && *f.MinMV > *f.MaxMV {
		return nil, nil, false
	}
	return f.MinMV, f.MaxMV, true
}

func matchesColors(card *cards.Card, want map[string]bool) bool {
	if want["C"] && len(card.Colors) == 0 && len(card.ColorIdentity) == 0 {
		return true
	}
	for _, c := range card.Colors {
		if want[strings.ToUpper(c)] {
			return true
		}
	}
	for _, c := range card.ColorIdentity {
		if want[strings.ToUpper(c)] {
			return true
		}
	}
	return false
}

func withinIdentity(card *cards.Card, allowed map[string]bool) bool {
	for _, c := range card.ColorIdentity {
		if !allowed[strings.ToUpper(c)] {
			return false
		}
	}
	return true
}

// normalizeColors maps symbols and names to WUBRGC, dropping anything unknown.
func normalizeColors(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if sym, ok := colorAliases[strings.ToLower(strings.TrimSpace(v))]; ok {
			out[sym] = true
		}
	}
	return out
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

// Parse builds a Filter from query parameters. List parameters accept either
// repeated keys or comma-separated values. Unparseable fields are recorded in
// Ignored and left unset.
func Parse(values url.Values) *Filter {
	f := &Filter{
		Name:          strings.TrimSpace(values.Get("name")),
		Colors:        listParam(values, "colors"),
		ColorIdentity: listParam(values, "color_identity"),
		Types:         listParam(values, "types"),
		Format:        strings.TrimSpace(values.Get("format")),
		Rarities:      listParam(values, "rarities"),
		Set:           strings.TrimSpace(values.Get("set")),
		Power:         strings.TrimSpace(values.Get("power")),
		Toughness:     strings.TrimSpace(values.Get("toughness")),
		OracleText:    strings.TrimSpace(values.Get("oracle_text")),
	}
	f.MinMV = f.floatParam(values, "min_mv")
	f.MaxMV = f.floatParam(values, "max_mv")
	f.audit()
	return f
}

func listParam(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (f *Filter) floatParam(values url.Values, key string) *float64 {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.Ignored = append(f.Ignored, key)
		return nil
	}
	return &v
}

// UnmarshalJSON decodes a filter field by field so one malformed field does
// not reject the whole filter.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filter{}
	f.Name = f.stringField(raw, "name")
	f.Colors = f.listField(raw, "colors")
	f.ColorIdentity = f.listField(raw, "color_identity")
	f.Types = f.listField(raw, "types")
	f.MinMV = f.floatField(raw, "min_mv")
	f.MaxMV = f.floatField(raw, "max_mv")
	f.Format = f.stringField(raw, "format")
	f.Rarities = f.listField(raw, "rarities")
	f.Set = f.stringField(raw, "set")
	f.Power = f.stringField(raw, "power")
	f.Toughness = f.stringField(raw, "toughness")
	f.OracleText = f.stringField(raw, "oracle_text")
	f.audit()
	return nil
}

func (f *Filter) stringField(raw map[string]json.RawMessage, key string) string {
	msg, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		return n.String()
	}
	f.Ignored = append(f.Ignored, key)
	return ""
}

func (f *Filter) listField(raw map[string]json.RawMessage, key string) []string {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	var list []string
	if err := json.Unmarshal(msg, &list); err == nil {
		return nonBlank(list)
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return nonBlank(strings.Split(s, ","))
	}
	f.Ignored = append(f.Ignored, key)
	return nil
}

func (f *Filter) floatField(raw map[string]json.RawMessage, key string) *float64 {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err == nil {
		return &v
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	f.Ignored = append(f.Ignored, key)
	return nil
}

// audit records fields that are present but will be skipped by Matches.
func (f *Filter) audit() {
	if len(f.Colors) > 0 && len(normalizeColors(f.Colors)) == 0 {
		f.Ignored = append(f.Ignored, "colors")
	}
	if len(f.ColorIdentity) > 0 && len(normalizeColors(f.ColorIdentity)) == 0 {
		f.Ignored = append(f.Ignored, "color_identity")
	}
	if f.MinMV != nil || f.MaxMV != nil {
		if _, _, ok := f.manaBounds(); !ok {
			f.Ignored = append(f.Ignored, "min_mv/max_mv")
		}
	}
	if format := strings.ToLower(f.Format); format != "" && format != FormatAll && !knownFormats[format] {
		f.Ignored = append(f.Ignored, "format")
	}
}

// CacheKey returns a canonical encoding of f. Filters that match the same
// cards in the same way produce the same key regardless of list order or case.
func (f *Filter) CacheKey() string {
	if f == nil {
		return "{}"
	}
	canonical := Filter{
		Name:          strings.ToLower(f.Name),
		Colors:        sortedKeys(normalizeColors(f.Colors)),
		ColorIdentity: sortedKeys(normalizeColors(f.ColorIdentity)),
		Types:         sortedLower(f.Types),
		Format:        strings.ToLower(f.Format),
		Rarities:      sortedLower(f.Rarities),
		Set:           strings.ToLower(f.Set),
		Power:         f.Power,
		Toughness:     f.Toughness,
		OracleText:    strings.ToLower(f.OracleText),
	}
	if lo, hi, ok := f.manaBounds(); ok {
		canonical.MinMV, canonical.MaxMV = lo, hi
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func sortedLower(values []string) []string {
	values = nonBlank(values)
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
