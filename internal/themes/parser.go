package themes

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ramonehamilton/cardsynergy/internal/llm"
)

// Confidence bounds for accepted proposals. Values outside are discarded,
// not clamped.
const (
	MinConfidence = 25
	MaxConfidence = 100
)

// Proposal is one theme suggested by the generator.
type Proposal struct {
	Theme      string `json:"theme"`
	Confidence int    `json:"confidence"`
}

var (
	proposalLine = regexp.MustCompile(`^(.+?)\s*[:\-–]\s*(\d{1,3})\s*%`)
	listMarker   = regexp.MustCompile(`^(?:[-*•]+\s+|\d+[.)]\s+)`)
)

// ParseResponse extracts catalog themes from generator output. Lines that do
// not name a catalog theme or carry a confidence outside [MinConfidence,
// MaxConfidence] are dropped. Duplicates keep their first occurrence. The
// result is ordered by confidence then name and holds at most MaxThemes.
func ParseResponse(text string) []Proposal {
	text = llm.StripThinking(text)

	seen := make(map[string]bool)
	var out []Proposal

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.NewReplacer("**", "", "__", "", "`", "").Replace(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := proposalLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		theme, ok := Lookup(strings.Trim(m[1], `"'*_ `))
		if !ok {
			continue
		}
		confidence, err := strconv.Atoi(m[2])
		if err != nil || confidence < MinConfidence || confidence > MaxConfidence {
			continue
		}
		if seen[theme.Name] {
			continue
		}
		seen[theme.Name] = true
		out = append(out, Proposal{Theme: theme.Name, Confidence: confidence})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Theme < out[j].Theme
	})
	if len(out) > MaxThemes {
		out = out[:MaxThemes]
	}
	return out
}
