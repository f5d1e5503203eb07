package boundary

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"vlogclip/internal/types"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Position marks where in the source a highlight is taken from, as a fraction of its length.
type Position struct {
	Label    string
	Fraction float64
}

var defaultPositions = []Position{
	{Label: "Opening Hook", Fraction: 0.1},
	{Label: "Mid Peak", Fraction: 0.5},
	{Label: "Climax", Fraction: 0.8},
}

// Rule renames a position when the title looks like a genre. Keywords match
// within a small edit distance so "tutoral" still counts as "tutorial".
type Rule struct {
	Keywords []string
	Labels   map[string]string
}

var defaultRules = []Rule{
	{
		Keywords: []string{"tutorial", "howto", "guide", "explained", "tips"},
		Labels:   map[string]string{"Opening Hook": "The Setup", "Mid Peak": "Key Tip", "Climax": "The Result"},
	},
	{
		Keywords: []string{"review", "unboxing", "versus", "comparison"},
		Labels:   map[string]string{"Opening Hook": "First Look", "Mid Peak": "Deep Dive", "Climax": "The Verdict"},
	},
	{
		Keywords: []string{"challenge", "prank", "reaction", "attempt"},
		Labels:   map[string]string{"Opening Hook": "The Dare", "Mid Peak": "Rising Stakes", "Climax": "The Payoff"},
	},
	{
		Keywords: []string{"travel", "vlog", "trip", "journey", "routine"},
		Labels:   map[string]string{"Opening Hook": "Arrival", "Mid Peak": "Best Moment", "Climax": "Grand Finale"},
	},
}

// Highlights picks up to Count windows spread across the source. When the
// source length is unknown it falls back to consecutive windows from Start.
type Highlights struct {
	Count     int
	Start     float64
	Duration  float64
	Positions []Position
	Rules     []Rule
}

func NewHighlights(count int, start, duration float64) *Highlights {
	if count <= 0 || count > len(defaultPositions) {
		count = len(defaultPositions)
	}
	return &Highlights{
		Count:     count,
		Start:     start,
		Duration:  duration,
		Positions: defaultPositions,
		Rules:     defaultRules,
	}
}

func (h *Highlights) Select(meta types.VideoMeta, duration float64) ([]types.ClipWindow, error) {
	d := h.Duration
	if duration > 0 {
		d = duration
	}
	if d <= 0 {
		return nil, fmt.Errorf("clip duration must be positive, got %v", d)
	}

	positions := h.Positions
	if h.Count < len(positions) {
		positions = positions[:h.Count]
	}
	labels := h.labelsFor(meta.Title)
	total := meta.Duration.Seconds()

	windows := make([]types.ClipWindow, 0, len(positions))
	if total <= 0 {
		for i, p := range positions {
			windows = append(windows, types.ClipWindow{Start: h.Start + float64(i)*d, Duration: d, Label: labels[p.Label]})
		}
		return windows, nil
	}

	lastEnd := -1.0
	for _, p := range positions {
		start := math.Floor(total*p.Fraction - d/2)
		if start < 0 {
			start = 0
		}
		if start+d > total {
			start = math.Max(0, total-d)
		}
		if start < lastEnd {
			// short source: windows would overlap, keep what fits
			continue
		}
		windows = append(windows, types.ClipWindow{Start: start, Duration: math.Min(d, total-start), Label: labels[p.Label]})
		lastEnd = start + d
	}
	return windows, nil
}

func (h *Highlights) labelsFor(title string) map[string]string {
	labels := make(map[string]string, len(h.Positions))
	for _, p := range h.Positions {
		labels[p.Label] = p.Label
	}
	rule, ok := MatchRule(h.Rules, title)
	if !ok {
		return labels
	}
	for from, to := range rule.Labels {
		labels[from] = to
	}
	return labels
}

// MatchRule returns the first rule with a keyword close to any word of title.
func MatchRule(rules []Rule, title string) (Rule, bool) {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			for _, w := range words {
				if fuzzyEqual(w, kw) {
					return rule, true
				}
			}
		}
	}
	return Rule{}, false
}

func fuzzyEqual(word, keyword string) bool {
	if word == keyword {
		return true
	}
	// one typo allowed for longer words only
	if len([]rune(keyword)) < 5 {
		return false
	}
	return levenshtein.DistanceForStrings([]rune(word), []rune(keyword), levenshtein.DefaultOptions) <= 1
}
