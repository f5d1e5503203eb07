package boundary

import (
	"testing"
	"time"
	"vlogclip/config"
	"vlogclip/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowDefault(t *testing.T) {
	windows, err := FixedWindow{Start: 30, Duration: 10}.Select(types.VideoMeta{ID: "ABC123"}, 0)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 30.0, windows[0].Start)
	assert.Equal(t, 40.0, windows[0].End())
}

func TestFixedWindowCustomDurationKeepsStart(t *testing.T) {
	windows, err := FixedWindow{Start: 30, Duration: 10}.Select(types.VideoMeta{}, 25)
	require.NoError(t, err)
	assert.Equal(t, 30.0, windows[0].Start)
	assert.Equal(t, 55.0, windows[0].End())

	_, err = FixedWindow{Start: 30}.Select(types.VideoMeta{}, 0)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	_, ok := FromConfig(config.Clip{Strategy: config.StrategyFixed, StartOffset: 30, Duration: 10}).(FixedWindow)
	assert.True(t, ok)
	_, ok = FromConfig(config.Clip{Strategy: config.StrategyHighlights, Duration: 10}).(*Highlights)
	assert.True(t, ok)
}

func TestHighlightsSpreadAcrossSource(t *testing.T) {
	h := NewHighlights(3, 30, 10)
	windows, err := h.Select(types.VideoMeta{Title: "Untitled", Duration: 200 * time.Second}, 0)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	assert.Equal(t, 15.0, windows[0].Start)
	assert.Equal(t, 95.0, windows[1].Start)
	assert.Equal(t, 155.0, windows[2].Start)
	assert.Equal(t, "Opening Hook", windows[0].Label)
	assert.Equal(t, "Climax", windows[2].Label)
	for _, w := range windows {
		assert.LessOrEqual(t, w.End(), 200.0)
	}
}

func TestHighlightsShortSourceDropsOverlaps(t *testing.T) {
	h := NewHighlights(3, 30, 10)
	windows, err := h.Select(types.VideoMeta{Duration: 12 * time.Second}, 0)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 0.0, windows[0].Start)
	assert.LessOrEqual(t, windows[0].End(), 12.0)
}

func TestHighlightsUnknownLengthFallsBackToOffsets(t *testing.T) {
	h := NewHighlights(2, 30, 10)
	windows, err := h.Select(types.VideoMeta{}, 5)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, 30.0, windows[0].Start)
	assert.Equal(t, 35.0, windows[1].Start)
}

func TestHighlightsLabelsFollowTitleRules(t *testing.T) {
	h := NewHighlights(3, 0, 10)
	windows, err := h.Select(types.VideoMeta{Title: "Ultimate Tutoral: Editing on Mobile", Duration: 10 * time.Minute}, 0)
	require.NoError(t, err)
	assert.Equal(t, "The Setup", windows[0].Label)
	assert.Equal(t, "Key Tip", windows[1].Label)
	assert.Equal(t, "The Result", windows[2].Label)
}

func TestMatchRule(t *testing.T) {
	_, ok := MatchRule(defaultRules, "My Tokyo trip!")
	assert.True(t, ok)
	_, ok = MatchRule(defaultRules, "tip")
	assert.False(t, ok, "short words need an exact keyword")
	_, ok = MatchRule(defaultRules, "Quarterly earnings call")
	assert.False(t, ok)
}
