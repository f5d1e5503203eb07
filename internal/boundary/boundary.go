package boundary

import (
	"fmt"
	"vlogclip/config"
	"vlogclip/internal/types"
)

// Selector decides which windows of a source become clips.
type Selector interface {
	Select(meta types.VideoMeta, duration float64) ([]types.ClipWindow, error)
}

// FixedWindow always cuts [Start, Start+Duration). A positive duration
// argument replaces Duration but never moves Start.
type FixedWindow struct {
	Start    float64
	Duration float64
}

func (f FixedWindow) Select(_ types.VideoMeta, duration float64) ([]types.ClipWindow, error) {
	d := f.Duration
	if duration > 0 {
		d = duration
	}
	if d <= 0 {
		return nil, fmt.Errorf("clip duration must be positive, got %v", d)
	}
	return []types.ClipWindow{{Start: f.Start, Duration: d, Label: "Highlight"}}, nil
}

// FromConfig returns the selector named by clip.strategy.
func FromConfig(c config.Clip) Selector {
	if c.Strategy == config.StrategyHighlights {
		return NewHighlights(c.HighlightCount, c.StartOffset, c.Duration)
	}
	return FixedWindow{Start: c.StartOffset, Duration: c.Duration}
}
