package plan

import (
	"strings"
	"vlogclip/config"
	"vlogclip/internal/extractor"
	apperrors "vlogclip/pkg/errors"
)

const (
	Free     = "free"
	Pro      = "pro"
	Business = "business"
)

// Limits is what a plan allows and how its clips are rendered.
type Limits struct {
	Name            string  `json:"name"`
	MaxBatch        int     `json:"maxBatch"`
	MaxClipSeconds  float64 `json:"maxClipSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Bitrate         string  `json:"bitrate"`
	Watermark       string  `json:"watermark,omitempty"`
	MaxSourceHeight int     `json:"maxSourceHeight"`
}

func (l Limits) Profile() extractor.Profile {
	return extractor.Profile{
		Width:     l.Width,
		Height:    l.Height,
		Bitrate:   l.Bitrate,
		Watermark: l.Watermark,
	}
}

// CheckBatch reports whether n references may be submitted as one batch.
func (l Limits) CheckBatch(n int) error {
	if l.MaxBatch <= 1 {
		return apperrors.WrapWithDetail(apperrors.CodePlanLimit,
			"Batch processing is not available on the "+l.Name+" plan", "upgrade to pro or business", nil)
	}
	if n > l.MaxBatch {
		return apperrors.WrapWithDetail(apperrors.CodePlanLimit,
			"Too many videos for the "+l.Name+" plan", "", nil)
	}
	return nil
}

// ClipSeconds resolves the requested clip duration. Zero means the default.
func (l Limits) ClipSeconds(requested, fallback float64) (float64, error) {
	if requested == 0 {
		if l.MaxClipSeconds > 0 && fallback > l.MaxClipSeconds {
			return l.MaxClipSeconds, nil
		}
		return fallback, nil
	}
	if requested < 0 {
		return 0, apperrors.New(apperrors.CodeInvalidDuration, "Clip duration must be positive")
	}
	if l.MaxClipSeconds > 0 && requested > l.MaxClipSeconds {
		return 0, apperrors.WrapWithDetail(apperrors.CodePlanLimit,
			"Clip duration exceeds the "+l.Name+" plan limit", "", nil)
	}
	return requested, nil
}

// Lookup resolves a plan name to its limits.
type Lookup interface {
	Lookup(name string) (Limits, error)
}

type Static struct {
	defaultName string
	plans       map[string]Limits
}

func builtin() map[string]Limits {
	return map[string]Limits{
		Free: {
			Name: Free, MaxBatch: 1, MaxClipSeconds: 30,
			Width: 1080, Height: 1920, Bitrate: "8000k",
			Watermark: "Generated by VlogClip AI", MaxSourceHeight: 720,
		},
		Pro: {
			Name: Pro, MaxBatch: config.HardBatchLimit, MaxClipSeconds: 60,
			Width: 1080, Height: 1920, Bitrate: "20000k", MaxSourceHeight: 1080,
		},
		Business: {
			Name: Business, MaxBatch: config.HardBatchLimit, MaxClipSeconds: 90,
			Width: 2160, Height: 3840, Bitrate: "40000k", MaxSourceHeight: 2160,
		},
	}
}

// NewStatic builds the built-in plan table with overrides applied on top.
func NewStatic(defaultName string, overrides map[string]config.Plan) *Static {
	plans := builtin()
	for name, o := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		l, ok := plans[name]
		if !ok {
			l = plans[Pro]
		}
		l.Name = name
		if o.MaxBatch > 0 {
			l.MaxBatch = min(o.MaxBatch, config.HardBatchLimit)
		}
		if o.MaxClipSeconds > 0 {
			l.MaxClipSeconds = o.MaxClipSeconds
		}
		if o.Width > 0 && o.Height > 0 {
			l.Width, l.Height = o.Width, o.Height
		}
		if o.Bitrate != "" {
			l.Bitrate = o.Bitrate
		}
		if o.Watermark != "" {
			l.Watermark = o.Watermark
		}
		if o.MaxSourceHeight > 0 {
			l.MaxSourceHeight = o.MaxSourceHeight
		}
		plans[name] = l
	}

	defaultName = strings.ToLower(strings.TrimSpace(defaultName))
	if _, ok := plans[defaultName]; !ok {
		defaultName = Pro
	}
	return &Static{defaultName: defaultName, plans: plans}
}

func (s *Static) Lookup(name string) (Limits, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = s.defaultName
	}
	l, ok := s.plans[name]
	if !ok {
		return Limits{}, apperrors.WrapWithDetail(apperrors.CodeInvalidParams, "Unknown plan", name, nil)
	}
	return l, nil
}
