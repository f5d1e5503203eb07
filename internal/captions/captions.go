package captions

import (
	"context"
	"strings"
	"vlogclip/internal/types"
)

// Platforms captions are produced for, in display order.
var Platforms = []string{"tiktok", "twitter", "linkedin", "instagram"}

type Input struct {
	Meta   types.VideoMeta
	Window types.ClipWindow
	Index  int
	Total  int
}

// Copy is the text that goes with one clip.
type Copy struct {
	Headline string            `json:"headline"`
	Captions map[string]string `json:"captions"`
}

type Provider interface {
	Captions(ctx context.Context, in Input) (Copy, error)
}

// Template fills per-platform templates. Supported placeholders:
// {title}, {title30}, {author}, {label}, {timestamp}.
type Template struct {
	templates map[string]string
}

func NewTemplate(templates map[string]string) *Template {
	copied := make(map[string]string, len(templates))
	for k, v := range templates {
		copied[strings.ToLower(k)] = v
	}
	return &Template{templates: copied}
}

func (t *Template) Captions(_ context.Context, in Input) (Copy, error) {
	r := replacer(in)
	out := Copy{
		Headline: Headline(in),
		Captions: make(map[string]string, len(t.templates)),
	}
	for platform, tpl := range t.templates {
		out.Captions[platform] = r.Replace(tpl)
	}
	return out, nil
}

// Headline is "Highlight from <title>", or "<label> from <title>" when a
// source yields more than one clip.
func Headline(in Input) string {
	prefix := "Highlight"
	if in.Total > 1 && in.Window.Label != "" {
		prefix = in.Window.Label
	}
	return prefix + " from " + in.Meta.Title
}

// ErrorCopy is attached to placeholder clips.
func ErrorCopy() Copy {
	return Copy{
		Headline: "Error Processing Video",
		Captions: map[string]string{
			"tiktok":    "⚠️ Sorry! Couldn't process this video. Please try another one!",
			"twitter":   "We encountered an error processing this video. Please try another YouTube URL.",
			"linkedin":  "Technical difficulties encountered processing this content. Please try another video source.",
			"instagram": "⚠️ This video couldn't be processed. Try another link!",
		},
	}
}

func replacer(in Input) *strings.Replacer {
	return strings.NewReplacer(
		"{title30}", truncateRunes(in.Meta.Title, 30),
		"{title}", in.Meta.Title,
		"{author}", in.Meta.Author,
		"{label}", in.Window.Label,
		"{timestamp}", types.FormatTimestamp(in.Window.Start, in.Window.End()),
	)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
