package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"vlogclip/log"
	"vlogclip/pkg/util"

	"go.uber.org/zap"
)

// Completer is a chat model; *openai.Client implements it.
type Completer interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

const systemPrompt = `You write short social media copy for video clips.
Answer with a single JSON object:
{"headline": "...", "captions": {"tiktok": "...", "twitter": "...", "linkedin": "...", "instagram": "..."}}
- tiktok: short, punchy, emojis and hashtags
- twitter: brief, under 240 characters
- linkedin: professional tone
- instagram: casual, a few hashtags`

// LLM asks a chat model for copy and falls back to another provider on any failure.
type LLM struct {
	model    Completer
	fallback Provider
}

func NewLLM(model Completer, fallback Provider) *LLM {
	return &LLM{model: model, fallback: fallback}
}

func (l *LLM) Captions(ctx context.Context, in Input) (Copy, error) {
	out, err := l.ask(ctx, in)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return Copy{}, ctx.Err()
	}
	log.GetLogger().Warn("llm captions failed, using templates", zap.String("videoId", in.Meta.ID), zap.Error(err))
	return l.fallback.Captions(ctx, in)
}

func (l *LLM) ask(ctx context.Context, in Input) (Copy, error) {
	user := fmt.Sprintf("Video title: %s\nChannel: %s\nClip: %s (%s)\nClip %d of %d",
		in.Meta.Title, in.Meta.Author, in.Window.Label,
		strings.TrimSpace(fmtRange(in)), in.Index+1, max(in.Total, 1))

	raw, err := l.model.ChatCompletion(ctx, systemPrompt, user)
	if err != nil {
		return Copy{}, err
	}

	var out Copy
	if err = json.Unmarshal([]byte(util.ExtractJsonFromText(raw)), &out); err != nil {
		return Copy{}, fmt.Errorf("decode llm copy: %w", err)
	}
	if strings.TrimSpace(out.Headline) == "" || len(out.Captions) == 0 {
		return Copy{}, fmt.Errorf("llm copy is incomplete")
	}

	// fill platforms the model skipped
	base, _ := l.fallback.Captions(ctx, in)
	for platform, text := range base.Captions {
		if strings.TrimSpace(out.Captions[platform]) == "" {
			out.Captions[platform] = text
		}
	}
	return out, nil
}

func fmtRange(in Input) string {
	return fmt.Sprintf("%.0fs-%.0fs", in.Window.Start, in.Window.End())
}
