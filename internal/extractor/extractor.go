package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"go.uber.org/zap"
)

// Profile describes the rendered output. A zero Width keeps the source frame size.
type Profile struct {
	Width     int
	Height    int
	Bitrate   string
	Watermark string
}

type Request struct {
	Source      string
	Output      string
	Start       float64
	Duration    float64
	Profile     Profile
	SourceLabel string
}

// Result always names an existing, non-empty Output unless the context was cancelled.
type Result struct {
	Output      string
	Placeholder bool
	// Cause is the extraction failure that a placeholder stands in for.
	Cause error
}

// CommandRunner executes an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Extractor struct {
	ffmpegPath         string
	run                CommandRunner
	placeholderSeconds float64
	placeholderColor   string
}

type Option func(*Extractor)

func WithRunner(run CommandRunner) Option {
	return func(e *Extractor) { e.run = run }
}

func WithPlaceholder(seconds float64, color string) Option {
	return func(e *Extractor) {
		if seconds > 0 {
			e.placeholderSeconds = seconds
		}
		if color != "" {
			e.placeholderColor = color
		}
	}
}

func New(ffmpegPath string, opts ...Option) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	e := &Extractor{
		ffmpegPath:         ffmpegPath,
		run:                ExecRunner,
		placeholderSeconds: 10,
		placeholderColor:   "blue",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract cuts the requested window. Any failure other than cancellation is
// absorbed into a placeholder clip at the same output path.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create clip dir", err)
	}

	out, err := e.run(ctx, e.ffmpegPath, CutArgs(req)...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = os.Remove(req.Output)
		return Result{}, ctxErr
	}
	if err == nil {
		err = checkOutput(req.Output)
	}
	if err == nil {
		return Result{Output: req.Output}, nil
	}

	cause := apperrors.WrapWithDetail(apperrors.CodeExtractFailed, "Clip extraction failed", tail(out, 400), err)
	log.GetLogger().Warn("ffmpeg cut failed, rendering placeholder",
		zap.String("source", req.SourceLabel),
		zap.String("output", req.Output),
		zap.Error(err),
		zap.String("ffmpeg", tail(out, 400)))

	return e.placeholder(ctx, req, cause)
}

func (e *Extractor) placeholder(ctx context.Context, req Request, cause error) (Result, error) {
	_ = os.Remove(req.Output)
	out, err := e.run(ctx, e.ffmpegPath, PlaceholderArgs(req.Output, req.SourceLabel, e.placeholderColor, e.placeholderSeconds, req.Profile)...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = os.Remove(req.Output)
		return Result{}, ctxErr
	}
	if err == nil {
		err = checkOutput(req.Output)
	}
	if err == nil {
		return Result{Output: req.Output, Placeholder: true, Cause: cause}, nil
	}

	log.GetLogger().Error("placeholder render failed, writing error note",
		zap.String("output", req.Output),
		zap.Error(err),
		zap.String("ffmpeg", tail(out, 400)))

	note := fmt.Sprintf("Could not process video %s\n%v\nplaceholder render: %v\n", req.SourceLabel, cause, err)
	if writeErr := os.WriteFile(req.Output, []byte(note), 0o644); writeErr != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to write placeholder", errors.Join(cause, writeErr))
	}
	return Result{Output: req.Output, Placeholder: true, Cause: cause}, nil
}

// CutArgs builds the ffmpeg arguments for one window, seeking before the input.
func CutArgs(req Request) []string {
	args := []string{
		"-y",
		"-ss", formatSeconds(req.Start),
		"-i", req.Source,
		"-t", formatSeconds(req.Duration),
	}
	if vf := videoFilter(req.Profile); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-c:v", "libx264", "-preset", "fast")
	if req.Profile.Bitrate != "" {
		args = append(args, "-b:v", req.Profile.Bitrate)
	} else {
		args = append(args, "-crf", "23")
	}
	args = append(args,
		"-c:a", "aac", "-b:a", "128k",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		req.Output,
	)
	return args
}

// PlaceholderArgs renders a solid-color clip carrying the failed source's name.
func PlaceholderArgs(output, label, color string, seconds float64, profile Profile) []string {
	width, height := 640, 360
	if profile.Width > 0 && profile.Height > 0 {
		width, height = profile.Width, profile.Height
	}
	fontSize := width / 26
	text := "Could not process video"
	filters := []string{
		fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2-%d:box=1:boxcolor=black@0.5:boxborderw=5",
			escapeDrawtext(text), fontSize, fontSize),
	}
	if label != "" {
		filters = append(filters, fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=(h-text_h)/2+%d:box=1:boxcolor=black@0.5:boxborderw=5",
			escapeDrawtext(truncate(label, 60)), fontSize*2/3, fontSize))
	}
	return []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=%s", color, width, height, formatSeconds(seconds)),
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		output,
	}
}

func videoFilter(p Profile) string {
	var filters []string
	if p.Width > 0 && p.Height > 0 {
		// scale up until both sides cover the frame, then crop the overflow
		filters = append(filters,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", p.Width, p.Height),
			fmt.Sprintf("crop=%d:%d", p.Width, p.Height),
		)
	}
	if p.Watermark != "" {
		filters = append(filters, fmt.Sprintf(
			"drawtext=text='%s':fontsize=48:fontcolor=white:x=10:y=h-50:box=1:boxcolor=black@0.3:boxborderw=3",
			escapeDrawtext(p.Watermark)))
	}
	return strings.Join(filters, ",")
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("output is empty")
	}
	return nil
}

func escapeDrawtext(s string) string {
	return strings.NewReplacer(
		`\`, `\\\\`,
		`'`, `\\'`,
		`:`, `\:`,
		`%`, `\%`,
		`,`, `\,`,
	).Replace(s)
}

func formatSeconds(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
