package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/dto"
	"vlogclip/internal/types"
	"vlogclip/pkg/client"
	apperrors "vlogclip/pkg/errors"
)

type cli struct {
	api    *client.Client
	store  *client.StateStore
	stdout io.Writer
	stderr io.Writer
	// pollInterval is overridden in tests.
	pollInterval time.Duration
}

func (c *cli) newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// generate starts a single or batch job, follows it to the end and prints
// the clips. An interrupt cancels the job on the server too.
func (c *cli) generate(ctx context.Context, args []string, batch bool) int {
	name := "generate"
	if batch {
		name = "batch"
	}
	fs := c.newFlags(name)
	duration := fs.Float64("duration", 0, "clip length in seconds (0 uses the server default)")
	plan := fs.String("plan", "", "subscription plan")
	downloadDir := fs.String("download", "", "download finished clips into this directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	urls := fs.Args()
	switch {
	case len(urls) == 0:
		fmt.Fprintf(c.stderr, "%s needs at least one video URL\n", name)
		return 2
	case !batch && len(urls) > 1:
		fmt.Fprintln(c.stderr, "generate takes one video URL; use batch for more")
		return 2
	}

	kind := appcore.JobKindSingle
	req := dto.StartJobReq{Kind: string(kind), CustomDuration: *duration, Plan: *plan}
	if batch {
		kind = appcore.JobKindBatch
		req.Kind, req.VideoUrls = string(kind), urls
	} else {
		req.VideoUrl = urls[0]
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.store.Start(kind, urls, cancel); err != nil {
		fmt.Fprintf(c.stderr, "%s (run vlogclip status, cancel or reset)\n", apperrors.GetMessage(err))
		return 1
	}

	started, err := c.api.StartJob(runCtx, req)
	if err != nil {
		_ = c.store.Fail(apperrors.GetMessage(err))
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}
	if err = c.store.AttachJob(started.JobId); err != nil {
		fmt.Fprintf(c.stderr, "warning: session not saved: %v\n", err)
	}
	fmt.Fprintf(c.stdout, "job %s accepted\n", started.JobId)

	return c.follow(ctx, runCtx, started.JobId, *downloadDir)
}

func (c *cli) follow(ctx, runCtx context.Context, jobID, downloadDir string) int {
	p := &client.Poller{
		API:      c.api,
		Store:    c.store,
		Interval: c.pollInterval,
		OnUpdate: c.printSnapshot,
	}
	res, err := p.Follow(runCtx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			c.cancelAfterInterrupt()
			return 130
		}
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}

	switch res.Snapshot.Status {
	case appcore.JobStatusCancelled:
		fmt.Fprintln(c.stdout, "cancelled")
		return 1
	case appcore.JobStatusError:
		msg := res.Error
		if msg == "" {
			msg = res.Snapshot.Message
		}
		fmt.Fprintf(c.stderr, "error: %s\n", msg)
		return 1
	}

	clips := res.Clips
	if res.Batch != nil {
		c.printBatch(*res.Batch)
		clips = nil
		for _, r := range res.Batch.Results {
			clips = append(clips, r.Clips...)
		}
	} else {
		c.printClips(clips)
	}
	if downloadDir != "" {
		return c.downloadAll(ctx, clips, downloadDir)
	}
	return 0
}

// cancelAfterInterrupt runs on its own context since the command's has
// already been cancelled.
func (c *cli) cancelAfterInterrupt() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Cancel(ctx); err != nil {
		fmt.Fprintf(c.stderr, "interrupted; server cancel failed: %s\n", apperrors.GetMessage(err))
		return
	}
	fmt.Fprintln(c.stderr, "interrupted; job cancelled")
}

func (c *cli) status(ctx context.Context, args []string) int {
	fs := c.newFlags("status")
	follow := fs.Bool("follow", false, "keep following a job that is still processing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	st := c.store.State()
	fmt.Fprintf(c.stdout, "status: %s\n", st.Progress.Status)
	if st.JobID != "" {
		fmt.Fprintf(c.stdout, "job: %s (%s)\n", st.JobID, st.Kind)
	}
	c.printSnapshot(st.Progress)
	if st.Error != "" {
		fmt.Fprintf(c.stdout, "error: %s\n", st.Error)
	}
	if len(st.Results) > 0 || len(st.Errors) > 0 {
		c.printBatch(types.BatchReport{
			Results: st.Results, Errors: st.Errors,
			TotalProcessed: len(st.Results), TotalErrors: len(st.Errors),
		})
	} else if len(st.Clips) > 0 {
		c.printClips(st.Clips)
	}

	if *follow && st.IsProcessing && st.JobID != "" {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		c.store.SetCancel(cancel)
		return c.follow(ctx, runCtx, st.JobID, "")
	}
	return 0
}

func (c *cli) cancel(ctx context.Context) int {
	if !c.store.State().IsProcessing {
		fmt.Fprintln(c.stdout, "nothing is processing")
		return 0
	}
	if err := c.store.Cancel(ctx); err != nil {
		if errors.Is(err, client.ErrNoCancelHandle) {
			fmt.Fprintln(c.stderr, "the session has no server job to cancel; use reset to clear it")
			return 1
		}
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}
	fmt.Fprintln(c.stdout, "cancelled")
	return 0
}

func (c *cli) reset() int {
	if err := c.store.Reset(); err != nil {
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}
	fmt.Fprintln(c.stdout, "session cleared")
	return 0
}

func (c *cli) last(ctx context.Context, args []string) int {
	fs := c.newFlags("last")
	limit := fs.Int("limit", 0, "how many clips to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	res, err := c.api.LastClips(ctx, *limit)
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}
	if len(res.Clips) == 0 {
		fmt.Fprintln(c.stdout, "no clips yet")
		return 0
	}
	c.printClips(res.Clips)
	return 0
}

func (c *cli) download(ctx context.Context, args []string) int {
	fs := c.newFlags("download")
	dir := fs.String("dir", ".", "destination directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(c.stderr, "download needs a clip file name")
		return 2
	}
	clips := make([]types.ClipResult, 0, fs.NArg())
	for _, name := range fs.Args() {
		clips = append(clips, types.ClipResult{OutputFile: name})
	}
	return c.downloadAll(ctx, clips, *dir)
}

func (c *cli) downloadAll(ctx context.Context, clips []types.ClipResult, dir string) int {
	code := 0
	for _, clip := range clips {
		path, err := c.api.Download(ctx, clip.OutputFile, dir)
		if err != nil {
			fmt.Fprintf(c.stderr, "download %s: %s\n", clip.OutputFile, apperrors.GetMessage(err))
			code = 1
			continue
		}
		fmt.Fprintf(c.stdout, "saved %s\n", path)
	}
	return code
}

func (c *cli) health(ctx context.Context) int {
	res, err := c.api.Health(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "error: %s\n", apperrors.GetMessage(err))
		return 1
	}
	fmt.Fprintf(c.stdout, "status: %s\nversion: %s\nactive jobs: %d\n", res.Status, res.Version, res.ActiveJobs)
	for _, d := range res.Dependencies {
		fmt.Fprintf(c.stdout, "dependency.%s: %s\n", d.ID, d.Status)
	}
	if res.Status != "ok" {
		return 1
	}
	return 0
}

func (c *cli) printSnapshot(s appcore.Snapshot) {
	fmt.Fprintf(c.stdout, "[%3d%%] %s: %s\n", s.Percent, s.Step, s.Message)
}

func (c *cli) printClips(clips []types.ClipResult) {
	for _, clip := range clips {
		line := fmt.Sprintf("%s  %s  %s", clip.Timestamp, clip.OutputFile, clip.URL)
		if clip.Placeholder {
			line += "  (placeholder)"
		}
		fmt.Fprintln(c.stdout, line)
	}
}

func (c *cli) printBatch(r types.BatchReport) {
	fmt.Fprintf(c.stdout, "batch: %d succeeded, %d failed\n", r.TotalProcessed, r.TotalErrors)
	for _, m := range r.Results {
		fmt.Fprintf(c.stdout, "#%d %s\n", m.VideoIndex, m.SourceURL)
		c.printClips(m.Clips)
	}
	for _, m := range r.Errors {
		fmt.Fprintf(c.stdout, "#%d %s failed: %s\n", m.VideoIndex, m.SourceURL, m.Error)
	}
}
