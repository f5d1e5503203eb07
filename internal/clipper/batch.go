package clipper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type BatchRequest struct {
	VideoURLs      []string `json:"videoUrls"`
	CustomDuration float64  `json:"customDuration,omitempty"`
	Plan           string   `json:"plan,omitempty"`
}

// PrepareBatch validates a batch and returns its members in first-seen
// order with duplicates removed. Nothing is fetched.
func (s *Service) PrepareBatch(req BatchRequest) ([]string, plan.Limits, error) {
	// The cap counts entries as supplied, blanks included.
	if len(req.VideoURLs) > s.settings.MaxBatch {
		return nil, plan.Limits{}, apperrors.WrapWithDetail(apperrors.CodeBatchTooLarge,
			fmt.Sprintf("Maximum %d videos allowed per batch", s.settings.MaxBatch),
			fmt.Sprintf("got %d", len(req.VideoURLs)), nil)
	}
	refs := lo.Filter(lo.Map(req.VideoURLs, func(u string, _ int) string {
		return strings.TrimSpace(u)
	}), func(u string, _ int) bool {
		return u != ""
	})
	if len(refs) == 0 {
		return nil, plan.Limits{}, apperrors.ErrEmptyBatch
	}

	limits, err := s.deps.Plans.Lookup(req.Plan)
	if err != nil {
		return nil, plan.Limits{}, err
	}
	if _, err = limits.ClipSeconds(req.CustomDuration, s.settings.DefaultDuration); err != nil {
		return nil, plan.Limits{}, err
	}

	refs = lo.UniqBy(refs, fetcher.DedupeKey)
	if err = limits.CheckBatch(len(refs)); err != nil {
		return nil, plan.Limits{}, err
	}
	return refs, limits, nil
}

// RunBatch runs every member through RunSingle. A member failure is recorded
// in the report and never stops the others; only cancellation aborts the batch.
func (s *Service) RunBatch(ctx context.Context, jobID string, req BatchRequest, rep progress.Reporter) (types.BatchReport, error) {
	if rep == nil {
		rep = progress.Discard
	}
	refs, limits, err := s.PrepareBatch(req)
	if err != nil {
		return types.BatchReport{}, err
	}

	n := len(refs)
	log.GetLogger().Info("starting batch",
		zap.String("jobId", jobID), zap.Int("members", n), zap.String("plan", limits.Name))
	rep.Report(appcore.StepBatch, 0, fmt.Sprintf("Processing %d videos", n))

	agg := newBatchProgress(rep, n)
	members := make([]types.BatchResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Parallelism)
	for i, ref := range refs {
		g.Go(func() error {
			if i > 0 && s.settings.MemberDelay > 0 {
				if err := sleepCtx(gctx, s.settings.MemberDelay); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			clips, err := s.RunSingle(gctx, jobID, Request{
				VideoURL:       ref,
				CustomDuration: req.CustomDuration,
				Plan:           limits.Name,
			}, agg.member(i))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.GetLogger().Warn("batch member failed",
					zap.String("jobId", jobID), zap.Int("member", i+1), zap.String("ref", ref), zap.Error(err))
				members[i] = types.BatchResult{VideoIndex: i + 1, SourceURL: ref, Error: apperrors.GetMessage(err)}
				agg.done(i, false)
				return nil
			}
			members[i] = types.BatchResult{VideoIndex: i + 1, SourceURL: ref, Clips: clips}
			agg.done(i, true)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return types.BatchReport{}, err
	}
	if err = ctx.Err(); err != nil {
		return types.BatchReport{}, err
	}

	report := types.NewBatchReport(members)
	rep.Report(appcore.StepBatch, 100,
		fmt.Sprintf("Batch complete: %d succeeded, %d failed", report.TotalProcessed, report.TotalErrors))
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// batchProgress folds member progress into one 0..90 range and announces
// member completions in member order.
type batchProgress struct {
	mu       sync.Mutex
	parent   progress.Reporter
	percent  []int
	finished []bool
	ok       []bool
	next     int
	last     int
}

func newBatchProgress(parent progress.Reporter, n int) *batchProgress {
	return &batchProgress{
		parent:   parent,
		percent:  make([]int, n),
		finished: make([]bool, n),
		ok:       make([]bool, n),
	}
}

func (b *batchProgress) member(i int) progress.Reporter {
	return progress.ReporterFunc(func(_ string, percent int, message string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.finished[i] || percent < b.percent[i] {
			return
		}
		b.percent[i] = percent
		b.emitLocked(fmt.Sprintf("Processing video %d of %d: %s", i+1, len(b.percent), message))
	})
}

func (b *batchProgress) done(i int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished[i] = true
	b.ok[i] = ok
	b.percent[i] = 100
	for b.next < len(b.finished) && b.finished[b.next] {
		state := "Completed"
		if !b.ok[b.next] {
			state = "Failed"
		}
		b.next++
		b.emitLocked(fmt.Sprintf("%s video %d of %d", state, b.next, len(b.percent)))
	}
}

func (b *batchProgress) emitLocked(message string) {
	total := 0
	for _, p := range b.percent {
		total += p
	}
	overall := total * 90 / (100 * len(b.percent))
	if overall < b.last {
		overall = b.last
	}
	b.last = overall
	b.parent.Report(appcore.StepBatch, overall, message)
}
