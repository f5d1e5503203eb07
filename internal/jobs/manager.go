package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/clipper"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/storage"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline is the clip work a job performs.
type Pipeline interface {
	PrepareSingle(req clipper.Request) (plan.Limits, float64, error)
	PrepareBatch(req clipper.BatchRequest) ([]string, plan.Limits, error)
	RunSingle(ctx context.Context, jobID string, req clipper.Request, rep progress.Reporter) ([]types.ClipResult, error)
	RunBatch(ctx context.Context, jobID string, req clipper.BatchRequest, rep progress.Reporter) (types.BatchReport, error)
}

// Dispatcher hands an accepted job to whatever executes it. Execution
// must end in a call to Manager.Execute.
type Dispatcher interface {
	Dispatch(req appcore.JobRequest) error
}

type Journal interface {
	SaveJob(rec *storage.JobRecord) error
}

type JournalFunc func(rec *storage.JobRecord) error

func (f JournalFunc) SaveJob(rec *storage.JobRecord) error {
	return f(rec)
}

type Options struct {
	// MaxActive bounds queued plus running jobs; further submissions get ErrBusy.
	MaxActive        int
	Retain           int
	ProgressInterval time.Duration
	Journal          Journal
}

// Manager accepts jobs, tracks their progress and keeps their outcomes.
type Manager struct {
	pipeline Pipeline
	tracker  *progress.Tracker
	opts     Options
	dispatch Dispatcher

	mu       sync.Mutex
	jobs     map[string]*job
	finished []string
	active   int
	now      func() time.Time
}

func NewManager(p Pipeline, tracker *progress.Tracker, opts Options) *Manager {
	if opts.MaxActive <= 0 {
		opts.MaxActive = 1
	}
	if opts.Retain <= 0 {
		opts.Retain = 100
	}
	if tracker == nil {
		tracker = progress.NewTracker(opts.Retain)
	}
	return &Manager{
		pipeline: p,
		tracker:  tracker,
		opts:     opts,
		jobs:     make(map[string]*job),
		now:      time.Now,
	}
}

// UseDispatcher routes accepted jobs through d. Without one each job runs
// on its own goroutine.
func (m *Manager) UseDispatcher(d Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatch = d
}

func (m *Manager) Tracker() *progress.Tracker {
	return m.tracker
}

// Submit validates req and accepts it for asynchronous execution.
// Validation, plan and busy failures are returned before any progress is recorded.
func (m *Manager) Submit(_ context.Context, req appcore.JobRequest) (appcore.JobHandle, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}
	j, err := m.accept(req, false)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	d := m.dispatch
	m.mu.Unlock()
	if d == nil {
		go func() { _ = m.Execute(context.Background(), j.req) }()
		return j, nil
	}
	if err = d.Dispatch(j.req); err != nil {
		log.GetLogger().Error("failed to dispatch job", zap.String("jobId", j.req.ID), zap.Error(err))
		j.started.Store(true)
		m.finish(j, appcore.JobOutcome{}, apperrors.Wrap(apperrors.CodeBusy, "Job queue unavailable", err))
		return nil, apperrors.Wrap(apperrors.CodeBusy, "Job queue unavailable", err)
	}
	return j, nil
}

// Run submits req and waits for it. Cancelling ctx cancels the job.
func (m *Manager) Run(ctx context.Context, req appcore.JobRequest) (appcore.JobOutcome, error) {
	h, err := m.Submit(ctx, req)
	if err != nil {
		return appcore.JobOutcome{}, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		_ = h.Cancel()
		<-h.Done()
	}
	out, _ := h.Outcome()
	return out, out.Err
}

// Execute runs an accepted job. Jobs this manager has never seen, such as
// ones picked up from a shared queue, are adopted first.
func (m *Manager) Execute(ctx context.Context, req appcore.JobRequest) error {
	m.mu.Lock()
	j, ok := m.jobs[req.ID]
	m.mu.Unlock()
	if !ok {
		var err error
		if j, err = m.accept(req, true); err != nil {
			return err
		}
	}
	if !j.started.CompareAndSwap(false, true) {
		return nil
	}

	stop := context.AfterFunc(ctx, j.cancel)
	defer stop()

	rep := progress.Throttle(m.tracker.Reporter(req.ID), m.opts.ProgressInterval)
	out := appcore.JobOutcome{JobID: req.ID, Kind: req.Kind, StartedAt: j.startedAt}

	var err error
	switch req.Kind {
	case appcore.JobKindBatch:
		var report types.BatchReport
		report, err = m.pipeline.RunBatch(j.ctx, req.ID, clipper.BatchRequest{
			VideoURLs:      req.VideoURLs,
			CustomDuration: req.CustomDuration,
			Plan:           req.Plan,
		}, rep)
		if err == nil {
			out.Batch = &report
		}
	default:
		out.Clips, err = m.pipeline.RunSingle(j.ctx, req.ID, clipper.Request{
			VideoURL:       req.VideoURL,
			CustomDuration: req.CustomDuration,
			Plan:           req.Plan,
		}, rep)
	}
	if err == nil && j.ctx.Err() != nil {
		err = j.ctx.Err()
	}
	m.finish(j, out, err)
	return err
}

// Cancel stops a queued or running job. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return apperrors.ErrJobNotFound
	}
	return j.Cancel()
}

// Job returns the handle of a known job.
func (m *Manager) Job(jobID string) (appcore.JobHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, false
	}
	return j, true
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown cancels every unfinished job and waits for them until ctx ends.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]*job, 0, m.active)
	for _, j := range m.jobs {
		select {
		case <-j.done:
		default:
			pending = append(pending, j)
		}
	}
	m.mu.Unlock()

	for _, j := range pending {
		_ = j.Cancel()
	}
	for _, j := range pending {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) validate(req appcore.JobRequest) error {
	switch req.Kind {
	case appcore.JobKindSingle:
		_, _, err := m.pipeline.PrepareSingle(clipper.Request{
			VideoURL:       req.VideoURL,
			CustomDuration: req.CustomDuration,
			Plan:           req.Plan,
		})
		return err
	case appcore.JobKindBatch:
		_, _, err := m.pipeline.PrepareBatch(clipper.BatchRequest{
			VideoURLs:      req.VideoURLs,
			CustomDuration: req.CustomDuration,
			Plan:           req.Plan,
		})
		return err
	default:
		return apperrors.WrapWithDetail(apperrors.CodeInvalidParams, "Unknown job type", string(req.Kind), nil)
	}
}

func (m *Manager) accept(req appcore.JobRequest, adopt bool) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !adopt && m.active >= m.opts.MaxActive {
		return nil, apperrors.ErrBusy
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, exists := m.jobs[req.ID]; exists {
		return nil, apperrors.WrapWithDetail(apperrors.CodeInvalidParams, "Duplicate job id", req.ID, nil)
	}
	if _, err := m.tracker.Begin(req.ID, req.Kind, "Queued"); err != nil {
		return nil, fmt.Errorf("begin job %s: %w", req.ID, err)
	}
	_ = m.tracker.Update(req.ID, appcore.StepQueued, 0, "Queued")

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		m:         m,
		req:       req,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: m.now(),
	}
	m.jobs[req.ID] = j
	m.active++

	m.journal(&storage.JobRecord{
		JobID:   req.ID,
		Kind:    string(req.Kind),
		Status:  appcore.JobStatusProcessing.String(),
		Message: "Queued",
		Input:   describeInput(req),
	})
	log.GetLogger().Info("job accepted", zap.String("jobId", req.ID), zap.String("kind", string(req.Kind)))
	return j, nil
}

func (m *Manager) finish(j *job, out appcore.JobOutcome, err error) {
	out.JobID = j.req.ID
	out.Kind = j.req.Kind
	out.StartedAt = j.startedAt
	out.FinishedAt = m.now()
	out.Err = err

	var message string
	switch {
	case err == nil:
		out.Status = appcore.JobStatusCompleted
		message = completionMessage(out)
	case errors.Is(err, context.Canceled) || apperrors.Is(err, apperrors.CodeCancelled):
		out.Status = appcore.JobStatusCancelled
		out.Err = apperrors.ErrCancelled
		message = "Processing cancelled"
	default:
		out.Status = appcore.JobStatusError
		message = apperrors.GetMessage(err)
	}

	if ferr := m.tracker.Finish(j.req.ID, out.Status, message); ferr != nil {
		log.GetLogger().Warn("failed to finish job progress", zap.String("jobId", j.req.ID), zap.Error(ferr))
	}
	j.outcome.Store(&out)
	j.cancel()

	rec := &storage.JobRecord{
		JobID:      j.req.ID,
		Kind:       string(j.req.Kind),
		Status:     out.Status.String(),
		Message:    message,
		Input:      describeInput(j.req),
		ClipCount:  len(out.Clips),
		FinishedAt: &out.FinishedAt,
	}
	if out.Batch != nil {
		for _, r := range out.Batch.Results {
			rec.ClipCount += len(r.Clips)
		}
		rec.ErrorCount = out.Batch.TotalErrors
	}
	m.journal(rec)

	m.mu.Lock()
	m.active--
	m.finished = append(m.finished, j.req.ID)
	for len(m.finished) > m.opts.Retain {
		delete(m.jobs, m.finished[0])
		m.finished = m.finished[1:]
	}
	m.mu.Unlock()
	close(j.done)

	log.GetLogger().Info("job finished",
		zap.String("jobId", j.req.ID),
		zap.String("status", out.Status.String()),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)))
}

func (m *Manager) journal(rec *storage.JobRecord) {
	if m.opts.Journal == nil {
		return
	}
	if err := m.opts.Journal.SaveJob(rec); err != nil {
		log.GetLogger().Warn("failed to journal job", zap.String("jobId", rec.JobID), zap.Error(err))
	}
}

func completionMessage(out appcore.JobOutcome) string {
	if out.Batch != nil {
		return fmt.Sprintf("Batch complete: %d succeeded, %d failed", out.Batch.TotalProcessed, out.Batch.TotalErrors)
	}
	placeholders := 0
	for _, c := range out.Clips {
		if c.Placeholder {
			placeholders++
		}
	}
	if placeholders > 0 {
		return fmt.Sprintf("Generated %d clip(s), %d placeholder(s)", len(out.Clips), placeholders)
	}
	return fmt.Sprintf("Generated %d clip(s)", len(out.Clips))
}

func describeInput(req appcore.JobRequest) string {
	if req.Kind == appcore.JobKindBatch {
		return strings.Join(req.VideoURLs, "\n")
	}
	return req.VideoURL
}

type job struct {
	m         *Manager
	req       appcore.JobRequest
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   atomic.Bool
	startedAt time.Time
	outcome   atomic.Pointer[appcore.JobOutcome]
}

func (j *job) ID() string {
	return j.req.ID
}

func (j *job) Snapshot() appcore.Snapshot {
	if snap, ok := j.m.tracker.Get(j.req.ID); ok {
		return snap
	}
	if out := j.outcome.Load(); out != nil {
		return appcore.Snapshot{JobID: out.JobID, Kind: out.Kind, Status: out.Status, Step: out.Status.String(), UpdatedAt: out.FinishedAt}
	}
	return appcore.Snapshot{JobID: j.req.ID, Kind: j.req.Kind, Status: appcore.JobStatusProcessing, Step: appcore.StepQueued}
}

func (j *job) Done() <-chan struct{} {
	return j.done
}

func (j *job) Outcome() (appcore.JobOutcome, bool) {
	out := j.outcome.Load()
	if out == nil {
		return appcore.JobOutcome{}, false
	}
	return *out, true
}

// Cancel requests cancellation. A job that never started is finished here.
func (j *job) Cancel() error {
	select {
	case <-j.done:
		return nil
	default:
	}
	j.cancel()
	if j.started.CompareAndSwap(false, true) {
		j.m.finish(j, appcore.JobOutcome{}, context.Canceled)
	}
	return nil
}
