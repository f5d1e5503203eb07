package taskrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vlogclip/internal/appcore"
	"vlogclip/log"
)

const (
	defaultQueueSize   = 16
	defaultConcurrency = 2
)

var (
	ErrRunnerStopped = errors.New("task runner stopped")
	ErrQueueFull     = errors.New("task queue is full")
)

// Config controls in-process task runner behavior.
type Config struct {
	QueueSize   int
	Concurrency int
}

// DefaultConfig returns a desktop-friendly default config.
func DefaultConfig() Config {
	return Config{
		QueueSize:   defaultQueueSize,
		Concurrency: defaultConcurrency,
	}
}

// Handler runs one job to completion. The context is cancelled when the
// runner is closed.
type Handler func(ctx context.Context, req appcore.JobRequest) error

// Runner executes queued jobs with in-memory workers.
type Runner struct {
	handler Handler
	config  Config

	queue  chan appcore.JobRequest
	ctx    context.Context
	cancel context.CancelFunc

	workerWg sync.WaitGroup
	closed   atomic.Bool
}

// New creates and starts a task runner.
func New(handler Handler, cfg Config) *Runner {
	cfg = normalizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	runner := &Runner{
		handler: handler,
		config:  cfg,
		queue:   make(chan appcore.JobRequest, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Concurrency; i++ {
		runner.workerWg.Add(1)
		go runner.worker(i + 1)
	}

	return runner
}

func normalizeConfig(cfg Config) Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return cfg
}

// Dispatch queues a job without blocking.
func (r *Runner) Dispatch(req appcore.JobRequest) error {
	if req.ID == "" {
		return errors.New("job id is required")
	}
	if r.closed.Load() {
		return ErrRunnerStopped
	}

	select {
	case <-r.ctx.Done():
		return ErrRunnerStopped
	case r.queue <- req:
		log.GetLogger().Info("[TaskRunner] job queued",
			zap.String("job_id", req.ID),
			zap.String("kind", string(req.Kind)))
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) worker(workerID int) {
	defer r.workerWg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		select {
		case <-r.ctx.Done():
			return
		case req := <-r.queue:
			r.process(workerID, req)
		}
	}
}

func (r *Runner) process(workerID int, req appcore.JobRequest) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.GetLogger().Error("[TaskRunner] job panicked",
				zap.Int("worker_id", workerID),
				zap.String("job_id", req.ID),
				zap.Any("panic", p))
		}
	}()

	if err := r.handler(r.ctx, req); err != nil {
		log.GetLogger().Error("[TaskRunner] job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", req.ID),
			zap.String("kind", string(req.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}

	log.GetLogger().Info("[TaskRunner] job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.Duration("elapsed", time.Since(start)))
}

// Close stops workers, cancels running jobs and rejects new ones.
func (r *Runner) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}

	r.cancel()
	r.workerWg.Wait()
}

// Pending returns the number of queued jobs waiting for workers.
func (r *Runner) Pending() int {
	return len(r.queue)
}
