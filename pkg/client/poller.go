package client

import (
	"context"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/dto"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = time.Second
	defaultMaxFailures  = 3
)

type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*dto.JobRes, error)
}

// Poller follows a server job until it finishes and mirrors every snapshot
// into a StateStore.
type Poller struct {
	API      JobGetter
	Store    *StateStore
	Interval time.Duration
	// MaxFailures is how many poll errors in a row end the follow.
	MaxFailures int
	OnUpdate    func(appcore.Snapshot)
}

// Follow polls jobID until it reaches a terminal state and returns the last
// response. Cancelling ctx stops polling but leaves the server job alone.
func (p *Poller) Follow(ctx context.Context, jobID string) (*dto.JobRes, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxFailures := p.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		res, err := p.API.GetJob(ctx, jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, apperrors.Wrap(apperrors.CodeCancelled, "Polling cancelled", ctx.Err())
		case err != nil:
			failures++
			log.GetLogger().Warn("job poll failed", zap.String("jobId", jobID), zap.Int("failures", failures), zap.Error(err))
			if failures >= maxFailures || apperrors.Is(err, apperrors.CodeNotFound) {
				if p.Store != nil {
					_ = p.Store.Fail(apperrors.GetMessage(err))
				}
				return nil, err
			}
		default:
			failures = 0
			if done := p.observe(res); done {
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.CodeCancelled, "Polling cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Poller) observe(res *dto.JobRes) bool {
	snap := res.Snapshot
	if p.OnUpdate != nil {
		p.OnUpdate(snap)
	}
	if p.Store != nil {
		if err := p.Store.UpdateProgress(snap); err != nil {
			log.GetLogger().Warn("session save failed", zap.Error(err))
		}
	}
	if !snap.Status.IsTerminal() {
		return false
	}
	if p.Store == nil {
		return true
	}

	var err error
	switch snap.Status {
	case appcore.JobStatusCompleted:
		if res.Batch != nil {
			err = p.Store.Complete(res.Batch.Results, res.Batch.Errors)
		} else {
			err = p.Store.CompleteClips(res.Clips)
		}
	case appcore.JobStatusError:
		msg := res.Error
		if msg == "" {
			msg = snap.Message
		}
		err = p.Store.Fail(msg)
	}
	if err != nil {
		log.GetLogger().Warn("session save failed", zap.Error(err))
	}
	return true
}
