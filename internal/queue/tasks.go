package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"vlogclip/internal/appcore"
	"vlogclip/log"
)

// Handler runs one decoded job.
type Handler func(ctx context.Context, req appcore.JobRequest) error

// DecodeTask reads the job request carried by t.
func DecodeTask(t *asynq.Task) (appcore.JobRequest, error) {
	var req appcore.JobRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return req, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if req.ID == "" {
		return req, fmt.Errorf("job payload has no id")
	}
	return req, nil
}

// NewServeMux routes both job types to handle.
func NewServeMux(handle Handler) *asynq.ServeMux {
	process := func(ctx context.Context, t *asynq.Task) error {
		req, err := DecodeTask(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		log.GetLogger().Info("[Queue] Processing job",
			zap.String("job_id", req.ID),
			zap.String("type", t.Type()))

		if err = handle(ctx, req); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		log.GetLogger().Info("[Queue] Job completed", zap.String("job_id", req.ID))
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSingleClip, process)
	mux.HandleFunc(TypeBatchClip, process)
	return mux
}

// Start runs the Asynq worker in the background.
func (q *Queue) Start(handle Handler) error {
	log.GetLogger().Info("[Queue] Starting worker",
		zap.String("redis_addr", q.config.RedisAddr),
		zap.String("queue", q.config.Queue),
		zap.Int("concurrency", q.config.Concurrency))

	return q.server.Start(NewServeMux(handle))
}
