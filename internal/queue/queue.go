// Package queue dispatches clip jobs through Redis using Asynq, so a job
// survives in the queue while the worker is busy or restarting.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"vlogclip/config"
	"vlogclip/internal/appcore"
	"vlogclip/log"
)

// Task type names
const (
	TypeSingleClip = "clip:single"
	TypeBatchClip  = "clip:batch"
)

// QueueConfig holds Redis configuration for Asynq
type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queue         string
	Timeout       time.Duration
}

// Queue manages job enqueueing and processing
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	config QueueConfig
}

// DefaultConfig returns default queue configuration
func DefaultConfig() QueueConfig {
	return QueueConfig{
		RedisAddr:   "127.0.0.1:6379",
		RedisDB:     0,
		Concurrency: 2,
		Queue:       "clips",
		Timeout:     30 * time.Minute,
	}
}

// ConfigFrom builds the queue settings from the app config.
func ConfigFrom(c config.Config) QueueConfig {
	cfg := DefaultConfig()
	if c.Redis.Addr != "" {
		cfg.RedisAddr = c.Redis.Addr
	}
	cfg.RedisPassword = c.Redis.Password
	cfg.RedisDB = c.Redis.DB
	if c.Redis.Queue != "" {
		cfg.Queue = c.Redis.Queue
	}
	if c.Jobs.Workers > 0 {
		cfg.Concurrency = c.Jobs.Workers
	}
	return cfg
}

// NewQueue creates a new Queue instance
func NewQueue(cfg QueueConfig) *Queue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.Queue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.GetLogger().Error("Job failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	return &Queue{
		client: client,
		server: server,
		config: cfg,
	}
}

// NewTask encodes a job request. Jobs are never retried: a rerun would
// produce a second set of clips under the same job ID.
func NewTask(req appcore.JobRequest, queueName string, timeout time.Duration) (*asynq.Task, error) {
	typeName := TypeSingleClip
	if req.Kind == appcore.JobKindBatch {
		typeName = TypeBatchClip
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return asynq.NewTask(typeName, data,
		asynq.TaskID(req.ID),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Queue(queueName),
	), nil
}

// Dispatch adds a job to the queue
func (q *Queue) Dispatch(req appcore.JobRequest) error {
	task, err := NewTask(req, q.config.Queue, q.config.Timeout)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.GetLogger().Info("Job enqueued",
		zap.String("job_id", req.ID),
		zap.String("queue_id", info.ID),
		zap.String("queue", info.Queue))

	return nil
}

// Close gracefully shuts down the queue
func (q *Queue) Close() error {
	q.server.Shutdown()
	return q.client.Close()
}
