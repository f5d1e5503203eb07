package appcore

import (
	"context"
	"fmt"
	"time"
	"vlogclip/internal/types"
)

type JobKind string

const (
	JobKindSingle JobKind = "single"
	JobKindBatch  JobKind = "batch"
)

func (k JobKind) Valid() bool {
	return k == JobKindSingle || k == JobKindBatch
}

type JobStatus uint8

const (
	JobStatusIdle JobStatus = iota
	JobStatusProcessing
	JobStatusCompleted
	JobStatusError
	JobStatusCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusIdle:
		return "idle"
	case JobStatusProcessing:
		return "processing"
	case JobStatusCompleted:
		return "completed"
	case JobStatusError:
		return "error"
	case JobStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusCancelled
}

func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseJobStatus(raw string) (JobStatus, error) {
	switch raw {
	case "idle", "":
		return JobStatusIdle, nil
	case "processing":
		return JobStatusProcessing, nil
	case "completed":
		return JobStatusCompleted, nil
	case "error":
		return JobStatusError, nil
	case "cancelled":
		return JobStatusCancelled, nil
	default:
		return JobStatusIdle, fmt.Errorf("unknown job status %q", raw)
	}
}

// CanTransition reports whether a job record may move from one status to another.
// Terminal records are frozen; a fresh start always creates a new job.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusIdle:
		return to == JobStatusProcessing || to == JobStatusCancelled
	case JobStatusProcessing:
		return to == JobStatusProcessing || to.IsTerminal()
	default:
		return false
	}
}

// Step names reported in snapshots.
const (
	StepIdle       = "idle"
	StepValidating = "validating"
	StepQueued     = "queued"
	StepFetching   = "downloading"
	StepExtracting = "extracting"
	StepCaptioning = "captioning"
	StepUploading  = "uploading"
	StepBatch      = "batch_processing"
	StepComplete   = "complete"
	StepError      = "error"
	StepCancelled  = "cancelled"
)

// Snapshot is the pollable state of one job. Values are copied out, never shared.
type Snapshot struct {
	JobID     string    `json:"jobId,omitempty"`
	Kind      JobKind   `json:"type,omitempty"`
	Status    JobStatus `json:"status"`
	Step      string    `json:"step"`
	Percent   int       `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func IdleSnapshot() Snapshot {
	return Snapshot{Status: JobStatusIdle, Step: StepIdle, Message: "Ready"}
}

type JobRequest struct {
	ID             string   `json:"id"`
	Kind           JobKind  `json:"kind"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	VideoURLs      []string `json:"videoUrls,omitempty"`
	CustomDuration float64  `json:"customDuration,omitempty"`
	Plan           string   `json:"plan,omitempty"`
}

// JobOutcome is the terminal result of a job: clips for single jobs, a report for batches.
type JobOutcome struct {
	JobID      string             `json:"jobId"`
	Kind       JobKind            `json:"type"`
	Status     JobStatus          `json:"status"`
	Clips      []types.ClipResult `json:"clips,omitempty"`
	Batch      *types.BatchReport `json:"batch,omitempty"`
	Err        error              `json:"-"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

type JobHandle interface {
	ID() string
	Snapshot() Snapshot
	Done() <-chan struct{}
	Outcome() (JobOutcome, bool)
	Cancel() error
}

type Runner interface {
	Submit(ctx context.Context, req JobRequest) (JobHandle, error)
}
