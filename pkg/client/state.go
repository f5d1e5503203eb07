package client

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"go.uber.org/zap"
)

// Canceller stops a job on the server. It is the fallback when the local
// cancel handle did not survive a reload.
type Canceller interface {
	CancelJob(ctx context.Context, jobID string) error
}

// ErrNoCancelHandle is returned when a rehydrated session has neither a
// local handle nor a server job to cancel.
var ErrNoCancelHandle = apperrors.New(apperrors.CodeInvalidParams, "Nothing to cancel in this session")

// State is the client-side view of the current run. It is written to the
// session file after every change.
type State struct {
	IsProcessing bool                `json:"isProcessing"`
	Kind         appcore.JobKind     `json:"kind,omitempty"`
	Input        []string            `json:"inputData,omitempty"`
	JobID        string              `json:"jobId,omitempty"`
	Progress     appcore.Snapshot    `json:"progress"`
	Clips        []types.ClipResult  `json:"clips,omitempty"`
	Results      []types.BatchResult `json:"results,omitempty"`
	Errors       []types.BatchResult `json:"errors,omitempty"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"startedAt,omitempty"`
	FinishedAt   time.Time           `json:"finishedAt,omitempty"`
}

func idleState() State {
	return State{Progress: appcore.IdleSnapshot()}
}

// StateStore owns State for one session. The cancel handle is process-local
// and never written out; after a reload Cancel goes through the server.
type StateStore struct {
	mu     sync.Mutex
	path   string
	api    Canceller
	state  State
	cancel context.CancelFunc
	now    func() time.Time
}

// OpenState loads the session file at path. A missing or unreadable file
// starts an idle session. api may be nil.
func OpenState(path string, api Canceller) *StateStore {
	s := &StateStore{path: path, api: api, state: idleState(), now: time.Now}
	if path == "" {
		return s
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.GetLogger().Warn("session file unreadable, starting idle", zap.String("path", path), zap.Error(err))
		}
		return s
	}
	var st State
	if err = json.Unmarshal(raw, &st); err != nil {
		log.GetLogger().Warn("session file corrupt, starting idle", zap.String("path", path), zap.Error(err))
		return s
	}
	s.state = st
	return s
}

// State returns a copy of the current state.
func (s *StateStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Input = append([]string(nil), st.Input...)
	st.Clips = append([]types.ClipResult(nil), st.Clips...)
	st.Results = append([]types.BatchResult(nil), st.Results...)
	st.Errors = append([]types.BatchResult(nil), st.Errors...)
	return st
}

// Start moves the session into processing. A session already processing
// refuses with ErrBusy.
func (s *StateStore) Start(kind appcore.JobKind, input []string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsProcessing {
		return apperrors.ErrBusy
	}
	now := s.now()
	s.state = State{
		IsProcessing: true,
		Kind:         kind,
		Input:        append([]string(nil), input...),
		Progress: appcore.Snapshot{
			Kind:      kind,
			Status:    appcore.JobStatusProcessing,
			Step:      appcore.StepValidating,
			Message:   "Starting",
			UpdatedAt: now,
		},
		StartedAt: now,
	}
	s.cancel = cancel
	return s.saveLocked()
}

// AttachJob records the server job ID once the server has accepted the run.
func (s *StateStore) AttachJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	s.state.JobID = jobID
	s.state.Progress.JobID = jobID
	return s.saveLocked()
}

// SetCancel attaches a fresh local cancel handle to a run resumed from the
// session file. It reports false when nothing is processing.
func (s *StateStore) SetCancel(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return false
	}
	s.cancel = cancel
	return true
}

// UpdateProgress merges a server snapshot. Snapshots of other jobs and
// updates outside a run are ignored. A failed or cancelled snapshot ends the
// run; a completed one waits for Complete to bring the results.
func (s *StateStore) UpdateProgress(snap appcore.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	if snap.JobID != "" && s.state.JobID != "" && snap.JobID != s.state.JobID {
		return nil
	}
	if snap.Percent < s.state.Progress.Percent && snap.Status == appcore.JobStatusProcessing {
		snap.Percent = s.state.Progress.Percent
	}
	s.state.Progress = snap
	switch snap.Status {
	case appcore.JobStatusError:
		s.finishLocked(appcore.JobStatusError, snap.Message)
	case appcore.JobStatusCancelled:
		s.finishLocked(appcore.JobStatusCancelled, "")
	}
	return s.saveLocked()
}

// Complete ends the run with a batch's results and failed members.
func (s *StateStore) Complete(results, errs []types.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	s.state.Results = append([]types.BatchResult(nil), results...)
	s.state.Errors = append([]types.BatchResult(nil), errs...)
	for _, r := range results {
		s.state.Clips = append(s.state.Clips, r.Clips...)
	}
	s.finishLocked(appcore.JobStatusCompleted, "")
	return s.saveLocked()
}

// CompleteClips ends a single-video run.
func (s *StateStore) CompleteClips(clips []types.ClipResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	s.state.Clips = append([]types.ClipResult(nil), clips...)
	s.finishLocked(appcore.JobStatusCompleted, "")
	return s.saveLocked()
}

// Fail ends the run with an error message.
func (s *StateStore) Fail(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	s.finishLocked(appcore.JobStatusError, message)
	return s.saveLocked()
}

// Cancel stops the run. The local handle is called when this process
// started the run, and the server job is cancelled by ID when one is known.
func (s *StateStore) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.IsProcessing {
		s.mu.Unlock()
		return nil
	}
	cancel, jobID := s.cancel, s.state.JobID
	s.mu.Unlock()

	remote := s.api != nil && jobID != ""
	if cancel == nil && !remote {
		return ErrNoCancelHandle
	}
	if cancel != nil {
		cancel()
	}
	if remote {
		if err := s.api.CancelJob(ctx, jobID); err != nil && !apperrors.Is(err, apperrors.CodeNotFound) {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsProcessing {
		return nil
	}
	s.finishLocked(appcore.JobStatusCancelled, "")
	return s.saveLocked()
}

// Reset drops everything and removes the session file.
func (s *StateStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = idleState()
	s.cancel = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to remove session file", err)
	}
	return nil
}

func (s *StateStore) finishLocked(status appcore.JobStatus, message string) {
	now := s.now()
	s.state.IsProcessing = false
	s.state.FinishedAt = now
	s.cancel = nil

	p := &s.state.Progress
	reported := p.Status == status
	p.Status = status
	p.UpdatedAt = now
	switch status {
	case appcore.JobStatusCompleted:
		p.Step, p.Percent = appcore.StepComplete, 100
		if !reported || p.Message == "" {
			p.Message = "Complete"
		}
	case appcore.JobStatusCancelled:
		p.Step, p.Message = appcore.StepCancelled, "Cancelled"
	case appcore.JobStatusError:
		p.Step = appcore.StepError
		if message != "" {
			p.Message = message
		}
		s.state.Error = p.Message
	}
}

// saveLocked writes the state through a temp file so a crash never leaves
// a half-written session behind.
func (s *StateStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to encode session", err)
	}
	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create session dir", err)
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to write session", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to write session", err)
	}
	return nil
}
