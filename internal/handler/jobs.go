package handler

import (
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/dto"
	"vlogclip/internal/response"
	"vlogclip/internal/storage"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// StartJob accepts a job and returns at once with its ID.
func (h Handler) StartJob(c *gin.Context) {
	var req dto.StartJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid job request", err))
		return
	}
	handle, err := h.jobs.Submit(c.Request.Context(), req.JobRequest())
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Accepted(c, dto.StartJobRes{JobId: handle.ID(), Snapshot: handle.Snapshot()})
}

// GetJob reports a job's snapshot and, once finished, its results. Jobs
// that have left memory are answered from the journal.
func (h Handler) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	if handle, ok := h.jobs.Job(jobID); ok {
		res := dto.JobRes{Snapshot: handle.Snapshot()}
		if out, done := handle.Outcome(); done {
			res.Clips = out.Clips
			res.Batch = out.Batch
			if out.Err != nil {
				res.Error = apperrors.GetMessage(out.Err)
			}
		}
		response.Success(c, res)
		return
	}

	if h.catalog != nil {
		rec, err := h.catalog.GetJob(jobID)
		if err != nil {
			log.GetLogger().Warn("job journal lookup failed", zap.String("jobId", jobID), zap.Error(err))
		}
		if rec != nil {
			res := dto.JobRes{Snapshot: snapshotFromRecord(rec)}
			if clips, err := h.catalog.ClipsForJob(jobID); err == nil {
				res.Clips = clips
			}
			if res.Snapshot.Status == appcore.JobStatusError {
				res.Error = rec.Message
			}
			response.Success(c, res)
			return
		}
	}
	response.ErrorResponse(c, apperrors.ErrJobNotFound)
}

func (h Handler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.jobs.Cancel(jobID); err != nil {
		response.ErrorResponse(c, err)
		return
	}
	handle, _ := h.jobs.Job(jobID)
	res := dto.JobRes{}
	if handle != nil {
		res.Snapshot = handle.Snapshot()
	}
	response.Success(c, res)
}

// Progress answers with one job's snapshot, or the latest job's when no
// jobId is given. Without any job it is the idle snapshot.
func (h Handler) Progress(c *gin.Context) {
	tracker := h.jobs.Tracker()
	if jobID := c.Query("jobId"); jobID != "" {
		snap, ok := tracker.Get(jobID)
		if !ok {
			response.ErrorResponse(c, apperrors.ErrJobNotFound)
			return
		}
		response.Success(c, snap)
		return
	}
	response.Success(c, tracker.Latest())
}

// JobStream pushes every snapshot of a job over a websocket and closes
// after the terminal one.
func (h Handler) JobStream(c *gin.Context) {
	jobID := c.Param("id")
	updates, unsubscribe, err := h.jobs.Tracker().Subscribe(jobID)
	if err != nil {
		response.ErrorResponse(c, apperrors.ErrJobNotFound)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger().Warn("websocket upgrade failed", zap.String("jobId", jobID), zap.Error(err))
		return
	}
	defer conn.Close()

	// drain client frames so a close from the peer is noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				log.GetLogger().Debug("websocket write failed", zap.String("jobId", jobID), zap.Error(err))
				return
			}
		}
	}
}

func snapshotFromRecord(rec *storage.JobRecord) appcore.Snapshot {
	status, err := appcore.ParseJobStatus(rec.Status)
	if err != nil {
		status = appcore.JobStatusError
	}
	snap := appcore.Snapshot{
		JobID:     rec.JobID,
		Kind:      appcore.JobKind(rec.Kind),
		Status:    status,
		Step:      status.String(),
		Message:   rec.Message,
		UpdatedAt: rec.UpdatedAt,
	}
	if status == appcore.JobStatusCompleted {
		snap.Step = appcore.StepComplete
		snap.Percent = 100
	}
	return snap
}
