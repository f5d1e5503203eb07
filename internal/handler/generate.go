package handler

import (
	"vlogclip/internal/appcore"
	"vlogclip/internal/dto"
	"vlogclip/internal/response"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Generate runs a single clip job and answers when it is finished.
// A client that disconnects cancels the job.
func (h Handler) Generate(c *gin.Context) {
	var req dto.GenerateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		log.GetLogger().Warn("Generate ShouldBindJSON err", zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Video URL is required", err))
		return
	}
	log.GetLogger().Info("Generate received request", zap.String("videoUrl", req.VideoUrl), zap.String("plan", req.Plan))

	out, err := h.jobs.Run(c.Request.Context(), appcore.JobRequest{
		ID:             req.JobId,
		Kind:           appcore.JobKindSingle,
		VideoURL:       req.VideoUrl,
		CustomDuration: req.CustomDuration,
		Plan:           req.Plan,
	})
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	response.Success(c, dto.GenerateRes{JobId: out.JobID, Clips: out.Clips})
}

// GenerateBatch runs a batch job and answers with the full report. Member
// failures are part of a successful response.
func (h Handler) GenerateBatch(c *gin.Context) {
	var req dto.GenerateBatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		log.GetLogger().Warn("GenerateBatch ShouldBindJSON err", zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "Please provide an array of video URLs", err))
		return
	}
	log.GetLogger().Info("GenerateBatch received request", zap.Int("videos", len(req.VideoUrls)), zap.String("plan", req.Plan))

	out, err := h.jobs.Run(c.Request.Context(), appcore.JobRequest{
		ID:             req.JobId,
		Kind:           appcore.JobKindBatch,
		VideoURLs:      req.VideoUrls,
		CustomDuration: req.CustomDuration,
		Plan:           req.Plan,
	})
	if err != nil {
		response.ErrorResponse(c, err)
		return
	}
	res := dto.GenerateBatchRes{JobId: out.JobID}
	if out.Batch != nil {
		res.BatchReport = *out.Batch
	}
	response.Success(c, res)
}
