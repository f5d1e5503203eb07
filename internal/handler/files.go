package handler

import (
	"net/http"
	"os"
	"path"
	"strconv"
	"vlogclip/internal/dto"
	"vlogclip/internal/response"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultLastClipsLimit = 20

// DownloadClip streams a clip. HEAD answers existence only. A missing file
// is a 404 immediately.
func (h Handler) DownloadClip(c *gin.Context) {
	name := c.Param("filename")
	clipPath, ok := resolveClipPath(h.clipDir, name)
	if !ok {
		response.ErrorResponse(c, apperrors.WrapWithDetail(apperrors.CodeInvalidParams, "Invalid file name", name, nil))
		return
	}
	info, err := os.Stat(clipPath)
	if err != nil || info.IsDir() {
		response.ErrorResponse(c, apperrors.ErrFileNotFound)
		return
	}

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", "video/mp4")
		c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
		c.Status(http.StatusOK)
		return
	}
	if c.Query("download") != "" {
		c.FileAttachment(clipPath, name)
		return
	}
	c.Header("Content-Type", "video/mp4")
	c.File(clipPath)
}

// LastClips returns the newest clips, from the catalog when it has any and
// from the clip directory otherwise.
func (h Handler) LastClips(c *gin.Context) {
	limit := defaultLastClipsLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	if h.catalog != nil {
		clips, err := h.catalog.LatestClips(limit)
		if err != nil {
			log.GetLogger().Warn("catalog lookup failed, scanning clip directory", zap.Error(err))
		} else if len(clips) > 0 {
			response.Success(c, dto.LastClipsRes{Clips: clips, Source: "catalog"})
			return
		}
	}

	clips, err := scanLatestClips(h.clipDir, h.downloadURL)
	if err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeFileNotFound, "Failed to read clip directory", err))
		return
	}
	if len(clips) > limit {
		clips = clips[:limit]
	}
	if clips == nil {
		clips = []types.ClipResult{}
	}
	response.Success(c, dto.LastClipsRes{Clips: clips, Source: "directory"})
}

func clipURL(name string) string {
	return path.Join("/api/download", name)
}
