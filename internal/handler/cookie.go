package handler

import (
	"vlogclip/internal/fetcher"
	"vlogclip/internal/response"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetCookieStatus reports whether the configured cookies file exists and
// how long its cookies stay valid.
func (h Handler) GetCookieStatus(c *gin.Context) {
	status, err := fetcher.InspectCookies(h.cookiesFile, h.now())
	if err != nil {
		log.GetLogger().Error("failed to inspect cookies file", zap.String("path", h.cookiesFile), zap.Error(err))
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeUnknown, "Failed to read cookie file status", err))
		return
	}
	response.Success(c, status)
}
