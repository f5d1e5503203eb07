package handler

import (
	"vlogclip/internal/deps"
	"vlogclip/internal/dto"
	"vlogclip/internal/response"

	"github.com/gin-gonic/gin"
)

func (h Handler) Health(c *gin.Context) {
	res := dto.HealthRes{
		Status:       "ok",
		Version:      h.version,
		Dependencies: h.dependencies,
	}
	if res.Dependencies == nil {
		res.Dependencies = []deps.DependencyState{}
	}
	if len(deps.MissingRequired(h.dependencies)) > 0 {
		res.Status = "degraded"
	}
	if h.jobs != nil {
		res.ActiveJobs = h.jobs.Active()
	}
	response.Success(c, res)
}
