package router

import (
	"net/http"
	"time"
	"vlogclip/internal/handler"
	"vlogclip/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRouter(r *gin.Engine, hdl handler.Handler) {
	r.Use(requestLogger(), allowCORS())

	api := r.Group("/api")
	{
		// synchronous endpoints answer when the job is done
		api.POST("/generate", hdl.Generate)
		api.POST("/generate/batch", hdl.GenerateBatch)
		api.GET("/progress", hdl.Progress)

		api.POST("/jobs", hdl.StartJob)
		api.GET("/jobs/:id", hdl.GetJob)
		api.DELETE("/jobs/:id", hdl.CancelJob)
		api.GET("/jobs/:id/ws", hdl.JobStream)

		api.GET("/download/:filename", hdl.DownloadClip)
		api.HEAD("/download/:filename", hdl.DownloadClip)
		api.GET("/last-clips", hdl.LastClips)

		api.GET("/cookie/status", hdl.GetCookieStatus)
	}

	r.GET("/health", hdl.Health)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/api/progress" || c.Request.URL.Path == "/health" {
			return
		}
		log.GetLogger().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// allowCORS lets browser clients on other origins call the API.
func allowCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, HEAD, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
