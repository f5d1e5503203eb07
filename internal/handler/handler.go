package handler

import (
	"net/http"
	"time"
	"vlogclip/internal/deps"
	"vlogclip/internal/jobs"
	"vlogclip/internal/storage"
	"vlogclip/internal/types"

	"github.com/gorilla/websocket"
)

// Catalog is the persisted view of clips and jobs the handlers read.
type Catalog interface {
	LatestClips(limit int) ([]types.ClipResult, error)
	ClipsForJob(jobID string) ([]types.ClipResult, error)
	GetJob(jobID string) (*storage.JobRecord, error)
}

type Options struct {
	Jobs    *jobs.Manager
	Catalog Catalog
	ClipDir string
	// DownloadURL builds a clip link from its file name; relative links when nil.
	DownloadURL  func(name string) string
	CookiesFile  string
	Dependencies []deps.DependencyState
	Version      string
}

type Handler struct {
	jobs         *jobs.Manager
	catalog      Catalog
	clipDir      string
	downloadURL  func(name string) string
	cookiesFile  string
	dependencies []deps.DependencyState
	version      string
	upgrader     websocket.Upgrader
	now          func() time.Time
}

func NewHandler(opts Options) Handler {
	if opts.DownloadURL == nil {
		opts.DownloadURL = clipURL
	}
	return Handler{
		jobs:         opts.Jobs,
		catalog:      opts.Catalog,
		clipDir:      opts.ClipDir,
		downloadURL:  opts.DownloadURL,
		cookiesFile:  opts.CookiesFile,
		dependencies: opts.Dependencies,
		version:      opts.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// clients are served from other origins during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}
