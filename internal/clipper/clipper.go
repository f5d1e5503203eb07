package clipper

import (
	"context"
	"path"
	"strings"
	"time"
	"vlogclip/config"
	"vlogclip/internal/boundary"
	"vlogclip/internal/captions"
	"vlogclip/internal/extractor"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/types"
)

type Fetcher interface {
	Fetch(ctx context.Context, ref, dest string, rep progress.Reporter) (*fetcher.Source, error)
}

type Extractor interface {
	Extract(ctx context.Context, req extractor.Request) (extractor.Result, error)
}

// Catalog records produced clips.
type Catalog interface {
	SaveClips(jobID string, clips []types.ClipResult) error
}

type CatalogFunc func(jobID string, clips []types.ClipResult) error

func (f CatalogFunc) SaveClips(jobID string, clips []types.ClipResult) error {
	return f(jobID, clips)
}

// Mirror copies a finished clip somewhere public and returns its URL.
type Mirror interface {
	Upload(ctx context.Context, localPath, name string) (string, error)
}

type Settings struct {
	TempDir string
	ClipDir string
	// DownloadBase prefixes clip URLs, e.g. "https://clips.example.com". Empty keeps them relative.
	DownloadBase    string
	DefaultDuration float64
	MaxBatch        int
	Parallelism     int
	MemberDelay     time.Duration
}

func SettingsFromConfig(c config.Config, tempDir, clipDir string) Settings {
	return Settings{
		TempDir:         tempDir,
		ClipDir:         clipDir,
		DownloadBase:    c.Server.PublicBaseUrl,
		DefaultDuration: c.Clip.Duration,
		MaxBatch:        c.Batch.MaxVideos,
		Parallelism:     c.Batch.Parallelism,
		MemberDelay:     time.Duration(c.Batch.MemberDelaySeconds * float64(time.Second)),
	}
}

type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Selector  boundary.Selector
	Captions  captions.Provider
	Plans     plan.Lookup
	Catalog   Catalog
	Mirror    Mirror
}

// Service runs single and batch clip jobs. It holds no per-job state.
type Service struct {
	deps     Deps
	settings Settings
	fallback captions.Provider
	now      func() time.Time
}

func New(deps Deps, settings Settings) *Service {
	if settings.MaxBatch <= 0 || settings.MaxBatch > config.HardBatchLimit {
		settings.MaxBatch = config.HardBatchLimit
	}
	if settings.Parallelism <= 0 {
		settings.Parallelism = 1
	}
	if settings.DefaultDuration <= 0 {
		settings.DefaultDuration = 10
	}
	if deps.Selector == nil {
		deps.Selector = boundary.FixedWindow{Start: 30, Duration: settings.DefaultDuration}
	}
	if deps.Plans == nil {
		deps.Plans = plan.NewStatic(plan.Pro, nil)
	}
	fallback := captions.Provider(captions.NewTemplate(config.DefaultCaptionTemplates()))
	if deps.Captions == nil {
		deps.Captions = fallback
	}
	return &Service{deps: deps, settings: settings, fallback: fallback, now: time.Now}
}

// DownloadURL is the link clients use to fetch a clip by file name.
func (s *Service) DownloadURL(name string) string {
	rel := path.Join("/api/download", name)
	if base := strings.TrimRight(s.settings.DownloadBase, "/"); base != "" {
		return base + rel
	}
	return rel
}
