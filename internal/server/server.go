package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	"vlogclip/config"
	"vlogclip/internal/appdirs"
	"vlogclip/internal/boundary"
	"vlogclip/internal/captions"
	"vlogclip/internal/clipper"
	"vlogclip/internal/deps"
	"vlogclip/internal/extractor"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/handler"
	"vlogclip/internal/jobs"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/queue"
	"vlogclip/internal/router"
	"vlogclip/internal/storage"
	"vlogclip/internal/taskrunner"
	"vlogclip/log"
	"vlogclip/pkg/openai"
	"vlogclip/pkg/oss"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Backend is the assembled service: routes plus the job machinery behind them.
type Backend struct {
	Engine  *gin.Engine
	Jobs    *jobs.Manager
	Service *clipper.Service
	closers []func()
}

// Build wires every component from cfg. Dependency states are only reported, not re-resolved.
func Build(cfg config.Config, states []deps.DependencyState, version string) (*Backend, error) {
	clipDir, tempDir, err := workDirs(cfg.Paths)
	if err != nil {
		return nil, err
	}

	client, err := fetcher.NewYouTubeClient(cfg.App.ParsedProxy, cfg.App.CookiesFile)
	if err != nil {
		return nil, err
	}
	throttle := time.Duration(cfg.Progress.ThrottleMs) * time.Millisecond
	src := fetcher.New(client, fetcher.Options{
		MaxHeight:        cfg.Clip.MaxSourceHeight,
		AssumedTotal:     cfg.Clip.AssumedSourceBytes,
		ProgressInterval: throttle,
	})
	cutter := extractor.New(storage.FfmpegPath,
		extractor.WithPlaceholder(cfg.Clip.PlaceholderSeconds, cfg.Clip.PlaceholderColor))

	var catalog *storage.Catalog
	if storage.DB != nil {
		catalog = &storage.Catalog{}
	}

	svcDeps := clipper.Deps{
		Fetcher:   src,
		Extractor: cutter,
		Selector:  boundary.FromConfig(cfg.Clip),
		Captions:  captionProvider(cfg),
		Plans:     plan.NewStatic(cfg.App.DefaultPlan, cfg.Plans),
	}
	if catalog != nil {
		svcDeps.Catalog = catalog
	}
	if cfg.Oss.Enabled {
		svcDeps.Mirror = oss.NewUploader(oss.Config{
			Region:          cfg.Oss.Region,
			Bucket:          cfg.Oss.Bucket,
			AccessKeyId:     cfg.Oss.AccessKeyId,
			AccessKeySecret: cfg.Oss.AccessKeySecret,
			Prefix:          cfg.Oss.Prefix,
			PublicBaseUrl:   cfg.Oss.PublicBaseUrl,
		})
		log.GetLogger().Info("clip mirror enabled", zap.String("bucket", cfg.Oss.Bucket))
	}
	svc := clipper.New(svcDeps, clipper.SettingsFromConfig(cfg, tempDir, clipDir))

	jobOpts := jobs.Options{
		MaxActive:        cfg.Jobs.MaxActive,
		Retain:           cfg.Jobs.Retain,
		ProgressInterval: throttle,
	}
	if catalog != nil {
		jobOpts.Journal = catalog
	}
	manager := jobs.NewManager(svc, progress.NewTracker(cfg.Jobs.Retain), jobOpts)

	b := &Backend{Jobs: manager, Service: svc}
	switch cfg.Jobs.Backend {
	case config.BackendRedis:
		q := queue.NewQueue(queue.ConfigFrom(cfg))
		if err = q.Start(manager.Execute); err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("start job queue: %w", err)
		}
		manager.UseDispatcher(q)
		b.closers = append(b.closers, func() { _ = q.Close() })
	default:
		runner := taskrunner.New(manager.Execute, taskrunner.Config{
			QueueSize:   cfg.Jobs.QueueSize,
			Concurrency: cfg.Jobs.Workers,
		})
		manager.UseDispatcher(runner)
		b.closers = append(b.closers, runner.Close)
	}

	hdlOpts := handler.Options{
		Jobs:         manager,
		ClipDir:      clipDir,
		DownloadURL:  svc.DownloadURL,
		CookiesFile:  cfg.App.CookiesFile,
		Dependencies: states,
		Version:      version,
	}
	if catalog != nil {
		hdlOpts.Catalog = catalog
	}

	gin.SetMode(gin.ReleaseMode)
	b.Engine = gin.New()
	b.Engine.Use(gin.Recovery())
	router.SetupRouter(b.Engine, handler.NewHandler(hdlOpts))
	return b, nil
}

// Close cancels running jobs and stops the dispatcher.
func (b *Backend) Close(ctx context.Context) {
	if err := b.Jobs.Shutdown(ctx); err != nil {
		log.GetLogger().Warn("jobs did not stop in time", zap.Error(err))
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// StartBackend serves the API until SIGINT or SIGTERM.
func StartBackend(version string, states []deps.DependencyState) error {
	b, err := Build(config.Conf, states, version)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(config.Conf.Server.Host, strconv.Itoa(config.Conf.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Info("backend listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		b.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	log.GetLogger().Info("shutting down backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.Close(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

func captionProvider(cfg config.Config) captions.Provider {
	templates := cfg.Captions.Templates
	if len(templates) == 0 {
		templates = config.DefaultCaptionTemplates()
	}
	tpl := captions.NewTemplate(templates)
	if cfg.Captions.Provider != config.CaptionsOpenAI || strings.TrimSpace(cfg.Llm.ApiKey) == "" {
		return tpl
	}
	model := openai.NewClient(cfg.Llm.BaseUrl, cfg.Llm.ApiKey, cfg.Llm.Model, cfg.App.ParsedProxy)
	return captions.NewLLM(model, tpl)
}

func workDirs(p config.Paths) (clipDir, tempDir string, err error) {
	clipDir = strings.TrimSpace(p.ClipDir)
	if clipDir == "" {
		if clipDir, err = appdirs.ResolveClipRoot(); err != nil {
			return "", "", err
		}
	}
	tempDir = strings.TrimSpace(p.TempDir)
	if tempDir == "" {
		if tempDir, err = appdirs.ResolveTempRoot(); err != nil {
			return "", "", err
		}
	}
	for _, dir := range []string{clipDir, tempDir} {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return "", "", fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return clipDir, tempDir, nil
}
