package main

import (
	"os"
	"vlogclip/config"
	"vlogclip/internal/deps"
	"vlogclip/internal/server"
	"vlogclip/internal/storage"
	"vlogclip/log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// a .env next to the binary is optional
	_ = godotenv.Load()

	log.InitLogger()
	defer log.GetLogger().Sync()

	created, err := config.LoadOrCreateConfig()
	if err != nil {
		log.GetLogger().Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}
	if created {
		log.GetLogger().Info("wrote default config, edit it and restart to customise")
	}
	if err = config.CheckConfig(); err != nil {
		log.GetLogger().Error("invalid config", zap.Error(err))
		os.Exit(1)
	}

	if err = storage.InitDB(config.Conf.Paths.DBPath); err != nil {
		log.GetLogger().Warn("clip catalog disabled", zap.Error(err))
	} else if count, err := storage.MarkStaleJobs(); err != nil {
		log.GetLogger().Warn("failed to mark stale jobs", zap.Error(err))
	} else if count > 0 {
		log.GetLogger().Info("marked stale jobs as failed", zap.Int64("count", count))
	}

	states, err := deps.CheckDependency(config.Conf.Ffmpeg.Path, config.Conf.Ffmpeg.ProbePath)
	if err != nil {
		log.GetLogger().Error("dependency check failed", zap.Error(err))
		os.Exit(1)
	}

	if err = server.StartBackend(version, states); err != nil {
		log.GetLogger().Error("backend stopped", zap.Error(err))
		os.Exit(1)
	}
}
