package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"vlogclip/internal/appdirs"
	"vlogclip/log"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB
var appDirsResolver = appdirs.Resolve

var errNoDB = errors.New("database not initialized")

// InitDB opens the catalog at override, or at the default path when override is empty.
func InitDB(override string) error {
	dbPath := strings.TrimSpace(override)
	if dbPath == "" {
		var err error
		if dbPath, err = resolveDBPath(); err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	DB = db
	log.GetLogger().Info("Database initialized successfully", zap.String("path", dbPath))
	return nil
}

// OpenDB opens and migrates a sqlite database without touching the global handle.
func OpenDB(dbPath string) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir %s: %w", dir, err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err = db.AutoMigrate(&ClipRecord{}, &JobRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func resolveDBPath() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return appdirs.DBPathFor(dirs), nil
}
