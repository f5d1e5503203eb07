package appdirs

import (
	"path/filepath"
	"strings"
)

const (
	ClipRootName = "clips"
	TempRootName = "temp"
	dbFileName   = "vlogclip.db"
	// SessionFileName is the CLI's persisted processing state.
	SessionFileName = "session.json"
)

// ClipRootFor is where finished clips are written and served from.
func ClipRootFor(paths Paths) string {
	return filepath.Join(normalizeOutputDir(paths.OutputDir), ClipRootName)
}

// TempRootFor holds full-length source downloads; files there never outlive a job.
func TempRootFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), TempRootName)
}

func DBPathFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), dbFileName)
}

// SessionFileFor is the default session file of the vlogclip CLI.
func SessionFileFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), SessionFileName)
}

func ResolveClipRoot() (string, error) {
	paths, err := Resolve()
	if err != nil {
		return "", err
	}
	return ClipRootFor(paths), nil
}

func ResolveTempRoot() (string, error) {
	paths, err := Resolve()
	if err != nil {
		return "", err
	}
	return TempRootFor(paths), nil
}

func ResolveDBPath() (string, error) {
	paths, err := Resolve()
	if err != nil {
		return "", err
	}
	return DBPathFor(paths), nil
}

func normalizeOutputDir(outputDir string) string {
	cleaned := strings.TrimSpace(outputDir)
	if cleaned == "" {
		return "."
	}
	return filepath.Clean(cleaned)
}

func normalizeCacheDir(cacheDir string) string {
	cleaned := strings.TrimSpace(cacheDir)
	if cleaned == "" {
		return "cache"
	}
	return filepath.Clean(cleaned)
}
