package handler

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"vlogclip/internal/types"

	"github.com/samber/lo"
)

var clipNamePattern = regexp.MustCompile(`^clip_(.+)_(\d{10,})(?:_segment_(\d+))?\.mp4$`)

// resolveClipPath maps a requested clip name to a file inside root. Names
// that carry a directory or a parent reference are refused.
func resolveClipPath(root, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	requested = strings.TrimPrefix(requested, "/")
	if requested == "" || hasParentTraversal(requested) || strings.ContainsAny(requested, `/\`) {
		return "", false
	}
	candidate := filepath.Clean(filepath.Join(root, requested))
	if !isPathWithinRoot(root, candidate) {
		return "", false
	}
	return candidate, true
}

func isPathWithinRoot(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasParentTraversal(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

type scannedClip struct {
	videoID string
	stamp   int64
	segment int
	name    string
	path    string
	modTime time.Time
}

// scanLatestClips rebuilds the newest run's clips from file names alone,
// for when the catalog is unavailable or empty.
func scanLatestClips(root string, downloadURL func(string) string) ([]types.ClipResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var clips []scannedClip
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := clipNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		stamp, _ := strconv.ParseInt(m[2], 10, 64)
		segment, _ := strconv.Atoi(m[3])
		clips = append(clips, scannedClip{
			videoID: m[1],
			stamp:   stamp,
			segment: segment,
			name:    entry.Name(),
			path:    filepath.Join(root, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(clips) == 0 {
		return nil, nil
	}

	byStamp := lo.GroupBy(clips, func(c scannedClip) int64 { return c.stamp })
	newest := lo.Max(lo.Keys(byStamp))
	latest := byStamp[newest]
	sort.Slice(latest, func(i, j int) bool {
		if latest[i].videoID != latest[j].videoID {
			return latest[i].videoID < latest[j].videoID
		}
		return latest[i].segment < latest[j].segment
	})

	return lo.Map(latest, func(c scannedClip, _ int) types.ClipResult {
		return types.ClipResult{
			OutputFile: c.name,
			URL:        downloadURL(c.name),
			VideoID:    c.videoID,
			Headline:   "Recovered clip",
			CreatedAt:  time.UnixMilli(c.stamp),
			Path:       c.path,
		}
	}), nil
}
