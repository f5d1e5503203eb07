package fetcher

import (
	"net/url"
	"regexp"
	"strings"
	apperrors "vlogclip/pkg/errors"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)
	bareIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	watchHosts = map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
	}
	pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}
)

// ValidateReference returns the video ID of a supported reference. It never
// touches the network.
func ValidateReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", apperrors.New(apperrors.CodeUnsupportedURL, "Video URL is required")
	}
	if bareIDPattern.MatchString(ref) {
		return ref, nil
	}

	raw := ref
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", invalidReference(ref)
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case watchHosts[host]:
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
				break
			}
		}
	default:
		return "", invalidReference(ref)
	}

	if !videoIDPattern.MatchString(id) {
		return "", invalidReference(ref)
	}
	return id, nil
}

// DedupeKey identifies a reference for batch deduplication: the video ID when
// the reference is valid, otherwise the trimmed input.
func DedupeKey(ref string) string {
	if id, err := ValidateReference(ref); err == nil {
		return id
	}
	return strings.TrimSpace(ref)
}

func invalidReference(ref string) error {
	return apperrors.WrapWithDetail(apperrors.CodeUnsupportedURL,
		"Invalid YouTube URL", ref, nil)
}
