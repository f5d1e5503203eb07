package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/progress"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// DefaultAssumedTotal is the size progress is measured against when the
// source does not declare one.
const DefaultAssumedTotal int64 = 10 * 1024 * 1024

// VideoClient is the part of the platform client the fetcher needs.
// *youtube.Client satisfies it.
type VideoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

type Options struct {
	// MaxHeight caps the selected format's height; zero means no cap.
	MaxHeight        int
	AssumedTotal     int64
	ProgressInterval time.Duration
}

type Fetcher struct {
	client VideoClient
	opts   Options
}

// Source is a fetched, fully written and closed download.
type Source struct {
	Meta   types.VideoMeta
	Path   string
	Bytes  int64
	ItagNo int
	Format string
}

type heightCapKey struct{}

// WithHeightCap overrides Options.MaxHeight for fetches made with the returned context.
func WithHeightCap(ctx context.Context, maxHeight int) context.Context {
	return context.WithValue(ctx, heightCapKey{}, maxHeight)
}

func New(client VideoClient, opts Options) *Fetcher {
	if opts.AssumedTotal <= 0 {
		opts.AssumedTotal = DefaultAssumedTotal
	}
	return &Fetcher{client: client, opts: opts}
}

// NewYouTubeClient builds the platform client, routed through proxy and
// carrying cookies from cookiesFile when those are set.
func NewYouTubeClient(proxy *url.URL, cookiesFile string) (*youtube.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	httpClient := &http.Client{Transport: transport}

	if strings.TrimSpace(cookiesFile) != "" {
		jar, n, err := LoadCookieJar(cookiesFile)
		if err != nil {
			return nil, fmt.Errorf("load cookies %s: %w", cookiesFile, err)
		}
		httpClient.Jar = jar
		log.GetLogger().Info("loaded cookies for source client", zap.Int("count", n))
	}
	return &youtube.Client{HTTPClient: httpClient}, nil
}

// Resolve validates ref and looks up its metadata without downloading.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (*youtube.Video, types.VideoMeta, error) {
	id, err := ValidateReference(ref)
	if err != nil {
		return nil, types.VideoMeta{}, err
	}
	video, err := f.client.GetVideoContext(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, types.VideoMeta{}, ctxErr
		}
		return nil, types.VideoMeta{}, apperrors.Wrap(apperrors.CodeFetchFailed, "Failed to get video info", err)
	}
	meta := types.VideoMeta{
		ID:        id,
		Title:     strings.TrimSpace(video.Title),
		Author:    strings.TrimSpace(video.Author),
		Duration:  video.Duration,
		SourceURL: strings.TrimSpace(ref),
	}
	if meta.Title == "" {
		meta.Title = id
	}
	return video, meta, nil
}

// Fetch downloads ref into dest. A partially written dest is left in place
// on failure; the caller owns its removal.
func (f *Fetcher) Fetch(ctx context.Context, ref, dest string, rep progress.Reporter) (*Source, error) {
	if rep == nil {
		rep = progress.Discard
	}
	rep = progress.Throttle(rep, f.opts.ProgressInterval)

	video, meta, err := f.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	maxHeight := f.opts.MaxHeight
	if h, ok := ctx.Value(heightCapKey{}).(int); ok && h > 0 {
		maxHeight = h
	}
	format, err := SelectFormat(video.Formats, maxHeight)
	if err != nil {
		return nil, err
	}
	log.GetLogger().Info("selected source format",
		zap.String("videoId", meta.ID),
		zap.Int("itag", format.ItagNo),
		zap.String("mime", format.MimeType),
		zap.String("quality", format.QualityLabel))

	stream, size, err := f.client.GetStreamContext(ctx, video, format)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.Wrap(apperrors.CodeFetchFailed, "Failed to open video stream", err)
	}
	defer stream.Close()

	total := size
	if total <= 0 {
		total = format.ContentLength
	}
	if total <= 0 {
		total = f.opts.AssumedTotal
	}

	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create temp dir", err)
	}
	file, err := os.Create(dest)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create temp file", err)
	}

	rep.Report(appcore.StepFetching, 0, "Downloading video: 0%")
	written, copyErr := copyWithProgress(ctx, file, stream, func(done int64) {
		pct := int(done * 100 / total)
		if pct > 99 {
			pct = 99
		}
		rep.Report(appcore.StepFetching, pct, fmt.Sprintf("Downloading video: %d%%", pct))
	})
	closeErr := file.Close()

	if copyErr != nil {
		if errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, context.DeadlineExceeded) {
			return nil, copyErr
		}
		return nil, apperrors.Wrap(apperrors.CodeFetchFailed, "Download interrupted", copyErr)
	}
	if closeErr != nil {
		return nil, apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to finish temp file", closeErr)
	}
	if written == 0 {
		return nil, apperrors.New(apperrors.CodeFetchFailed, "Source stream was empty")
	}

	rep.Report(appcore.StepFetching, 100, "Download complete")
	return &Source{
		Meta:   meta,
		Path:   dest,
		Bytes:  written,
		ItagNo: format.ItagNo,
		Format: format.MimeType,
	}, nil
}

// SelectFormat picks a combined audio+video format, preferring mp4 and the
// tallest picture not above maxHeight.
func SelectFormat(formats youtube.FormatList, maxHeight int) (*youtube.Format, error) {
	var candidates []youtube.Format
	for _, f := range formats.WithAudioChannels() {
		if !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil, apperrors.ErrNoCompatible
	}

	within := candidates[:0:0]
	for _, f := range candidates {
		if maxHeight <= 0 || f.Height <= maxHeight {
			within = append(within, f)
		}
	}
	if len(within) == 0 {
		// everything is above the cap; take the smallest rather than fail
		within = candidates
		sort.SliceStable(within, func(i, j int) bool { return within[i].Height < within[j].Height })
		chosen := within[0]
		return &chosen, nil
	}

	sort.SliceStable(within, func(i, j int) bool {
		mi, mj := isMP4(within[i]), isMP4(within[j])
		if mi != mj {
			return mi
		}
		if within[i].Height != within[j].Height {
			return within[i].Height > within[j].Height
		}
		return within[i].Bitrate > within[j].Bitrate
	})
	chosen := within[0]
	return &chosen, nil
}

func isMP4(f youtube.Format) bool {
	return strings.Contains(f.MimeType, "mp4")
}

// copyWithProgress copies src to dst, checking ctx between reads.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, onProgress func(written int64)) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
				if onProgress != nil {
					onProgress(written)
				}
			}
			if ew != nil {
				return written, ew
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return written, nil
			}
			return written, err
		}
	}
}
