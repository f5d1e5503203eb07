package clipper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"vlogclip/internal/appcore"
	"vlogclip/internal/captions"
	"vlogclip/internal/extractor"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/types"
	"vlogclip/log"
	apperrors "vlogclip/pkg/errors"
	"vlogclip/pkg/util"

	"go.uber.org/zap"
)

type Request struct {
	VideoURL       string  `json:"videoUrl"`
	CustomDuration float64 `json:"customDuration,omitempty"`
	Plan           string  `json:"plan,omitempty"`
}

// PrepareSingle checks a request without doing any I/O.
func (s *Service) PrepareSingle(req Request) (plan.Limits, float64, error) {
	limits, err := s.deps.Plans.Lookup(req.Plan)
	if err != nil {
		return plan.Limits{}, 0, err
	}
	duration, err := limits.ClipSeconds(req.CustomDuration, s.settings.DefaultDuration)
	if err != nil {
		return plan.Limits{}, 0, err
	}
	if _, err = fetcher.ValidateReference(req.VideoURL); err != nil {
		return plan.Limits{}, 0, err
	}
	return limits, duration, nil
}

// RunSingle fetches one source, cuts its clips and returns them. The
// downloaded source is removed on every path out of this function.
func (s *Service) RunSingle(ctx context.Context, jobID string, req Request, rep progress.Reporter) ([]types.ClipResult, error) {
	if rep == nil {
		rep = progress.Discard
	}
	limits, duration, err := s.PrepareSingle(req)
	if err != nil {
		return nil, err
	}
	videoID, _ := fetcher.ValidateReference(req.VideoURL)
	rep.Report(appcore.StepValidating, 5, "Validating video URL")

	stamp := s.now().UnixMilli()
	tempPath := filepath.Join(s.settings.TempDir,
		fmt.Sprintf("full_%s_%d_%s.mp4", videoID, stamp, util.GenerateRandStringWithUpperLowerNum(4)))
	defer func() {
		if rmErr := os.Remove(tempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.GetLogger().Warn("failed to remove temp download", zap.String("path", tempPath), zap.Error(rmErr))
		}
	}()

	log.GetLogger().Info("fetching source", zap.String("jobId", jobID), zap.String("videoId", videoID))
	fetchCtx := ctx
	if limits.MaxSourceHeight > 0 {
		fetchCtx = fetcher.WithHeightCap(ctx, limits.MaxSourceHeight)
	}
	src, err := s.deps.Fetcher.Fetch(fetchCtx, req.VideoURL, tempPath, progress.Scale(rep, 10, 60))
	if err != nil {
		return nil, err
	}

	windows, err := s.deps.Selector.Select(src.Meta, duration)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeClipSelectFailed, "Failed to choose clip windows", err)
	}

	clips := make([]types.ClipResult, 0, len(windows))
	for i, w := range windows {
		lo := 60 + 35*i/len(windows)
		hi := 60 + 35*(i+1)/len(windows)
		rep.Report(appcore.StepExtracting, lo, fmt.Sprintf("Creating clip %d of %d", i+1, len(windows)))

		clip, err := s.cutOne(ctx, jobID, src, w, i, len(windows), stamp, limits)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
		rep.Report(appcore.StepCaptioning, hi, fmt.Sprintf("Clip %d of %d ready", i+1, len(windows)))
	}

	if s.deps.Mirror != nil {
		rep.Report(appcore.StepUploading, 96, "Uploading clips")
		s.mirror(ctx, clips)
	}
	if s.deps.Catalog != nil {
		if err = s.deps.Catalog.SaveClips(jobID, clips); err != nil {
			log.GetLogger().Warn("failed to record clips", zap.String("jobId", jobID), zap.Error(err))
		}
	}
	return clips, nil
}

func (s *Service) cutOne(ctx context.Context, jobID string, src *fetcher.Source, w types.ClipWindow, index, total int, stamp int64, limits plan.Limits) (types.ClipResult, error) {
	name := fmt.Sprintf("clip_%s_%d.mp4", src.Meta.ID, stamp)
	if total > 1 {
		name = fmt.Sprintf("clip_%s_%d_segment_%d.mp4", src.Meta.ID, stamp, index+1)
	}
	outPath := filepath.Join(s.settings.ClipDir, name)

	res, err := s.deps.Extractor.Extract(ctx, extractor.Request{
		Source:      src.Path,
		Output:      outPath,
		Start:       w.Start,
		Duration:    w.Duration,
		Profile:     limits.Profile(),
		SourceLabel: src.Meta.SourceURL,
	})
	if err != nil {
		return types.ClipResult{}, err
	}

	in := captions.Input{Meta: src.Meta, Window: w, Index: index, Total: total}
	var cp captions.Copy
	if res.Placeholder {
		cp = captions.ErrorCopy()
	} else if cp, err = s.deps.Captions.Captions(ctx, in); err != nil {
		if ctx.Err() != nil {
			return types.ClipResult{}, ctx.Err()
		}
		log.GetLogger().Warn("caption provider failed", zap.String("jobId", jobID), zap.Error(err))
		cp, _ = s.fallback.Captions(ctx, in)
	}

	clip := types.ClipResult{
		TimeRangeStart: w.Start,
		TimeRangeEnd:   w.End(),
		Timestamp:      types.FormatTimestamp(w.Start, w.End()),
		Headline:       cp.Headline,
		Label:          w.Label,
		OutputFile:     name,
		URL:            s.DownloadURL(name),
		Captions:       cp.Captions,
		Placeholder:    res.Placeholder,
		VideoID:        src.Meta.ID,
		SourceURL:      src.Meta.SourceURL,
		CreatedAt:      s.now(),
		Path:           res.Output,
	}
	if res.Cause != nil {
		clip.Error = apperrors.GetMessage(res.Cause)
	}
	return clip, nil
}

func (s *Service) mirror(ctx context.Context, clips []types.ClipResult) {
	for i := range clips {
		if clips[i].Placeholder {
			continue
		}
		url, err := s.deps.Mirror.Upload(ctx, clips[i].Path, clips[i].OutputFile)
		if err != nil {
			log.GetLogger().Warn("clip mirror upload failed", zap.String("file", clips[i].OutputFile), zap.Error(err))
			continue
		}
		clips[i].RemoteURL = url
	}
}
