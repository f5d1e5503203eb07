package clipper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
	"vlogclip/internal/boundary"
	"vlogclip/internal/captions"
	"vlogclip/internal/extractor"
	"vlogclip/internal/fetcher"
	"vlogclip/internal/mocks"
	"vlogclip/internal/plan"
	"vlogclip/internal/types"
	apperrors "vlogclip/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockedService(t *testing.T, f *mocks.MockFetcher, e *mocks.MockExtractor, c *mocks.MockCaptions, mirror *mocks.MockMirror) *Service {
	t.Helper()
	root := t.TempDir()
	deps := Deps{
		Fetcher:   f,
		Extractor: e,
		Selector:  boundary.FixedWindow{Start: 30, Duration: 10},
		Plans:     plan.NewStatic(plan.Pro, nil),
		Captions:  c,
	}
	if mirror != nil {
		deps.Mirror = mirror
	}
	svc := New(deps, Settings{
		TempDir:         filepath.Join(root, "temp"),
		ClipDir:         filepath.Join(root, "clips"),
		DefaultDuration: 10,
	})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func mockSource(ref string) *fetcher.Source {
	return &fetcher.Source{
		Meta: types.VideoMeta{ID: "ABC123", Title: "Trip", Author: "Sam", Duration: 5 * time.Minute, SourceURL: ref},
		Path: "/tmp/full.mp4",
	}
}

func TestRunSinglePassesPlanProfileToExtractor(t *testing.T) {
	f := new(mocks.MockFetcher)
	e := new(mocks.MockExtractor)
	c := new(mocks.MockCaptions)
	ref := "https://www.youtube.com/watch?v=ABC123"

	f.On("Fetch", mock.Anything, ref, mock.AnythingOfType("string"), mock.Anything).Return(mockSource(ref), nil)
	e.On("Extract", mock.Anything, mock.MatchedBy(func(req extractor.Request) bool {
		return req.Start == 30 && req.Duration == 20 &&
			req.Source == "/tmp/full.mp4" &&
			filepath.Base(req.Output) == "clip_ABC123_1700000000000.mp4" &&
			req.Profile == mustLimits(t, plan.Pro).Profile()
	})).Return(extractor.Result{Output: "/clips/clip_ABC123_1700000000000.mp4"}, nil)
	c.On("Captions", mock.Anything, mock.MatchedBy(func(in captions.Input) bool {
		return in.Meta.ID == "ABC123" && in.Total == 1
	})).Return(captions.Copy{Headline: "Road trip", Captions: map[string]string{"tiktok": "go"}}, nil)

	svc := newMockedService(t, f, e, c, nil)
	clips, err := svc.RunSingle(context.Background(), "job-1", Request{VideoURL: ref, CustomDuration: 20}, nil)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, "Road trip", clips[0].Headline)
	assert.Equal(t, 50.0, clips[0].TimeRangeEnd)

	f.AssertExpectations(t)
	e.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestRunSingleFallsBackToTemplatesWhenCaptionsFail(t *testing.T) {
	f := new(mocks.MockFetcher)
	e := new(mocks.MockExtractor)
	c := new(mocks.MockCaptions)
	ref := "https://youtu.be/ABC123"

	f.On("Fetch", mock.Anything, ref, mock.Anything, mock.Anything).Return(mockSource(ref), nil)
	e.On("Extract", mock.Anything, mock.Anything).Return(extractor.Result{Output: "/clips/x.mp4"}, nil)
	c.On("Captions", mock.Anything, mock.Anything).Return(captions.Copy{}, errors.New("model offline"))

	svc := newMockedService(t, f, e, c, nil)
	clips, err := svc.RunSingle(context.Background(), "job-1", Request{VideoURL: ref}, nil)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, "Highlight from Trip", clips[0].Headline)
	assert.Len(t, clips[0].Captions, 4)
}

func TestRunSingleStopsWhenFetchFails(t *testing.T) {
	f := new(mocks.MockFetcher)
	e := new(mocks.MockExtractor)
	c := new(mocks.MockCaptions)
	ref := "https://youtu.be/ABC123"

	f.On("Fetch", mock.Anything, ref, mock.Anything, mock.Anything).Return(nil, apperrors.ErrNoCompatible)

	svc := newMockedService(t, f, e, c, nil)
	_, err := svc.RunSingle(context.Background(), "job-1", Request{VideoURL: ref}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoCompatible)
	e.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "Captions", mock.Anything, mock.Anything)
}

func TestPlaceholderClipsAreNotMirrored(t *testing.T) {
	f := new(mocks.MockFetcher)
	e := new(mocks.MockExtractor)
	c := new(mocks.MockCaptions)
	m := new(mocks.MockMirror)
	ref := "https://youtu.be/ABC123"

	f.On("Fetch", mock.Anything, ref, mock.Anything, mock.Anything).Return(mockSource(ref), nil)
	e.On("Extract", mock.Anything, mock.Anything).Return(extractor.Result{
		Output: "/clips/x.mp4", Placeholder: true, Cause: apperrors.ErrExtractFailed,
	}, nil)

	svc := newMockedService(t, f, e, c, m)
	clips, err := svc.RunSingle(context.Background(), "job-1", Request{VideoURL: ref}, nil)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.True(t, clips[0].Placeholder)
	assert.Equal(t, captions.ErrorCopy().Headline, clips[0].Headline)
	assert.Equal(t, "Clip extraction failed", clips[0].Error)
	m.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	c.AssertNotCalled(t, "Captions", mock.Anything, mock.Anything)
}

func mustLimits(t *testing.T, name string) plan.Limits {
	t.Helper()
	l, err := plan.NewStatic(plan.Pro, nil).Lookup(name)
	require.NoError(t, err)
	return l
}
