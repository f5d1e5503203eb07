package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/clipper"
	"vlogclip/internal/deps"
	"vlogclip/internal/dto"
	"vlogclip/internal/jobs"
	"vlogclip/internal/plan"
	"vlogclip/internal/progress"
	"vlogclip/internal/storage"
	"vlogclip/internal/types"
	apperrors "vlogclip/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	block chan struct{}
}

func (p *stubPipeline) PrepareSingle(req clipper.Request) (plan.Limits, float64, error) {
	if !strings.Contains(req.VideoURL, "youtu") {
		return plan.Limits{}, 0, apperrors.ErrUnsupportedURL
	}
	if req.Plan == plan.Free && req.CustomDuration > 30 {
		return plan.Limits{}, 0, apperrors.ErrPlanLimit
	}
	return plan.Limits{Name: plan.Pro}, 10, nil
}

func (p *stubPipeline) PrepareBatch(req clipper.BatchRequest) ([]string, plan.Limits, error) {
	if len(req.VideoURLs) == 0 {
		return nil, plan.Limits{}, apperrors.ErrEmptyBatch
	}
	if len(req.VideoURLs) > 6 {
		return nil, plan.Limits{}, apperrors.ErrBatchTooLarge
	}
	return req.VideoURLs, plan.Limits{Name: plan.Pro}, nil
}

func (p *stubPipeline) RunSingle(ctx context.Context, _ string, req clipper.Request, rep progress.Reporter) ([]types.ClipResult, error) {
	rep.Report(appcore.StepFetching, 40, "Downloading video: 40%")
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []types.ClipResult{{
		TimeRangeStart: 30,
		TimeRangeEnd:   40,
		Timestamp:      "00:00:30 - 00:00:40",
		Headline:       "Highlight from Vlog",
		OutputFile:     "clip_ABC123_1700000000000.mp4",
		URL:            "/api/download/clip_ABC123_1700000000000.mp4",
		SourceURL:      req.VideoURL,
	}}, nil
}

func (p *stubPipeline) RunBatch(ctx context.Context, jobID string, req clipper.BatchRequest, rep progress.Reporter) (types.BatchReport, error) {
	members := make([]types.BatchResult, 0, len(req.VideoURLs))
	for i, u := range req.VideoURLs {
		if !strings.Contains(u, "youtu") {
			members = append(members, types.BatchResult{VideoIndex: i + 1, SourceURL: u, Error: "Unsupported video reference"})
			continue
		}
		clips, err := p.RunSingle(ctx, jobID, clipper.Request{VideoURL: u}, rep)
		if err != nil {
			return types.BatchReport{}, err
		}
		members = append(members, types.BatchResult{VideoIndex: i + 1, SourceURL: u, Clips: clips})
	}
	return types.NewBatchReport(members), nil
}

type stubCatalog struct {
	latest []types.ClipResult
	jobs   map[string]*storage.JobRecord
}

func (s stubCatalog) LatestClips(int) ([]types.ClipResult, error) { return s.latest, nil }
func (s stubCatalog) ClipsForJob(string) ([]types.ClipResult, error) {
	return s.latest, nil
}
func (s stubCatalog) GetJob(id string) (*storage.JobRecord, error) { return s.jobs[id], nil }

type testEnv struct {
	router   *gin.Engine
	manager  *jobs.Manager
	pipeline *stubPipeline
	clipDir  string
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := &stubPipeline{}
	m := jobs.NewManager(p, progress.NewTracker(10), jobs.Options{})
	opts := Options{Jobs: m, ClipDir: t.TempDir(), Version: "test"}
	if mutate != nil {
		mutate(&opts)
	}
	h := NewHandler(opts)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/generate", h.Generate)
	api.POST("/generate/batch", h.GenerateBatch)
	api.GET("/progress", h.Progress)
	api.POST("/jobs", h.StartJob)
	api.GET("/jobs/:id", h.GetJob)
	api.DELETE("/jobs/:id", h.CancelJob)
	api.GET("/jobs/:id/ws", h.JobStream)
	api.GET("/download/:filename", h.DownloadClip)
	api.HEAD("/download/:filename", h.DownloadClip)
	api.GET("/last-clips", h.LastClips)
	api.GET("/cookie/status", h.GetCookieStatus)
	r.GET("/health", h.Health)

	return &testEnv{router: r, manager: m, pipeline: p, clipDir: opts.ClipDir}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGenerateReturnsClips(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/generate", gin.H{"videoUrl": "https://youtu.be/ABC123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[dto.GenerateRes](t, w)
	assert.NotEmpty(t, res.JobId)
	require.Len(t, res.Clips, 1)
	assert.Equal(t, "00:00:30 - 00:00:40", res.Clips[0].Timestamp)

	snap := decode[appcore.Snapshot](t, env.do(t, http.MethodGet, "/api/progress?jobId="+res.JobId, nil))
	assert.Equal(t, appcore.JobStatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Percent)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "missing url", body: gin.H{}, status: http.StatusBadRequest},
		{name: "unsupported url", body: gin.H{"videoUrl": "https://vimeo.com/1"}, status: http.StatusBadRequest},
		{name: "plan limit", body: gin.H{"videoUrl": "https://youtu.be/ABC123", "plan": "free", "customDuration": 60}, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/generate", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode[gin.H](t, w)["error"])
		})
	}

	snap := decode[appcore.Snapshot](t, env.do(t, http.MethodGet, "/api/progress", nil))
	assert.Equal(t, appcore.JobStatusIdle, snap.Status)
}

func TestGenerateBatch(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/generate/batch", gin.H{"videoUrls": []string{"https://youtu.be/X", "https://vimeo.com/1"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[dto.GenerateBatchRes](t, w)
	assert.Equal(t, 1, res.TotalProcessed)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Equal(t, 2, res.Errors[0].VideoIndex)

	tooMany := make([]string, 7)
	for i := range tooMany {
		tooMany[i] = "https://youtu.be/X"
	}
	w = env.do(t, http.MethodPost, "/api/generate/batch", gin.H{"videoUrls": tooMany})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartJobThenPoll(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/jobs", gin.H{"videoUrls": []string{"https://youtu.be/A", "https://youtu.be/B"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode[dto.StartJobRes](t, w)
	assert.Equal(t, appcore.JobKindBatch, started.Snapshot.Kind)

	var res dto.JobRes
	require.Eventually(t, func() bool {
		res = decode[dto.JobRes](t, env.do(t, http.MethodGet, "/api/jobs/"+started.JobId, nil))
		return res.Snapshot.Status.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, appcore.JobStatusCompleted, res.Snapshot.Status)
	require.NotNil(t, res.Batch)
	assert.Equal(t, 2, res.Batch.TotalProcessed)
}

func TestBusyAndCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.block = make(chan struct{})

	w := env.do(t, http.MethodPost, "/api/jobs", gin.H{"videoUrl": "https://youtu.be/A"})
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID := decode[dto.StartJobRes](t, w).JobId

	w = env.do(t, http.MethodPost, "/api/jobs", gin.H{"videoUrl": "https://youtu.be/B"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodDelete, "/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		snap := decode[appcore.Snapshot](t, env.do(t, http.MethodGet, "/api/progress", nil))
		return snap.Status == appcore.JobStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/jobs/nope", nil).Code)
}

func TestGetJobFallsBackToJournal(t *testing.T) {
	done := time.Now()
	catalog := stubCatalog{
		latest: []types.ClipResult{{OutputFile: "clip_old_1.mp4"}},
		jobs: map[string]*storage.JobRecord{
			"old": {JobID: "old", Kind: "single", Status: "error", Message: "Job interrupted by server restart", FinishedAt: &done},
		},
	}
	env := newTestEnv(t, func(o *Options) { o.Catalog = catalog })

	w := env.do(t, http.MethodGet, "/api/jobs/old", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.JobRes](t, w)
	assert.Equal(t, appcore.JobStatusError, res.Snapshot.Status)
	assert.Equal(t, "Job interrupted by server restart", res.Error)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/progress?jobId=missing", nil).Code)
}

func TestDownloadClip(t *testing.T) {
	env := newTestEnv(t, nil)
	name := "clip_ABC123_1700000000000.mp4"
	require.NoError(t, os.WriteFile(filepath.Join(env.clipDir, name), []byte("mp4 data"), 0o644))

	w := env.do(t, http.MethodHead, "/api/download/"+name, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8", w.Header().Get("Content-Length"))

	w = env.do(t, http.MethodGet, "/api/download/"+name, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp4 data", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/download/"+name+"?download=1", nil)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodHead, "/api/download/clip_missing_1.mp4", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/download/clip_missing_1.mp4", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/download/..", nil).Code)
}

func TestResolveClipPathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, bad := range []string{"", "..", "../secret.mp4", "a/b.mp4", `..\x.mp4`} {
		_, ok := resolveClipPath(root, bad)
		assert.False(t, ok, bad)
	}
	p, ok := resolveClipPath(root, "clip_a_1.mp4")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "clip_a_1.mp4"), p)
}

func TestLastClipsDirectoryFallback(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Catalog = stubCatalog{} })
	for _, name := range []string{
		"clip_old_1700000000000.mp4",
		"clip_new_id_1700000005000_segment_2.mp4",
		"clip_new_id_1700000005000_segment_1.mp4",
		"full_temp_1700000009000_ab12.mp4",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(env.clipDir, name), []byte("x"), 0o644))
	}

	w := env.do(t, http.MethodGet, "/api/last-clips", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.LastClipsRes](t, w)
	assert.Equal(t, "directory", res.Source)
	require.Len(t, res.Clips, 2)
	assert.Equal(t, "clip_new_id_1700000005000_segment_1.mp4", res.Clips[0].OutputFile)
	assert.Equal(t, "new_id", res.Clips[0].VideoID)
	assert.Equal(t, "/api/download/clip_new_id_1700000005000_segment_2.mp4", res.Clips[1].URL)
}

func TestLastClipsFromCatalog(t *testing.T) {
	catalog := stubCatalog{latest: []types.ClipResult{{OutputFile: "clip_a_1.mp4"}}}
	env := newTestEnv(t, func(o *Options) { o.Catalog = catalog })

	res := decode[dto.LastClipsRes](t, env.do(t, http.MethodGet, "/api/last-clips", nil))
	assert.Equal(t, "catalog", res.Source)
	assert.Len(t, res.Clips, 1)
}

func TestCookieStatusNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/cookie/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_configured", decode[gin.H](t, w)["status"])
}

func TestHealthReportsMissingFfmpeg(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Dependencies = []deps.DependencyState{{
			DependencySpec: deps.DependencySpec{ID: "ffmpeg", Name: "ffmpeg", Tier: deps.DependencyTierMust},
			Status:         deps.DependencyStatusMissing,
		}}
	})
	res := decode[dto.HealthRes](t, env.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", res.Status)
	assert.Equal(t, "test", res.Version)
}

func TestJobStreamSendsSnapshotsUntilDone(t *testing.T) {
	env := newTestEnv(t, nil)
	env.pipeline.block = make(chan struct{})

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	h, err := env.manager.Submit(context.Background(), appcore.JobRequest{Kind: appcore.JobKindSingle, VideoURL: "https://youtu.be/A"})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + h.ID() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first appcore.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, h.ID(), first.JobID)

	close(env.pipeline.block)

	var last appcore.Snapshot
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var snap appcore.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			break
		}
		last = snap
	}
	assert.Equal(t, appcore.JobStatusCompleted, last.Status)
}
