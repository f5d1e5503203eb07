package dto

import (
	"vlogclip/internal/appcore"
	"vlogclip/internal/deps"
	"vlogclip/internal/types"
)

type GenerateReq struct {
	VideoUrl       string  `json:"videoUrl" binding:"required"`
	CustomDuration float64 `json:"customDuration"`
	Plan           string  `json:"plan"`
	JobId          string  `json:"jobId"`
}

type GenerateRes struct {
	JobId string             `json:"jobId"`
	Clips []types.ClipResult `json:"clips"`
}

type GenerateBatchReq struct {
	VideoUrls      []string `json:"videoUrls" binding:"required"`
	CustomDuration float64  `json:"customDuration"`
	Plan           string   `json:"plan"`
	JobId          string   `json:"jobId"`
}

type GenerateBatchRes struct {
	JobId string `json:"jobId"`
	types.BatchReport
}

// StartJobReq starts a job without waiting. Kind defaults to batch when
// VideoUrls is set and to single otherwise.
type StartJobReq struct {
	Kind           string   `json:"kind"`
	VideoUrl       string   `json:"videoUrl"`
	VideoUrls      []string `json:"videoUrls"`
	CustomDuration float64  `json:"customDuration"`
	Plan           string   `json:"plan"`
	JobId          string   `json:"jobId"`
}

func (r StartJobReq) JobRequest() appcore.JobRequest {
	kind := appcore.JobKind(r.Kind)
	if kind == "" {
		kind = appcore.JobKindSingle
		if len(r.VideoUrls) > 0 {
			kind = appcore.JobKindBatch
		}
	}
	return appcore.JobRequest{
		ID:             r.JobId,
		Kind:           kind,
		VideoURL:       r.VideoUrl,
		VideoURLs:      r.VideoUrls,
		CustomDuration: r.CustomDuration,
		Plan:           r.Plan,
	}
}

type StartJobRes struct {
	JobId    string           `json:"jobId"`
	Snapshot appcore.Snapshot `json:"snapshot"`
}

type JobRes struct {
	Snapshot appcore.Snapshot   `json:"snapshot"`
	Clips    []types.ClipResult `json:"clips,omitempty"`
	Batch    *types.BatchReport `json:"batch,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type LastClipsRes struct {
	Clips  []types.ClipResult `json:"clips"`
	Source string             `json:"source"` // catalog or directory
}

type HealthRes struct {
	Status       string                 `json:"status"` // ok or degraded
	Version      string                 `json:"version,omitempty"`
	ActiveJobs   int                    `json:"activeJobs"`
	Dependencies []deps.DependencyState `json:"dependencies"`
}
