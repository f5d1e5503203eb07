package storage

import "vlogclip/internal/types"

// Catalog exposes the package-level store as a value that can be injected
// where an interface is expected.
type Catalog struct{}

func (Catalog) SaveClips(jobID string, clips []types.ClipResult) error {
	return SaveClips(jobID, clips)
}

func (Catalog) LatestClips(limit int) ([]types.ClipResult, error) {
	return LatestClips(limit)
}

func (Catalog) ClipsForJob(jobID string) ([]types.ClipResult, error) {
	return ClipsForJob(jobID)
}

func (Catalog) SaveJob(rec *JobRecord) error {
	return SaveJob(rec)
}

func (Catalog) GetJob(jobID string) (*JobRecord, error) {
	return GetJob(jobID)
}
