package storage

import (
	"errors"
	"time"
	"vlogclip/internal/appcore"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRecord journals a job so history and restarts can be reasoned about.
type JobRecord struct {
	ID         uint   `gorm:"primaryKey"`
	JobID      string `gorm:"uniqueIndex"`
	Kind       string
	Status     string `gorm:"index"`
	Message    string
	Input      string
	ClipCount  int
	ErrorCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

func (JobRecord) TableName() string {
	return "jobs"
}

// SaveJob inserts or updates a job by JobID.
func SaveJob(rec *JobRecord) error {
	if DB == nil {
		return errNoDB
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "clip_count", "error_count", "updated_at", "finished_at"}),
	}).Create(rec).Error
}

func GetJob(jobID string) (*JobRecord, error) {
	if DB == nil {
		return nil, errNoDB
	}
	var rec JobRecord
	err := DB.Where("job_id = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func JobHistory(limit int) ([]JobRecord, error) {
	if DB == nil {
		return nil, errNoDB
	}
	var recs []JobRecord
	if err := DB.Order("created_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// MarkStaleJobs fails every job still recorded as processing.
// It is called on startup, when no job can actually be running.
func MarkStaleJobs() (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	now := time.Now()
	result := DB.Model(&JobRecord{}).
		Where("status = ?", appcore.JobStatusProcessing.String()).
		Updates(map[string]interface{}{
			"status":      appcore.JobStatusError.String(),
			"message":     "Job interrupted by server restart",
			"finished_at": &now,
		})
	return result.RowsAffected, result.Error
}
