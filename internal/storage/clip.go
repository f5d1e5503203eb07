package storage

import (
	"encoding/json"
	"time"
	"vlogclip/internal/types"

	"gorm.io/gorm/clause"
)

// ClipRecord is one produced clip in the catalog.
type ClipRecord struct {
	ID             uint   `gorm:"primaryKey"`
	JobID          string `gorm:"index"`
	VideoID        string `gorm:"index"`
	SourceURL      string
	OutputFile     string `gorm:"uniqueIndex"`
	Headline       string
	Label          string
	TimeRangeStart float64
	TimeRangeEnd   float64
	CaptionsJSON   string
	Placeholder    bool
	ErrorMsg       string
	RemoteURL      string
	CreatedAt      time.Time `gorm:"index"`
}

func (ClipRecord) TableName() string {
	return "clips"
}

func newClipRecord(jobID string, c types.ClipResult) ClipRecord {
	captions, _ := json.Marshal(c.Captions)
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return ClipRecord{
		JobID:          jobID,
		VideoID:        c.VideoID,
		SourceURL:      c.SourceURL,
		OutputFile:     c.OutputFile,
		Headline:       c.Headline,
		Label:          c.Label,
		TimeRangeStart: c.TimeRangeStart,
		TimeRangeEnd:   c.TimeRangeEnd,
		CaptionsJSON:   string(captions),
		Placeholder:    c.Placeholder,
		ErrorMsg:       c.Error,
		RemoteURL:      c.RemoteURL,
		CreatedAt:      createdAt,
	}
}

// Result converts the record back to the API shape. URL is left to the caller.
func (r ClipRecord) Result() types.ClipResult {
	var captions map[string]string
	_ = json.Unmarshal([]byte(r.CaptionsJSON), &captions)
	return types.ClipResult{
		TimeRangeStart: r.TimeRangeStart,
		TimeRangeEnd:   r.TimeRangeEnd,
		Timestamp:      types.FormatTimestamp(r.TimeRangeStart, r.TimeRangeEnd),
		Headline:       r.Headline,
		Label:          r.Label,
		OutputFile:     r.OutputFile,
		RemoteURL:      r.RemoteURL,
		Captions:       captions,
		Placeholder:    r.Placeholder,
		Error:          r.ErrorMsg,
		VideoID:        r.VideoID,
		SourceURL:      r.SourceURL,
		CreatedAt:      r.CreatedAt,
	}
}

// SaveClips records clips of a job; re-saving an output file updates it.
func SaveClips(jobID string, clips []types.ClipResult) error {
	if DB == nil {
		return errNoDB
	}
	if len(clips) == 0 {
		return nil
	}
	records := make([]ClipRecord, 0, len(clips))
	for _, c := range clips {
		records = append(records, newClipRecord(jobID, c))
	}
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "output_file"}},
		UpdateAll: true,
	}).Create(&records).Error
}

func LatestClips(limit int) ([]types.ClipResult, error) {
	if DB == nil {
		return nil, errNoDB
	}
	if limit <= 0 {
		limit = 10
	}
	var records []ClipRecord
	if err := DB.Order("created_at desc").Order("id desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.ClipResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.Result())
	}
	return out, nil
}

func ClipsForJob(jobID string) ([]types.ClipResult, error) {
	if DB == nil {
		return nil, errNoDB
	}
	var records []ClipRecord
	if err := DB.Where("job_id = ?", jobID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.ClipResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.Result())
	}
	return out, nil
}
