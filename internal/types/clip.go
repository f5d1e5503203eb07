package types

import (
	"fmt"
	"time"
)

// VideoMeta is what the fetcher learns about a source before downloading it.
type VideoMeta struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	Duration time.Duration `json:"duration"`
	// SourceURL is the reference as the caller supplied it.
	SourceURL string `json:"sourceUrl"`
}

// ClipWindow is a time range inside the source, in seconds.
type ClipWindow struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Label    string  `json:"label,omitempty"`
}

func (w ClipWindow) End() float64 {
	return w.Start + w.Duration
}

// ClipResult describes one produced clip. It is never mutated after the runner returns it.
type ClipResult struct {
	TimeRangeStart float64           `json:"timeRangeStart"`
	TimeRangeEnd   float64           `json:"timeRangeEnd"`
	Timestamp      string            `json:"timestamp"`
	Headline       string            `json:"headline"`
	Label          string            `json:"label,omitempty"`
	OutputFile     string            `json:"outputFile"`
	URL            string            `json:"url"`
	RemoteURL      string            `json:"remoteUrl,omitempty"`
	Captions       map[string]string `json:"captions"`
	Placeholder    bool              `json:"placeholder"`
	Error          string            `json:"error,omitempty"`
	VideoID        string            `json:"videoId"`
	SourceURL      string            `json:"sourceUrl"`
	CreatedAt      time.Time         `json:"createdAt"`

	// Path is the clip's location on disk; clients only see OutputFile.
	Path string `json:"-"`
}

// BatchResult is one member of a batch. Exactly one of Clips or Error is set.
type BatchResult struct {
	VideoIndex int          `json:"videoIndex"`
	SourceURL  string       `json:"sourceUrl"`
	Clips      []ClipResult `json:"clips,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func (r BatchResult) Failed() bool {
	return r.Error != ""
}

// BatchReport aggregates a whole batch in input order.
type BatchReport struct {
	Results        []BatchResult `json:"results"`
	Errors         []BatchResult `json:"errors"`
	TotalProcessed int           `json:"totalProcessed"`
	TotalErrors    int           `json:"totalErrors"`
}

// NewBatchReport splits members into successes and failures, keeping their order.
func NewBatchReport(members []BatchResult) BatchReport {
	report := BatchReport{
		Results: make([]BatchResult, 0, len(members)),
		Errors:  make([]BatchResult, 0),
	}
	for _, m := range members {
		if m.Failed() {
			report.Errors = append(report.Errors, m)
			continue
		}
		report.Results = append(report.Results, m)
	}
	report.TotalProcessed = len(report.Results)
	report.TotalErrors = len(report.Errors)
	return report
}

// FormatTimestamp renders a window as "HH:MM:SS - HH:MM:SS".
func FormatTimestamp(start, end float64) string {
	return clock(start) + " - " + clock(end)
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
