package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:30 - 00:00:40", FormatTimestamp(30, 40))
	assert.Equal(t, "01:01:01 - 01:02:00", FormatTimestamp(3661.9, 3720))
	assert.Equal(t, "00:00:00 - 00:00:05", FormatTimestamp(-3, 5))
}

func TestClipWindowEnd(t *testing.T) {
	assert.Equal(t, 40.0, ClipWindow{Start: 30, Duration: 10}.End())
}

func TestNewBatchReportSplitsMembers(t *testing.T) {
	members := []BatchResult{
		{VideoIndex: 1, SourceURL: "a", Clips: []ClipResult{{OutputFile: "clip_a.mp4"}}},
		{VideoIndex: 2, SourceURL: "b", Error: "fetch failed"},
		{VideoIndex: 3, SourceURL: "c", Clips: []ClipResult{{OutputFile: "clip_c.mp4"}}},
	}

	report := NewBatchReport(members)

	assert.Equal(t, 2, report.TotalProcessed)
	assert.Equal(t, 1, report.TotalErrors)
	assert.Equal(t, len(members), report.TotalProcessed+report.TotalErrors)
	assert.Equal(t, 1, report.Results[0].VideoIndex)
	assert.Equal(t, 3, report.Results[1].VideoIndex)
	assert.Equal(t, "b", report.Errors[0].SourceURL)
}

func TestNewBatchReportEmpty(t *testing.T) {
	report := NewBatchReport(nil)
	assert.NotNil(t, report.Results)
	assert.NotNil(t, report.Errors)
	assert.Zero(t, report.TotalProcessed)
}
