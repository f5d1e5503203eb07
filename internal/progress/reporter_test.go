package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorded struct {
	step    string
	percent int
}

func collect() (Reporter, *[]recorded) {
	var got []recorded
	return ReporterFunc(func(step string, percent int, _ string) {
		got = append(got, recorded{step, percent})
	}), &got
}

func TestScaleMapsIntoSubRange(t *testing.T) {
	parent, got := collect()
	child := Scale(parent, 30, 60)

	child.Report("downloading", 0, "")
	child.Report("downloading", 50, "")
	child.Report("downloading", 100, "")
	child.Report("downloading", 250, "")

	assert.Equal(t, []recorded{
		{"downloading", 30},
		{"downloading", 45},
		{"downloading", 60},
		{"downloading", 60},
	}, *got)
}

func TestScaleSwapsInvertedBoundsAndHandlesNil(t *testing.T) {
	parent, got := collect()
	Scale(parent, 80, 20).Report("x", 100, "")
	assert.Equal(t, 80, (*got)[0].percent)

	Scale(nil, 0, 10).Report("x", 50, "")
}

func TestThrottleDropsBurstsButKeepsFinalAndStepChanges(t *testing.T) {
	parent, got := collect()
	r := Throttle(parent, time.Hour)

	r.Report("downloading", 1, "")
	r.Report("downloading", 2, "")
	r.Report("downloading", 3, "")
	r.Report("extracting", 4, "")
	r.Report("extracting", 5, "")
	r.Report("extracting", 100, "")

	assert.Equal(t, []recorded{
		{"downloading", 1},
		{"extracting", 4},
		{"extracting", 100},
	}, *got)
}

func TestThrottleWithoutIntervalPassesEverything(t *testing.T) {
	parent, got := collect()
	r := Throttle(parent, 0)
	for i := 0; i < 5; i++ {
		r.Report("downloading", i, "")
	}
	assert.Len(t, *got, 5)
}
