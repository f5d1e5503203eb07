package plan

import (
	"testing"
	"vlogclip/config"
	apperrors "vlogclip/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLookup(t *testing.T) {
	s := NewStatic("", nil)

	l, err := s.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, Pro, l.Name)

	l, err = s.Lookup(" FREE ")
	require.NoError(t, err)
	assert.Equal(t, 1, l.MaxBatch)
	assert.NotEmpty(t, l.Watermark)

	_, err = s.Lookup("platinum")
	assert.True(t, apperrors.IsValidation(err))
}

func TestStaticOverrides(t *testing.T) {
	s := NewStatic("team", map[string]config.Plan{
		"pro":  {MaxBatch: 99, Bitrate: "12000k"},
		"team": {MaxClipSeconds: 45},
	})
	def, err := s.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "team", def.Name)

	pro, err := s.Lookup(Pro)
	require.NoError(t, err)
	assert.Equal(t, config.HardBatchLimit, pro.MaxBatch, "overrides never lift the hard batch cap")
	assert.Equal(t, "12000k", pro.Bitrate)

	team, err := s.Lookup("team")
	require.NoError(t, err)
	assert.Equal(t, 45.0, team.MaxClipSeconds)
	assert.Equal(t, 1080, team.Width)
}

func TestLimitsCheckBatch(t *testing.T) {
	s := NewStatic(Pro, nil)
	free, _ := s.Lookup(Free)
	pro, _ := s.Lookup(Pro)

	err := free.CheckBatch(2)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePlanLimit, apperrors.GetCode(err))

	assert.NoError(t, pro.CheckBatch(6))
	assert.Error(t, pro.CheckBatch(7))
}

func TestLimitsClipSeconds(t *testing.T) {
	free, _ := NewStatic(Pro, nil).Lookup(Free)

	got, err := free.ClipSeconds(0, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = free.ClipSeconds(25, 10)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)

	_, err = free.ClipSeconds(31, 10)
	assert.Equal(t, apperrors.CodePlanLimit, apperrors.GetCode(err))

	_, err = free.ClipSeconds(-1, 10)
	assert.True(t, apperrors.IsValidation(err))

	got, err = free.ClipSeconds(0, 120)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got)
}

func TestLimitsProfile(t *testing.T) {
	biz, _ := NewStatic(Pro, nil).Lookup(Business)
	p := biz.Profile()
	assert.Equal(t, 2160, p.Width)
	assert.Equal(t, 3840, p.Height)
	assert.Empty(t, p.Watermark)
}
