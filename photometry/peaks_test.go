package photometry_test

import (
	"testing"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/algorithms/temporal"
	"github.com/ilo21/fpexplorer/photometry"
	"github.com/ilo21/fpexplorer/photometry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplesPerSecond(t *testing.T) {
	assert.Equal(t, 100, photometry.SamplesPerSecond(common.RegularGrid(0, 100, 500)))
	assert.Equal(t, 10, photometry.SamplesPerSecond(common.RegularGrid(3, 10, 50)))
	assert.Equal(t, 3, photometry.SamplesPerSecond([]float64{0, 0.2, 0.9, 1.0, 1.5}))
	assert.Equal(t, 0, photometry.SamplesPerSecond(nil))
}

func TestDetectSingleSpike(t *testing.T) {
	const height = 4.0
	ts := common.RegularGrid(0, 100, 500)
	trace := make([]float64, len(ts))
	trace[123] = height

	detector := photometry.NewPeakDetector(testSettings())

	set, err := detector.Detect(ts, trace, config.PeakParams{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{123}, set.Indices)
	assert.Equal(t, []float64{height}, set.Values)
	assert.InDelta(t, 123*ts[499]/500, set.Times[0], 1e-12)

	set, err = detector.Detect(ts, trace, config.PeakParams{PeakTimeFromTimestamps: true}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.23, set.Times[0], 1e-12)
}

func TestDetectDistanceInSeconds(t *testing.T) {
	ts := common.RegularGrid(0, 100, 500)
	trace := make([]float64, len(ts))
	trace[100] = 2
	trace[130] = 3

	detector := photometry.NewPeakDetector(testSettings())

	set, err := detector.Detect(ts, trace, config.PeakParams{Distance: 0.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{130}, set.Indices)

	// 0.001 s is less than half a sample and leaves distance unset
	set, err = detector.Detect(ts, trace, config.PeakParams{Distance: 0.001}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 130}, set.Indices)
}

func TestDetectWindows(t *testing.T) {
	ts := common.RegularGrid(0, 100, 500)
	trace := make([]float64, len(ts))
	trace[100] = 1
	trace[300] = 2
	trace[320] = 0.5

	windows := []config.PeakWindow{
		{Name: "early", From: 0, Till: 1.5},
		{Name: "late", From: 1.5, Till: 5},
	}
	params := config.PeakParams{PeakTimeFromTimestamps: true, Height: temporal.AtLeast(0.75)}

	set, err := photometry.NewPeakDetector(testSettings()).Detect(ts, trace, params, windows)
	require.NoError(t, err)
	require.Len(t, set.Windows, 2)
	assert.Equal(t, "early", set.Windows[0].Name)
	assert.Equal(t, 1, set.Windows[0].Count)
	assert.Equal(t, []float64{1}, set.Windows[0].Values)
	assert.Equal(t, 1, set.Windows[1].Count)
	assert.Equal(t, []float64{2}, set.Windows[1].Values)
}

func TestDetectRejectsBadInput(t *testing.T) {
	detector := photometry.NewPeakDetector(testSettings())
	ts := common.RegularGrid(0, 10, 10)
	trace := make([]float64, 10)

	_, err := detector.Detect(ts, trace[:5], config.PeakParams{}, nil)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)

	_, err = detector.Detect(nil, nil, config.PeakParams{}, nil)
	assert.ErrorIs(t, err, photometry.ErrMissingData)

	_, err = detector.Detect(ts, trace, config.PeakParams{Distance: -1}, nil)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)

	_, err = detector.Detect(ts, trace, config.PeakParams{}, make([]config.PeakWindow, 4))
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
}
