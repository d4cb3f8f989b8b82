package photometry_test

import (
	"errors"
	"math"
	"testing"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/photometry"
	"github.com/ilo21/fpexplorer/photometry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scaledControlSeries returns signal = k·control + a small deterministic wobble
func scaledControlSeries(k float64) photometry.TimeSeries {
	const fs, n = 100.0, 2000
	ts := photometry.TimeSeries{
		Timestamps: make([]float64, n),
		Signal:     make([]float64, n),
		Control:    make([]float64, n),
		Fs:         fs,
	}
	for i := 0; i < n; i++ {
		t := float64(i) / fs
		ts.Timestamps[i] = t
		ts.Control[i] = 2 + math.Sin(2*math.Pi*0.2*t)
		ts.Signal[i] = k*ts.Control[i] + 0.001*math.Sin(2*math.Pi*13.7*t)
	}
	return ts
}

func TestStandardResidualIsCentered(t *testing.T) {
	for _, k := range []float64{0.5, 1, 3, 10} {
		res, err := photometry.NewNormalizer(testSettings()).Normalize(scaledControlSeries(k))
		require.NoError(t, err)
		assert.Equal(t, config.NormalizationStandard, res.Method)
		assert.Equal(t, config.UnitDFF, res.Unit)
		assert.Nil(t, res.Baseline)
		assert.InDelta(t, 0.0, common.Mean(res.Normalized), 0.2, "k=%g", k)
	}
}

func TestModifiedOfLinearChannelsIsFlat(t *testing.T) {
	settings := testSettings()
	settings.Normalization = config.NormalizationModified

	res, err := photometry.NewNormalizer(settings).Normalize(newLinearSeries(500, 10, -0.01, 3, -0.02, 2))
	require.NoError(t, err)
	assert.Equal(t, config.NormalizationModified, res.Method)
	for _, v := range res.Normalized {
		assert.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestNormalizeZeroBaseline(t *testing.T) {
	settings := testSettings()
	settings.Normalization = config.NormalizationModified

	// the signal trend crosses zero at t = 5
	_, err := photometry.NewNormalizer(settings).Normalize(newLinearSeries(101, 10, 1, -5, 0, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, photometry.ErrZeroBaseline)

	var zerr *photometry.ZeroBaselineError
	require.True(t, errors.As(err, &zerr))
	assert.Equal(t, 50, zerr.Index)
}

func TestStandardRejectsConstantControl(t *testing.T) {
	_, err := photometry.NewNormalizer(testSettings()).Normalize(newLinearSeries(100, 10, 1, 2, 0, 1))
	assert.Error(t, err)
}

func TestShiftNegativeMean(t *testing.T) {
	dff := []float64{-2, -4, 1, 5}

	assert.Equal(t, []float64{1, -1, 4, 8}, photometry.ShiftNegativeMean(dff, 0))
	assert.Equal(t, []float64{0, -2, 3, 7}, photometry.ShiftNegativeMean(dff, 1))
	assert.Equal(t, []float64{-2, -4, 1, 5}, dff, "input must not change")
	assert.Equal(t, []float64{1, 2}, photometry.ShiftNegativeMean([]float64{1, 2}, 0))
}

func TestStandardDFFExcludesOutliers(t *testing.T) {
	control := make([]float64, 200)
	signal := make([]float64, 200)
	for i := range control {
		control[i] = 1 + 0.01*float64(i%20)
		signal[i] = 2 * control[i]
	}
	signal[100] = 1000

	dff, err := photometry.StandardDFF(signal, control, signal, control)
	require.NoError(t, err)
	for i, v := range dff {
		if i == 100 {
			assert.Greater(t, v, 1000.0)
			continue
		}
		assert.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestNormalizeWithBaseline(t *testing.T) {
	ts := scaledControlSeries(2)
	n := photometry.NewNormalizer(testSettings())

	res, err := n.NormalizeWithBaseline(ts, ts.Slice(0, 500))
	require.NoError(t, err)
	require.Len(t, res.Normalized, ts.Len())
	require.NotNil(t, res.Baseline)
	assert.Equal(t, 0.0, res.Baseline.From)
	assert.InDelta(t, 4.99, res.Baseline.Till, 1e-12)

	res, err = n.NormalizeWindow(ts, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, &photometry.BaselineWindow{From: 2, Till: 6}, res.Baseline)

	_, err = n.NormalizeWindow(ts, 30, 40)
	assert.ErrorIs(t, err, photometry.ErrMissingData)
	_, err = n.NormalizeWindow(ts, 6, 2)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
}

func TestNormalizeZScoreUnit(t *testing.T) {
	settings := testSettings()
	settings.ShowNormAs = config.UnitZScore

	res, err := photometry.NewNormalizer(settings).Normalize(scaledControlSeries(1.5))
	require.NoError(t, err)
	assert.Equal(t, config.UnitZScore, res.Unit)

	median, err := common.Median(res.Normalized)
	require.NoError(t, err)
	mad, err := common.MedianAbsoluteDeviation(res.Normalized)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, median, 1e-9)
	assert.InDelta(t, 1.0, mad, 1e-9)
}

func TestNormalizeWithSmoothing(t *testing.T) {
	settings := testSettings()
	settings.Filter = true
	settings.FilterWindow = 5

	res, err := photometry.NewNormalizer(settings).Normalize(scaledControlSeries(2))
	require.NoError(t, err)
	assert.Len(t, res.Normalized, 2000)

	settings.FilterWindow = 1000
	_, err = photometry.NewNormalizer(settings).Normalize(scaledControlSeries(2))
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
}
