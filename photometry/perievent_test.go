package photometry_test

import (
	"math"
	"testing"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/photometry"
	"github.com/ilo21/fpexplorer/photometry/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTrialSet builds trials on a [-2, 2) s grid at 50 Hz. Trial k (1-based)
// is the base response scaled by gains[k-1].
func newTrialSet(gains ...float64) *photometry.TrialSet {
	grid := common.RegularGrid(-2, 50, 200)
	set := &photometry.TrialSet{Event: "PrtN 1", Timestamps: grid, Before: 2, After: 2, Rate: 50}
	for k, gain := range gains {
		signal := make([]float64, len(grid))
		control := make([]float64, len(grid))
		for i, t := range grid {
			control[i] = 2 + 0.1*math.Sin(2*math.Pi*1.1*t)
			signal[i] = 3 + gain*(0.2*math.Sin(2*math.Pi*0.7*t)+0.05*math.Cos(2*math.Pi*3*t))
			if t > 0 {
				signal[i] += gain * math.Exp(-t)
			}
		}
		set.Trials = append(set.Trials, photometry.Trial{Index: k + 1, Signal: signal, Control: control})
	}
	return set
}

func TestIdenticalTrialsHaveZeroError(t *testing.T) {
	set := newTrialSet(1, 1, 1, 1)
	w := config.DefaultPeriEventWindows(2)

	res, err := photometry.NewPeriEventEngine(testSettings()).Compute(set, nil, w)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, res.Trials)
	for i := range set.Timestamps {
		assert.InDelta(t, 0.0, res.Average.StdSignal[i], 1e-12)
		assert.InDelta(t, 0.0, res.Average.StdControl[i], 1e-12)
		assert.InDelta(t, 0.0, res.ZScore.ZError[i], 1e-9)
	}
	assert.InDelta(t, 0.0, res.AUC.PreErr, 1e-9)
	assert.InDelta(t, 0.0, res.AUC.PostErr, 1e-9)
	assert.InDelta(t, 0.0, common.Mean(res.Average.Signal), 1e-9)
	assert.InDelta(t, 0.0, common.Mean(res.Average.Control), 1e-9)
}

func TestPeriEventStatsShape(t *testing.T) {
	set := newTrialSet(1, 0.8, 1.3)
	w := config.DefaultPeriEventWindows(2)

	res, err := photometry.NewPeriEventEngine(testSettings()).Compute(set, []int{3, 1}, w)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 1}, res.Trials)
	require.Len(t, res.ZScore.ZScored, 2)
	assert.Len(t, res.ZScore.ZScored[0], 200)
	assert.Len(t, res.AUC.PreTrials, 2)
	assert.Len(t, res.AUC.PostTrials, 2)
	require.Len(t, res.AUCBySecond, 2)
	assert.Len(t, res.AUCBySecond[0], 4)

	// the post-event transient raises the z-scored response
	assert.Greater(t, res.AUC.Post, res.AUC.Pre)
	assert.GreaterOrEqual(t, res.AUC.PValue, 0.0)
	assert.LessOrEqual(t, res.AUC.PValue, 1.0)
	assert.Equal(t, res.AUC.PValue, res.AUC.TTest.PValue)
}

func TestSwappedAUCWindowsAreIndependent(t *testing.T) {
	set := newTrialSet(1, 1.2)
	w := config.DefaultPeriEventWindows(2)
	engine := photometry.NewPeriEventEngine(testSettings())

	res, err := engine.Compute(set, nil, w)
	require.NoError(t, err)

	swapped := w
	swapped.AUCPreFrom, swapped.AUCPreTo = w.AUCPostFrom, w.AUCPostTo
	swapped.AUCPostFrom, swapped.AUCPostTo = w.AUCPreFrom, w.AUCPreTo
	sres, err := engine.Compute(set, nil, swapped)
	require.NoError(t, err)

	assert.InDelta(t, res.AUC.Pre, sres.AUC.Post, 1e-12)
	assert.InDelta(t, res.AUC.Post, sres.AUC.Pre, 1e-12)

	unequal := w
	unequal.AUCPostTo = 1
	_, err = engine.Compute(set, nil, unequal)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
}

func TestPeriEventRejectsBadInput(t *testing.T) {
	set := newTrialSet(1, 1.1)
	engine := photometry.NewPeriEventEngine(testSettings())
	w := config.DefaultPeriEventWindows(2)

	_, err := engine.Compute(set, []int{1, 1}, w)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)
	_, err = engine.Compute(set, []int{7}, w)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)

	outside := w
	outside.BaselineFrom = -2.5
	_, err = engine.Compute(set, nil, outside)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)

	wider := config.DefaultPeriEventWindows(3)
	_, err = engine.Compute(set, nil, wider)
	assert.ErrorIs(t, err, photometry.ErrInvalidParameter)

	_, err = engine.Compute(&photometry.TrialSet{}, nil, w)
	assert.ErrorIs(t, err, photometry.ErrMissingData)
}

func TestPeriEventWithTrialNormalization(t *testing.T) {
	set := newTrialSet(1, 0.9, 1.1)
	w := config.DefaultPeriEventWindows(2)

	engine := photometry.NewPeriEventEngine(testSettings()).
		WithTrialNormalization(photometry.NewNormalizer(testSettings()))
	res, err := engine.Compute(set, nil, w)
	require.NoError(t, err)
	assert.Len(t, res.ZScore.ZScored, 3)
	assert.False(t, math.IsNaN(res.AUC.Pre))
	assert.False(t, math.IsNaN(res.AUC.Post))
}
