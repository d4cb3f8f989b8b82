package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"gonum.org/v1/gonum/stat"
)

// Downsample averages blocks of n samples. Each output sample is the mean of
// data[i : i+n-1], i.e. the last sample of every block is left out, and the
// output timestamps are every n-th input timestamp. Exported traces depend on
// this window shape, so it is kept as is.
//
// All three output slices are truncated to the shortest one and Fs becomes
// Fs/n. n == 1 returns a copy.
func Downsample(ts TimeSeries, n int) (TimeSeries, error) {
	if n < 1 {
		return TimeSeries{}, &InvalidParameterError{Field: "downsample", Value: n, Reason: "must be at least 1"}
	}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	if ts.Len() == 0 {
		return TimeSeries{}, &MissingDataError{What: "samples", Reason: "nothing to downsample"}
	}
	if n == 1 {
		return ts.Slice(0, ts.Len()), nil
	}

	signal := blockMeans(ts.Signal, n)
	control := blockMeans(ts.Control, n)
	timestamps := make([]float64, 0, len(signal))
	for i := 0; i < ts.Len(); i += n {
		timestamps = append(timestamps, ts.Timestamps[i])
	}

	size := common.MinLen(timestamps, signal, control)
	return TimeSeries{
		Timestamps: timestamps[:size],
		Signal:     signal[:size],
		Control:    control[:size],
		Fs:         ts.Fs / float64(n),
	}, nil
}

func blockMeans(data []float64, n int) []float64 {
	out := make([]float64, 0, (len(data)+n-1)/n)
	for i := 0; i < len(data); i += n {
		end := min(i+n-1, len(data))
		out = append(out, stat.Mean(data[i:end], nil))
	}
	return out
}

// ExactRate linearly interpolates ts onto the regular grid k/hz for the k
// with first <= k/hz <= floor(last), k >= 1. For a recording starting at 0
// the grid runs 1/hz, 2/hz, ..., floor(last).
func ExactRate(ts TimeSeries, hz float64) (TimeSeries, error) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return TimeSeries{}, &InvalidParameterError{Field: "exact_rate_hz", Value: hz, Reason: "must be a positive rate"}
	}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	if ts.Len() < 2 {
		return TimeSeries{}, &MissingDataError{What: "samples", Reason: "need at least 2 samples to interpolate"}
	}

	first := ts.Timestamps[0]
	last := math.Floor(ts.Timestamps[ts.Len()-1])
	k0 := max(1, int(math.Ceil(first*hz-1e-9)))
	k1 := int(math.Floor(last*hz + 1e-9))
	if k1 < k0 {
		return TimeSeries{}, &MissingDataError{
			What:   "samples",
			Reason: fmt.Sprintf("recording [%g, %g] is shorter than one %g Hz grid step", first, ts.Timestamps[ts.Len()-1], hz),
		}
	}

	grid := make([]float64, k1-k0+1)
	for i := range grid {
		grid[i] = float64(k0+i) / hz
	}

	signal, control, err := ResampleOnGrid(ts.Timestamps, ts.Signal, ts.Control, grid)
	if err != nil {
		return TimeSeries{}, err
	}
	return TimeSeries{Timestamps: grid, Signal: signal, Control: control, Fs: hz}, nil
}

// ResampleOnGrid interpolates both channels sampled at xs onto grid
func ResampleOnGrid(xs, signal, control, grid []float64) ([]float64, []float64, error) {
	sig, err := common.InterpolateOnto(xs, signal, grid)
	if err != nil {
		return nil, nil, &InvalidParameterError{Field: "timestamps", Value: len(xs), Reason: "cannot interpolate signal", Err: err}
	}
	ctrl, err := common.InterpolateOnto(xs, control, grid)
	if err != nil {
		return nil, nil, &InvalidParameterError{Field: "timestamps", Value: len(xs), Reason: "cannot interpolate control", Err: err}
	}
	return sig, ctrl, nil
}
