package common

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// GridInterpolator resamples irregular (x, y) samples onto a chosen grid by
// piecewise-linear interpolation. Grid points left of the first sample take
// the first value and points right of the last sample take the last value.
type GridInterpolator struct {
	pl interp.PiecewiseLinear
}

// NewGridInterpolator fits the interpolator to the sample pairs. xs must be
// strictly increasing and hold at least two points.
func NewGridInterpolator(xs, ys []float64) (*GridInterpolator, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("interpolation: length mismatch %d != %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("interpolation: need at least 2 samples, got %d", len(xs))
	}
	if !IsStrictlyIncreasing(xs) {
		return nil, fmt.Errorf("interpolation: sample positions must be strictly increasing")
	}

	gi := &GridInterpolator{}
	if err := gi.pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	return gi, nil
}

// Onto evaluates the interpolator at every grid point
func (gi *GridInterpolator) Onto(grid []float64) []float64 {
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = gi.pl.Predict(x)
	}
	return out
}

// InterpolateOnto is the one-shot form of NewGridInterpolator(xs, ys).Onto(grid)
func InterpolateOnto(xs, ys, grid []float64) ([]float64, error) {
	gi, err := NewGridInterpolator(xs, ys)
	if err != nil {
		return nil, err
	}
	return gi.Onto(grid), nil
}

// RegularGrid returns n points start, start+1/rate, start+2/rate, ...
// Each point is computed from its index so long grids do not accumulate drift.
func RegularGrid(start, rate float64, n int) []float64 {
	if n <= 0 || rate <= 0 {
		return []float64{}
	}
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = start + float64(i)/rate
	}
	return grid
}
