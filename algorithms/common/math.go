package common

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions shared by the photometry pipeline. Spread is the
// population standard deviation throughout, matching how exported traces have
// always been computed.

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanStd returns the mean and population standard deviation of data
func MeanStd(data []float64) (mean, std float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(data, nil)
}

// Median returns the median of data
func Median(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("median of empty data")
	}
	return stats.Median(data)
}

// MedianAbsoluteDeviation returns median(|x - median(x)|) with unit scale
func MedianAbsoluteDeviation(data []float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("median absolute deviation of empty data")
	}
	return stats.MedianAbsoluteDeviationPopulation(data)
}

// WithinSigma marks the samples strictly inside mean ± k·std of data.
func WithinSigma(data []float64, k float64) []bool {
	mean, std := MeanStd(data)
	lo, hi := mean-k*std, mean+k*std

	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v > lo && v < hi
	}
	return mask
}

// Select returns the elements of data whose mask entry is true
func Select(data []float64, mask []bool) []float64 {
	out := make([]float64, 0, len(data))
	for i, keep := range mask {
		if keep && i < len(data) {
			out = append(out, data[i])
		}
	}
	return out
}

// PolyFit1 fits y = slope·x + intercept by least squares.
func PolyFit1(x, y []float64) (slope, intercept float64, err error) {
	if len(x) != len(y) {
		return 0, 0, fmt.Errorf("polyfit: length mismatch %d != %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, 0, fmt.Errorf("polyfit: need at least 2 points, got %d", len(x))
	}
	if floats.Max(x) == floats.Min(x) {
		return 0, 0, fmt.Errorf("polyfit: predictor is constant")
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return 0, 0, fmt.Errorf("polyfit: fit produced NaN coefficients")
	}
	return beta, alpha, nil
}

// PolyVal1 evaluates slope·x + intercept at every x
func PolyVal1(slope, intercept float64, x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = slope*v + intercept
	}
	return out
}

// MinLen returns the length of the shortest slice, 0 when none are given
func MinLen(slices ...[]float64) int {
	if len(slices) == 0 {
		return 0
	}
	n := len(slices[0])
	for _, s := range slices[1:] {
		if len(s) < n {
			n = len(s)
		}
	}
	return n
}

// Clone returns a copy of data that never aliases the input
func Clone(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	return out
}

// IsStrictlyIncreasing reports whether every element is greater than the previous one
func IsStrictlyIncreasing(data []float64) bool {
	for i := 1; i < len(data); i++ {
		if !(data[i] > data[i-1]) {
			return false
		}
	}
	return true
}
