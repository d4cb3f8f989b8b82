package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
)

// TrapezoidAUC integrates y over x with the trapezoidal rule. x must be sorted
// ascending and hold at least two points.
func TrapezoidAUC(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("auc: length mismatch %d != %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("auc: need at least 2 points, got %d", len(x))
	}
	for i := 1; i < len(x); i++ {
		if x[i] < x[i-1] {
			return 0, fmt.Errorf("auc: x is not sorted at index %d", i)
		}
	}
	return integrate.Trapezoidal(x, y), nil
}

// OpenInterval returns the indices i with from < x[i] < to
func OpenInterval(x []float64, from, to float64) []int {
	var idx []int
	for i, v := range x {
		if v > from && v < to {
			idx = append(idx, i)
		}
	}
	return idx
}

// Gather returns data[i] for every index
func Gather(data []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = data[i]
	}
	return out
}

// WindowAUC integrates y over the samples strictly inside (from, to)
func WindowAUC(x, y []float64, from, to float64) (float64, error) {
	idx := OpenInterval(x, from, to)
	if len(idx) < 2 {
		return 0, fmt.Errorf("auc window (%g, %g) holds %d samples, need at least 2", from, to, len(idx))
	}
	return TrapezoidAUC(Gather(x, idx), Gather(y, idx))
}

// BinnedAUC integrates y over consecutive [start+k·width, start+(k+1)·width)
// bins covering [start, end). Bins with fewer than two samples integrate to 0.
func BinnedAUC(x, y []float64, start, end, width float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("binned auc: length mismatch %d != %d", len(x), len(y))
	}
	if width <= 0 {
		return nil, fmt.Errorf("binned auc: bin width must be positive, got %g", width)
	}
	if end <= start {
		return nil, fmt.Errorf("binned auc: empty range [%g, %g)", start, end)
	}

	bins := int(math.Ceil((end-start)/width - 1e-9))
	out := make([]float64, bins)
	for b := 0; b < bins; b++ {
		lo := start + float64(b)*width
		hi := lo + width

		var bx, by []float64
		for i, v := range x {
			if v >= lo && v < hi {
				bx = append(bx, v)
				by = append(by, y[i])
			}
		}
		if len(bx) < 2 {
			continue
		}
		out[b] = integrate.Trapezoidal(bx, by)
	}
	return out, nil
}
