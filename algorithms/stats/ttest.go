package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult holds a two-sample t statistic, its degrees of freedom and the
// two-sided p-value.
type TTestResult struct {
	T      float64 `json:"t"`
	DF     float64 `json:"df"`
	PValue float64 `json:"p_value"`
}

// WelchTTest compares the means of two samples without assuming equal
// variances.
//
// References:
//   - Welch, B.L. (1947). "The generalization of 'Student's' problem when several
//     different population variances are involved", Biometrika 34, 28-35
//   - Satterthwaite, F.E. (1946). "An approximate distribution of estimates of
//     variance components", Biometrics Bulletin 2(6), 110-114
//
// When both samples have zero variance the statistic is undefined and T, DF
// and PValue are NaN; this is not an error.
func WelchTTest(a, b []float64) (*TTestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, fmt.Errorf("welch t-test needs at least 2 samples per group, got %d and %d", len(a), len(b))
	}

	na, nb := float64(len(a)), float64(len(b))
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)

	sa := va / na
	sb := vb / nb
	denom := sa + sb
	if denom == 0 {
		nan := math.NaN()
		return &TTestResult{T: nan, DF: nan, PValue: nan}, nil
	}

	t := (ma - mb) / math.Sqrt(denom)
	df := denom * denom / (sa*sa/(na-1) + sb*sb/(nb-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}

	return &TTestResult{T: t, DF: df, PValue: p}, nil
}
