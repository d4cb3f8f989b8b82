package stats

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/common"
)

// madEpsilon is the smallest median absolute deviation accepted as a scale.
const madEpsilon = 1e-12

// RobustZScore standardizes data by its median and median absolute deviation:
//
//	z[i] = (x[i] - median(x)) / MAD(x)
//
// References:
//   - Hampel, F.R. (1974). "The influence curve and its role in robust estimation"
//   - Leys, C. et al. (2013). "Detecting outliers: Do not use standard deviation
//     around the mean, use absolute deviation around the median"
//
// The MAD is unscaled (no 1.4826 normal-consistency factor), so a z-score of 1
// means one median absolute deviation.
func RobustZScore(data []float64) ([]float64, error) {
	return RobustZScoreAgainst(data, data)
}

// RobustZScoreAgainst standardizes data by the median and MAD of reference,
// e.g. a pre-event baseline window of the same trace.
func RobustZScoreAgainst(data, reference []float64) ([]float64, error) {
	if len(reference) == 0 {
		return nil, fmt.Errorf("robust z-score: empty reference")
	}

	median, err := common.Median(reference)
	if err != nil {
		return nil, err
	}
	mad, err := common.MedianAbsoluteDeviation(reference)
	if err != nil {
		return nil, err
	}
	if mad < madEpsilon || math.IsNaN(mad) {
		return nil, fmt.Errorf("robust z-score: median absolute deviation is zero")
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = (v - median) / mad
	}
	return out, nil
}

// ColumnMean returns the per-column mean of equally long rows
func ColumnMean(rows [][]float64) ([]float64, error) {
	n, err := checkRows(rows)
	if err != nil {
		return nil, err
	}

	mean := make([]float64, n)
	for _, row := range rows {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(rows))
	}
	return mean, nil
}

// ColumnStdErr returns std/√n per column using the population standard
// deviation across rows. Identical rows give zero.
func ColumnStdErr(rows [][]float64) ([]float64, error) {
	n, err := checkRows(rows)
	if err != nil {
		return nil, err
	}

	column := make([]float64, len(rows))
	stderr := make([]float64, n)
	sqrtN := math.Sqrt(float64(len(rows)))
	for j := 0; j < n; j++ {
		for i, row := range rows {
			column[i] = row[j]
		}
		_, std := common.MeanStd(column)
		stderr[j] = std / sqrtN
	}
	return stderr, nil
}

// StdErr returns the population standard deviation of values divided by √n
func StdErr(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, std := common.MeanStd(values)
	return std / math.Sqrt(float64(len(values)))
}

func checkRows(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("no rows")
	}
	n := len(rows[0])
	for i, row := range rows {
		if len(row) != n {
			return 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return n, nil
}
