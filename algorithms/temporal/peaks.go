package temporal

import (
	"fmt"
	"math"
	"sort"
)

// Interval bounds a peak property. Use math.Inf for an open side.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AtLeast returns the interval [v, +Inf)
func AtLeast(v float64) *Interval {
	return &Interval{Min: v, Max: math.Inf(1)}
}

// Between returns the interval [lo, hi]
func Between(lo, hi float64) *Interval {
	return &Interval{Min: lo, Max: hi}
}

func (iv *Interval) contains(v float64) bool {
	return iv.Min <= v && v <= iv.Max
}

// PeakParams holds the optional constraints a peak has to satisfy. Nil
// intervals and zero Distance/Wlen mean "no constraint".
type PeakParams struct {
	Height      *Interval `json:"height,omitempty"`       // peak value
	Threshold   *Interval `json:"threshold,omitempty"`    // vertical distance to both neighbours
	Distance    float64   `json:"distance,omitempty"`     // minimal horizontal distance in samples (>= 1)
	Prominence  *Interval `json:"prominence,omitempty"`   // height above the higher surrounding base
	Width       *Interval `json:"width,omitempty"`        // width in samples at RelHeight of the prominence
	Wlen        float64   `json:"wlen,omitempty"`         // window in samples limiting the prominence base search
	RelHeight   float64   `json:"rel_height,omitempty"`   // 0 means 0.5
	PlateauSize *Interval `json:"plateau_size,omitempty"` // flat-top length in samples
}

// Peak is one detected local maximum with the properties evaluated for it.
// Prominence and width fields are only filled when Prominence or Width
// constraints were requested.
type Peak struct {
	Index          int     `json:"index"`
	Value          float64 `json:"value"`
	PlateauSize    int     `json:"plateau_size"`
	LeftEdge       int     `json:"left_edge"`
	RightEdge      int     `json:"right_edge"`
	LeftThreshold  float64 `json:"left_threshold"`
	RightThreshold float64 `json:"right_threshold"`
	Prominence     float64 `json:"prominence"`
	LeftBase       int     `json:"left_base"`
	RightBase      int     `json:"right_base"`
	Width          float64 `json:"width"`
	WidthHeight    float64 `json:"width_height"`
	LeftIP         float64 `json:"left_ip"`
	RightIP        float64 `json:"right_ip"`
}

// PeakFinder finds local maxima of a 1-D trace by comparing neighbouring
// values and then filtering them by the requested properties.
//
// References:
//   - Virtanen, P. et al. (2020). "SciPy 1.0: fundamental algorithms for scientific
//     computing in Python", Nature Methods 17, 261-272 (signal.find_peaks)
//   - Topographic prominence: https://en.wikipedia.org/wiki/Topographic_prominence
//
// Filtering order is plateau size, height, threshold, distance, prominence,
// width; each stage only sees the survivors of the previous one.
type PeakFinder struct {
	params PeakParams
}

// NewPeakFinderWithParams creates a peak finder with custom constraints
func NewPeakFinderWithParams(params PeakParams) *PeakFinder {
	return &PeakFinder{params: params}
}

// Validate checks the constraints for values that cannot be satisfied
func (p PeakParams) Validate() error {
	if p.Distance != 0 && p.Distance < 1 {
		return fmt.Errorf("distance must be >= 1 sample, got %g", p.Distance)
	}
	if p.Wlen != 0 && p.Wlen <= 1 {
		return fmt.Errorf("wlen must be larger than 1 sample, got %g", p.Wlen)
	}
	if p.RelHeight < 0 {
		return fmt.Errorf("rel_height must be non-negative, got %g", p.RelHeight)
	}
	for name, iv := range map[string]*Interval{
		"height": p.Height, "threshold": p.Threshold, "prominence": p.Prominence,
		"width": p.Width, "plateau_size": p.PlateauSize,
	} {
		if iv != nil && (math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || iv.Min > iv.Max) {
			return fmt.Errorf("%s interval [%g, %g] is empty", name, iv.Min, iv.Max)
		}
	}
	return nil
}

// Find returns the peaks of x that satisfy every constraint, ordered by index
func (pf *PeakFinder) Find(x []float64) ([]Peak, error) {
	if err := pf.params.Validate(); err != nil {
		return nil, err
	}
	for i, v := range x {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("trace contains NaN at index %d", i)
		}
	}

	peaks := localMaxima(x)

	if pf.params.PlateauSize != nil {
		peaks = filterPeaks(peaks, func(pk Peak) bool {
			return pf.params.PlateauSize.contains(float64(pk.PlateauSize))
		})
	}

	if pf.params.Height != nil {
		peaks = filterPeaks(peaks, func(pk Peak) bool {
			return pf.params.Height.contains(pk.Value)
		})
	}

	if pf.params.Threshold != nil {
		peaks = filterPeaks(peaks, func(pk Peak) bool {
			lo := math.Min(pk.LeftThreshold, pk.RightThreshold)
			hi := math.Max(pk.LeftThreshold, pk.RightThreshold)
			return pf.params.Threshold.Min <= lo && hi <= pf.params.Threshold.Max
		})
	}

	if pf.params.Distance != 0 {
		peaks = selectByDistance(peaks, math.Ceil(pf.params.Distance))
	}

	if pf.params.Prominence != nil || pf.params.Width != nil {
		wlen := -1
		if pf.params.Wlen != 0 {
			wlen = int(math.Ceil(pf.params.Wlen))
		}
		for i := range peaks {
			computeProminence(x, &peaks[i], wlen)
		}
		if pf.params.Prominence != nil {
			peaks = filterPeaks(peaks, func(pk Peak) bool {
				return pf.params.Prominence.contains(pk.Prominence)
			})
		}
	}

	if pf.params.Width != nil {
		relHeight := pf.params.RelHeight
		if relHeight == 0 {
			relHeight = 0.5
		}
		for i := range peaks {
			computeWidth(x, &peaks[i], relHeight)
		}
		peaks = filterPeaks(peaks, func(pk Peak) bool {
			return pf.params.Width.contains(pk.Width)
		})
	}

	return peaks, nil
}

// localMaxima finds every sample larger than both neighbours. A flat top
// counts once, at its middle sample (rounded down).
func localMaxima(x []float64) []Peak {
	var peaks []Peak
	iMax := len(x) - 1

	for i := 1; i < iMax; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}
		ahead := i + 1
		for ahead < iMax && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			left, right := i, ahead-1
			mid := (left + right) / 2
			peaks = append(peaks, Peak{
				Index:          mid,
				Value:          x[mid],
				PlateauSize:    right - left + 1,
				LeftEdge:       left,
				RightEdge:      right,
				LeftThreshold:  x[mid] - x[mid-1],
				RightThreshold: x[mid] - x[mid+1],
			})
			i = ahead
		}
	}
	return peaks
}

func filterPeaks(peaks []Peak, keep func(Peak) bool) []Peak {
	out := peaks[:0]
	for _, pk := range peaks {
		if keep(pk) {
			out = append(out, pk)
		}
	}
	return out
}

// selectByDistance keeps the highest peaks and drops every lower peak closer
// than distance samples to one already kept.
func selectByDistance(peaks []Peak, distance float64) []Peak {
	n := len(peaks)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return peaks[order[a]].Value < peaks[order[b]].Value
	})

	for i := n - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && float64(peaks[j].Index-peaks[k].Index) < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < n && float64(peaks[k].Index-peaks[j].Index) < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]Peak, 0, n)
	for i, pk := range peaks {
		if keep[i] {
			out = append(out, pk)
		}
	}
	return out
}

// computeProminence walks outwards from the peak until a higher sample (or the
// wlen window edge) is met and records the lowest point on each side.
func computeProminence(x []float64, pk *Peak, wlen int) {
	peak := pk.Index
	iMin, iMax := 0, len(x)-1
	if wlen >= 2 {
		iMin = max(peak-wlen/2, iMin)
		iMax = min(peak+wlen/2, iMax)
	}

	leftBase, leftMin := peak, x[peak]
	for i := peak; i >= iMin && x[i] <= x[peak]; i-- {
		if x[i] < leftMin {
			leftMin = x[i]
			leftBase = i
		}
	}

	rightBase, rightMin := peak, x[peak]
	for i := peak; i <= iMax && x[i] <= x[peak]; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
			rightBase = i
		}
	}

	pk.LeftBase = leftBase
	pk.RightBase = rightBase
	pk.Prominence = x[peak] - math.Max(leftMin, rightMin)
}

// computeWidth measures the peak width at Value - Prominence·relHeight,
// interpolating the crossing points linearly between samples.
func computeWidth(x []float64, pk *Peak, relHeight float64) {
	peak := pk.Index
	height := x[peak] - pk.Prominence*relHeight

	i := peak
	for pk.LeftBase < i && height < x[i] {
		i--
	}
	leftIP := float64(i)
	if x[i] < height {
		leftIP += (height - x[i]) / (x[i+1] - x[i])
	}

	i = peak
	for i < pk.RightBase && height < x[i] {
		i++
	}
	rightIP := float64(i)
	if x[i] < height {
		rightIP -= (height - x[i]) / (x[i-1] - x[i])
	}

	pk.WidthHeight = height
	pk.LeftIP = leftIP
	pk.RightIP = rightIP
	pk.Width = rightIP - leftIP
}

// PeakResult holds the peaks that survived every constraint
type PeakResult struct {
	Peaks []Peak `json:"peaks"`
}

// Indices returns the sample index of every peak
func (r *PeakResult) Indices() []int {
	idx := make([]int, len(r.Peaks))
	for i, pk := range r.Peaks {
		idx[i] = pk.Index
	}
	return idx
}

// FindPeaks runs a PeakFinder with params over x
func FindPeaks(x []float64, params PeakParams) (*PeakResult, error) {
	peaks, err := NewPeakFinderWithParams(params).Find(x)
	if err != nil {
		return nil, err
	}
	return &PeakResult{Peaks: peaks}, nil
}
