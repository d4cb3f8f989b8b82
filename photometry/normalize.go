package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/algorithms/filters"
	"github.com/ilo21/fpexplorer/algorithms/stats"
	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
)

const (
	// outlierSigma bounds the samples used for fitting to mean ± outlierSigma·std
	outlierSigma = 2.0
	// zeroBaseline is the smallest |F0| accepted as a divisor
	zeroBaseline = 1e-12
)

// Normalizer corrects photobleaching and motion artifacts, producing %ΔF/F
// or a robust z-score of it.
//
// Two corrections are available:
//   - Standard: the signal is regressed on the z-scored control channel and
//     the fit evaluated on the full control trace is the baseline F0.
//   - Modified: each channel is detrended against time on its own and the
//     control ΔF/F is subtracted from the signal ΔF/F.
//
// Both exclude samples outside mean ± 2·std from the fit and finally shift
// the trace up so that the mean of its negative values becomes zero.
type Normalizer struct {
	settings config.Settings
	logger   logging.Logger
}

// NewNormalizer creates a normalizer for the given settings
func NewNormalizer(settings config.Settings) *Normalizer {
	return &Normalizer{
		settings: settings,
		logger: logging.WithFields(logging.Fields{
			"component": "normalizer",
		}),
	}
}

// WithLogger replaces the normalizer's logger
func (n *Normalizer) WithLogger(logger logging.Logger) *Normalizer {
	n.logger = logger
	return n
}

// Normalize fits the correction on the whole series
func (n *Normalizer) Normalize(ts TimeSeries) (*NormalizationResult, error) {
	return n.normalize(ts, ts, nil)
}

// NormalizeWithBaseline fits the correction on baseline only and applies it to
// ts. The negative-mean shift is computed over the first len(baseline)
// samples of the output.
func (n *Normalizer) NormalizeWithBaseline(ts, baseline TimeSeries) (*NormalizationResult, error) {
	if err := baseline.Validate(); err != nil {
		return nil, err
	}
	if baseline.Len() < 2 {
		return nil, &MissingDataError{What: "baseline samples", Reason: fmt.Sprintf("baseline holds %d samples, need at least 2", baseline.Len())}
	}
	window := &BaselineWindow{From: baseline.Timestamps[0], Till: baseline.Timestamps[baseline.Len()-1]}
	return n.normalize(ts, baseline, window)
}

// NormalizeWindow uses the samples of ts with from <= t <= till as baseline
func (n *Normalizer) NormalizeWindow(ts TimeSeries, from, till float64) (*NormalizationResult, error) {
	if !(from < till) {
		return nil, &InvalidParameterError{Field: "baseline window", Value: [2]float64{from, till}, Reason: "from must be before till"}
	}
	baseline := ts.Between(from, till)
	if baseline.Len() < 2 {
		return nil, &MissingDataError{
			What:   "baseline samples",
			Reason: fmt.Sprintf("window [%g, %g] holds %d samples, need at least 2", from, till, baseline.Len()),
		}
	}
	result, err := n.NormalizeWithBaseline(ts, baseline)
	if err != nil {
		return nil, err
	}
	result.Baseline = &BaselineWindow{From: from, Till: till}
	return result, nil
}

func (n *Normalizer) normalize(ts, fit TimeSeries, window *BaselineWindow) (*NormalizationResult, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	if ts.Len() < 2 {
		return nil, &MissingDataError{What: "samples", Reason: fmt.Sprintf("cannot normalize %d samples", ts.Len())}
	}

	ts, err := n.smooth(ts)
	if err != nil {
		return nil, err
	}
	if window == nil {
		fit = ts
	} else if fit, err = n.smooth(fit); err != nil {
		return nil, err
	}

	var dff []float64
	switch n.settings.Normalization {
	case config.NormalizationStandard:
		dff, err = StandardDFF(fit.Signal, fit.Control, ts.Signal, ts.Control)
	case config.NormalizationModified:
		dff, err = ModifiedDFF(fit.Timestamps, fit.Signal, fit.Control, ts.Timestamps, ts.Signal, ts.Control)
	default:
		err = &InvalidParameterError{Field: "normalization", Value: n.settings.Normalization, Reason: "unknown method"}
	}
	if err != nil {
		return nil, err
	}

	shiftLen := len(dff)
	if window != nil {
		shiftLen = fit.Len()
	}
	normalized := ShiftNegativeMean(dff, shiftLen)

	unit := n.settings.ShowNormAs
	switch unit {
	case config.UnitZScore:
		normalized, err = stats.RobustZScore(normalized)
		if err != nil {
			return nil, fmt.Errorf("z-score normalized trace: %w", err)
		}
	case config.UnitDFF, "":
		unit = config.UnitDFF
	default:
		return nil, &InvalidParameterError{Field: "show_norm_as", Value: unit, Reason: "unknown unit"}
	}

	n.logger.Debug("Normalized trace", logging.Fields{
		"method":   n.settings.Normalization,
		"unit":     unit,
		"samples":  len(normalized),
		"baseline": window != nil,
	})

	return &NormalizationResult{
		Timestamps: common.Clone(ts.Timestamps),
		Normalized: normalized,
		Unit:       unit,
		Method:     n.settings.Normalization,
		Baseline:   window,
	}, nil
}

// smooth applies the zero-phase moving average to both channels when
// filtering is enabled
func (n *Normalizer) smooth(ts TimeSeries) (TimeSeries, error) {
	if !n.settings.Filter {
		return ts, nil
	}

	ma, err := filters.NewZeroPhaseMovingAverage(n.settings.FilterWindow)
	if err != nil {
		return TimeSeries{}, &InvalidParameterError{Field: "filter_window", Value: n.settings.FilterWindow, Reason: err.Error(), Err: err}
	}
	signal, err := ma.Process(ts.Signal)
	if err != nil {
		return TimeSeries{}, &InvalidParameterError{Field: "filter_window", Value: n.settings.FilterWindow, Reason: err.Error(), Err: err}
	}
	control, err := ma.Process(ts.Control)
	if err != nil {
		return TimeSeries{}, &InvalidParameterError{Field: "filter_window", Value: n.settings.FilterWindow, Reason: err.Error(), Err: err}
	}

	return TimeSeries{Timestamps: ts.Timestamps, Signal: signal, Control: control, Fs: ts.Fs}, nil
}

// StandardDFF regresses fitSignal on the z-scored fitControl, excluding
// signal outliers beyond 2σ, then evaluates the fit on control to obtain F0
// and returns 100·(signal - F0)/F0. control is z-scored with the mean and
// std of fitControl so the model is applied on the scale it was fit on.
func StandardDFF(fitSignal, fitControl, signal, control []float64) ([]float64, error) {
	if len(fitSignal) != len(fitControl) || len(signal) != len(control) {
		return nil, &InvalidParameterError{Field: "channels", Reason: "signal and control lengths differ"}
	}

	mean, std := common.MeanStd(fitControl)
	if std < zeroBaseline {
		std = 1
	}
	scale := func(data []float64) []float64 {
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = (v - mean) / std
		}
		return out
	}

	mask := common.WithinSigma(fitSignal, outlierSigma)
	slope, intercept, err := common.PolyFit1(common.Select(scale(fitControl), mask), common.Select(fitSignal, mask))
	if err != nil {
		return nil, fmt.Errorf("fit signal against control: %w", err)
	}

	f0 := common.PolyVal1(slope, intercept, scale(control))
	return deltaFOverF(signal, f0)
}

// ModifiedDFF detrends each channel against time with its own 2σ outlier
// mask and returns ΔF/F(signal) - ΔF/F(control), both in percent.
func ModifiedDFF(fitTime, fitSignal, fitControl, time, signal, control []float64) ([]float64, error) {
	if len(fitTime) != len(fitSignal) || len(fitTime) != len(fitControl) {
		return nil, &InvalidParameterError{Field: "baseline", Reason: "timestamps and channel lengths differ"}
	}
	if len(time) != len(signal) || len(time) != len(control) {
		return nil, &InvalidParameterError{Field: "channels", Reason: "timestamps and channel lengths differ"}
	}

	signalDFF, err := detrendDFF(fitTime, fitSignal, time, signal)
	if err != nil {
		return nil, fmt.Errorf("detrend signal: %w", err)
	}
	controlDFF, err := detrendDFF(fitTime, fitControl, time, control)
	if err != nil {
		return nil, fmt.Errorf("detrend control: %w", err)
	}

	out := make([]float64, len(signalDFF))
	for i := range out {
		out[i] = signalDFF[i] - controlDFF[i]
	}
	return out, nil
}

func detrendDFF(fitTime, fitData, time, data []float64) ([]float64, error) {
	mask := common.WithinSigma(fitData, outlierSigma)
	slope, intercept, err := common.PolyFit1(common.Select(fitTime, mask), common.Select(fitData, mask))
	if err != nil {
		return nil, err
	}
	return deltaFOverF(data, common.PolyVal1(slope, intercept, time))
}

func deltaFOverF(data, f0 []float64) ([]float64, error) {
	out := make([]float64, len(data))
	for i, v := range data {
		if math.Abs(f0[i]) < zeroBaseline || math.IsNaN(f0[i]) {
			return nil, &ZeroBaselineError{Index: i, Value: f0[i]}
		}
		out[i] = 100 * (v - f0[i]) / f0[i]
	}
	return out, nil
}

// ShiftNegativeMean subtracts the mean of the negative values among the first
// n samples from the whole trace. n <= 0 or n > len(dff) uses every sample.
// A trace without negative values is returned unchanged.
func ShiftNegativeMean(dff []float64, n int) []float64 {
	if n <= 0 || n > len(dff) {
		n = len(dff)
	}

	var sum float64
	var count int
	for _, v := range dff[:n] {
		if v < 0 {
			sum += v
			count++
		}
	}

	out := common.Clone(dff)
	if count == 0 {
		return out
	}
	offset := sum / float64(count)
	for i := range out {
		out[i] -= offset
	}
	return out
}
