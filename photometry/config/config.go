package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ilo21/fpexplorer/algorithms/temporal"
	"github.com/ilo21/fpexplorer/logging"
)

type NormalizationMethod string

const (
	// NormalizationStandard fits the signal against the z-scored control channel
	NormalizationStandard NormalizationMethod = "Standard"
	// NormalizationModified detrends each channel against time and subtracts the results
	NormalizationModified NormalizationMethod = "Modified"
)

type Unit string

const (
	UnitDFF    Unit = "%dF/F"
	UnitZScore Unit = "Z-Score"
)

// Settings is the analysis settings record. It is passed by value into every
// component and never mutated after construction.
type Settings struct {
	Downsample    int                 `json:"downsample"` // samples per output block
	Normalization NormalizationMethod `json:"normalization"`
	ShowNormAs    Unit                `json:"show_norm_as"`
	Filter        bool                `json:"filter"`
	FilterWindow  int                 `json:"filter_window"`

	// Stream names in the raw recording
	SignalName  string `json:"signal_name"`
	ControlName string `json:"control_name"`

	// Rate of the peri-event trial grid; 0 uses the rate of the aligned series
	ExactRateHz float64 `json:"exact_rate_hz"`

	// Empirical capture lag, in frames, added when the video runs at VideoHardwareShiftFPS
	VideoHardwareShift    int     `json:"video_hardware_shift"`
	VideoHardwareShiftFPS float64 `json:"video_hardware_shift_fps"`
}

// NormalizationSpec is the part of Settings that shapes a normalized trace
type NormalizationSpec struct {
	Method       NormalizationMethod `json:"method"`
	Unit         Unit                `json:"unit"`
	Filter       bool                `json:"filter"`
	FilterWindow int                 `json:"filter_window"`
}

// NormalizationSpec extracts the normalization fields. FilterWindow is zeroed
// when filtering is off so equivalent settings compare equal.
func (s Settings) NormalizationSpec() NormalizationSpec {
	spec := NormalizationSpec{Method: s.Normalization, Unit: s.ShowNormAs, Filter: s.Filter}
	if s.Filter {
		spec.FilterWindow = s.FilterWindow
	}
	return spec
}

// TrimSpec is the number of seconds removed from the start and the end of a
// recording.
type TrimSpec struct {
	BeginSec float64 `json:"begin_sec"`
	EndSec   float64 `json:"end_sec"`
}

// PeriEventWindows bounds the trial window and its baseline and AUC
// sub-windows, in seconds relative to the event onset (negative = before).
type PeriEventWindows struct {
	Before       float64 `json:"before"`
	After        float64 `json:"after"`
	BaselineFrom float64 `json:"baseline_from"`
	BaselineTo   float64 `json:"baseline_to"`
	AUCPreFrom   float64 `json:"auc_pre_from"`
	AUCPreTo     float64 `json:"auc_pre_to"`
	AUCPostFrom  float64 `json:"auc_post_from"`
	AUCPostTo    float64 `json:"auc_post_to"`
}

// PeakParams are the user facing peak constraints. Distance is in seconds,
// the remaining constraints follow temporal.PeakParams.
type PeakParams struct {
	Height      *temporal.Interval `json:"height,omitempty"`
	Threshold   *temporal.Interval `json:"threshold,omitempty"`
	Distance    float64            `json:"distance,omitempty"` // seconds
	Prominence  *temporal.Interval `json:"prominence,omitempty"`
	Width       *temporal.Interval `json:"width,omitempty"`
	Wlen        float64            `json:"wlen,omitempty"`
	RelHeight   float64            `json:"rel_height,omitempty"`
	PlateauSize *temporal.Interval `json:"plateau_size,omitempty"`

	// Map peak indices to time through the timestamp array instead of
	// index·duration/len
	PeakTimeFromTimestamps bool `json:"peak_time_from_timestamps,omitempty"`
}

// PeakWindow is a named [From, Till] time span used to count peaks
type PeakWindow struct {
	Name string  `json:"name"`
	From float64 `json:"from"`
	Till float64 `json:"till"`
}

// MaxPeakWindows is the number of peak windows a detection can be split into
const MaxPeakWindows = 3

// equalSpanTolerance is the accepted difference between pre and post AUC spans
const equalSpanTolerance = 1e-9

// ValidationError reports a settings field that cannot be used
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Downsample:            10,
		Normalization:         NormalizationStandard,
		ShowNormAs:            UnitDFF,
		Filter:                false,
		FilterWindow:          100,
		SignalName:            "_465A",
		ControlName:           "_405A",
		ExactRateHz:           0,
		VideoHardwareShift:    2,
		VideoHardwareShiftFPS: 10,
	}
}

// DefaultPeriEventWindows returns a symmetric ±window trial with the baseline
// and pre AUC window covering the whole pre-event part.
func DefaultPeriEventWindows(window float64) PeriEventWindows {
	return PeriEventWindows{
		Before:       window,
		After:        window,
		BaselineFrom: -window,
		BaselineTo:   0,
		AUCPreFrom:   -window,
		AUCPreTo:     0,
		AUCPostFrom:  0,
		AUCPostTo:    window,
	}
}

// LoadSettings reads a JSON settings file on top of DefaultSettings and
// validates the result.
func LoadSettings(filename string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(filename)
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", filename, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}

	logging.Debug("Loaded settings", settings.Fields())
	return settings, nil
}

// Validate checks every field for a usable value
func (s Settings) Validate() error {
	if s.Downsample < 1 {
		return &ValidationError{Field: "downsample", Value: s.Downsample, Reason: "must be at least 1"}
	}
	switch s.Normalization {
	case NormalizationStandard, NormalizationModified:
	default:
		return &ValidationError{Field: "normalization", Value: s.Normalization, Reason: "must be Standard or Modified"}
	}
	switch s.ShowNormAs {
	case UnitDFF, UnitZScore:
	default:
		return &ValidationError{Field: "show_norm_as", Value: s.ShowNormAs, Reason: "must be %dF/F or Z-Score"}
	}
	if s.Filter && s.FilterWindow < 1 {
		return &ValidationError{Field: "filter_window", Value: s.FilterWindow, Reason: "must be at least 1 when filtering"}
	}
	if s.SignalName == "" || s.ControlName == "" {
		return &ValidationError{Field: "signal_name/control_name", Value: s.SignalName + "/" + s.ControlName, Reason: "stream names are required"}
	}
	if s.ExactRateHz < 0 || math.IsNaN(s.ExactRateHz) {
		return &ValidationError{Field: "exact_rate_hz", Value: s.ExactRateHz, Reason: "must be non-negative"}
	}
	if s.VideoHardwareShiftFPS < 0 {
		return &ValidationError{Field: "video_hardware_shift_fps", Value: s.VideoHardwareShiftFPS, Reason: "must be non-negative"}
	}
	return nil
}

// Fields returns the settings as log fields
func (s Settings) Fields() logging.Fields {
	return logging.Fields{
		"downsample":    s.Downsample,
		"normalization": s.Normalization,
		"show_norm_as":  s.ShowNormAs,
		"filter":        s.Filter,
		"filter_window": s.FilterWindow,
		"signal":        s.SignalName,
		"control":       s.ControlName,
		"exact_rate_hz": s.ExactRateHz,
	}
}

// Validate checks that both trim values are finite and non-negative
func (t TrimSpec) Validate() error {
	if t.BeginSec < 0 || math.IsNaN(t.BeginSec) || math.IsInf(t.BeginSec, 0) {
		return &ValidationError{Field: "trim.begin_sec", Value: t.BeginSec, Reason: "must be a non-negative number"}
	}
	if t.EndSec < 0 || math.IsNaN(t.EndSec) || math.IsInf(t.EndSec, 0) {
		return &ValidationError{Field: "trim.end_sec", Value: t.EndSec, Reason: "must be a non-negative number"}
	}
	return nil
}

// Validate checks that every sub-window is ordered and lies inside
// [-Before, After], and that the pre and post AUC windows span the same time.
func (w PeriEventWindows) Validate() error {
	if !(w.Before > 0) || !(w.After > 0) {
		return &ValidationError{Field: "before/after", Value: [2]float64{w.Before, w.After}, Reason: "trial window must extend on both sides of the event"}
	}

	spans := []struct {
		name     string
		from, to float64
	}{
		{"baseline", w.BaselineFrom, w.BaselineTo},
		{"auc_pre", w.AUCPreFrom, w.AUCPreTo},
		{"auc_post", w.AUCPostFrom, w.AUCPostTo},
	}
	for _, span := range spans {
		if !(span.from < span.to) {
			return &ValidationError{Field: span.name, Value: [2]float64{span.from, span.to}, Reason: "from must be before to"}
		}
		if span.from < -w.Before || span.to > w.After {
			return &ValidationError{
				Field:  span.name,
				Value:  [2]float64{span.from, span.to},
				Reason: fmt.Sprintf("must lie within [%g, %g]", -w.Before, w.After),
			}
		}
	}

	pre := w.AUCPreTo - w.AUCPreFrom
	post := w.AUCPostTo - w.AUCPostFrom
	if math.Abs(pre-post) > equalSpanTolerance {
		return &ValidationError{
			Field:  "auc_pre/auc_post",
			Value:  [2]float64{pre, post},
			Reason: "pre and post windows must span equal durations",
		}
	}
	return nil
}

// Validate checks the peak constraints
func (p PeakParams) Validate() error {
	if p.Distance < 0 || math.IsNaN(p.Distance) {
		return &ValidationError{Field: "peaks.distance", Value: p.Distance, Reason: "must be non-negative seconds"}
	}
	// distance is checked in seconds above; the sample conversion happens later
	check := p.Samples(0)
	if err := check.Validate(); err != nil {
		return &ValidationError{Field: "peaks", Value: p, Reason: err.Error()}
	}
	return nil
}

// Samples converts the constraints into a temporal.PeakParams with the given
// distance in samples
func (p PeakParams) Samples(distance float64) temporal.PeakParams {
	return temporal.PeakParams{
		Height:      p.Height,
		Threshold:   p.Threshold,
		Distance:    distance,
		Prominence:  p.Prominence,
		Width:       p.Width,
		Wlen:        p.Wlen,
		RelHeight:   p.RelHeight,
		PlateauSize: p.PlateauSize,
	}
}

// ValidatePeakWindows checks the number of windows and their ordering
func ValidatePeakWindows(windows []PeakWindow) error {
	if len(windows) > MaxPeakWindows {
		return &ValidationError{Field: "peak_windows", Value: len(windows), Reason: fmt.Sprintf("at most %d windows", MaxPeakWindows)}
	}
	for _, w := range windows {
		if !(w.From < w.Till) {
			return &ValidationError{Field: "peak_windows." + w.Name, Value: [2]float64{w.From, w.Till}, Reason: "from must be before till"}
		}
	}
	return nil
}
