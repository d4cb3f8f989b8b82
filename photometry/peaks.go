package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/temporal"
	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
)

// PeakDetector finds transients in a normalized trace
type PeakDetector struct {
	settings config.Settings
	logger   logging.Logger
}

// NewPeakDetector creates a detector for the given settings
func NewPeakDetector(settings config.Settings) *PeakDetector {
	return &PeakDetector{
		settings: settings,
		logger: logging.WithFields(logging.Fields{
			"component": "peak_detector",
		}),
	}
}

// WithLogger replaces the detector's logger
func (d *PeakDetector) WithLogger(logger logging.Logger) *PeakDetector {
	d.logger = logger
	return d
}

// SamplesPerSecond counts the samples whose timestamp lies less than one
// second after the first one. Timestamps can be irregular after trimming and
// resampling, so this is used instead of the nominal rate.
func SamplesPerSecond(timestamps []float64) int {
	if len(timestamps) == 0 {
		return 0
	}
	count := 0
	for _, t := range timestamps {
		if t-timestamps[0] >= 1.0 {
			break
		}
		count++
	}
	return count
}

// Detect finds the peaks of trace sampled at timestamps.
//
// params.Distance is in seconds and converted to samples with
// SamplesPerSecond; a conversion that rounds to zero leaves distance unset.
// Peak times are index·timestamps[last]/len(trace) unless
// params.PeakTimeFromTimestamps selects timestamps[index]. Peaks are then
// counted per window, From <= time <= Till.
func (d *PeakDetector) Detect(timestamps, trace []float64, params config.PeakParams, windows []config.PeakWindow) (*PeakSet, error) {
	if len(timestamps) != len(trace) {
		return nil, &InvalidParameterError{
			Field:  "trace",
			Value:  [2]int{len(timestamps), len(trace)},
			Reason: "timestamps and trace lengths differ",
		}
	}
	if len(trace) == 0 {
		return nil, &MissingDataError{What: "trace", Reason: "no samples to search for peaks"}
	}
	if err := params.Validate(); err != nil {
		return nil, invalidParameter(err)
	}
	if err := config.ValidatePeakWindows(windows); err != nil {
		return nil, invalidParameter(err)
	}

	distance := 0.0
	if params.Distance > 0 {
		distance = math.Round(params.Distance * float64(SamplesPerSecond(timestamps)))
	}

	found, err := temporal.FindPeaks(trace, params.Samples(distance))
	if err != nil {
		return nil, invalidParameter(fmt.Errorf("find peaks: %w", err))
	}

	total := timestamps[len(timestamps)-1]
	set := &PeakSet{
		Times:   make([]float64, len(found.Peaks)),
		Values:  make([]float64, len(found.Peaks)),
		Indices: found.Indices(),
	}
	for i, pk := range found.Peaks {
		if params.PeakTimeFromTimestamps {
			set.Times[i] = timestamps[pk.Index]
		} else {
			set.Times[i] = float64(pk.Index) * total / float64(len(trace))
		}
		set.Values[i] = pk.Value
	}

	for _, w := range windows {
		count := PeakWindowCount{Name: w.Name, From: w.From, Till: w.Till, Times: []float64{}, Values: []float64{}}
		for i, t := range set.Times {
			if t >= w.From && t <= w.Till {
				count.Times = append(count.Times, t)
				count.Values = append(count.Values, set.Values[i])
			}
		}
		count.Count = len(count.Times)
		set.Windows = append(set.Windows, count)
	}

	d.logger.Debug("Detected peaks", logging.Fields{
		"peaks":            len(set.Times),
		"distance_samples": distance,
		"windows":          len(windows),
	})
	return set, nil
}
