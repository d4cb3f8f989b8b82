package photometry

import (
	"fmt"

	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
)

// PeriEventResult is one subject's aligned trials and their statistics
type PeriEventResult struct {
	Subject string          `json:"subject"`
	Event   string          `json:"event"`
	Trials  *TrialSet       `json:"trials"`
	Stats   *PeriEventStats `json:"stats"`
}

// BatchResult collects the outcome of AnalyzeBatch per subject
type BatchResult struct {
	Subjects []string                    `json:"subjects"` // input order
	Results  map[string]*PeriEventResult `json:"results"`
	Errors   map[string]error            `json:"-"`
}

// Analyzer runs the photometry pipeline for recordings: trim, downsample,
// normalize, then peri-event statistics, peak detection or video alignment.
// Prepared subjects are memoized in its cache.
type Analyzer struct {
	settings   config.Settings
	cache      *Cache
	normalizer *Normalizer
	aligner    *EventAligner
	engine     *PeriEventEngine
	detector   *PeakDetector
	video      *VideoFrameAligner
	logger     logging.Logger
}

// NewAnalyzer creates an analyzer. The settings are validated once here and
// shared read-only by every component.
func NewAnalyzer(settings config.Settings) (*Analyzer, error) {
	if err := settings.Validate(); err != nil {
		return nil, invalidParameter(err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "analyzer",
	})

	// trials are z-scored after normalization, so they are kept in %dF/F
	trialSettings := settings
	trialSettings.ShowNormAs = config.UnitDFF

	return &Analyzer{
		settings:   settings,
		cache:      NewCache(),
		normalizer: NewNormalizer(settings),
		aligner:    NewEventAligner(settings),
		engine:     NewPeriEventEngine(settings).WithTrialNormalization(NewNormalizer(trialSettings)),
		detector:   NewPeakDetector(settings),
		video:      NewVideoFrameAligner(settings),
		logger:     logger,
	}, nil
}

// WithCache shares a cache between analyzers
func (a *Analyzer) WithCache(cache *Cache) *Analyzer {
	a.cache = cache
	return a
}

// WithLogger sets the logger of the analyzer and all of its components. Each
// component logs with its own "component" field.
func (a *Analyzer) WithLogger(logger logging.Logger) *Analyzer {
	component := func(name string) logging.Logger {
		return logger.WithFields(logging.Fields{"component": name})
	}
	a.logger = component("analyzer")
	a.normalizer.WithLogger(component("normalizer"))
	a.aligner.WithLogger(component("event_aligner"))
	a.engine.WithLogger(component("perievent_engine"))
	a.engine.normalizer.WithLogger(component("trial_normalizer"))
	a.detector.WithLogger(component("peak_detector"))
	a.video.WithLogger(component("video_frame_aligner"))
	return a
}

// Settings returns the analyzer's settings
func (a *Analyzer) Settings() config.Settings {
	return a.settings
}

// Cache returns the analyzer's cache
func (a *Analyzer) Cache() *Cache {
	return a.cache
}

// Prepare trims, downsamples and normalizes the recording, reusing a cached
// result for the same subject and parameters
func (a *Analyzer) Prepare(rec *RawRecording, trim config.TrimSpec) (*PreparedSubject, error) {
	if rec == nil {
		return nil, &MissingDataError{What: "recording", Reason: "nil recording"}
	}
	if err := trim.Validate(); err != nil {
		return nil, invalidParameter(err)
	}

	key := CacheKey{
		Subject:       rec.Subject,
		Streams:       [2]string{a.settings.SignalName, a.settings.ControlName},
		Trim:          trim,
		Downsample:    a.settings.Downsample,
		Normalization: a.settings.NormalizationSpec(),
	}
	return a.cache.GetOrBuild(key, func() (*PreparedSubject, error) {
		return a.prepare(rec, trim)
	})
}

func (a *Analyzer) prepare(rec *RawRecording, trim config.TrimSpec) (*PreparedSubject, error) {
	logger := a.logger.WithFields(logging.Fields{"subject": rec.Subject})

	series, err := rec.Series(a.settings.SignalName, a.settings.ControlName)
	if err != nil {
		return nil, err
	}
	trimmed, err := Trim(series, trim)
	if err != nil {
		return nil, withSubject(err, rec.Subject)
	}
	downsampled, err := Downsample(trimmed, a.settings.Downsample)
	if err != nil {
		return nil, withSubject(err, rec.Subject)
	}
	normalized, err := a.normalizer.Normalize(downsampled)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", rec.Subject, err)
	}

	logger.Debug("Prepared subject", logging.Fields{
		"samples":     trimmed.Len(),
		"downsampled": downsampled.Len(),
		"fs":          downsampled.Fs,
	})

	return &PreparedSubject{
		Subject:     rec.Subject,
		Trimmed:     trimmed,
		Downsampled: downsampled,
		Normalized:  normalized,
	}, nil
}

// PeriEvent aligns the downsampled recording around every occurrence of
// eventID and computes statistics over the selected trials
func (a *Analyzer) PeriEvent(rec *RawRecording, trim config.TrimSpec, eventID string, windows config.PeriEventWindows, selected []int) (*PeriEventResult, error) {
	if err := ValidateWindows(windows); err != nil {
		return nil, err
	}

	prepared, err := a.Prepare(rec, trim)
	if err != nil {
		return nil, err
	}
	ev, err := ExtractEvent(rec, eventID)
	if err != nil {
		return nil, err
	}

	set, err := a.aligner.Align(prepared.Downsampled, ev, windows.Before, windows.After)
	if err != nil {
		return nil, withSubject(err, rec.Subject)
	}
	stats, err := a.engine.Compute(set, selected, windows)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", rec.Subject, err)
	}

	return &PeriEventResult{Subject: rec.Subject, Event: ev.Name, Trials: set, Stats: stats}, nil
}

// Peaks detects transients in the subject's normalized trace
func (a *Analyzer) Peaks(rec *RawRecording, trim config.TrimSpec, params config.PeakParams, windows []config.PeakWindow) (*PeakSet, error) {
	prepared, err := a.Prepare(rec, trim)
	if err != nil {
		return nil, err
	}
	return a.detector.Detect(prepared.Normalized.Timestamps, prepared.Normalized.Normalized, params, windows)
}

// VideoAlignment matches the trials of eventID to frames of the camera track
func (a *Analyzer) VideoAlignment(rec *RawRecording, eventID string, trials []int, userShift int, videoFPS float64) (*FrameAlignmentResult, error) {
	if rec == nil {
		return nil, &MissingDataError{What: "recording", Reason: "nil recording"}
	}
	camera, err := ExtractEvent(rec, FrameMarkerEpoch)
	if err != nil {
		return nil, err
	}
	ev, err := ExtractEvent(rec, eventID)
	if err != nil {
		return nil, err
	}

	result, err := a.video.Align(camera.Onsets, ev.Onsets, trials, userShift, videoFPS)
	if err != nil {
		return nil, withSubject(err, rec.Subject)
	}
	return result, nil
}

// AnalyzeBatch runs PeriEvent for every recording in turn. A failing subject
// is logged and recorded in Errors; the others still run. A subject name seen
// earlier in recs is not analyzed again: it is listed as "<subject>#<index>"
// with an InvalidParameterError.
func (a *Analyzer) AnalyzeBatch(recs []*RawRecording, trim config.TrimSpec, eventID string, windows config.PeriEventWindows) *BatchResult {
	batch := &BatchResult{
		Subjects: make([]string, 0, len(recs)),
		Results:  make(map[string]*PeriEventResult),
		Errors:   make(map[string]error),
	}

	seen := make(map[string]bool, len(recs))
	for i, rec := range recs {
		subject := fmt.Sprintf("#%d", i)
		if rec != nil {
			subject = rec.Subject
		}

		var (
			result *PeriEventResult
			err    error
		)
		if seen[subject] {
			err = &InvalidParameterError{Field: "subject", Value: subject, Reason: "duplicate subject in batch"}
			subject = fmt.Sprintf("%s#%d", subject, i)
			seen[subject] = true
		} else {
			seen[subject] = true
			result, err = a.PeriEvent(rec, trim, eventID, windows, nil)
		}
		batch.Subjects = append(batch.Subjects, subject)

		if err != nil {
			batch.Errors[subject] = err
			a.logger.Error(err, "Subject analysis failed", logging.Fields{
				"subject": subject,
				"event":   eventID,
			})
			continue
		}
		batch.Results[subject] = result
	}

	a.logger.Info("Batch analysis complete", logging.Fields{
		"subjects": len(recs),
		"failed":   len(batch.Errors),
		"event":    eventID,
	})
	return batch
}

// withSubject fills in the subject of a MissingDataError
func withSubject(err error, subject string) error {
	if missing, ok := err.(*MissingDataError); ok && missing.Subject == "" {
		missing.Subject = subject
	}
	return err
}
