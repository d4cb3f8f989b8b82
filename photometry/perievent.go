package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/filters"
	"github.com/ilo21/fpexplorer/algorithms/stats"
	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
)

// aucBinWidth is the width in seconds of the per-trial AUC bins
const aucBinWidth = 1.0

// PeriEventEngine computes trial averages, baseline z-scores and AUC
// statistics for one event's trials.
type PeriEventEngine struct {
	settings   config.Settings
	normalizer *Normalizer
	logger     logging.Logger
}

// NewPeriEventEngine creates an engine that z-scores the raw trial signal
func NewPeriEventEngine(settings config.Settings) *PeriEventEngine {
	return &PeriEventEngine{
		settings: settings,
		logger: logging.WithFields(logging.Fields{
			"component": "perievent_engine",
		}),
	}
}

// WithTrialNormalization normalizes every trial with n before z-scoring
func (e *PeriEventEngine) WithTrialNormalization(n *Normalizer) *PeriEventEngine {
	e.normalizer = n
	return e
}

// WithLogger replaces the engine's logger
func (e *PeriEventEngine) WithLogger(logger logging.Logger) *PeriEventEngine {
	e.logger = logger
	return e
}

// ValidateWindows checks baseline and AUC windows before any computation
func ValidateWindows(w config.PeriEventWindows) error {
	return invalidParameter(w.Validate())
}

// Compute summarises the selected trials of set. An empty selection uses all
// trials; unknown or repeated indices are rejected.
func (e *PeriEventEngine) Compute(set *TrialSet, selected []int, w config.PeriEventWindows) (*PeriEventStats, error) {
	if set == nil || len(set.Trials) == 0 {
		return nil, &MissingDataError{What: "trials", Reason: "trial set is empty"}
	}
	if w.Before == 0 && w.After == 0 {
		w.Before, w.After = set.Before, set.After
	}
	if math.Abs(w.Before-set.Before) > 1e-9 || math.Abs(w.After-set.After) > 1e-9 {
		return nil, &InvalidParameterError{
			Field:  "before/after",
			Value:  [2]float64{w.Before, w.After},
			Reason: fmt.Sprintf("trials were cut at [%g, %g]", -set.Before, set.After),
		}
	}
	if err := ValidateWindows(w); err != nil {
		return nil, err
	}

	trials, err := selectTrials(set, selected)
	if err != nil {
		return nil, err
	}

	result := &PeriEventStats{Trials: make([]int, len(trials))}
	for i, tr := range trials {
		result.Trials[i] = tr.Index
	}

	if err := e.average(set, trials, &result.Average); err != nil {
		return nil, err
	}
	if err := e.zscore(set, trials, w, &result.ZScore); err != nil {
		return nil, err
	}
	if err := e.auc(set, w, result); err != nil {
		return nil, err
	}

	e.logger.Debug("Computed peri-event statistics", logging.Fields{
		"event":    set.Event,
		"trials":   len(trials),
		"auc_pre":  result.AUC.Pre,
		"auc_post": result.AUC.Post,
		"p_value":  result.AUC.PValue,
	})
	return result, nil
}

func selectTrials(set *TrialSet, selected []int) ([]Trial, error) {
	if len(selected) == 0 {
		return set.Trials, nil
	}

	seen := make(map[int]bool, len(selected))
	trials := make([]Trial, 0, len(selected))
	for _, idx := range selected {
		if seen[idx] {
			return nil, &InvalidParameterError{Field: "trials", Value: idx, Reason: "trial selected twice"}
		}
		seen[idx] = true

		tr, ok := set.Trial(idx)
		if !ok {
			return nil, &InvalidParameterError{Field: "trials", Value: idx, Reason: "no such trial"}
		}
		trials = append(trials, tr)
	}
	return trials, nil
}

// average is the per-sample mean ± standard error of both raw channels, each
// mean trace shifted to zero mean.
func (e *PeriEventEngine) average(set *TrialSet, trials []Trial, out *AverageTrace) error {
	signals := make([][]float64, len(trials))
	controls := make([][]float64, len(trials))
	for i, tr := range trials {
		signals[i] = tr.Signal
		controls[i] = tr.Control
	}

	signal, err := stats.ColumnMean(signals)
	if err != nil {
		return fmt.Errorf("average signal: %w", err)
	}
	control, err := stats.ColumnMean(controls)
	if err != nil {
		return fmt.Errorf("average control: %w", err)
	}
	stdSignal, err := stats.ColumnStdErr(signals)
	if err != nil {
		return fmt.Errorf("signal error: %w", err)
	}
	stdControl, err := stats.ColumnStdErr(controls)
	if err != nil {
		return fmt.Errorf("control error: %w", err)
	}

	out.Timestamps = set.Timestamps
	out.Signal, _ = filters.RemoveDC(signal)
	out.Control, _ = filters.RemoveDC(control)
	out.StdSignal = stdSignal
	out.StdControl = stdControl
	return nil
}

// trace is the series a trial is z-scored on: the normalized trial when a
// normalizer is set, the raw signal otherwise
func (e *PeriEventEngine) trace(set *TrialSet, tr Trial) ([]float64, error) {
	if e.normalizer == nil {
		return tr.Signal, nil
	}
	res, err := e.normalizer.Normalize(TimeSeries{
		Timestamps: set.Timestamps,
		Signal:     tr.Signal,
		Control:    tr.Control,
		Fs:         set.Rate,
	})
	if err != nil {
		return nil, fmt.Errorf("normalize trial %d: %w", tr.Index, err)
	}
	return res.Normalized, nil
}

func (e *PeriEventEngine) zscore(set *TrialSet, trials []Trial, w config.PeriEventWindows, out *ZScoreTraces) error {
	baseline := stats.OpenInterval(set.Timestamps, w.BaselineFrom, w.BaselineTo)
	if len(baseline) == 0 {
		return &MissingDataError{What: "baseline samples", Reason: fmt.Sprintf("no samples inside (%g, %g)", w.BaselineFrom, w.BaselineTo)}
	}

	zscored := make([][]float64, len(trials))
	for i, tr := range trials {
		trace, err := e.trace(set, tr)
		if err != nil {
			return err
		}
		z, err := stats.RobustZScoreAgainst(trace, stats.Gather(trace, baseline))
		if err != nil {
			return fmt.Errorf("z-score trial %d: %w", tr.Index, err)
		}
		zscored[i] = z
	}

	mean, err := stats.ColumnMean(zscored)
	if err != nil {
		return err
	}
	zerror, err := stats.ColumnStdErr(zscored)
	if err != nil {
		return err
	}

	out.Timestamps = set.Timestamps
	out.ZScored = zscored
	out.Mean = mean
	out.ZError = zerror
	return nil
}

func (e *PeriEventEngine) auc(set *TrialSet, w config.PeriEventWindows, result *PeriEventStats) error {
	ts := set.Timestamps
	mean := result.ZScore.Mean

	pre, err := stats.WindowAUC(ts, mean, w.AUCPreFrom, w.AUCPreTo)
	if err != nil {
		return &MissingDataError{What: "pre-event AUC samples", Reason: err.Error()}
	}
	post, err := stats.WindowAUC(ts, mean, w.AUCPostFrom, w.AUCPostTo)
	if err != nil {
		return &MissingDataError{What: "post-event AUC samples", Reason: err.Error()}
	}

	preIdx := stats.OpenInterval(ts, w.AUCPreFrom, w.AUCPreTo)
	postIdx := stats.OpenInterval(ts, w.AUCPostFrom, w.AUCPostTo)
	ttest, err := stats.WelchTTest(stats.Gather(mean, preIdx), stats.Gather(mean, postIdx))
	if err != nil {
		return fmt.Errorf("pre/post t-test: %w", err)
	}

	rows := result.ZScore.ZScored
	preTrials := make([]float64, len(rows))
	postTrials := make([]float64, len(rows))
	bySecond := make([][]float64, len(rows))
	for i, z := range rows {
		if preTrials[i], err = stats.WindowAUC(ts, z, w.AUCPreFrom, w.AUCPreTo); err != nil {
			return err
		}
		if postTrials[i], err = stats.WindowAUC(ts, z, w.AUCPostFrom, w.AUCPostTo); err != nil {
			return err
		}
		if bySecond[i], err = stats.BinnedAUC(ts, z, -set.Before, set.After, aucBinWidth); err != nil {
			return err
		}
	}

	result.AUC = AUCSummary{
		Pre:        pre,
		Post:       post,
		PValue:     ttest.PValue,
		PreErr:     stats.StdErr(preTrials),
		PostErr:    stats.StdErr(postTrials),
		PreTrials:  preTrials,
		PostTrials: postTrials,
		TTest:      *ttest,
	}
	result.AUCBySecond = bySecond
	return nil
}
