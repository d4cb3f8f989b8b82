package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/algorithms/stats"
	"github.com/ilo21/fpexplorer/photometry/config"
)

// Channel is one acquisition stream sampled at Fs Hz
type Channel struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
	Fs   float64   `json:"fs"`
}

// Timestamps derives the sample times i/Fs
func (c Channel) Timestamps() []float64 {
	ts := make([]float64, len(c.Data))
	for i := range ts {
		ts[i] = float64(i) / c.Fs
	}
	return ts
}

// TimeSeries is a signal/control channel pair on a shared time axis. All three
// slices have the same length.
type TimeSeries struct {
	Timestamps []float64 `json:"timestamps"`
	Signal     []float64 `json:"signal"`
	Control    []float64 `json:"control"`
	Fs         float64   `json:"fs"`
}

// NewTimeSeries pairs the two channels, truncating both to the shorter one
func NewTimeSeries(signal, control Channel) (TimeSeries, error) {
	if signal.Fs <= 0 || math.IsNaN(signal.Fs) {
		return TimeSeries{}, &InvalidParameterError{Field: "fs", Value: signal.Fs, Reason: "sampling rate must be positive"}
	}
	if signal.Fs != control.Fs {
		return TimeSeries{}, &InvalidParameterError{
			Field:  "fs",
			Value:  [2]float64{signal.Fs, control.Fs},
			Reason: fmt.Sprintf("channels %q and %q are sampled at different rates", signal.Name, control.Name),
		}
	}

	n := min(len(signal.Data), len(control.Data))
	ts := TimeSeries{
		Signal:  common.Clone(signal.Data[:n]),
		Control: common.Clone(control.Data[:n]),
		Fs:      signal.Fs,
	}
	ts.Timestamps = Channel{Data: ts.Signal, Fs: ts.Fs}.Timestamps()
	return ts, nil
}

// Len returns the number of samples
func (ts TimeSeries) Len() int {
	return len(ts.Timestamps)
}

// Validate checks that the three slices line up
func (ts TimeSeries) Validate() error {
	if len(ts.Signal) != len(ts.Timestamps) || len(ts.Control) != len(ts.Timestamps) {
		return &InvalidParameterError{
			Field:  "time series",
			Value:  [3]int{len(ts.Timestamps), len(ts.Signal), len(ts.Control)},
			Reason: "timestamps, signal and control lengths differ",
		}
	}
	return nil
}

// Slice returns a copy of samples [from, to)
func (ts TimeSeries) Slice(from, to int) TimeSeries {
	return TimeSeries{
		Timestamps: common.Clone(ts.Timestamps[from:to]),
		Signal:     common.Clone(ts.Signal[from:to]),
		Control:    common.Clone(ts.Control[from:to]),
		Fs:         ts.Fs,
	}
}

// Between returns a copy of the samples with from <= t <= till
func (ts TimeSeries) Between(from, till float64) TimeSeries {
	lo, hi := len(ts.Timestamps), 0
	for i, t := range ts.Timestamps {
		if t >= from && t <= till {
			lo = min(lo, i)
			hi = i + 1
		}
	}
	if hi <= lo {
		return TimeSeries{Timestamps: []float64{}, Signal: []float64{}, Control: []float64{}, Fs: ts.Fs}
	}
	return ts.Slice(lo, hi)
}

// Event is a named behavioural event. Frame markers carry onsets only.
type Event struct {
	Name    string    `json:"name"`
	Onsets  []float64 `json:"onsets"`
	Offsets []float64 `json:"offsets,omitempty"`
}

// IsFrameMarker reports whether the event is a per-frame camera trigger track
func (e Event) IsFrameMarker() bool {
	return len(e.Offsets) == 0
}

// Stream is a raw channel as delivered by the acquisition reader
type Stream struct {
	Data []float64 `json:"data"`
	Fs   float64   `json:"fs"`
}

// EpochNotes holds timestamps the reader stores outside the onset list
type EpochNotes struct {
	Ts []float64 `json:"ts"`
}

// Epoch is a coded event track: Data[i] is the code that started at Onset[i]
type Epoch struct {
	Data   []int       `json:"data"`
	Onset  []float64   `json:"onset"`
	Offset []float64   `json:"offset"`
	Notes  *EpochNotes `json:"notes,omitempty"`
}

// RawRecording is one subject's session as exposed by the acquisition reader
type RawRecording struct {
	Subject string            `json:"subject"`
	Streams map[string]Stream `json:"streams"`
	Epochs  map[string]Epoch  `json:"epochs"`
}

// Channel returns the named stream
func (r *RawRecording) Channel(name string) (Channel, error) {
	stream, ok := r.Streams[name]
	if !ok {
		return Channel{}, &MissingDataError{Subject: r.Subject, What: "stream " + name, Reason: "not in recording"}
	}
	if len(stream.Data) == 0 {
		return Channel{}, &MissingDataError{Subject: r.Subject, What: "stream " + name, Reason: "no samples"}
	}
	return Channel{Name: name, Data: stream.Data, Fs: stream.Fs}, nil
}

// Series pairs the signal and control streams into a TimeSeries
func (r *RawRecording) Series(signalName, controlName string) (TimeSeries, error) {
	signal, err := r.Channel(signalName)
	if err != nil {
		return TimeSeries{}, err
	}
	control, err := r.Channel(controlName)
	if err != nil {
		return TimeSeries{}, err
	}
	return NewTimeSeries(signal, control)
}

// BaselineWindow is the time span a baseline-anchored normalization was fit on
type BaselineWindow struct {
	From float64 `json:"from"`
	Till float64 `json:"till"`
}

// NormalizationResult is a bleach-corrected trace
type NormalizationResult struct {
	Timestamps []float64                  `json:"timestamps"`
	Normalized []float64                  `json:"normalized"`
	Unit       config.Unit                `json:"unit"`
	Method     config.NormalizationMethod `json:"method"`
	Baseline   *BaselineWindow            `json:"baseline,omitempty"`
}

// Trial is one peri-event window; Index is the 1-based occurrence of the event
type Trial struct {
	Index   int       `json:"index"`
	Signal  []float64 `json:"signal"`
	Control []float64 `json:"control"`
}

// TrialSet holds every trial of one event on a shared [-Before, After) time axis
type TrialSet struct {
	Event      string    `json:"event"`
	Timestamps []float64 `json:"timestamps"`
	Trials     []Trial   `json:"trials"`
	Before     float64   `json:"before"`
	After      float64   `json:"after"`
	Rate       float64   `json:"rate"`
	Skipped    []int     `json:"skipped,omitempty"` // occurrences whose window left the recording
}

// Trial returns the trial with the given 1-based index
func (s *TrialSet) Trial(index int) (Trial, bool) {
	for _, tr := range s.Trials {
		if tr.Index == index {
			return tr, true
		}
	}
	return Trial{}, false
}

type AverageTrace struct {
	Timestamps []float64 `json:"ts"`
	Signal     []float64 `json:"signal"`
	Control    []float64 `json:"control"`
	StdSignal  []float64 `json:"std_signal"`
	StdControl []float64 `json:"std_control"`
}

type ZScoreTraces struct {
	Timestamps []float64   `json:"ts"`
	ZScored    [][]float64 `json:"zscored"`
	Mean       []float64   `json:"mean"`
	ZError     []float64   `json:"zerror"`
}

type AUCSummary struct {
	Pre        float64           `json:"pre"`
	Post       float64           `json:"post"`
	PValue     float64           `json:"p_value"`
	PreErr     float64           `json:"pre_err"`
	PostErr    float64           `json:"post_err"`
	PreTrials  []float64         `json:"pre_trials"`
	PostTrials []float64         `json:"post_trials"`
	TTest      stats.TTestResult `json:"t_test"`
}

// PeriEventStats summarises the selected trials of one event
type PeriEventStats struct {
	Trials      []int        `json:"trials"`
	Average     AverageTrace `json:"average"`
	ZScore      ZScoreTraces `json:"zscore"`
	AUC         AUCSummary   `json:"auc"`
	AUCBySecond [][]float64  `json:"auc_by_second"`
}

type PeakWindowCount struct {
	Name   string    `json:"name"`
	From   float64   `json:"from"`
	Till   float64   `json:"till"`
	Count  int       `json:"count"`
	Times  []float64 `json:"times"`
	Values []float64 `json:"values"`
}

// PeakSet holds detected transients in time order
type PeakSet struct {
	Times   []float64         `json:"times"`
	Values  []float64         `json:"values"`
	Indices []int             `json:"indices"`
	Windows []PeakWindowCount `json:"windows,omitempty"`
}

// FrameAlignment is the video frame pair bracketing one trial, after shifting
type FrameAlignment struct {
	Trial       int `json:"trial"`
	BeforeFrame int `json:"before_frame"`
	AfterFrame  int `json:"after_frame"`
}

type FrameAlignmentResult struct {
	Alignments []FrameAlignment  `json:"alignments"`
	Failures   []*AlignmentError `json:"failures,omitempty"`
	Shift      int               `json:"shift"`
}
