package photometry_test

import (
	"math"

	"github.com/ilo21/fpexplorer/photometry"
	"github.com/ilo21/fpexplorer/photometry/config"
)

const (
	testSignal  = "_465A"
	testControl = "_405A"
	testEpoch   = "PrtN"
)

// newSyntheticRecording builds a two-channel recording whose signal follows
// the control channel, plus a decaying transient after every onset. Every
// onset is coded 1 in testEpoch and the camera track runs at 10 fps.
func newSyntheticRecording(subject string, seconds, fs float64, onsets []float64) *photometry.RawRecording {
	n := int(seconds * fs)
	signal := make([]float64, n)
	control := make([]float64, n)
	for i := range signal {
		t := float64(i) / fs
		control[i] = 2 + 0.1*math.Sin(2*math.Pi*0.3*t) + 0.02*math.Sin(2*math.Pi*7*t)
		signal[i] = 1.5*control[i] + 0.5 + 0.05*math.Sin(2*math.Pi*1.3*t)
		for _, onset := range onsets {
			if t >= onset {
				signal[i] += 0.3 * math.Exp(-(t-onset)/0.5)
			}
		}
	}

	codes := make([]int, len(onsets))
	offsets := make([]float64, len(onsets))
	for i, onset := range onsets {
		codes[i] = 1
		offsets[i] = onset + 1
	}

	frames := make([]float64, int(seconds*10))
	for i := range frames {
		frames[i] = float64(i) / 10
	}

	return &photometry.RawRecording{
		Subject: subject,
		Streams: map[string]photometry.Stream{
			testSignal:  {Data: signal, Fs: fs},
			testControl: {Data: control, Fs: fs},
		},
		Epochs: map[string]photometry.Epoch{
			testEpoch: {Data: codes, Onset: onsets, Offset: offsets},
			photometry.FrameMarkerEpoch: {
				Data:  make([]int, len(frames)),
				Onset: frames,
				Notes: &photometry.EpochNotes{Ts: frames},
			},
		},
	}
}

// newLinearSeries returns n samples at fs with signal = a·t + b and control = c·t + d
func newLinearSeries(n int, fs, a, b, c, d float64) photometry.TimeSeries {
	ts := photometry.TimeSeries{
		Timestamps: make([]float64, n),
		Signal:     make([]float64, n),
		Control:    make([]float64, n),
		Fs:         fs,
	}
	for i := 0; i < n; i++ {
		t := float64(i) / fs
		ts.Timestamps[i] = t
		ts.Signal[i] = a*t + b
		ts.Control[i] = c*t + d
	}
	return ts
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.SignalName = testSignal
	s.ControlName = testControl
	return s
}
