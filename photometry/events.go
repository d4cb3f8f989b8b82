package photometry

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ilo21/fpexplorer/algorithms/common"
	"github.com/ilo21/fpexplorer/logging"
	"github.com/ilo21/fpexplorer/photometry/config"
	"golang.org/x/exp/maps"
)

// FrameMarkerEpoch is the epoch holding one onset per captured camera frame
const FrameMarkerEpoch = "Cam1"

// EventID identifies the occurrences of an epoch, optionally restricted to one code
type EventID struct {
	Epoch    string
	Value    int
	HasValue bool
}

func (id EventID) String() string {
	if !id.HasValue {
		return id.Epoch
	}
	return fmt.Sprintf("%s %d", id.Epoch, id.Value)
}

// ParseEventID parses "<Epoch> <value>" or a bare "<Epoch>"
func ParseEventID(id string) (EventID, error) {
	fields := strings.Fields(id)
	switch len(fields) {
	case 1:
		return EventID{Epoch: fields[0]}, nil
	case 2:
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			return EventID{}, &InvalidParameterError{Field: "event", Value: id, Reason: "event value must be an integer", Err: err}
		}
		return EventID{Epoch: fields[0], Value: value, HasValue: true}, nil
	default:
		return EventID{}, &InvalidParameterError{Field: "event", Value: id, Reason: `expected "<epoch> <value>"`}
	}
}

// ListEventIDs returns every event identifier the recording can serve, sorted.
// Coded epochs yield one "<Epoch> <value>" per distinct code, the frame
// marker epoch yields its bare name.
func ListEventIDs(rec *RawRecording) []string {
	var ids []string
	for _, name := range maps.Keys(rec.Epochs) {
		if name == FrameMarkerEpoch {
			ids = append(ids, name)
			continue
		}
		codes := make(map[int]struct{})
		for _, code := range rec.Epochs[name].Data {
			codes[code] = struct{}{}
		}
		for _, code := range maps.Keys(codes) {
			ids = append(ids, EventID{Epoch: name, Value: code, HasValue: true}.String())
		}
	}
	slices.Sort(ids)
	return ids
}

// ExtractEvent collects the onsets and offsets of id. Frame markers take their
// onsets from Notes.Ts when the reader provides it and have no offsets.
func ExtractEvent(rec *RawRecording, id string) (Event, error) {
	eid, err := ParseEventID(id)
	if err != nil {
		return Event{}, err
	}
	epoch, ok := rec.Epochs[eid.Epoch]
	if !ok {
		return Event{}, &MissingDataError{Subject: rec.Subject, What: "event " + id, Reason: "epoch not in recording"}
	}

	if eid.Epoch == FrameMarkerEpoch {
		onsets := epoch.Onset
		if epoch.Notes != nil && len(epoch.Notes.Ts) > 0 {
			onsets = epoch.Notes.Ts
		}
		if len(onsets) == 0 {
			return Event{}, &MissingDataError{Subject: rec.Subject, What: "event " + id, Reason: "no frame timestamps"}
		}
		return Event{Name: eid.String(), Onsets: common.Clone(onsets)}, nil
	}

	ev := Event{Name: eid.String()}
	for i, code := range epoch.Data {
		if eid.HasValue && code != eid.Value {
			continue
		}
		if i >= len(epoch.Onset) {
			break
		}
		ev.Onsets = append(ev.Onsets, epoch.Onset[i])
		if i < len(epoch.Offset) {
			ev.Offsets = append(ev.Offsets, epoch.Offset[i])
		}
	}
	if len(ev.Onsets) == 0 {
		return Event{}, &MissingDataError{Subject: rec.Subject, What: "event " + id, Reason: "never occurred"}
	}
	return ev, nil
}

// EventAligner cuts fixed windows around every occurrence of an event and puts
// them on one regular time axis.
type EventAligner struct {
	settings config.Settings
	logger   logging.Logger
}

// NewEventAligner creates an aligner for the given settings
func NewEventAligner(settings config.Settings) *EventAligner {
	return &EventAligner{
		settings: settings,
		logger: logging.WithFields(logging.Fields{
			"component": "event_aligner",
		}),
	}
}

// WithLogger replaces the aligner's logger
func (a *EventAligner) WithLogger(logger logging.Logger) *EventAligner {
	a.logger = logger
	return a
}

// Align extracts [onset-before, onset+after) around every onset of ev.
//
// Windows reaching past either end of the recording are skipped and listed in
// TrialSet.Skipped. The first sample of each window is dropped, all windows are
// truncated to the shortest one and then interpolated onto the grid
// -before + k/rate for k < round((before+after)·rate), where rate is
// Settings.ExactRateHz or else ts.Fs.
func (a *EventAligner) Align(ts TimeSeries, ev Event, before, after float64) (*TrialSet, error) {
	if !(before > 0) || !(after > 0) {
		return nil, &InvalidParameterError{Field: "window", Value: [2]float64{before, after}, Reason: "before and after must be positive"}
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	if ts.Len() < 2 {
		return nil, &MissingDataError{What: "samples", Reason: "recording is too short to align"}
	}

	rate := a.settings.ExactRateHz
	if rate == 0 {
		rate = ts.Fs
	}
	size := int(math.Round((before + after) * rate))
	if size < 2 {
		return nil, &InvalidParameterError{Field: "window", Value: [2]float64{before, after}, Reason: fmt.Sprintf("window holds fewer than 2 samples at %g Hz", rate)}
	}

	type window struct {
		index      int
		start, end int
		onset      float64
	}

	first, last := ts.Timestamps[0], ts.Timestamps[ts.Len()-1]
	var windows []window
	var skipped []int
	minLen := math.MaxInt

	for k, onset := range ev.Onsets {
		trial := k + 1
		from, till := onset-before, onset+after
		if from < first || till > last {
			skipped = append(skipped, trial)
			a.logger.Warn("Trial window outside recording", logging.Fields{
				"event": ev.Name,
				"trial": trial,
				"from":  from,
				"till":  till,
			})
			continue
		}

		start, end := -1, -1
		for i, t := range ts.Timestamps {
			if t >= from && start < 0 {
				start = i
			}
			if t >= till {
				end = i
				break
			}
		}
		if end < 0 {
			end = ts.Len()
		}
		// drop the first sample of the cut
		start++
		if end-start < 2 {
			skipped = append(skipped, trial)
			continue
		}

		windows = append(windows, window{index: trial, start: start, end: end, onset: onset})
		minLen = min(minLen, end-start)
	}

	if len(windows) == 0 {
		return nil, &MissingDataError{What: "trials", Reason: fmt.Sprintf("no complete window around event %s", ev.Name)}
	}

	grid := common.RegularGrid(-before, rate, size)
	set := &TrialSet{
		Event:      ev.Name,
		Timestamps: grid,
		Trials:     make([]Trial, 0, len(windows)),
		Before:     before,
		After:      after,
		Rate:       rate,
		Skipped:    skipped,
	}

	for _, w := range windows {
		end := w.start + minLen
		relative := make([]float64, minLen)
		for i := range relative {
			relative[i] = ts.Timestamps[w.start+i] - w.onset
		}

		signal, control, err := ResampleOnGrid(relative, ts.Signal[w.start:end], ts.Control[w.start:end], grid)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", w.index, err)
		}
		set.Trials = append(set.Trials, Trial{Index: w.index, Signal: signal, Control: control})
	}

	a.logger.Debug("Aligned trials", logging.Fields{
		"event":   ev.Name,
		"trials":  len(set.Trials),
		"skipped": len(skipped),
		"samples": size,
		"rate":    rate,
	})
	return set, nil
}
