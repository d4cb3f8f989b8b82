package photometry

import (
	"fmt"
	"math"

	"github.com/ilo21/fpexplorer/photometry/config"
)

// Trim removes spec.BeginSec seconds from the start and spec.EndSec seconds
// from the end of ts. Sample counts are round(sec·Fs). The input is never
// modified and timestamps keep their original (absolute) values, so applying
// the same spec to the same input always yields the same series.
func Trim(ts TimeSeries, spec config.TrimSpec) (TimeSeries, error) {
	if err := spec.Validate(); err != nil {
		return TimeSeries{}, invalidParameter(err)
	}
	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}

	t0 := int(math.Round(spec.BeginSec * ts.Fs))
	t1 := int(math.Round(spec.EndSec * ts.Fs))
	end := ts.Len() - t1

	if t0 >= end {
		return TimeSeries{}, &MissingDataError{
			What:   "samples",
			Reason: fmt.Sprintf("trimming %gs/%gs leaves no data in a %d-sample recording", spec.BeginSec, spec.EndSec, ts.Len()),
		}
	}
	return ts.Slice(t0, end), nil
}

// TrimToEvent keeps the span from beforeSec seconds ahead of the first onset
// of ev to afterSec seconds past its last offset (last onset for frame
// markers). The span is clipped to the recording.
func TrimToEvent(ts TimeSeries, ev Event, beforeSec, afterSec float64) (TimeSeries, error) {
	if beforeSec < 0 || afterSec < 0 {
		return TimeSeries{}, &InvalidParameterError{
			Field:  "trim",
			Value:  [2]float64{beforeSec, afterSec},
			Reason: "seconds around the event must be non-negative",
		}
	}
	if len(ev.Onsets) == 0 {
		return TimeSeries{}, &MissingDataError{What: "event " + ev.Name, Reason: "no occurrences"}
	}

	from := ev.Onsets[0] - beforeSec
	last := ev.Onsets[len(ev.Onsets)-1]
	if len(ev.Offsets) > 0 {
		last = ev.Offsets[len(ev.Offsets)-1]
	}
	till := last + afterSec

	trimmed := ts.Between(from, till)
	if trimmed.Len() == 0 {
		return TimeSeries{}, &MissingDataError{
			What:   "samples",
			Reason: fmt.Sprintf("event %s span [%g, %g] lies outside the recording", ev.Name, from, till),
		}
	}
	return trimmed, nil
}
