package photometry

import (
	"errors"
	"fmt"

	"github.com/ilo21/fpexplorer/photometry/config"
)

var (
	ErrMissingData        = errors.New("missing data")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrAlignmentAmbiguous = errors.New("ambiguous frame alignment")
	ErrZeroBaseline       = errors.New("zero fitted baseline")
)

// MissingDataError reports input that is absent or became empty: a stream or
// event the recording does not hold, a trim that left no samples, an event
// without usable trial windows.
type MissingDataError struct {
	Subject string
	What    string
	Reason  string
}

func (e *MissingDataError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("missing %s: %s", e.What, e.Reason)
	}
	return fmt.Sprintf("subject %q: missing %s: %s", e.Subject, e.What, e.Reason)
}

func (e *MissingDataError) Is(target error) bool {
	return target == ErrMissingData
}

// InvalidParameterError reports a parameter rejected before any computation
type InvalidParameterError struct {
	Field  string
	Value  any
	Reason string
	Err    error
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func (e *InvalidParameterError) Unwrap() error {
	return e.Err
}

// AlignmentError is a per-trial video frame matching failure
type AlignmentError struct {
	Trial      int
	Candidates int
	Reason     string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("trial %d: %s (%d candidate frames)", e.Trial, e.Reason, e.Candidates)
}

func (e *AlignmentError) Is(target error) bool {
	return target == ErrAlignmentAmbiguous
}

// ZeroBaselineError reports a fitted baseline F0 too close to zero to divide by
type ZeroBaselineError struct {
	Index int
	Value float64
}

func (e *ZeroBaselineError) Error() string {
	return fmt.Sprintf("fitted baseline is %g at sample %d", e.Value, e.Index)
}

func (e *ZeroBaselineError) Is(target error) bool {
	return target == ErrZeroBaseline
}

// invalidParameter turns a settings validation failure into an InvalidParameterError
func invalidParameter(err error) error {
	if err == nil {
		return nil
	}
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return &InvalidParameterError{Field: verr.Field, Value: verr.Value, Reason: verr.Reason, Err: err}
	}
	return &InvalidParameterError{Field: "parameters", Reason: err.Error(), Err: err}
}
