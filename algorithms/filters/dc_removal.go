package filters

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DCRemoval removes the constant (0 Hz) offset of a finite trace by
// subtracting its mean. Averaged peri-event traces are passed through it so
// signal and control can be drawn on a shared vertical axis. This is a display
// alignment and not a baseline correction: the removed offset is reported so
// callers can restore it.
type DCRemoval struct {
	offset float64
}

// NewDCRemoval creates a DC removal stage
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{}
}

// ProcessBuffer returns data minus its mean. Empty input yields empty output.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	if len(input) == 0 {
		dc.offset = 0
		return output
	}

	dc.offset = stat.Mean(input, nil)
	copy(output, input)
	floats.AddConst(-dc.offset, output)
	return output
}

// Offset returns the mean removed by the last ProcessBuffer call
func (dc *DCRemoval) Offset() float64 {
	return dc.offset
}

// RemoveDC is the stateless form of DCRemoval.ProcessBuffer
func RemoveDC(input []float64) (output []float64, offset float64) {
	dc := NewDCRemoval()
	output = dc.ProcessBuffer(input)
	return output, dc.Offset()
}
