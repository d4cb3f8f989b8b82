package filters

import (
	"fmt"

	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// directTaps is the kernel length above which FIR passes switch from the
// direct sum to FFT convolution.
const directTaps = 64

// ZeroPhaseMovingAverage smooths a trace with a boxcar FIR filter applied
// forward and then backward, so the output has no phase lag.
//
// References:
//   - Gustafsson, F. (1996). "Determining the initial states in forward-backward
//     filtering", IEEE Trans. Signal Processing 44(4), 988-992
//   - Oppenheim, A.V., Schafer, R.W. "Discrete-Time Signal Processing", Ch. 5
//
// The trace is padded at both ends by odd reflection of 3·window samples and
// each pass starts from the steady state of a constant input equal to the first
// sample it sees, which keeps edge transients out of the result.
type ZeroPhaseMovingAverage struct {
	window int
	kernel []float64
}

// NewZeroPhaseMovingAverage creates a smoother averaging over window samples
func NewZeroPhaseMovingAverage(windowSize int) (*ZeroPhaseMovingAverage, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("moving average window must be positive, got %d", windowSize)
	}

	kernel := window.Rectangular(windowSize)
	floats.Scale(1.0/float64(windowSize), kernel)

	return &ZeroPhaseMovingAverage{
		window: windowSize,
		kernel: kernel,
	}, nil
}

// PadLength returns how many samples are reflected at each edge. Inputs must be
// longer than this.
func (ma *ZeroPhaseMovingAverage) PadLength() int {
	return 3 * ma.window
}

// Process returns the smoothed copy of data.
func (ma *ZeroPhaseMovingAverage) Process(data []float64) ([]float64, error) {
	edge := ma.PadLength()
	if len(data) <= edge {
		return nil, fmt.Errorf("signal of %d samples is too short for a %d-sample smoothing window (need more than %d)",
			len(data), ma.window, edge)
	}
	if ma.window == 1 {
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	}

	ext := oddExtend(data, edge)

	forward := ma.fir(ext)
	floats.Reverse(forward)
	backward := ma.fir(forward)
	floats.Reverse(backward)

	out := make([]float64, len(data))
	copy(out, backward[edge:edge+len(data)])
	return out, nil
}

// fir filters x assuming every sample before x[0] equals x[0]
func (ma *ZeroPhaseMovingAverage) fir(x []float64) []float64 {
	if len(ma.kernel) <= directTaps {
		return directFIR(ma.kernel, x)
	}
	return fftFIR(ma.kernel, x)
}

func directFIR(kernel, x []float64) []float64 {
	out := make([]float64, len(x))
	for n := range x {
		sum := 0.0
		for k, b := range kernel {
			idx := n - k
			if idx < 0 {
				idx = 0
			}
			sum += b * x[idx]
		}
		out[n] = sum
	}
	return out
}

func fftFIR(kernel, x []float64) []float64 {
	taps := len(kernel)
	lead := taps - 1

	// prepend the steady-state history, then take the part of the linear
	// convolution aligned with x
	size := dsputils.NextPowerOf2(lead + len(x) + taps - 1)
	u := make([]complex128, size)
	for i := 0; i < lead; i++ {
		u[i] = complex(x[0], 0)
	}
	for i, v := range x {
		u[lead+i] = complex(v, 0)
	}
	h := make([]complex128, size)
	for i, b := range kernel {
		h[i] = complex(b, 0)
	}

	conv := fft.Convolve(u, h)

	out := make([]float64, len(x))
	for n := range out {
		out[n] = real(conv[n+lead])
	}
	return out
}

// oddExtend reflects edge samples through the end points on both sides
func oddExtend(x []float64, edge int) []float64 {
	n := len(x)
	ext := make([]float64, 0, n+2*edge)
	for i := edge; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-edge; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}
	return ext
}
