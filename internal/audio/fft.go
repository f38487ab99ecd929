package audio

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/argusdusty/gofft"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform computes the full complex DFT of a real window.
type Transform func(window []float64) []complex128

// NewTransform returns the FFT implementation registered under name.
func NewTransform(name string) (Transform, error) {
	switch name {
	case "", config.FFTDSP:
		return dspFFT, nil
	case config.FFTGonum:
		return newGonumFFT(), nil
	case config.FFTGofft:
		return gofftFFT, nil
	default:
		return nil, fmt.Errorf("%w: unknown fft backend %q", errs.ErrInvalidConfig, name)
	}
}

// dspFFT handles any window length.
func dspFFT(window []float64) []complex128 {
	return fft.FFTReal(window)
}

// newGonumFFT keeps one plan per window length; at most two lengths
// occur in a run (the full window and the trailing remainder).
func newGonumFFT() Transform {
	var mu sync.Mutex
	plans := make(map[int]*fourier.CmplxFFT)

	return func(window []float64) []complex128 {
		n := len(window)
		mu.Lock()
		plan, ok := plans[n]
		if !ok {
			plan = fourier.NewCmplxFFT(n)
			plans[n] = plan
		}
		mu.Unlock()

		seq := make([]complex128, n)
		for i, v := range window {
			seq[i] = complex(v, 0)
		}
		return plan.Coefficients(nil, seq)
	}
}

// gofftFFT is radix-2 only; other lengths go through dspFFT.
func gofftFFT(window []float64) []complex128 {
	n := len(window)
	if n == 0 || n&(n-1) != 0 {
		return dspFFT(window)
	}
	coeffs := gofft.Float64ToComplex128Array(window)
	if err := gofft.FFT(coeffs); err != nil {
		return dspFFT(window)
	}
	return coeffs
}

// DominantBin returns the index of the coefficient with the largest
// magnitude. Ties resolve to the lowest index. Returns -1 for no input.
func DominantBin(coeffs []complex128) int {
	best := -1
	bestMag := -1.0
	for k, c := range coeffs {
		if mag := cmplx.Abs(c); mag > bestMag {
			best = k
			bestMag = mag
		}
	}
	return best
}

// FFTFreq returns the normalised frequency of bin k in an n-point DFT,
// negative for bins above Nyquist. It multiplies by 1/n rather than dividing
// by n: the two round differently and the truncated Hz values depend on it.
func FFTFreq(k, n int) float64 {
	val := 1 / float64(n)
	if k <= (n-1)/2 {
		return float64(k) * val
	}
	return float64(k-n) * val
}

// BinHz converts bin k of an n-point window to whole Hz, scaled by the full
// window size so a short final window keeps the same scale.
func BinHz(k, n, windowSize, ratio int) int {
	return int(math.Abs(FFTFreq(k, n) * float64(windowSize) * float64(ratio)))
}
