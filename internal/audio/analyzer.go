package audio

import (
	"context"
	"fmt"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

// ProgressCallback is called after each window with the number of windows
// analysed so far and the total.
type ProgressCallback func(done, total int)

type analyzeOptions struct {
	progress ProgressCallback
	backend  string
	ctx      context.Context
}

// AnalyzeOption configures Analyze.
type AnalyzeOption func(*analyzeOptions)

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) AnalyzeOption {
	return func(o *analyzeOptions) { o.progress = cb }
}

// WithBackend selects the FFT implementation by name ("dsp", "gonum" or "gofft").
func WithBackend(name string) AnalyzeOption {
	return func(o *analyzeOptions) { o.backend = name }
}

// WithContext lets a long analysis be cancelled between windows.
func WithContext(ctx context.Context) AnalyzeOption {
	return func(o *analyzeOptions) { o.ctx = ctx }
}

// WindowSize returns the number of samples per analysis window.
func WindowSize(sampleRate, ratio int) (int, error) {
	if ratio <= 0 {
		return 0, fmt.Errorf("%w: ratio %d must be positive", errs.ErrInvalidConfig, ratio)
	}
	w := sampleRate / ratio
	if w <= 0 {
		return 0, fmt.Errorf("%w: window size %d/%d is zero", errs.ErrInvalidConfig, sampleRate, ratio)
	}
	return w, nil
}

// NumWindows returns ceil(n / windowSize).
func NumWindows(n, windowSize int) int {
	if n <= 0 || windowSize <= 0 {
		return 0
	}
	return (n + windowSize - 1) / windowSize
}

// Analyze returns the dominant frequency in Hz of each consecutive,
// non-overlapping window of sampleRate/ratio samples. The trailing partial
// window is transformed at its own length; its bin is still scaled by the
// full window size.
func Analyze(samples []int16, sampleRate, ratio int, opts ...AnalyzeOption) ([]int, error) {
	o := analyzeOptions{backend: "", ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	windowSize, err := WindowSize(sampleRate, ratio)
	if err != nil {
		return nil, err
	}
	transform, err := NewTransform(o.backend)
	if err != nil {
		return nil, err
	}

	total := NumWindows(len(samples), windowSize)
	freqs := make([]int, 0, total)
	window := make([]float64, windowSize)

	for i := 0; i < len(samples); i += windowSize {
		if err := o.ctx.Err(); err != nil {
			return nil, err
		}

		end := min(i+windowSize, len(samples))
		w := window[:end-i]
		for j, s := range samples[i:end] {
			w[j] = float64(s)
		}

		k := DominantBin(transform(w))
		freqs = append(freqs, BinHz(k, len(w), windowSize, ratio))

		if o.progress != nil {
			o.progress(len(freqs), total)
		}
	}

	return freqs, nil
}
