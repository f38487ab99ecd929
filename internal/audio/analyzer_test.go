package audio

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

// sine returns n samples of a sinusoid at freq Hz.
func sine(freq float64, sampleRate, n int, amplitude float64) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestAnalyzeSilence(t *testing.T) {
	samples := make([]int16, 44100)
	freqs, err := Analyze(samples, 44100, 32)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	for i, f := range freqs {
		if f != 0 {
			t.Errorf("window %d: got %d Hz, want 0 for silence", i, f)
		}
	}
	t.Logf("Silence: %d windows, all 0 Hz", len(freqs))
}

// TestAnalyzeSine checks that interior windows of a pure tone report a
// frequency within one bin of the tone, for every backend.
func TestAnalyzeSine(t *testing.T) {
	tests := []struct {
		name       string
		backend    string
		sampleRate int
		ratio      int
		tone       float64
	}{
		{"dsp 1kHz", "dsp", 44100, 32, 1000},
		{"dsp 440Hz", "dsp", 44100, 32, 440},
		{"gonum 1kHz", "gonum", 44100, 32, 1000},
		{"gonum 5kHz ratio 64", "gonum", 44100, 64, 5000},
		{"gofft radix-2 window", "gofft", 32768, 32, 1500},
		{"gofft fallback window", "gofft", 44100, 32, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := sine(tt.tone, tt.sampleRate, 2*tt.sampleRate, 10000)
			freqs, err := Analyze(samples, tt.sampleRate, tt.ratio, WithBackend(tt.backend))
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}

			w := tt.sampleRate / tt.ratio
			binWidth := float64(tt.sampleRate) / float64(w)

			// Last window may be a short remainder with poor resolution
			for i, f := range freqs[:len(freqs)-1] {
				if diff := math.Abs(float64(f) - tt.tone); diff > binWidth {
					t.Errorf("window %d: got %d Hz, want %.0f ± %.1f", i, f, tt.tone, binWidth)
				}
			}
			t.Logf("%s: %d windows, first=%d Hz, bin width %.1f Hz", tt.name, len(freqs), freqs[0], binWidth)
		})
	}
}

func TestAnalyzeWindowCount(t *testing.T) {
	const (
		sampleRate = 44100
		ratio      = 32
		w          = sampleRate / ratio
	)

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{w - 1, 1},
		{w, 1},
		{w + 1, 2},
		{2 * w, 2},
		{88200, 65}, // two seconds: ceil(88200/1378)
	}

	for _, tt := range tests {
		freqs, err := Analyze(make([]int16, tt.n), sampleRate, ratio)
		if err != nil {
			t.Fatalf("Analyze(n=%d) error: %v", tt.n, err)
		}
		if len(freqs) != tt.want {
			t.Errorf("n=%d: got %d windows, want %d", tt.n, len(freqs), tt.want)
		}
		if got := NumWindows(tt.n, w); got != tt.want {
			t.Errorf("NumWindows(%d, %d) = %d, want %d", tt.n, w, got, tt.want)
		}
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	freqs, err := Analyze(nil, 44100, 32)
	if err != nil {
		t.Fatalf("Analyze(nil) error: %v", err)
	}
	if len(freqs) != 0 {
		t.Errorf("got %d frequencies for empty input", len(freqs))
	}
}

func TestAnalyzeInvalidConfig(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		ratio      int
	}{
		{"zero ratio", 44100, 0},
		{"negative ratio", 44100, -1},
		{"ratio above sample rate", 100, 200},
		{"zero sample rate", 0, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(make([]int16, 10), tt.sampleRate, tt.ratio)
			if !errors.Is(err, errs.ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := Analyze(make([]int16, 10), 44100, 32, WithBackend("fftw")); !errors.Is(err, errs.ErrInvalidConfig) {
		t.Errorf("unknown backend: got %v, want ErrInvalidConfig", err)
	}
}

// TestAnalyzeTrailingWindow checks that a short final window is
// transformed at its own length and scaled by the full window size.
func TestAnalyzeTrailingWindow(t *testing.T) {
	const (
		sampleRate = 44100
		ratio      = 32
		w          = 1378
	)

	samples := make([]int16, w+4)
	copy(samples[w:], []int16{1000, -1000, 1000, -1000})

	freqs, err := Analyze(samples, sampleRate, ratio)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(freqs) != 2 {
		t.Fatalf("got %d windows, want 2", len(freqs))
	}
	if freqs[0] != 0 {
		t.Errorf("silent first window: got %d Hz", freqs[0])
	}

	// Nyquist bin of a 4-point DFT is -0.5 cycles/sample
	want := int(0.5 * w * ratio)
	if freqs[1] != want {
		t.Errorf("trailing window: got %d Hz, want %d", freqs[1], want)
	}
}

func TestAnalyzeProgress(t *testing.T) {
	samples := make([]int16, 10*1378)
	var calls, lastDone, lastTotal int

	_, err := Analyze(samples, 44100, 32, WithProgress(func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	}))
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if calls != 10 || lastDone != 10 || lastTotal != 10 {
		t.Errorf("progress: calls=%d done=%d total=%d, want 10/10/10", calls, lastDone, lastTotal)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(make([]int16, 44100), 44100, 32, WithContext(ctx))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	samples := sine(700, 44100, 44100, 8000)
	a, err := Analyze(samples, 44100, 32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Analyze(samples, 44100, 32)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("window %d differs between runs: %d vs %d", i, a[i], b[i])
		}
	}
}

// TestAnalyzeBinRounding checks a tone sitting exactly on bin 7 of a 1500
// sample window. The Hz value truncates to 223, not 224.
func TestAnalyzeBinRounding(t *testing.T) {
	samples := sine(224, 48000, 2*48000, 10000)
	freqs, err := Analyze(samples, 48000, 32)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(freqs) != 64 {
		t.Fatalf("got %d windows, want 64", len(freqs))
	}
	for i, f := range freqs {
		if f != 223 {
			t.Errorf("window %d: got %d Hz, want 223", i, f)
		}
	}
}
