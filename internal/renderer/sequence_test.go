package renderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
)

func newTestCompositor(t *testing.T, opts Options) *Compositor {
	t.Helper()
	c, err := NewCompositor(gradient(800, 720), uniform(16, 16, black), opts)
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}
	return c
}

func TestSequenceNext(t *testing.T) {
	c := newTestCompositor(t, Options{Glow: true, Resize: true})
	freqs := []int{0, 12, 440, 3000}

	var calls []int
	seq := NewSequence(c, freqs, WithFrameProgress(func(done, total int) {
		if total != len(freqs) {
			t.Errorf("progress total = %d, want %d", total, len(freqs))
		}
		calls = append(calls, done)
	}))
	if seq.Len() != len(freqs) {
		t.Fatalf("Len() = %d, want %d", seq.Len(), len(freqs))
	}

	for want := range freqs {
		i, frame, err := seq.Next()
		if err != nil {
			t.Fatalf("Next() #%d error: %v", want, err)
		}
		if i != want {
			t.Errorf("index = %d, want %d", i, want)
		}
		if frame.Bounds() != c.Bounds() {
			t.Errorf("frame %d bounds %v, want %v", i, frame.Bounds(), c.Bounds())
		}
	}

	for i := 0; i < 2; i++ {
		if _, _, err := seq.Next(); err != io.EOF {
			t.Errorf("after last frame: got %v, want io.EOF", err)
		}
	}
	if len(calls) != len(freqs) || calls[len(calls)-1] != len(freqs) {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestSequenceErrorIsSticky(t *testing.T) {
	// 700px logo at 1 Hz does not fit 600px
	c, err := NewCompositor(uniform(600, 600, white), uniform(8, 8, black), Options{Resize: true})
	if err != nil {
		t.Fatalf("NewCompositor() error: %v", err)
	}
	seq := NewSequence(c, []int{440, 1, 440})

	if _, _, err := seq.Next(); err != nil {
		t.Fatalf("first frame error: %v", err)
	}
	_, _, err = seq.Next()
	if !errors.Is(err, errs.ErrDimension) {
		t.Fatalf("second frame: got %v, want ErrDimension", err)
	}
	if _, _, again := seq.Next(); again != err {
		t.Errorf("error not sticky: got %v, want %v", again, err)
	}
}

func TestRender(t *testing.T) {
	c := newTestCompositor(t, Options{Glow: true})
	freqs := []int{5, 0, 90, 255, 256}

	var got []int
	err := Render(context.Background(), c, freqs, func(i int, frame *image.RGBA) error {
		got = append(got, i)
		return nil
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(got) != len(freqs) {
		t.Fatalf("yielded %d frames, want %d", len(got), len(freqs))
	}
	for i, idx := range got {
		if idx != i {
			t.Errorf("frame %d yielded as %d", i, idx)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	c := newTestCompositor(t, Options{})
	n := 0
	err := Render(context.Background(), c, nil, func(int, *image.RGBA) error {
		n++
		return nil
	})
	if err != nil || n != 0 {
		t.Errorf("Render(nil) = %v with %d frames, want nil and 0", err, n)
	}
}

func TestRenderStops(t *testing.T) {
	c := newTestCompositor(t, Options{})
	freqs := make([]int, 10)

	t.Run("yield error", func(t *testing.T) {
		stop := errors.New("sink full")
		n := 0
		err := Render(context.Background(), c, freqs, func(i int, _ *image.RGBA) error {
			n++
			if i == 2 {
				return stop
			}
			return nil
		})
		if !errors.Is(err, stop) {
			t.Errorf("got %v, want %v", err, stop)
		}
		if n != 3 {
			t.Errorf("yielded %d frames, want 3", n)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		n := 0
		err := Render(ctx, c, freqs, func(int, *image.RGBA) error {
			n++
			cancel()
			return nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
		if n != 1 {
			t.Errorf("yielded %d frames after cancel, want 1", n)
		}
	})
}

// TestRenderDeterministic renders the same input twice and compares bytes.
func TestRenderDeterministic(t *testing.T) {
	freqs := []int{1, 7, 60, 200, 440, 0}
	collect := func() [][]byte {
		c := newTestCompositor(t, Options{Glow: true, Resize: true, Overflow: config.OverflowClamp})
		var frames [][]byte
		err := Render(context.Background(), c, freqs, func(_ int, frame *image.RGBA) error {
			frames = append(frames, frame.Pix)
			return nil
		})
		if err != nil {
			t.Fatalf("Render() error: %v", err)
		}
		return frames
	}

	a, b := collect(), collect()
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Errorf("frame %d differs between runs", i)
		}
	}
}

func TestThumbnailIndex(t *testing.T) {
	tests := []struct {
		name  string
		freqs []int
		want  int
	}{
		{"empty", nil, 0},
		{"all zero", []int{0, 0, 0}, 0},
		{"lowest non-zero", []int{0, 440, 12, 0, 90}, 2},
		{"first of equals", []int{300, 5, 5}, 1},
		{"single", []int{1000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThumbnailIndex(tt.freqs); got != tt.want {
				t.Errorf("ThumbnailIndex(%v) = %d, want %d", tt.freqs, got, tt.want)
			}
		})
	}
}
