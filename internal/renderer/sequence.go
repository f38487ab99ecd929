package renderer

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Sequence lazily renders one frame per frequency, in order. It is finite
// and cannot be restarted.
type Sequence struct {
	c        *Compositor
	freqs    []int
	next     int
	err      error
	progress func(done, total int)
}

// SequenceOption configures a Sequence.
type SequenceOption func(*Sequence)

// WithFrameProgress is called after each rendered frame.
func WithFrameProgress(fn func(done, total int)) SequenceOption {
	return func(s *Sequence) { s.progress = fn }
}

// NewSequence returns a producer of len(freqs) frames.
func NewSequence(c *Compositor, freqs []int, opts ...SequenceOption) *Sequence {
	s := &Sequence{c: c, freqs: freqs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the total number of frames the sequence yields.
func (s *Sequence) Len() int {
	return len(s.freqs)
}

// Next renders the next frame. It returns io.EOF after the last frame;
// a compositing failure is returned on this and every later call.
func (s *Sequence) Next() (int, *image.RGBA, error) {
	if s.err != nil {
		return 0, nil, s.err
	}
	if s.next >= len(s.freqs) {
		return 0, nil, io.EOF
	}

	i := s.next
	frame, err := s.c.Composite(s.freqs[i])
	if err != nil {
		s.err = fmt.Errorf("frame %d: %w", i, err)
		return 0, nil, s.err
	}
	s.next++

	if s.progress != nil {
		s.progress(s.next, len(s.freqs))
	}
	return i, frame, nil
}

// Render drives a new sequence to completion, passing every frame to
// yield. It stops at the first error from compositing, yield or ctx.
func Render(ctx context.Context, c *Compositor, freqs []int, yield func(i int, frame *image.RGBA) error, opts ...SequenceOption) error {
	seq := NewSequence(c, freqs, opts...)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		i, frame, err := seq.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := yield(i, frame); err != nil {
			return err
		}
	}
}

// ThumbnailIndex returns the index of the lowest non-zero frequency, the
// frame with the largest logo. It returns 0 when every frequency is zero.
func ThumbnailIndex(freqs []int) int {
	best := -1
	for i, f := range freqs {
		if f > 0 && (best < 0 || f < freqs[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
