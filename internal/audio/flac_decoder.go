package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/linuxmatters/glowbeat/internal/errs"
	"github.com/mewkiz/flac"
)

// FLACDecoder implements AudioDecoder for FLAC files
type FLACDecoder struct {
	stream      *flac.Stream
	file        *os.File
	sampleRate  int
	numChannels int
	pending     []int16 // decoded samples not yet returned
	eof         bool
}

// NewFLACDecoder creates a new FLAC decoder
func NewFLACDecoder(filename string) (*FLACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create FLAC decoder: %w", errs.ErrUnsupportedFormat, err)
	}

	return &FLACDecoder{
		stream:      stream,
		file:        f,
		sampleRate:  int(stream.Info.SampleRate),
		numChannels: int(stream.Info.NChannels),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *FLACDecoder) ReadChunk(numSamples int) ([]int16, error) {
	for len(d.pending) < numSamples && !d.eof {
		fr, err := d.stream.ParseNext()
		if err == io.EOF {
			d.eof = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		// One subframe per channel
		bits := int(fr.BitsPerSample)
		n := len(fr.Subframes[0].Samples)
		frame := make([]int, len(fr.Subframes))
		for i := 0; i < n; i++ {
			for ch, sub := range fr.Subframes {
				frame[ch] = to16(int(sub.Samples[i]), bits)
			}
			d.pending = append(d.pending, downmix(frame))
		}
	}

	if len(d.pending) == 0 {
		return nil, io.EOF
	}

	take := min(numSamples, len(d.pending))
	out := make([]int16, take)
	copy(out, d.pending)
	d.pending = d.pending[take:]
	return out, nil
}

// SampleRate returns the sample rate
func (d *FLACDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *FLACDecoder) NumChannels() int {
	return d.numChannels
}

// Close closes the decoder and releases resources
func (d *FLACDecoder) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	if d.file != nil {
		// The stream may already have closed the file
		if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
	}
	return nil
}
