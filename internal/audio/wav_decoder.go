package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/linuxmatters/glowbeat/internal/errs"
)

// WAVDecoder implements AudioDecoder for WAV files
type WAVDecoder struct {
	decoder    *wav.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	numChans   int
}

// NewWAVDecoder creates a new WAV decoder
func NewWAVDecoder(filename string) (*WAVDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: invalid WAV file", errs.ErrUnsupportedFormat)
	}

	// Get format info without reading all samples
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to seek to PCM data: %w", errs.ErrUnsupportedFormat, err)
	}

	if decoder.NumChans == 0 || decoder.BitDepth == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: WAV header has %d channels at %d bits", errs.ErrUnsupportedFormat, decoder.NumChans, decoder.BitDepth)
	}

	return &WAVDecoder{
		decoder:    decoder,
		file:       f,
		sampleRate: int(decoder.SampleRate),
		bitDepth:   int(decoder.BitDepth),
		numChans:   int(decoder.NumChans),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *WAVDecoder) ReadChunk(numSamples int) ([]int16, error) {
	// Interleaved data needs numSamples × numChannels values
	intBuf := &audio.IntBuffer{
		Data: make([]int, numSamples*d.numChans),
		Format: &audio.Format{
			NumChannels: d.numChans,
			SampleRate:  d.sampleRate,
		},
	}

	n, err := d.decoder.PCMBuffer(intBuf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	if n == 0 {
		return nil, io.EOF
	}

	frames := n / d.numChans
	samples := make([]int16, frames)
	frame := make([]int, d.numChans)

	for i := 0; i < frames; i++ {
		for ch := 0; ch < d.numChans; ch++ {
			v := intBuf.Data[i*d.numChans+ch]
			if d.bitDepth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			frame[ch] = to16(v, d.bitDepth)
		}
		samples[i] = downmix(frame)
	}

	return samples, nil
}

// SampleRate returns the sample rate
func (d *WAVDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *WAVDecoder) NumChannels() int {
	return d.numChans
}

// Close closes the decoder and releases resources
func (d *WAVDecoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
