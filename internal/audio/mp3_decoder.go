package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/linuxmatters/glowbeat/internal/errs"
)

// MP3Decoder implements AudioDecoder for MP3 files
type MP3Decoder struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	pending    []byte // partial stereo frame left over from the last read
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create MP3 decoder: %w", errs.ErrUnsupportedFormat, err)
	}

	return &MP3Decoder{
		decoder:    decoder,
		file:       f,
		sampleRate: decoder.SampleRate(),
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *MP3Decoder) ReadChunk(numSamples int) ([]int16, error) {
	// go-mp3 always outputs interleaved 16-bit little-endian stereo,
	// 4 bytes per stereo frame
	buf := make([]byte, numSamples*4)
	copy(buf, d.pending)

	n, err := io.ReadFull(d.decoder, buf[len(d.pending):])
	n += len(d.pending)
	d.pending = d.pending[:0]
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read MP3 data: %w", err)
	}

	frames := n / 4
	if rem := n % 4; rem != 0 {
		d.pending = append(d.pending, buf[frames*4:n]...)
	}
	if frames == 0 {
		return nil, io.EOF
	}

	samples := make([]int16, frames)
	frame := make([]int, 2)
	for i := 0; i < frames; i++ {
		frame[0] = int(int16(uint16(buf[i*4]) | uint16(buf[i*4+1])<<8))
		frame[1] = int(int16(uint16(buf[i*4+2]) | uint16(buf[i*4+3])<<8))
		samples[i] = downmix(frame)
	}

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return samples, io.EOF
	}
	return samples, nil
}

// SampleRate returns the sample rate
func (d *MP3Decoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns 2; go-mp3 always decodes to stereo
func (d *MP3Decoder) NumChannels() int {
	return 2
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
