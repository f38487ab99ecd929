package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

// chunkSize is the number of mono samples requested per ReadChunk call.
const chunkSize = 16384

// AudioDecoder defines the interface for all audio format decoders
type AudioDecoder interface {
	// ReadChunk reads up to numSamples mono samples, downmixing
	// multi-channel input by averaging. Returns io.EOF when exhausted.
	ReadChunk(numSamples int) ([]int16, error)

	// SampleRate returns the audio sample rate in Hz
	SampleRate() int

	// NumChannels returns the number of channels in the source
	NumChannels() int

	// Close closes the decoder and releases resources
	Close() error
}

type decodeOptions struct {
	ffmpegPath string
}

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

// WithFFmpeg sets the ffmpeg binary used for formats without a native
// decoder. An empty path disables the fallback.
func WithFFmpeg(path string) DecodeOption {
	return func(o *decodeOptions) { o.ffmpegPath = path }
}

// NewDecoder opens filename with the native decoder for its extension.
func NewDecoder(filename string) (AudioDecoder, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return NewWAVDecoder(filename)
	case ".mp3":
		return NewMP3Decoder(filename)
	case ".flac":
		return NewFLACDecoder(filename)
	default:
		return nil, fmt.Errorf("%w: no native decoder for %q", errs.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Decode reads the whole of path into a mono 16-bit sample buffer at the
// file's native sample rate. Files without a native decoder, or that the
// native decoder rejects, are decoded through ffmpeg when it is available.
func Decode(ctx context.Context, path string, opts ...DecodeOption) ([]int16, int, error) {
	o := decodeOptions{ffmpegPath: "ffmpeg"}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %w", errs.ErrIO, err)
		}
		return nil, 0, fmt.Errorf("%w: failed to stat audio: %w", errs.ErrIO, err)
	}

	dec, err := NewDecoder(path)
	if err == nil {
		samples, rate, readErr := readAll(ctx, dec)
		if readErr == nil {
			return samples, rate, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		err = readErr
	}

	if o.ffmpegPath == "" {
		return nil, 0, unsupported(path, err)
	}
	slog.Debug("native decode failed, trying ffmpeg", "path", path, "error", err)

	fdec, ferr := NewFFmpegDecoder(ctx, o.ffmpegPath, path)
	if ferr != nil {
		return nil, 0, unsupported(path, errors.Join(err, ferr))
	}
	samples, rate, ferr := readAll(ctx, fdec)
	if ferr != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, unsupported(path, errors.Join(err, ferr))
	}
	return samples, rate, nil
}

func unsupported(path string, cause error) error {
	if errors.Is(cause, errs.ErrUnsupportedFormat) {
		return fmt.Errorf("failed to decode %s: %w", path, cause)
	}
	return fmt.Errorf("failed to decode %s: %w: %w", path, errs.ErrUnsupportedFormat, cause)
}

// readAll drains dec and closes it. An empty stream is an error.
func readAll(ctx context.Context, dec AudioDecoder) ([]int16, int, error) {
	defer dec.Close()

	var samples []int16
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		chunk, err := dec.ReadChunk(chunkSize)
		samples = append(samples, chunk...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}

	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("%w: no audio samples decoded", errs.ErrUnsupportedFormat)
	}
	if dec.SampleRate() <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid sample rate %d", errs.ErrUnsupportedFormat, dec.SampleRate())
	}
	return samples, dec.SampleRate(), nil
}

// downmix averages one interleaved frame of channel values, rounding
// toward negative infinity, and clamps to the int16 range.
func downmix(frame []int) int16 {
	if len(frame) == 1 {
		return clamp16(frame[0])
	}
	sum := 0
	for _, v := range frame {
		sum += v
	}
	n := len(frame)
	q := sum / n
	if sum%n != 0 && sum < 0 {
		q--
	}
	return clamp16(q)
}

func clamp16(v int) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// to16 rescales a signed sample of the given bit depth to 16 bits.
func to16(v, bitDepth int) int {
	switch {
	case bitDepth == 16:
		return v
	case bitDepth > 16:
		return v >> (bitDepth - 16)
	default:
		return v << (16 - bitDepth)
	}
}
