package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// FFmpegDecoder implements AudioDecoder by running the ffmpeg CLI, which
// decodes any format it supports to mono signed 16-bit PCM on stdout.
type FFmpegDecoder struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *bytes.Buffer
	sampleRate int
	channels   int
	buf        []byte
	done       bool
}

// NewFFmpegDecoder probes filename and starts ffmpeg decoding it.
func NewFFmpegDecoder(ctx context.Context, ffmpegPath, filename string) (*FFmpegDecoder, error) {
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	md, err := GetAudioMetadata(ctx, ffmpegPath, filename)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-v", "error",
		"-i", filename,
		"-vn",
		"-ac", "1",
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"-",
	)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &FFmpegDecoder{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		sampleRate: md.SampleRate,
		channels:   md.Channels,
	}, nil
}

// ReadChunk reads the next chunk of samples
func (d *FFmpegDecoder) ReadChunk(numSamples int) ([]int16, error) {
	if d.done {
		return nil, io.EOF
	}
	if cap(d.buf) < numSamples*2 {
		d.buf = make([]byte, numSamples*2)
	}
	buf := d.buf[:numSamples*2]

	n, err := io.ReadFull(d.stdout, buf)
	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		d.done = true
		if werr := d.wait(); werr != nil {
			return nil, werr
		}
		return samples, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}
	return samples, nil
}

func (d *FFmpegDecoder) wait() error {
	if d.cmd == nil {
		return nil
	}
	cmd := d.cmd
	d.cmd = nil
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(d.stderr.String()))
	}
	return nil
}

// SampleRate returns the sample rate
func (d *FFmpegDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the channel count of the source stream
func (d *FFmpegDecoder) NumChannels() int {
	return d.channels
}

// Close stops ffmpeg if it is still running
func (d *FFmpegDecoder) Close() error {
	if d.cmd == nil {
		return nil
	}
	d.stdout.Close()
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
	d.cmd = nil
	return nil
}
