package encoder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

// MuxConfig describes one mux invocation.
type MuxConfig struct {
	FFmpegPath string
	AudioPath  string        // Mono WAV
	VideoPath  string        // Silent MJPEG AVI from Assemble
	OutputPath string        // Matroska output, whatever its extension
	FrameRate  int           // Input rate of the video stream
	Timeout    time.Duration // Zero means no limit
}

// muxArgs builds the ffmpeg argument list. The video stream is copied and
// the audio re-encoded to FLAC, resampled to follow the video timeline.
func muxArgs(cfg MuxConfig) []string {
	return []string{
		"-y",
		"-v", "error",
		"-i", cfg.AudioPath,
		"-r", strconv.Itoa(cfg.FrameRate),
		"-i", cfg.VideoPath,
		"-filter:a", "aresample=async=1",
		"-c:a", "flac",
		"-c:v", "copy",
		"-f", "matroska",
		cfg.OutputPath,
	}
}

// Mux combines the audio and video into cfg.OutputPath. Any failure,
// including a timeout, is an *errs.ExitError of kind errs.ErrMuxFailure.
func Mux(ctx context.Context, cfg MuxConfig) error {
	if cfg.FrameRate <= 0 {
		return fmt.Errorf("%w: invalid framerate: %d", errs.ErrInvalidConfig, cfg.FrameRate)
	}
	if cfg.AudioPath == "" || cfg.VideoPath == "" || cfg.OutputPath == "" {
		return fmt.Errorf("%w: audio, video and output paths are required", errs.ErrInvalidConfig)
	}

	bin := cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	stderr := newTailBuffer(stderrLimit)
	cmd := exec.CommandContext(ctx, bin, muxArgs(cfg)...)
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// A killed process reports a signal; the context says why
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", cfg.Timeout, err)
	}
	return &errs.ExitError{
		Kind:     errs.ErrMuxFailure,
		Command:  "ffmpeg",
		ExitCode: exitCode(err),
		Stderr:   stderr.String(),
		Err:      err,
	}
}
