package encoder

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/linuxmatters/glowbeat/internal/errs"
)

// Config holds the video writer configuration
type Config struct {
	FFmpegPath string // ffmpeg binary, "ffmpeg" when empty
	OutputPath string // Path to the silent .avi
	FrameRate  int    // Frames per second
}

// VideoWriter streams RGBA frames into an ffmpeg process that encodes them
// as MJPEG in an AVI container. The frame size is fixed by the first frame.
type VideoWriter struct {
	config Config
	ctx    context.Context
	ffmpeg string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer

	bounds image.Rectangle
	frames int
	closed bool
}

// NewVideoWriter validates cfg and locates ffmpeg. The process itself is
// started by the first WriteFrame, once the dimensions are known.
func NewVideoWriter(ctx context.Context, cfg Config) (*VideoWriter, error) {
	if cfg.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: invalid framerate: %d", errs.ErrInvalidConfig, cfg.FrameRate)
	}
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", errs.ErrInvalidConfig)
	}
	bin, err := resolveFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found: %w", errs.ErrIO, err)
	}

	return &VideoWriter{
		config: cfg,
		ctx:    ctx,
		ffmpeg: bin,
		stderr: newTailBuffer(stderrLimit),
	}, nil
}

func (w *VideoWriter) args(width, height int) []string {
	return []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(w.config.FrameRate),
		"-i", "-",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-pix_fmt", "yuvj420p",
		"-f", "avi",
		w.config.OutputPath,
	}
}

func (w *VideoWriter) start(b image.Rectangle) error {
	cmd := exec.CommandContext(w.ctx, w.ffmpeg, w.args(b.Dx(), b.Dy())...)
	cmd.Stderr = w.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to open ffmpeg stdin: %w", errs.ErrIO, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start ffmpeg: %w", errs.ErrIO, err)
	}

	w.cmd = cmd
	w.stdin = stdin
	w.bounds = b
	return nil
}

// WriteFrame sends one frame to the encoder. Every frame must have the
// dimensions of the first.
func (w *VideoWriter) WriteFrame(img *image.RGBA) error {
	if w.closed {
		return fmt.Errorf("%w: write after close", errs.ErrIO)
	}

	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: empty frame", errs.ErrInconsistentFrameSize)
	}
	if w.cmd == nil {
		if err := w.start(b); err != nil {
			return err
		}
	} else if b.Dx() != w.bounds.Dx() || b.Dy() != w.bounds.Dy() {
		return fmt.Errorf("%w: frame %d is %dx%d, expected %dx%d",
			errs.ErrInconsistentFrameSize, w.frames, b.Dx(), b.Dy(), w.bounds.Dx(), w.bounds.Dy())
	}

	rowBytes := b.Dx() * 4
	if img.Stride == rowBytes {
		// Contiguous rows go out in one write
		off := img.PixOffset(b.Min.X, b.Min.Y)
		if _, err := w.stdin.Write(img.Pix[off : off+rowBytes*b.Dy()]); err != nil {
			return w.writeError(err)
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			if _, err := w.stdin.Write(img.Pix[off : off+rowBytes]); err != nil {
				return w.writeError(err)
			}
		}
	}

	w.frames++
	return nil
}

// writeError reports a failed pipe write together with why ffmpeg went away.
func (w *VideoWriter) writeError(err error) error {
	if stderr := w.stderr.String(); stderr != "" {
		return fmt.Errorf("%w: failed to write frame %d: %w\n%s", errs.ErrIO, w.frames, err, stderr)
	}
	return fmt.Errorf("%w: failed to write frame %d: %w", errs.ErrIO, w.frames, err)
}

// Frames returns the number of frames written so far.
func (w *VideoWriter) Frames() int {
	return w.frames
}

// Close finishes the file and waits for ffmpeg to exit. Closing a writer
// that never received a frame is a no-op.
func (w *VideoWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.cmd == nil {
		return nil
	}

	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return &errs.ExitError{
			Kind:     errs.ErrIO,
			Command:  "ffmpeg",
			ExitCode: exitCode(err),
			Stderr:   w.stderr.String(),
			Err:      err,
		}
	}
	return nil
}
