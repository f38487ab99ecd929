package encoder

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"golang.org/x/sync/errgroup"
)

// FrameSource yields frames in order and io.EOF after the last one.
type FrameSource interface {
	Next() (int, *image.RGBA, error)
	Len() int
}

// AssembleOptions tunes Assemble.
type AssembleOptions struct {
	FFmpegPath string
	QueueSize  int // Frames buffered between renderer and encoder

	// OnFrame is called from the encoding goroutine after each frame is
	// written. The frame must not be modified.
	OnFrame func(done, total int, frame *image.RGBA)
}

type indexedFrame struct {
	index int
	img   *image.RGBA
}

// Assemble renders every frame from frames and encodes it into a silent
// MJPEG video at videoPath. Rendering runs in its own goroutine, ahead of
// the encoder by at most QueueSize frames. It returns the number of frames
// written.
//
// Render failures are tagged with the render stage and encoder failures
// with the encode stage.
func Assemble(ctx context.Context, frames FrameSource, frameRate int, videoPath string, opts AssembleOptions) (int, error) {
	total := frames.Len()
	if total == 0 {
		return 0, errs.Wrap(errs.StageRender, fmt.Errorf("%w: no frames", errs.ErrInvalidConfig))
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = config.FrameQueueSize
	}

	w, err := NewVideoWriter(ctx, Config{
		FFmpegPath: opts.FFmpegPath,
		OutputPath: videoPath,
		FrameRate:  frameRate,
	})
	if err != nil {
		return 0, errs.Wrap(errs.StageEncode, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan indexedFrame, opts.QueueSize)

	// Producer: render frames in order
	g.Go(func() error {
		defer close(queue)
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			i, img, err := frames.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errs.Wrap(errs.StageRender, err)
			}
			select {
			case queue <- indexedFrame{index: i, img: img}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Consumer: encode frames as they arrive
	g.Go(func() error {
		for f := range queue {
			if err := w.WriteFrame(f.img); err != nil {
				return errs.Wrap(errs.StageEncode, fmt.Errorf("frame %d: %w", f.index, err))
			}
			if opts.OnFrame != nil {
				opts.OnFrame(w.Frames(), total, f.img)
			}
		}
		return nil
	})

	err = g.Wait()
	if cerr := w.Close(); err == nil && cerr != nil {
		err = errs.Wrap(errs.StageEncode, cerr)
	}
	return w.Frames(), err
}
