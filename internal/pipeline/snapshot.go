package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linuxmatters/glowbeat/internal/audio"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"github.com/linuxmatters/glowbeat/internal/renderer"
)

// SnapshotIndex returns the frame shown at time at, clamped to the last
// of frames frames.
func SnapshotIndex(at time.Duration, ratio, frames int) int {
	if frames <= 0 || at <= 0 {
		return 0
	}
	i := int(at.Seconds() * float64(ratio))
	return min(i, frames-1)
}

// Snapshot renders the single frame shown at time at and writes it to
// outPath as a PNG, without invoking the encoder. Only the window for that
// frame is analysed. It returns the frame index.
func Snapshot(ctx context.Context, cfg *config.Config, audioPath, outPath string, at time.Duration, opts ...Option) (int, error) {
	r := newRunner(cfg, opts)

	if err := r.stage(ctx, errs.StageConfig, func() error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		return cfg.RequireAssets()
	}); err != nil {
		return 0, err
	}

	var samples []int16
	var rate int
	if err := r.stage(ctx, errs.StageDecode, func() error {
		var err error
		samples, rate, err = audio.Decode(ctx, audioPath, audio.WithFFmpeg(cfg.Output.FFmpeg))
		return err
	}); err != nil {
		return 0, err
	}

	var index, freq int
	if err := r.stage(ctx, errs.StageAnalyse, func() error {
		w, err := audio.WindowSize(rate, cfg.Ratio)
		if err != nil {
			return err
		}
		index = SnapshotIndex(at, cfg.Ratio, audio.NumWindows(len(samples), w))
		start := index * w
		end := min(start+w, len(samples))

		// A single window analyses exactly like its place in the full buffer
		freqs, err := audio.Analyze(samples[start:end], rate, cfg.Ratio, audio.WithBackend(cfg.Analysis.FFT))
		if err != nil {
			return err
		}
		freq = freqs[0]
		return nil
	}); err != nil {
		return 0, err
	}

	c, err := r.load(ctx)
	if err != nil {
		return 0, err
	}

	if err := r.stage(ctx, errs.StageRender, func() error {
		frame, err := c.Composite(freq)
		if err != nil {
			return fmt.Errorf("frame %d: %w", index, err)
		}
		return renderer.GenerateThumbnail(outPath, frame, cfg.Output.Title)
	}); err != nil {
		return 0, err
	}

	r.log.Info("wrote snapshot", "path", outPath, "frame", index, "freq_hz", freq)
	return index, nil
}
