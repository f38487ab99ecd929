// Package pipeline runs a complete render: decode the audio, find the
// dominant frequency of every window, composite one frame per window,
// encode the frames and mux them with the audio.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/linuxmatters/glowbeat/internal/audio"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/encoder"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"github.com/linuxmatters/glowbeat/internal/observe"
	"github.com/linuxmatters/glowbeat/internal/renderer"
)

// Intermediate file names inside the run's temporary directory.
const (
	tempAudioName = "audio.wav"
	tempVideoName = "video.avi"
)

// Option configures a run.
type Option func(*runner)

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(r *runner) { r.observer = o }
}

// WithMetrics records stage timings and counters into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) { r.log = l }
}

type runner struct {
	cfg      *config.Config
	observer Observer
	metrics  *observe.Metrics
	log      *slog.Logger
}

func newRunner(cfg *config.Config, opts []Option) *runner {
	r := &runner{cfg: cfg, observer: nopObserver{}, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stage runs fn, records its duration and tags any error with name.
func (r *runner) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.metrics != nil {
		r.metrics.RecordStage(ctx, name, time.Since(start))
	}
	r.log.Debug("stage finished", "stage", name, "elapsed", time.Since(start), "error", err)
	return errs.Wrap(name, err)
}

// Run renders audioPath into the Matroska file outPath. The file is written
// as outPath+".partial" and renamed once muxing succeeds, so outPath never
// holds a partial result. Every error names the stage that failed.
func Run(ctx context.Context, cfg *config.Config, audioPath, outPath string, opts ...Option) (*Result, error) {
	r := newRunner(cfg, opts)
	start := time.Now()

	if err := r.stage(ctx, errs.StageConfig, func() error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if err := cfg.RequireAssets(); err != nil {
			return err
		}
		if outPath == "" {
			return fmt.Errorf("%w: output path is required", errs.ErrInvalidConfig)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var tmp string
	if err := r.stage(ctx, errs.StageOutput, func() error {
		var err error
		tmp, err = os.MkdirTemp(cfg.Output.TempDir, "glowbeat-")
		if err != nil {
			return fmt.Errorf("%w: failed to create temp dir: %w", errs.ErrIO, err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	defer func() {
		if cfg.Output.KeepTemp {
			r.log.Info("keeping temporary files", "dir", tmp)
			return
		}
		if err := os.RemoveAll(tmp); err != nil {
			r.log.Warn("failed to remove temporary files", "dir", tmp, "error", err)
		}
	}()

	res := &Result{FrameRate: cfg.Ratio}
	if cfg.Output.KeepTemp {
		res.TempDir = tmp
	}
	wavPath := filepath.Join(tmp, tempAudioName)
	videoPath := filepath.Join(tmp, tempVideoName)

	// Decode and keep a mono copy for the final mux
	var samples []int16
	r.observer.PhaseStarted(PhaseDecode, 0)
	if err := r.stage(ctx, errs.StageDecode, func() error {
		var err error
		samples, res.SampleRate, err = audio.Decode(ctx, audioPath, audio.WithFFmpeg(cfg.Output.FFmpeg))
		if err != nil {
			return err
		}
		return audio.WriteWAV(wavPath, samples, res.SampleRate)
	}); err != nil {
		return nil, err
	}
	res.Samples = len(samples)
	res.AudioDuration = time.Duration(float64(len(samples)) / float64(res.SampleRate) * float64(time.Second))
	r.log.Info("decoded audio", "path", audioPath, "samples", len(samples), "sample_rate", res.SampleRate, "duration", res.AudioDuration)

	freqs, err := r.analyse(ctx, samples, res.SampleRate)
	if err != nil {
		return nil, err
	}
	res.Windows = len(freqs)
	if ao, ok := r.observer.(AnalysisObserver); ok {
		ao.Analysed(freqs)
	}

	c, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	b := c.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	r.observer.PhaseStarted(PhaseRender, len(freqs))
	if err := r.stage(ctx, errs.StageRender, func() error {
		src := &timedSource{seq: renderer.NewSequence(c, freqs), ctx: ctx, metrics: r.metrics}
		n, err := encoder.Assemble(ctx, src, cfg.Ratio, videoPath, encoder.AssembleOptions{
			FFmpegPath: cfg.Output.FFmpeg,
			QueueSize:  config.FrameQueueSize,
			OnFrame: func(done, total int, frame *image.RGBA) {
				if r.metrics != nil {
					r.metrics.AddFrames(ctx, 1)
				}
				if fo, ok := r.observer.(FrameObserver); ok {
					fo.FrameRendered(done-1, frame)
				}
				r.observer.Progress(PhaseRender, done, total)
			},
		})
		res.Frames = n
		return err
	}); err != nil {
		return nil, err
	}
	r.log.Info("encoded video", "frames", res.Frames, "size", fmt.Sprintf("%dx%d", res.Width, res.Height), "fps", cfg.Ratio)

	if cfg.Output.Thumbnail != "" {
		if err := r.stage(ctx, errs.StageOutput, func() error {
			return r.thumbnail(ctx, c, freqs, cfg.Output.Thumbnail)
		}); err != nil {
			return nil, err
		}
		res.ThumbnailPath = cfg.Output.Thumbnail
	}

	// The poster belongs to the video: drop it if the video never lands
	committed := false
	defer func() {
		if committed || res.ThumbnailPath == "" {
			return
		}
		if err := os.Remove(res.ThumbnailPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("failed to remove thumbnail", "path", res.ThumbnailPath, "error", err)
		}
	}()

	partial := outPath + config.PartialSuffix
	r.observer.PhaseStarted(PhaseMux, 0)
	if err := r.stage(ctx, errs.StageMux, func() error {
		return encoder.Mux(ctx, encoder.MuxConfig{
			FFmpegPath: cfg.Output.FFmpeg,
			AudioPath:  wavPath,
			VideoPath:  videoPath,
			OutputPath: partial,
			FrameRate:  cfg.Ratio,
			Timeout:    cfg.Output.MuxTimeout,
		})
	}); err != nil {
		if rmErr := os.Remove(partial); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.log.Warn("failed to remove partial output", "path", partial, "error", rmErr)
		}
		return nil, err
	}

	if err := r.stage(ctx, errs.StageOutput, func() error {
		if err := os.Rename(partial, outPath); err != nil {
			os.Remove(partial)
			return fmt.Errorf("%w: failed to move output into place: %w", errs.ErrIO, err)
		}
		info, err := os.Stat(outPath)
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrIO, err)
		}
		res.FileSize = info.Size()
		return nil
	}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.AddOutputBytes(ctx, "video", res.FileSize)
	}

	committed = true
	res.OutputPath = outPath
	res.Elapsed = time.Since(start)
	r.observer.Completed(res)
	return res, nil
}

func (r *runner) analyse(ctx context.Context, samples []int16, sampleRate int) ([]int, error) {
	var freqs []int
	err := r.stage(ctx, errs.StageAnalyse, func() error {
		w, err := audio.WindowSize(sampleRate, r.cfg.Ratio)
		if err != nil {
			return err
		}
		total := audio.NumWindows(len(samples), w)
		r.observer.PhaseStarted(PhaseAnalyse, total)

		freqs, err = audio.Analyze(samples, sampleRate, r.cfg.Ratio,
			audio.WithBackend(r.cfg.Analysis.FFT),
			audio.WithContext(ctx),
			audio.WithProgress(func(done, total int) {
				r.observer.Progress(PhaseAnalyse, done, total)
			}),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.AddWindows(ctx, len(freqs))
	}
	r.log.Info("analysed audio", "windows", len(freqs), "backend", r.cfg.Analysis.FFT)
	return freqs, nil
}

func (r *runner) load(ctx context.Context) (*renderer.Compositor, error) {
	var c *renderer.Compositor
	err := r.stage(ctx, errs.StageLoad, func() error {
		bg, err := renderer.LoadImage(r.cfg.Assets.Background)
		if err != nil {
			return err
		}
		logo, err := renderer.LoadImage(r.cfg.Assets.Logo)
		if err != nil {
			return err
		}
		c, err = renderer.NewCompositor(bg, logo, renderer.Options{
			Glow:     r.cfg.Effects.Glow,
			Resize:   r.cfg.Effects.Resize,
			Overflow: r.cfg.Effects.Overflow,
		})
		return err
	})
	return c, err
}

// thumbnail writes the frame with the largest logo as a PNG poster.
func (r *runner) thumbnail(ctx context.Context, c *renderer.Compositor, freqs []int, path string) error {
	if len(freqs) == 0 {
		return nil
	}
	i := renderer.ThumbnailIndex(freqs)
	frame, err := c.Composite(freqs[i])
	if err != nil {
		return fmt.Errorf("frame %d: %w", i, err)
	}
	if err := renderer.GenerateThumbnail(path, frame, r.cfg.Output.Title); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil && r.metrics != nil {
		r.metrics.AddOutputBytes(ctx, "thumbnail", info.Size())
	}
	r.log.Info("wrote thumbnail", "path", path, "frame", i, "freq_hz", freqs[i])
	return nil
}

// timedSource records the compositing time of every frame.
type timedSource struct {
	seq     *renderer.Sequence
	ctx     context.Context
	metrics *observe.Metrics
}

func (s *timedSource) Len() int { return s.seq.Len() }

func (s *timedSource) Next() (int, *image.RGBA, error) {
	start := time.Now()
	i, frame, err := s.seq.Next()
	if err == nil && s.metrics != nil {
		s.metrics.RecordFrame(s.ctx, time.Since(start))
	}
	return i, frame, err
}
