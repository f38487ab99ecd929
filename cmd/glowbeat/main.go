package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/glowbeat/internal/cli"
	"github.com/linuxmatters/glowbeat/internal/config"
	"github.com/linuxmatters/glowbeat/internal/errs"
	"github.com/linuxmatters/glowbeat/internal/observe"
	"github.com/linuxmatters/glowbeat/internal/pipeline"
	"github.com/linuxmatters/glowbeat/internal/ui"
	"github.com/mattn/go-isatty"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// cliArgs holds the command line. Zero values mean "not given", so a flag
// only overrides the config file when it is set.
type cliArgs struct {
	Audio  string `arg:"" name:"audio" help:"Input audio (WAV, MP3, FLAC or anything ffmpeg decodes)" optional:""`
	Output string `arg:"" name:"output" help:"Output Matroska video, or PNG with --snapshot" optional:""`

	Config     string `help:"YAML configuration file" type:"path"`
	Background string `help:"Background image" type:"path" group:"Assets"`
	Logo       string `help:"Logo image" type:"path" group:"Assets"`

	Ratio int    `help:"Windows per second, also the video frame rate (default 32)" group:"Analysis"`
	FFT   string `name:"fft" help:"FFT backend: dsp, gonum or gofft" group:"Analysis"`

	Glow     bool   `help:"Brighten the background by the dominant frequency (default)" xor:"glow" group:"Effects"`
	NoGlow   bool   `name:"no-glow" help:"Disable the glow effect" xor:"glow" group:"Effects"`
	Resize   bool   `help:"Grow the logo as the frequency falls (default)" xor:"resize" group:"Effects"`
	NoResize bool   `name:"no-resize" help:"Disable the resize effect" xor:"resize" group:"Effects"`
	Overflow string `help:"Policy for a logo larger than the background: reject or clamp" group:"Effects"`

	KeepTemp   bool          `help:"Keep the intermediate WAV and AVI files" group:"Output"`
	TempDir    string        `help:"Directory for intermediate files" type:"path" group:"Output"`
	MuxTimeout time.Duration `help:"Abort muxing after this long (default 10m)" group:"Output"`
	Thumbnail  string        `help:"Also write the poster frame as PNG to this path" type:"path" group:"Output"`
	Title      string        `help:"Title text drawn on the thumbnail or snapshot" group:"Output"`

	Snapshot bool          `help:"Write the single frame at --at to <output> as PNG instead of a video" group:"Output"`
	At       time.Duration `help:"Time of the --snapshot frame" default:"0s" group:"Output"`

	Plain     bool   `help:"Plain progress bars instead of the full screen UI" group:"Display"`
	NoTUI     bool   `name:"no-tui" help:"No progress display, log only" group:"Display"`
	NoPreview bool   `help:"Disable the video preview in the full screen UI" group:"Display"`
	LogLevel  string `help:"Log level: debug, info, warn or error" group:"Display"`
	Version   bool   `help:"Show version information"`
}

var CLI cliArgs

func main() {
	kong.Parse(&CLI,
		kong.Name("glowbeat"),
		kong.Description(cli.AppDescription),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if CLI.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	// Validate required arguments when not showing version
	if CLI.Audio == "" || CLI.Output == "" {
		cli.PrintError("<audio> and <output> are required")
		os.Exit(1)
	}

	cfg, err := loadConfig(&CLI)
	if err != nil {
		cli.PrintStageError(errs.StageConfig, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg)
	stop()
	os.Exit(code)
}

// loadConfig layers the optional YAML file and then explicit flags on top of
// the defaults.
func loadConfig(args *cliArgs) (*config.Config, error) {
	cfg := config.Default()
	if args.Config != "" {
		var err error
		if cfg, err = config.Load(args.Config); err != nil {
			return nil, err
		}
	}
	args.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *cliArgs) apply(cfg *config.Config) {
	if a.Background != "" {
		cfg.Assets.Background = a.Background
	}
	if a.Logo != "" {
		cfg.Assets.Logo = a.Logo
	}
	if a.Ratio != 0 {
		cfg.Ratio = a.Ratio
	}
	switch {
	case a.Glow:
		cfg.Effects.Glow = true
	case a.NoGlow:
		cfg.Effects.Glow = false
	}
	switch {
	case a.Resize:
		cfg.Effects.Resize = true
	case a.NoResize:
		cfg.Effects.Resize = false
	}
	if a.Overflow != "" {
		cfg.Effects.Overflow = a.Overflow
	}
	if a.FFT != "" {
		cfg.Analysis.FFT = a.FFT
	}
	if a.KeepTemp {
		cfg.Output.KeepTemp = true
	}
	if a.TempDir != "" {
		cfg.Output.TempDir = a.TempDir
	}
	if a.MuxTimeout != 0 {
		cfg.Output.MuxTimeout = a.MuxTimeout
	}
	if a.Thumbnail != "" {
		cfg.Output.Thumbnail = a.Thumbnail
	}
	if a.Title != "" {
		cfg.Output.Title = a.Title
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
}

// display selects how progress is shown.
type display int

const (
	displayTUI display = iota
	displayPlain
	displayNone
)

// chooseDisplay falls back to log-only output when stdout is not a terminal.
func chooseDisplay(noTUI, plain, snapshot, terminal bool) display {
	switch {
	case noTUI || snapshot || !terminal:
		return displayNone
	case plain:
		return displayPlain
	default:
		return displayTUI
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger writes text logs to w at level.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg *config.Config) int {
	mode := chooseDisplay(CLI.NoTUI, CLI.Plain, CLI.Snapshot, isTerminal(os.Stdout))

	// The full screen UI owns the terminal
	logOut := io.Writer(os.Stderr)
	if mode == displayTUI {
		logOut = io.Discard
	}
	logger := newLogger(logOut, cfg.SlogLevel())
	slog.SetDefault(logger)

	if CLI.Snapshot {
		return runSnapshot(ctx, cfg, logger)
	}

	rec, err := observe.NewRecorder(version)
	if err != nil {
		cli.PrintError(fmt.Sprintf("creating metrics: %v", err))
		return 1
	}
	defer func() {
		if err := rec.Shutdown(context.Background()); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}()

	opts := []pipeline.Option{
		pipeline.WithMetrics(rec.Metrics),
		pipeline.WithLogger(logger),
	}

	var res *pipeline.Result
	switch mode {
	case displayTUI:
		res, err = runWithTUI(ctx, cfg, rec, opts)
	case displayPlain:
		obs := ui.NewPlainObserver(os.Stdout)
		res, err = pipeline.Run(ctx, cfg, CLI.Audio, CLI.Output, append(opts, pipeline.WithObserver(obs))...)
		obs.Wait()
	default:
		res, err = pipeline.Run(ctx, cfg, CLI.Audio, CLI.Output, opts...)
	}
	if err != nil {
		printFailure(err)
		return 1
	}

	if mode != displayTUI {
		profile, err := rec.Profile(ctx)
		if err != nil {
			logger.Warn("failed to collect metrics", "error", err)
		}
		printSummary(res, profile)
	}
	if res.TempDir != "" {
		cli.PrintInfo("Temporary files", res.TempDir)
	}
	cli.PrintSuccess(fmt.Sprintf("Done! You can find your file in %s", res.OutputPath))
	return 0
}

// runWithTUI runs the pipeline in the background while the Bubbletea program
// owns the terminal. Quitting the UI early cancels the render.
func runWithTUI(ctx context.Context, cfg *config.Config, rec *observe.Recorder, opts []pipeline.Option) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(cfg.Ratio, CLI.NoPreview)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	obs := ui.NewProgramObserver(p)

	var res *pipeline.Result
	var runErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		res, runErr = pipeline.Run(ctx, cfg, CLI.Audio, CLI.Output, append(opts, pipeline.WithObserver(obs))...)

		var profile *observe.Profile
		if runErr == nil {
			if pr, err := rec.Profile(ctx); err == nil {
				profile = &pr
			}
		}
		obs.Finish(profile, runErr)
	}()

	_, uiErr := p.Run()
	if uiErr != nil || model.Cancelled() {
		cancel()
	}
	<-done

	if runErr != nil {
		return nil, runErr
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return res, fmt.Errorf("running UI: %w", uiErr)
	}
	return res, nil
}

func runSnapshot(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	index, err := pipeline.Snapshot(ctx, cfg, CLI.Audio, CLI.Output, CLI.At, pipeline.WithLogger(logger))
	if err != nil {
		printFailure(err)
		return 1
	}
	cli.PrintSuccess(fmt.Sprintf("Done! Frame %d written to %s", index, CLI.Output))
	return 0
}

// printFailure names the failed stage when the error carries one.
func printFailure(err error) {
	var se *errs.StageError
	if errors.As(err, &se) {
		cli.PrintStageError(se.Stage, se.Err)
		return
	}
	cli.PrintError(err.Error())
}

func printSummary(res *pipeline.Result, profile observe.Profile) {
	videoDuration := time.Duration(res.Frames) * time.Second / time.Duration(max(res.FrameRate, 1))
	var speed float64
	if res.Elapsed > 0 {
		speed = float64(videoDuration) / float64(res.Elapsed)
	}

	rows := []cli.SummaryRow{
		{Key: "Output", Value: res.OutputPath},
		{Key: "Duration", Value: cli.FormatDuration(res.Elapsed)},
		{Key: "Speed", Value: cli.FormatSpeed(speed)},
		{Key: "File Size", Value: cli.FormatBytes(res.FileSize)},
		{},
		{Key: "Video", Value: fmt.Sprintf("%d frames at %d fps, %dx%d", res.Frames, res.FrameRate, res.Width, res.Height)},
		{Key: "Audio", Value: fmt.Sprintf("%s at %d Hz, %d windows", cli.FormatDuration(res.AudioDuration), res.SampleRate, res.Windows)},
	}
	cli.PrintSummary("✓ Render Complete!", rows)
	if res.ThumbnailPath != "" {
		cli.PrintInfo("Thumbnail", res.ThumbnailPath)
	}

	if len(profile.Stages) == 0 {
		return
	}
	cli.PrintSection("Performance Breakdown")
	for _, st := range profile.Stages {
		cli.PrintInfo("  "+st.Stage, cli.FormatDuration(st.Duration))
	}
	if profile.FrameMean > 0 {
		cli.PrintInfo("  per frame", cli.FormatDuration(profile.FrameMean))
	}
}
