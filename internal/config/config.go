package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/linuxmatters/glowbeat/internal/errs"
	"gopkg.in/yaml.v3"
)

// Compositor settings
const (
	BaseLogoSize    = 300 // Logo is resized to a square of this side before any effect
	MaskThreshold   = 150 // Logo pixels brighter than this let the background through
	ResizeNumerator = 200 // Logo grows by 2*(ResizeNumerator/freq) pixels
)

// Thumbnail appearance
const (
	// Brand yellow #F8B31D for title text
	TextColorR = 248
	TextColorG = 179
	TextColorB = 29

	ThumbnailMargin   = 30  // Margin in pixels from the edges for title text
	ThumbnailFontSize = 150 // Largest font size tried when fitting the title
)

// Analysis settings
const (
	DefaultRatio = 32 // Windows per second, also the video frame rate
)

// Output settings
const (
	DefaultMuxTimeout = 10 * time.Minute
	FrameQueueSize    = 8 // Rendered frames buffered between renderer and encoder
	PartialSuffix     = ".partial"
)

// Overflow policies for a logo that does not fit the background.
const (
	OverflowReject = "reject"
	OverflowClamp  = "clamp"
)

// FFT backends.
const (
	FFTDSP   = "dsp"
	FFTGonum = "gonum"
	FFTGofft = "gofft"
)

var (
	validOverflow  = []string{OverflowReject, OverflowClamp}
	validFFT       = []string{FFTDSP, FFTGonum, FFTGofft}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config is the complete set of options for one render.
type Config struct {
	// Ratio is the number of analysis windows per second of audio. It is
	// also the frame rate of the encoded video.
	Ratio int `yaml:"ratio"`

	Assets   AssetsConfig   `yaml:"assets"`
	Effects  EffectsConfig  `yaml:"effects"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`

	LogLevel string `yaml:"log_level"`
}

// AssetsConfig points at the images used for every frame.
type AssetsConfig struct {
	Background string `yaml:"background"`
	Logo       string `yaml:"logo"`
}

// EffectsConfig toggles the per-frame effects.
type EffectsConfig struct {
	Glow     bool   `yaml:"glow"`
	Resize   bool   `yaml:"resize"`
	Overflow string `yaml:"overflow"`
}

// AnalysisConfig selects the FFT implementation.
type AnalysisConfig struct {
	FFT string `yaml:"fft"`
}

// OutputConfig controls intermediate files and the mux step.
type OutputConfig struct {
	KeepTemp   bool          `yaml:"keep_temp"`
	TempDir    string        `yaml:"temp_dir"`
	MuxTimeout time.Duration `yaml:"mux_timeout"`
	FFmpeg     string        `yaml:"ffmpeg"`
	Thumbnail  string        `yaml:"thumbnail"`
	Title      string        `yaml:"title"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Ratio: DefaultRatio,
		Effects: EffectsConfig{
			Glow:     true,
			Resize:   true,
			Overflow: OverflowReject,
		},
		Analysis: AnalysisConfig{FFT: FFTDSP},
		Output: OutputConfig{
			MuxTimeout: DefaultMuxTimeout,
			FFmpeg:     "ffmpeg",
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of Default. Unknown keys are
// rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w: %w", errs.ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found; every
// entry matches errs.ErrInvalidConfig.
func Validate(cfg *Config) error {
	var problems []error

	if cfg.Ratio <= 0 {
		problems = append(problems, fmt.Errorf("ratio %d must be positive", cfg.Ratio))
	}
	if !slices.Contains(validOverflow, cfg.Effects.Overflow) {
		problems = append(problems, fmt.Errorf("effects.overflow %q is invalid; valid values: reject, clamp", cfg.Effects.Overflow))
	}
	if !slices.Contains(validFFT, cfg.Analysis.FFT) {
		problems = append(problems, fmt.Errorf("analysis.fft %q is invalid; valid values: dsp, gonum, gofft", cfg.Analysis.FFT))
	}
	if cfg.Output.MuxTimeout < 0 {
		problems = append(problems, fmt.Errorf("output.mux_timeout %s must not be negative", cfg.Output.MuxTimeout))
	}
	if cfg.Output.FFmpeg == "" {
		problems = append(problems, errors.New("output.ffmpeg must name the ffmpeg binary"))
	}
	if cfg.LogLevel != "" && !slices.Contains(validLogLevels, cfg.LogLevel) {
		problems = append(problems, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if len(problems) == 0 {
		return nil
	}
	for i, p := range problems {
		problems[i] = fmt.Errorf("%w: %w", errs.ErrInvalidConfig, p)
	}
	return errors.Join(problems...)
}

// RequireAssets reports missing background or logo paths.
func (c *Config) RequireAssets() error {
	var problems []error
	if c.Assets.Background == "" {
		problems = append(problems, fmt.Errorf("%w: assets.background is required", errs.ErrInvalidConfig))
	}
	if c.Assets.Logo == "" {
		problems = append(problems, fmt.Errorf("%w: assets.logo is required", errs.ErrInvalidConfig))
	}
	return errors.Join(problems...)
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
