// Package observe records per-stage timings and throughput counters for a
// render through the OpenTelemetry Metrics API.
//
// Tests and the CLI build Metrics with [NewMetrics] from their own
// [metric.MeterProvider]; the CLI uses a [Recorder] so it can print a
// performance profile once the render completes.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all glowbeat metrics.
const meterName = "github.com/linuxmatters/glowbeat"

// Metric names.
const (
	StageDurationName = "glowbeat.stage.duration"
	FrameDurationName = "glowbeat.frame.duration"
	WindowsName       = "glowbeat.analysis.windows"
	FramesName        = "glowbeat.frames.encoded"
	OutputBytesName   = "glowbeat.output.bytes"
)

// Metrics holds the instruments for one process.
type Metrics struct {
	// StageDuration tracks wall time per pipeline stage. Use with attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// FrameDuration tracks the time to composite one frame.
	FrameDuration metric.Float64Histogram

	// Windows counts analysed audio windows.
	Windows metric.Int64Counter

	// Frames counts frames handed to the video encoder.
	Frames metric.Int64Counter

	// OutputBytes counts bytes in finished output files.
	OutputBytes metric.Int64Counter
}

// stageBuckets are histogram boundaries in seconds, from a short clip's
// analysis up to a long render.
var stageBuckets = []float64{
	0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900,
}

var frameBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram(StageDurationName,
		metric.WithDescription("Wall time of each pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FrameDuration, err = m.Float64Histogram(FrameDurationName,
		metric.WithDescription("Time to composite one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Windows, err = m.Int64Counter(WindowsName,
		metric.WithDescription("Audio windows analysed."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter(FramesName,
		metric.WithDescription("Frames sent to the video encoder."),
	); err != nil {
		return nil, err
	}
	if met.OutputBytes, err = m.Int64Counter(OutputBytesName,
		metric.WithDescription("Bytes written to finished output files."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordStage records the duration of one stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordFrame records the compositing time of one frame.
func (m *Metrics) RecordFrame(ctx context.Context, d time.Duration) {
	m.FrameDuration.Record(ctx, d.Seconds())
}

// AddWindows adds n analysed windows.
func (m *Metrics) AddWindows(ctx context.Context, n int) {
	m.Windows.Add(ctx, int64(n))
}

// AddFrames adds n encoded frames.
func (m *Metrics) AddFrames(ctx context.Context, n int) {
	m.Frames.Add(ctx, int64(n))
}

// AddOutputBytes adds the size of a finished file, labelled by kind
// ("video" or "thumbnail").
func (m *Metrics) AddOutputBytes(ctx context.Context, kind string, n int64) {
	m.OutputBytes.Add(ctx, n,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
