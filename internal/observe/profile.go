package observe

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/linuxmatters/glowbeat/internal/errs"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Recorder owns an SDK MeterProvider backed by a ManualReader, so the
// metrics of a single run can be read back in process.
type Recorder struct {
	Metrics *Metrics

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewRecorder creates a Recorder tagged with the given service version.
func NewRecorder(version string) (*Recorder, error) {
	reader := sdkmetric.NewManualReader()
	res := resource.NewSchemaless(
		attribute.String("service.name", "glowbeat"),
		attribute.String("service.version", version),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	return &Recorder{Metrics: m, reader: reader, provider: mp}, nil
}

// Shutdown releases the provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// StageTiming is the accumulated wall time of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Profile summarises a run.
type Profile struct {
	Stages      []StageTiming // In pipeline order
	Frames      int64
	Windows     int64
	OutputBytes int64
	FrameMean   time.Duration // Mean compositing time per frame
}

// Total returns the sum of all stage durations.
func (p Profile) Total() time.Duration {
	var total time.Duration
	for _, s := range p.Stages {
		total += s.Duration
	}
	return total
}

// stageOrder lists stages in pipeline order for display.
var stageOrder = []string{
	errs.StageConfig,
	errs.StageDecode,
	errs.StageAnalyse,
	errs.StageLoad,
	errs.StageRender,
	errs.StageEncode,
	errs.StageMux,
	errs.StageOutput,
}

// Profile collects the current metric values.
func (r *Recorder) Profile(ctx context.Context) (Profile, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return Profile{}, err
	}
	return summarise(rm)
}

func summarise(rm metricdata.ResourceMetrics) (Profile, error) {
	var p Profile
	stages := map[string]time.Duration{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case StageDurationName:
				hist, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					return p, errors.New("stage duration is not a float64 histogram")
				}
				for _, dp := range hist.DataPoints {
					stage, _ := dp.Attributes.Value("stage")
					stages[stage.AsString()] += seconds(dp.Sum)
				}
			case FrameDurationName:
				if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
					var sum float64
					var count uint64
					for _, dp := range hist.DataPoints {
						sum += dp.Sum
						count += dp.Count
					}
					if count > 0 {
						p.FrameMean = seconds(sum / float64(count))
					}
				}
			case WindowsName:
				p.Windows = sumInt(m)
			case FramesName:
				p.Frames = sumInt(m)
			case OutputBytesName:
				p.OutputBytes = sumInt(m)
			}
		}
	}

	for _, name := range stageOrder {
		if d, ok := stages[name]; ok {
			p.Stages = append(p.Stages, StageTiming{Stage: name, Duration: d})
			delete(stages, name)
		}
	}
	// Unknown stages go last, sorted for stable output
	rest := make([]string, 0, len(stages))
	for name := range stages {
		rest = append(rest, name)
	}
	slices.Sort(rest)
	for _, name := range rest {
		p.Stages = append(p.Stages, StageTiming{Stage: name, Duration: stages[name]})
	}
	return p, nil
}

func sumInt(m metricdata.Metrics) int64 {
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
