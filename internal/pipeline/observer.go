package pipeline

import (
	"image"
	"time"
)

// Phase identifies the part of a run that is reporting progress.
type Phase int

const (
	PhaseDecode Phase = iota
	PhaseAnalyse
	PhaseRender
	PhaseMux
)

func (p Phase) String() string {
	switch p {
	case PhaseDecode:
		return "decode"
	case PhaseAnalyse:
		return "analyse"
	case PhaseRender:
		return "render"
	case PhaseMux:
		return "mux"
	default:
		return "unknown"
	}
}

// Observer receives progress from a run. Calls may arrive from different
// goroutines but never concurrently.
type Observer interface {
	// PhaseStarted is called when a phase begins; total is the number of
	// progress steps, or 0 when unknown.
	PhaseStarted(p Phase, total int)
	// Progress reports done of total steps in the current phase.
	Progress(p Phase, done, total int)
	// Completed is called once after a successful run.
	Completed(res *Result)
}

// FrameObserver is implemented by observers that also want each encoded
// frame, for example to draw a preview. Frames must not be modified.
type FrameObserver interface {
	FrameRendered(index int, frame *image.RGBA)
}

// AnalysisObserver is implemented by observers that want the dominant
// frequency of every window once analysis finishes. The slice must not be
// modified.
type AnalysisObserver interface {
	Analysed(freqs []int)
}

// Result describes a finished render.
type Result struct {
	OutputPath    string
	ThumbnailPath string // Empty when no thumbnail was requested
	TempDir       string // Only set when temporary files were kept

	SampleRate    int
	Samples       int
	AudioDuration time.Duration

	Windows   int
	Frames    int
	FrameRate int
	Width     int
	Height    int

	FileSize int64
	Elapsed  time.Duration
}

type nopObserver struct{}

func (nopObserver) PhaseStarted(Phase, int)  {}
func (nopObserver) Progress(Phase, int, int) {}
func (nopObserver) Completed(*Result)        {}
