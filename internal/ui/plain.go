package ui

import (
	"io"
	"time"

	"github.com/linuxmatters/glowbeat/internal/pipeline"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// PlainObserver draws one mpb bar per phase, for terminals where the full
// screen UI is unwanted.
type PlainObserver struct {
	p     *mpb.Progress
	bar   *mpb.Bar
	total int
	last  time.Time
}

// NewPlainObserver writes progress bars to w.
func NewPlainObserver(w io.Writer) *PlainObserver {
	return &PlainObserver{
		p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(64)),
	}
}

func plainLabel(p pipeline.Phase) string {
	switch p {
	case pipeline.PhaseDecode:
		return "Decoding:  "
	case pipeline.PhaseAnalyse:
		return "Analysing: "
	case pipeline.PhaseRender:
		return "Rendering: "
	case pipeline.PhaseMux:
		return "Muxing:    "
	default:
		return p.String() + ": "
	}
}

func (o *PlainObserver) PhaseStarted(p pipeline.Phase, total int) {
	o.finishBar()
	o.total = total
	o.last = time.Now()

	if total <= 0 {
		o.bar = o.p.New(0, mpb.SpinnerStyle(),
			mpb.PrependDecorators(decor.Name(plainLabel(p))),
			mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
		)
		return
	}
	o.bar = o.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(plainLabel(p)),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
}

func (o *PlainObserver) Progress(_ pipeline.Phase, done, _ int) {
	if o.bar == nil || o.total <= 0 {
		return
	}
	now := time.Now()
	o.bar.EwmaSetCurrent(int64(done), now.Sub(o.last))
	o.last = now
}

func (o *PlainObserver) Completed(*pipeline.Result) {
	o.finishBar()
}

// Wait stops any running bar and flushes the output. It must be called
// once the run returns, whether or not it succeeded.
func (o *PlainObserver) Wait() {
	if o.bar != nil {
		o.bar.Abort(false)
		o.bar = nil
	}
	o.p.Wait()
}

// finishBar completes the current bar so its final state stays on screen.
func (o *PlainObserver) finishBar() {
	if o.bar == nil {
		return
	}
	if o.total <= 0 {
		o.bar.SetTotal(-1, true)
	} else if !o.bar.Completed() {
		o.bar.Abort(false)
	}
	o.bar = nil
}
