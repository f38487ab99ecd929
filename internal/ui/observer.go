package ui

import (
	"image"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/glowbeat/internal/observe"
	"github.com/linuxmatters/glowbeat/internal/pipeline"
)

// Minimum gap between progress and preview messages sent to the program
const (
	progressInterval = 50 * time.Millisecond
	previewInterval  = 100 * time.Millisecond
)

// ProgramObserver forwards pipeline progress to a running Bubbletea program.
type ProgramObserver struct {
	send func(tea.Msg)
	now  func() time.Time

	lastProgress time.Time
	lastPreview  time.Time
	result       *pipeline.Result
}

// NewProgramObserver returns an observer that sends to p.
func NewProgramObserver(p *tea.Program) *ProgramObserver {
	return newProgramObserver(p.Send)
}

func newProgramObserver(send func(tea.Msg)) *ProgramObserver {
	return &ProgramObserver{send: send, now: time.Now}
}

func (o *ProgramObserver) PhaseStarted(p pipeline.Phase, total int) {
	o.lastProgress = time.Time{}
	o.send(PhaseMsg{Phase: p, Total: total})
}

// Progress is throttled, except that the final step is always sent.
func (o *ProgramObserver) Progress(p pipeline.Phase, done, total int) {
	now := o.now()
	if done < total && now.Sub(o.lastProgress) < progressInterval {
		return
	}
	o.lastProgress = now
	o.send(ProgressMsg{Phase: p, Done: done, Total: total})
}

func (o *ProgramObserver) Analysed(freqs []int) {
	o.send(AnalysedMsg{Freqs: freqs})
}

func (o *ProgramObserver) FrameRendered(index int, frame *image.RGBA) {
	now := o.now()
	if now.Sub(o.lastPreview) < previewInterval {
		return
	}
	o.lastPreview = now
	o.send(FrameMsg{Index: index, Frame: frame})
}

// Completed keeps the result until Finish delivers it with the profile.
func (o *ProgramObserver) Completed(res *pipeline.Result) {
	o.result = res
}

// Finish shows the completion summary, or the error when the run failed.
func (o *ProgramObserver) Finish(profile *observe.Profile, err error) {
	if err != nil || o.result == nil {
		o.send(FailedMsg{Err: err})
		return
	}
	o.send(CompleteMsg{Result: o.result, Profile: profile})
}
