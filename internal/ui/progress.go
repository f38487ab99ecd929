// Package ui draws render progress in the terminal: a Bubbletea model for
// interactive sessions and an mpb progress bar for plain output.
package ui

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/glowbeat/internal/cli"
	"github.com/linuxmatters/glowbeat/internal/observe"
	"github.com/linuxmatters/glowbeat/internal/pipeline"
)

// PhaseMsg signals the start of a pipeline phase
type PhaseMsg struct {
	Phase pipeline.Phase
	Total int
}

// ProgressMsg reports progress within a phase
type ProgressMsg struct {
	Phase pipeline.Phase
	Done  int
	Total int
}

// AnalysedMsg carries the dominant frequency of every window
type AnalysedMsg struct {
	Freqs []int
}

// FrameMsg carries a rendered frame for the preview
type FrameMsg struct {
	Index int
	Frame *image.RGBA
}

// CompleteMsg signals a successful render
type CompleteMsg struct {
	Result  *pipeline.Result
	Profile *observe.Profile
}

// FailedMsg signals that the render stopped with an error
type FailedMsg struct {
	Err error
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model implements the Bubbletea model for a whole render
type Model struct {
	progressBar progress.Model
	summaryBar  progress.Model

	phase      pipeline.Phase
	started    bool
	done       int
	total      int
	frameRate  int
	phaseStart time.Time

	freqs    []int
	frameIdx int

	result  *pipeline.Result
	profile *observe.Profile
	err     error

	// UI state
	width           int
	height          int
	noPreview       bool
	cachedPreview   string
	completionDelay time.Duration
	cancelled       bool
}

// NewModel creates a progress model for a render at frameRate frames per second
func NewModel(frameRate int, noPreview bool) *Model {
	// Glow gradient: indigo → violet → gold
	p := progress.New(
		progress.WithGradient(string(cli.GlowIndigo), string(cli.GlowGold)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	// Smaller progress bar for summary performance charts
	summaryBar := progress.New(
		progress.WithGradient(string(cli.GlowIndigo), string(cli.GlowGold)),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		summaryBar:      summaryBar,
		frameRate:       frameRate,
		phaseStart:      time.Now(),
		completionDelay: 2 * time.Second,
		noPreview:       noPreview,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		m.started = true
		m.done = 0
		m.total = msg.Total
		m.phaseStart = time.Now()
		return m, nil

	case ProgressMsg:
		if msg.Phase == m.phase {
			m.done = msg.Done
			m.total = msg.Total
		}
		return m, nil

	case AnalysedMsg:
		m.freqs = msg.Freqs
		return m, nil

	case FrameMsg:
		m.frameIdx = msg.Index
		if !m.noPreview && msg.Frame != nil {
			b := msg.Frame.Bounds()
			m.cachedPreview = RenderPreview(DownsampleFrame(msg.Frame, PreviewConfigFor(b.Dx(), b.Dy())))
		}
		return m, nil

	case CompleteMsg:
		m.result = msg.Result
		m.profile = msg.Profile
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case FailedMsg:
		m.err = msg.Err
		return m, tea.Quit

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.result != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// Cancelled reports whether the user quit before the render finished
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// View renders the UI
func (m *Model) View() string {
	if m.result != nil {
		return m.renderFinalProgress() + "\n" + m.renderComplete()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final completion summary for printing after the program exits.
// Returns empty string if the render is not complete.
func (m *Model) CompletionSummary() string {
	if m.result == nil {
		return ""
	}
	return m.renderFinalProgress() + "\n" + m.renderComplete()
}

func phaseLabel(p pipeline.Phase) string {
	switch p {
	case pipeline.PhaseDecode:
		return "Step 1/4: Decoding Audio"
	case pipeline.PhaseAnalyse:
		return "Step 2/4: Finding Dominant Frequencies"
	case pipeline.PhaseRender:
		return "Step 3/4: Rendering & Encoding"
	case pipeline.PhaseMux:
		return "Step 4/4: Muxing"
	default:
		return "Starting"
	}
}

func (m *Model) header(s *strings.Builder, label string) {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.GlowGold).
		Render(cli.AppTitle)

	s.WriteString(title)
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Foreground(cli.GlowAmber).Render(label))
	s.WriteString("\n\n")
}

// renderFinalProgress renders the progress UI in its final completed state
func (m *Model) renderFinalProgress() string {
	var s strings.Builder
	m.header(&s, "Complete")

	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(1.0))
	s.WriteString("  100%")
	s.WriteString("\n\n")

	var finalSpeed float64
	if m.result.Elapsed > 0 {
		finalSpeed = float64(m.videoDuration(m.result.Frames)) / float64(m.result.Elapsed)
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("Time: %s  │  Speed: %.1fx realtime  │  Complete", formatDuration(m.result.Elapsed), finalSpeed)))

	if len(m.freqs) > 0 {
		s.WriteString("\n\n")
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Dominant Frequency:"))
		s.WriteString("\n")
		s.WriteString(renderTrace(m.freqs, len(m.freqs)-1, m.traceWidth()))
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.GlowAmber).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) renderProgress() string {
	var s strings.Builder
	label := "Starting"
	if m.started {
		label = phaseLabel(m.phase)
	}
	m.header(&s, label)

	switch {
	case !m.started:
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Preparing..."))
		s.WriteString("\n")
	case m.total > 0:
		m.renderPhaseProgress(&s)
	default:
		// Decode and mux report no steps
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("Working...  │  Elapsed: %s", formatDuration(time.Since(m.phaseStart)))))
		s.WriteString("\n")
	}

	if len(m.freqs) > 0 {
		s.WriteString("\n")
		m.renderTraceAndStats(&s)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.GlowViolet).
		Padding(1, 2).
		Render(s.String())
}

func (m *Model) renderPhaseProgress(s *strings.Builder) {
	percent := float64(m.done) / float64(m.total)

	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(percent))
	s.WriteString(fmt.Sprintf("  %d%%", int(percent*100)))
	s.WriteString("\n\n")

	elapsed := time.Since(m.phaseStart)
	var estimatedTotal, eta time.Duration
	if percent > 0 {
		estimatedTotal = time.Duration(float64(elapsed) / percent)
		eta = estimatedTotal - elapsed
	}

	var timingInfo string
	if m.phase == pipeline.PhaseRender {
		var speed float64
		if elapsed > 0 {
			speed = float64(m.videoDuration(m.done)) / float64(elapsed)
		}
		timingInfo = fmt.Sprintf("Time: %s / %s  │  Speed: %.1fx realtime  │  ETA: %s",
			formatDuration(elapsed),
			formatDuration(estimatedTotal),
			speed,
			formatDuration(eta))
	} else {
		timingInfo = fmt.Sprintf("Time: %s / %s  │  ETA: %s",
			formatDuration(elapsed),
			formatDuration(estimatedTotal),
			formatDuration(eta))
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(timingInfo))
	s.WriteString("\n")

	unit := "Window"
	if m.phase == pipeline.PhaseRender {
		unit = "Frame"
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Italic(true).Render(
		fmt.Sprintf("%s %d of %d", unit, m.done, m.total)))
	s.WriteString("\n")
}

func (m *Model) renderTraceAndStats(s *strings.Builder) {
	s.WriteString(lipgloss.NewStyle().Foreground(cli.GlowAmber).Render("Dominant Frequency:"))
	s.WriteString("\n")

	cur := 0
	if m.phase == pipeline.PhaseRender || m.phase == pipeline.PhaseMux {
		cur = min(m.frameIdx, len(m.freqs)-1)
	}
	trace := renderTrace(m.freqs, cur, m.traceWidth())

	labelStyle := lipgloss.NewStyle().Foreground(cli.DuskGray)
	valueStyle := lipgloss.NewStyle().Bold(true)
	var rightCol strings.Builder
	rightCol.WriteString(labelStyle.Render("Now:  "))
	rightCol.WriteString(valueStyle.Render(fmt.Sprintf("%d Hz", m.freqs[cur])))
	rightCol.WriteString("\n")
	rightCol.WriteString(labelStyle.Render("Peak: "))
	rightCol.WriteString(valueStyle.Render(fmt.Sprintf("%d Hz", maxFreq(m.freqs))))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, trace, "  ", rightCol.String()))

	if !m.noPreview && m.cachedPreview != "" {
		s.WriteString("\n")
		s.WriteString(m.cachedPreview)
	}
}

func (m *Model) traceWidth() int {
	if m.width > 30 {
		return min(m.width-30, 64)
	}
	return 64
}

func (m *Model) videoDuration(frames int) time.Duration {
	if m.frameRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(m.frameRate)
}

func (m *Model) renderComplete() string {
	var s strings.Builder
	res := m.result

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.GlowGold).
		Render("✓ Render Complete!")

	s.WriteString(title)
	s.WriteString("\n\n")

	dimLabel := lipgloss.NewStyle().Faint(true)

	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Output:    "), res.OutputPath))
	if res.ThumbnailPath != "" {
		s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Thumbnail: "), res.ThumbnailPath))
	}
	if res.TempDir != "" {
		s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Temp:      "), res.TempDir))
	}
	s.WriteString(fmt.Sprintf("%s%d frames at %d fps, %dx%d\n",
		dimLabel.Render("Video:     "),
		res.Frames, res.FrameRate, res.Width, res.Height))
	s.WriteString(fmt.Sprintf("%s%d samples at %d Hz, %d windows\n",
		dimLabel.Render("Audio:     "),
		res.Samples, res.SampleRate, res.Windows))
	s.WriteString(fmt.Sprintf("%s%.1fs video in %.1fs\n",
		dimLabel.Render("Duration:  "),
		m.videoDuration(res.Frames).Seconds(),
		res.Elapsed.Seconds()))
	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Size:      "), formatBytes(res.FileSize)))

	if m.profile != nil && len(m.profile.Stages) > 0 {
		s.WriteString("\n")
		m.renderBreakdown(&s, res.Elapsed)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.GlowAmber).
		Padding(1, 1).
		Render(s.String()) + "\n"
}

// renderBreakdown lists the time spent in each stage against total.
func (m *Model) renderBreakdown(s *strings.Builder, total time.Duration) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.GlowAmber)
	labelStyle := lipgloss.NewStyle().Faint(true)
	valueStyle := lipgloss.NewStyle()
	highlightValueStyle := lipgloss.NewStyle().Foreground(cli.GlowAmber)

	s.WriteString(headerStyle.Render("Performance Breakdown"))
	s.WriteString("\n")

	if total <= 0 {
		total = m.profile.Total()
	}
	totalMs := max(total.Milliseconds(), 1)

	for _, st := range m.profile.Stages {
		ratio := float64(st.Duration.Milliseconds()) / float64(totalMs)
		s.WriteString(fmt.Sprintf("  %s%s (~%2d%%)  %s\n",
			labelStyle.Render(fmt.Sprintf("%-18s", stageLabel(st.Stage)+":")),
			valueStyle.Render(fmt.Sprintf("~%-6s", formatDuration(st.Duration))),
			int(ratio*100),
			m.summaryBar.ViewAs(min(ratio, 1))))
	}

	if m.profile.FrameMean > 0 {
		s.WriteString(fmt.Sprintf("  %s%s\n",
			labelStyle.Render(fmt.Sprintf("%-18s", "Per frame:")),
			valueStyle.Render(formatDuration(m.profile.FrameMean))))
	}
	s.WriteString(fmt.Sprintf("  %s%s", labelStyle.Render(fmt.Sprintf("%-18s", "Total time:")), highlightValueStyle.Render(formatDuration(total))))
}

func stageLabel(stage string) string {
	if stage == "" {
		return stage
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 2; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

func maxFreq(freqs []int) int {
	peak := 0
	for _, f := range freqs {
		peak = max(peak, f)
	}
	return peak
}

// traceWindow returns the slice of at most width windows ending at cur.
func traceWindow(freqs []int, cur, width int) []int {
	if len(freqs) == 0 || width <= 0 {
		return nil
	}
	cur = max(0, min(cur, len(freqs)-1))
	end := max(cur+1, min(width, len(freqs)))
	start := max(0, end-width)
	return freqs[start:end]
}

// renderTrace draws the dominant frequency of recent windows as a two row
// block chart, normalised to the loudest frequency of the whole track.
func renderTrace(freqs []int, cur, width int) string {
	window := traceWindow(freqs, cur, width)
	if len(window) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	// Glow gradient colours from low to high frequency
	glowColors := []lipgloss.Color{
		cli.GlowIndigo,
		lipgloss.Color("#7B2CBF"),
		cli.GlowViolet,
		lipgloss.Color("#C77DFF"),
		lipgloss.Color("#E0AAFF"),
		cli.GlowAmber,
		lipgloss.Color("#FFB627"),
		cli.GlowGold,
	}

	peak := float64(maxFreq(freqs))
	if peak == 0 {
		peak = 1
	}

	normalised := make([]float64, len(window))
	for i, f := range window {
		normalised[i] = float64(f) / peak
	}

	colourFor := func(n float64) lipgloss.Color {
		idx := int(n * float64(len(glowColors)-1))
		return glowColors[max(0, min(idx, len(glowColors)-1))]
	}

	var result strings.Builder

	// Top row shows the portion above 0.5
	for _, n := range normalised {
		if n > 0.5 {
			idx := min(int((n-0.5)*2.0*float64(len(blocks)-1)), len(blocks)-1)
			result.WriteString(lipgloss.NewStyle().Foreground(colourFor(n)).Render(string(blocks[idx])))
		} else {
			result.WriteString(" ")
		}
	}

	result.WriteString("\n")

	for _, n := range normalised {
		idx := len(blocks) - 1
		if n < 0.5 {
			idx = max(0, min(int(n*2.0*float64(len(blocks)-1)), len(blocks)-1))
		}
		result.WriteString(lipgloss.NewStyle().Foreground(colourFor(n)).Render(string(blocks[idx])))
	}

	return result.String()
}
