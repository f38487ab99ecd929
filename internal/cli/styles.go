package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// AppTitle and AppDescription head the banner, version and help output.
const (
	AppTitle       = "Glowbeat ✨"
	AppDescription = "Turn a track into a pulsing logo video: the dominant frequency drives the glow and the logo size."
)

// Color palette
var (
	primaryColor   = GlowViolet
	accentColor    = GlowAmber
	successColor   = lipgloss.Color("#00AA00") // Green
	errorColor     = lipgloss.Color("#E5383B") // Red
	mutedColor     = lipgloss.Color("#888888") // Gray
	highlightColor = GlowGold
	textColor      = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold violet
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Section header style
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginTop(1)

	// Success message style
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// Highlight style for important values
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	// Box style for framed content
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render(AppTitle))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintStageError prints an error together with the stage that produced it.
func PrintStageError(stage string, err error) {
	if stage == "" {
		PrintError(err.Error())
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s %v\n",
		ErrorStyle.Render("Error:"),
		HighlightStyle.Render("["+stage+"]"),
		err)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints an informational message
func PrintInfo(key, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatSpeed formats encoding speed
func FormatSpeed(speed float64) string {
	return fmt.Sprintf("%.1fx realtime", speed)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintBox prints content in a styled box
func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// SummaryRow is one labelled line of a summary box. A row with an empty
// Key leaves a blank line.
type SummaryRow struct {
	Key   string
	Value string
}

// PrintSummary prints title and rows in a box with the keys aligned
func PrintSummary(title string, rows []SummaryRow) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}

	var b strings.Builder
	b.WriteString(SuccessStyle.Render(title))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("\n")
		if r.Key == "" {
			continue
		}
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%-*s", width+2, r.Key+":")))
		b.WriteString(ValueStyle.Render(r.Value))
	}

	PrintBox(b.String())
}
