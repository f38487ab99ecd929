package cli

import "github.com/charmbracelet/lipgloss"

// Glow colour palette ✨
// Shared theme colours for consistent branding across CLI and TUI
var (
	// Core glow colours (deep to bright)
	GlowGold   = lipgloss.Color("#F8B31D") // Logo gold, also the thumbnail title colour
	GlowAmber  = lipgloss.Color("#FF9F1C") // Warm amber
	GlowViolet = lipgloss.Color("#9D4EDD") // Stage violet
	GlowIndigo = lipgloss.Color("#5A189A") // Deep indigo

	// Accent colours
	DuskGray = lipgloss.Color("#A79BBF") // Muted lavender for subtle text
)
