package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette
// This is the single source of truth for all TUI colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // Primary accent
	coralPink   = lipgloss.Color("#FFCCCB") // Secondary accent
	mintGreen   = lipgloss.Color("#A8E6CF") // Success and listening states
	mutedGray   = lipgloss.Color("#6B7280") // Secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // Primary text
)

var (
	// Text Styles
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	dateStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	listeningStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	// Container Styles
	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(brightWhite).
				Background(lipgloss.Color("203")).
				Padding(0, 1)
)
