package progressui

import "github.com/charmbracelet/lipgloss"

var (
	ColorRed    = lipgloss.Color("#FF0000")
	ColorGreen  = lipgloss.Color("#00FF00")
	ColorYellow = lipgloss.Color("#FFFF00")
	ColorCyan   = lipgloss.Color("#00FFFF")
	ColorGray   = lipgloss.Color("#666666")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StateStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	BarFilledStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	BarEmptyStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)
)
