package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/christopherklint97/workcal/internal/engine"
)

// ANSI palette shared by all views.
var (
	accent = lipgloss.Color("12")
	muted  = lipgloss.Color("8")
	good   = lipgloss.Color("10")
	bad    = lipgloss.Color("9")
	warn   = lipgloss.Color("11")
	focus  = lipgloss.Color("14")
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	subtitleStyle  = lipgloss.NewStyle().Foreground(muted).MarginBottom(1)
	dayStyle       = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle       = lipgloss.NewStyle().Foreground(muted)
	helpStyle      = dimStyle.MarginTop(1)
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(focus)
	successStyle   = lipgloss.NewStyle().Bold(true).Foreground(good)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(bad)
	warningStyle   = lipgloss.NewStyle().Foreground(warn)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// entryStyle renders a calendar block on its category color.
func entryStyle(c engine.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(string(c))).
		Foreground(lipgloss.Color("#ffffff")).
		Padding(0, 1)
}

// swatch is a small block in a user's color.
func swatch(c engine.Color) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(string(c))).Render("■")
}
