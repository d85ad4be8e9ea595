package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/h0rv/sumup/internal/domain"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// PromptStyle is used for prompt text.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")). // Light blue
			MarginBottom(1)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)
)

// badgeColors maps host badge colors to terminal colors.
var badgeColors = map[domain.Color]lipgloss.Color{
	domain.ColorBlue:   lipgloss.Color("33"),
	domain.ColorGreen:  lipgloss.Color("42"),
	domain.ColorOrange: lipgloss.Color("208"),
	domain.ColorRed:    lipgloss.Color("196"),
	domain.ColorYellow: lipgloss.Color("226"),
	domain.ColorPurple: lipgloss.Color("135"),
	domain.ColorPink:   lipgloss.Color("212"),
	domain.ColorSky:    lipgloss.Color("117"),
	domain.ColorLime:   lipgloss.Color("154"),
	domain.ColorBlack:  lipgloss.Color("240"),
}

// BadgeStyle returns the style a badge of the given color renders with.
// Colorless badges render as plain dim text.
func BadgeStyle(c domain.Color) lipgloss.Style {
	fg, ok := badgeColors[c]
	if !ok {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	}
	return lipgloss.NewStyle().Foreground(fg).Bold(true)
}
