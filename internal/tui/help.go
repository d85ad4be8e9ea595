package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var helpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(1, 2).
	MarginTop(2)

// HelpModel renders a screen's key bindings, either as the full overlay
// toggled with ? or as the one-line hint under the board header.
type HelpModel struct {
	help   help.Model
	keymap help.KeyMap
}

// NewHelpModel creates the help for a screen's bindings.
func NewHelpModel(keymap help.KeyMap) HelpModel {
	return HelpModel{
		help:   help.New(),
		keymap: keymap,
	}
}

// View renders every binding inside the overlay border.
func (m HelpModel) View(width int) string {
	m.help.Width = width - 8 // Padding and border
	m.help.ShowAll = true
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Sum Up keys"),
		"",
		m.help.View(m.keymap),
	)
	return helpOverlayStyle.Render(body)
}

// ShortView renders the short bindings on one line, truncated to width.
func (m HelpModel) ShortView(width int) string {
	m.help.Width = width
	m.help.ShowAll = false
	return m.help.View(m.keymap)
}
