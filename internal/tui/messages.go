// Package tui provides Bubble Tea models for the interactive board.
package tui

import (
	"github.com/h0rv/sumup/internal/domain"
)

// openSettingsMsg is emitted when the user opens the field settings.
type openSettingsMsg struct{}

// openValuesMsg is emitted when the user opens the values editor for a card.
type openValuesMsg struct {
	card domain.CardRef
}

// closeScreenMsg returns to the board. status is shown as a toast.
type closeScreenMsg struct {
	status string
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}
