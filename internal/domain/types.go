// Package domain defines the normalized types shared by the Sum Up Fields components.
// These types are independent of any particular host, storage backend or card source.
package domain

import "time"

// Storage keys. Fields live on the board, values live on each card.
const (
	FieldsKey      = "sumup_fields"
	FieldValuesKey = "sumup_field_values"
	ListSumsKey    = "sumup_list_sums"
)

// Field is a user-defined numeric attribute tracked per card.
type Field struct {
	ID      string    `json:"id"`      // Unique within a board
	Name    string    `json:"name"`    // Display name (e.g., "Points")
	Created time.Time `json:"created"` // Creation time in UTC
}

// ValueMap maps a field ID to the value stored on one card.
// Values arrive as strings or numbers; non-numeric entries count as zero.
type ValueMap map[string]any

// Board identifies the board a session operates on.
type Board struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// List is a column of cards on a board.
type List struct {
	ID   string  `json:"id" yaml:"id"`
	Name string  `json:"name" yaml:"name"`
	Pos  float64 `json:"pos" yaml:"pos"`
}

// CardRef is the part of a host card this system reads: identity, list membership and position.
type CardRef struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	ListID string  `json:"idList" yaml:"list"`
	Pos    float64 `json:"pos" yaml:"pos"`
	URL    string  `json:"url,omitempty" yaml:"url,omitempty"` // May be empty
}

// Color is a badge color name understood by the host.
type Color string

// Badge colors.
const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorSky    Color = "sky"
	ColorLime   Color = "lime"
	ColorBlack  Color = "black"
	ColorNone   Color = ""
)

// Valid reports whether c is a color the host can render.
func (c Color) Valid() bool {
	switch c {
	case ColorBlue, ColorGreen, ColorOrange, ColorRed, ColorYellow,
		ColorPurple, ColorPink, ColorSky, ColorLime, ColorBlack, ColorNone:
		return true
	}
	return false
}

// BadgeKind distinguishes per-card value badges from list sum badges.
type BadgeKind string

const (
	BadgeValue BadgeKind = "value"
	BadgeSum   BadgeKind = "sum"
)

// Badge is a small label rendered on a card.
type Badge struct {
	Kind     BadgeKind `json:"kind"`
	FieldID  string    `json:"fieldId"`
	Text     string    `json:"text"`
	Color    Color     `json:"color,omitempty"`
	Callback *Popup    `json:"callback,omitempty"` // Popup opened when the badge is clicked
	Dynamic  bool      `json:"dynamic,omitempty"`
}

// Popup describes a secondary surface rendered by the host.
type Popup struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Height int    `json:"height"`
}

// Button is a board or card button registered with the host.
type Button struct {
	Icon     string `json:"icon,omitempty"`
	Text     string `json:"text"`
	Callback *Popup `json:"callback,omitempty"`
}

// CachedSum is a persisted list total. It is a best-effort cache: the live
// aggregation is the source of truth.
type CachedSum struct {
	ListID     string             `json:"listId"`
	Totals     map[string]float64 `json:"totals"`
	Cards      int                `json:"cards"` // Cards that contributed (list size minus the first card)
	ComputedAt time.Time          `json:"computedAt"`
}

// Project is a GitHub Project v2 used as a card source.
type Project struct {
	ID     string // GitHub Project node ID
	Number int    // Project number within the owner's namespace
	Title  string
	Owner  string // Owner login (organization or user)
}

// ProjectField is a GitHub project field definition. Only SINGLE_SELECT fields
// carry options; their options become lists.
type ProjectField struct {
	ID      string
	Name    string
	Type    string // e.g., "SINGLE_SELECT", "NUMBER"
	Options []Option
	Order   int
}

// Option is one value of a SINGLE_SELECT project field.
type Option struct {
	ID    string
	Name  string
	Color string
	Order int
}

// Project field types.
const (
	FieldTypeSingleSelect = "SINGLE_SELECT"
	FieldTypeText         = "TEXT"
	FieldTypeNumber       = "NUMBER"
	FieldTypeDate         = "DATE"
	FieldTypeIteration    = "ITERATION"
)
