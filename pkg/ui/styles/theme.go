// Package styles holds the colors and lipgloss styles shared by the chat UI.
package styles

import (
	"charm.land/lipgloss/v2"
)

// Color palette (ANSI 256)
var (
	ColorAccent    = lipgloss.Color("141")
	ColorText      = lipgloss.Color("252")
	ColorTextMuted = lipgloss.Color("245")
	ColorError     = lipgloss.Color("196")
	ColorWarning   = lipgloss.Color("214")
	ColorCode      = lipgloss.Color("213")
	ColorCodeBg    = lipgloss.Color("235")
	ColorBorder    = lipgloss.Color("141")
)

var (
	// TitleStyle for the header line
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	// TextStyle for transcript text
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	// TextBoldStyle for **emphasized** words
	TextBoldStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	// CodeStyle for fenced code blocks
	CodeStyle = lipgloss.NewStyle().
			Foreground(ColorCode).
			Background(ColorCodeBg)

	// SeparatorStyle for the rule above the input
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)

	// FooterStyle for key hints
	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	// ErrorStyle for failure status
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	// BusyStyle for the streaming indicator
	BusyStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)
)
