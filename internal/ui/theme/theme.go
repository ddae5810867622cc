package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/memora/internal/spacedrep"
)

// Color palette: calm and low contrast for long study sessions.
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgDark    = lipgloss.Color("#0F172A") // Deep Navy
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim).
			Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Background(BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)

// RatingColor returns the color used for a rating's button and counts.
func RatingColor(r spacedrep.Rating) color.Color {
	switch r {
	case spacedrep.Again:
		return Error
	case spacedrep.Hard:
		return Accent
	case spacedrep.Good:
		return Success
	case spacedrep.Easy:
		return Secondary
	}
	return TextDim
}

// StateColor returns the color used for a lifecycle state.
func StateColor(s spacedrep.State) color.Color {
	switch s {
	case spacedrep.StateNew:
		return Primary
	case spacedrep.StateLearning, spacedrep.StateRelearning:
		return Accent
	case spacedrep.StateReview:
		return Success
	}
	return TextDim
}
