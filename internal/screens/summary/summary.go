package summary

import (
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/memora/internal/router"
	"github.com/abhisek/memora/internal/screen"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/ui/layout"
	"github.com/abhisek/memora/internal/ui/theme"
)

// Result is what one study session did to the deck.
type Result struct {
	Duration time.Duration
	Counts   map[spacedrep.Rating]int
	Lapses   int

	// Graduated counts items that left Learning or Relearning for Review.
	Graduated int

	// Skipped counts items that could not be reviewed, e.g. after repeated
	// version conflicts.
	Skipped int
}

// Add records one committed review.
func (r *Result) Add(log spacedrep.ReviewLog) {
	if r.Counts == nil {
		r.Counts = make(map[spacedrep.Rating]int, len(spacedrep.Ratings))
	}
	r.Counts[log.Rating]++
	if log.IsLapse() {
		r.Lapses++
	}
	from, to := log.StateBefore.State, log.StateAfter.State
	if from != spacedrep.StateReview && to == spacedrep.StateReview {
		r.Graduated++
	}
}

// Reviewed returns the number of committed reviews.
func (r Result) Reviewed() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Recalled returns the share of reviews not rated Again.
func (r Result) Recalled() float64 {
	n := r.Reviewed()
	if n == 0 {
		return 0
	}
	return float64(n-r.Counts[spacedrep.Again]) / float64(n)
}

// SummaryScreen displays the result of a study session.
type SummaryScreen struct {
	result Result
}

var _ screen.Screen = (*SummaryScreen)(nil)
var _ screen.KeyHintProvider = (*SummaryScreen)(nil)

// New creates a new SummaryScreen.
func New(result Result) *SummaryScreen {
	return &SummaryScreen{result: result}
}

func (s *SummaryScreen) Init() tea.Cmd {
	return nil
}

func (s *SummaryScreen) Title() string {
	return "Study Summary"
}

func (s *SummaryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Back to deck"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *SummaryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *SummaryScreen) View(width, height int) string {
	res := s.result
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(center(lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Render("Session complete")))
	b.WriteString("\n\n")

	mins := int(res.Duration.Minutes())
	secs := int(res.Duration.Seconds()) % 60
	b.WriteString(center(lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("Duration: %d:%02d", mins, secs))))
	b.WriteString("\n\n")

	statsLine := fmt.Sprintf("Reviewed: %d        Recalled: %.0f%%        Lapses: %d",
		res.Reviewed(), res.Recalled()*100, res.Lapses)
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Text).Render(statsLine)))
	b.WriteString("\n\n")

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(
		strings.Repeat("─", max(min(width-8, 48), 0)))
	b.WriteString(center(lipgloss.NewStyle().Foreground(theme.TextDim).Render("Ratings")))
	b.WriteString("\n")
	b.WriteString(center(divider))
	b.WriteString("\n\n")

	parts := make([]string, 0, len(spacedrep.Ratings))
	for _, r := range spacedrep.Ratings {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(theme.RatingColor(r)).
			Render(fmt.Sprintf("%s %d", r, res.Counts[r])))
	}
	b.WriteString(center(strings.Join(parts, "    ")))
	b.WriteString("\n")

	if res.Graduated > 0 {
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().
			Foreground(theme.Success).
			Render(fmt.Sprintf("%d item(s) graduated to review", res.Graduated))))
		b.WriteString("\n")
	}
	if res.Skipped > 0 {
		b.WriteString("\n")
		b.WriteString(center(lipgloss.NewStyle().
			Foreground(theme.Error).
			Render(fmt.Sprintf("%d item(s) skipped after errors", res.Skipped))))
		b.WriteString("\n")
	}

	return b.String()
}
