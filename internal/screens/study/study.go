// Package study implements the review loop: due items are shown oldest
// first, the learner reveals the card and rates recall with keys 1 to 4.
package study

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/review"
	"github.com/abhisek/memora/internal/router"
	"github.com/abhisek/memora/internal/screen"
	"github.com/abhisek/memora/internal/screens/summary"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
	"github.com/abhisek/memora/internal/ui/components"
	"github.com/abhisek/memora/internal/ui/layout"
	"github.com/abhisek/memora/internal/ui/theme"
)

type dueLoadedMsg struct {
	Items []*store.Item
	Err   error
}

// previewMsg carries the outcomes computed at At. Rating the item commits at
// the same instant so the shown intervals are the ones stored.
type previewMsg struct {
	ItemID   uuid.UUID
	At       time.Time
	Outcomes map[spacedrep.Rating]spacedrep.MemoryState
	Recall   float64
	Err      error
}

type reviewedMsg struct {
	ItemID  uuid.UUID
	Outcome *review.Outcome
	Err     error
}

// StudyScreen walks through the items due when it was opened.
type StudyScreen struct {
	svc     *review.Service
	limit   int
	queue   []*store.Item
	pos     int
	loaded  bool
	started time.Time

	revealed bool
	outcomes  map[spacedrep.Rating]spacedrep.MemoryState
	previewAt time.Time
	recall    float64
	busy      bool

	result summary.Result
	errMsg string
}

var _ screen.Screen = (*StudyScreen)(nil)
var _ screen.KeyHintProvider = (*StudyScreen)(nil)

// New creates a StudyScreen. A positive limit caps the number of items
// studied in one session.
func New(svc *review.Service, limit int) *StudyScreen {
	return &StudyScreen{svc: svc, limit: limit}
}

func (s *StudyScreen) Init() tea.Cmd {
	s.started = s.svc.Now()
	return func() tea.Msg {
		items, err := s.svc.Due(context.Background(), s.limit)
		return dueLoadedMsg{Items: items, Err: err}
	}
}

func (s *StudyScreen) Title() string {
	return "Study"
}

func (s *StudyScreen) KeyHints() []layout.KeyHint {
	if !s.loaded || len(s.queue) == 0 || s.errMsg != "" {
		return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
	}
	if !s.revealed {
		return []layout.KeyHint{
			{Key: "Space", Description: "Reveal"},
			{Key: "Esc", Description: "End session"},
		}
	}
	return []layout.KeyHint{
		{Key: "1", Description: "Again"},
		{Key: "2", Description: "Hard"},
		{Key: "3", Description: "Good"},
		{Key: "4", Description: "Easy"},
		{Key: "Esc", Description: "End session"},
	}
}

// Current returns the item being studied, or nil when none is left.
func (s *StudyScreen) Current() *store.Item {
	if s.pos >= len(s.queue) {
		return nil
	}
	return s.queue[s.pos]
}

func (s *StudyScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case dueLoadedMsg:
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.queue = msg.Items
		return s, s.loadPreview()

	case previewMsg:
		cur := s.Current()
		if cur == nil || cur.ID != msg.ItemID {
			return s, nil
		}
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.outcomes = msg.Outcomes
		s.previewAt = msg.At
		s.recall = msg.Recall
		return s, nil

	case reviewedMsg:
		return s.handleReviewed(msg)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *StudyScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()
	if key == "esc" {
		if s.result.Reviewed() > 0 {
			return s, s.finish()
		}
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if s.Current() == nil || s.busy || s.errMsg != "" {
		return s, nil
	}

	if !s.revealed {
		switch key {
		case "space", " ", "enter":
			s.revealed = true
		}
		return s, nil
	}

	rating, err := spacedrep.ParseRating(key)
	if err != nil || s.outcomes == nil {
		return s, nil
	}
	s.busy = true
	id, at := s.Current().ID, s.previewAt
	return s, func() tea.Msg {
		out, err := s.svc.ReviewAt(context.Background(), id, rating, at)
		return reviewedMsg{ItemID: id, Outcome: out, Err: err}
	}
}

func (s *StudyScreen) handleReviewed(msg reviewedMsg) (screen.Screen, tea.Cmd) {
	s.busy = false
	cur := s.Current()
	if cur == nil || cur.ID != msg.ItemID {
		return s, nil
	}

	switch {
	case msg.Err == nil:
		s.result.Add(msg.Outcome.Log)
	case errors.Is(msg.Err, store.ErrConflict), errors.Is(msg.Err, store.ErrNotFound):
		// The item changed or vanished under us; move on.
		s.result.Skipped++
	default:
		s.errMsg = msg.Err.Error()
		return s, nil
	}

	s.pos++
	s.revealed = false
	s.outcomes = nil
	if s.Current() == nil {
		return s, s.finish()
	}
	return s, tea.Batch(s.loadPreview(), deckChanged)
}

// finish swaps this screen for the session summary.
func (s *StudyScreen) finish() tea.Cmd {
	s.result.Duration = s.svc.Now().Sub(s.started)
	res := s.result
	return tea.Batch(
		func() tea.Msg { return router.ReplaceScreenMsg{Screen: summary.New(res)} },
		deckChanged,
	)
}

func (s *StudyScreen) loadPreview() tea.Cmd {
	cur := s.Current()
	if cur == nil {
		return nil
	}
	return func() tea.Msg {
		at := s.svc.Now()
		outcomes, err := s.svc.PreviewAt(context.Background(), cur.ID, at)
		if err != nil {
			return previewMsg{ItemID: cur.ID, Err: err}
		}
		recall, err := s.svc.Retrievability(cur)
		return previewMsg{ItemID: cur.ID, At: at, Outcomes: outcomes, Recall: recall, Err: err}
	}
}

func deckChanged() tea.Msg { return screen.DeckChangedMsg{} }

func (s *StudyScreen) View(width, height int) string {
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}

	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading due items...")
	}
	if len(s.queue) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  Nothing is due. Come back later!")
	}

	cur := s.Current()
	if cur == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(center(components.NewProgressBar("Session", s.pos, len(s.queue), min(width-8, 60)).View()))
	b.WriteString("\n\n")

	card := theme.Card.Width(min(width-8, 60)).Align(lipgloss.Center)
	if layout.IsCompactHeight(height) {
		card = card.Padding(0, 2)
	}
	b.WriteString(center(card.Render(theme.Body.Bold(true).Render(cur.Label))))
	b.WriteString("\n\n")

	st := cur.State
	meta := lipgloss.NewStyle().Foreground(theme.StateColor(st.State)).Render(string(st.State))
	if st.State != spacedrep.StateNew {
		meta += theme.Hint.Render(fmt.Sprintf("   reviews %d   lapses %d   recall %.0f%%",
			st.Reps, st.Lapses, s.recall*100))
	}
	b.WriteString(center(meta))
	b.WriteString("\n\n")

	if !s.revealed {
		b.WriteString(center(theme.Hint.Render("Try to recall it, then press space")))
		return b.String()
	}
	if s.outcomes == nil {
		b.WriteString(center(theme.Hint.Render("Computing intervals...")))
		return b.String()
	}

	buttons := make([]string, 0, len(spacedrep.Ratings))
	for _, r := range spacedrep.Ratings {
		next := s.outcomes[r]
		label := fmt.Sprintf("%d %s\n%s", int(r), r, FormatInterval(next.Due.Sub(s.previewAt)))
		buttons = append(buttons, lipgloss.NewStyle().
			Foreground(theme.RatingColor(r)).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.RatingColor(r)).
			Align(lipgloss.Center).
			Width(12).
			Render(label))
	}
	b.WriteString(center(lipgloss.JoinHorizontal(lipgloss.Top, buttons...)))
	return b.String()
}

// FormatInterval renders a time until due the way the rating buttons show
// it: minutes and hours below a day, then days, months and years.
func FormatInterval(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", max(int(d.Minutes()), 1))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := d.Hours() / 24
	switch {
	case days < 30:
		return fmt.Sprintf("%dd", int(math.Round(days)))
	case days < 365:
		return fmt.Sprintf("%.1fmo", days/30)
	default:
		return fmt.Sprintf("%.1fy", days/365)
	}
}
