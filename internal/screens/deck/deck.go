// Package deck implements the home screen: deck statistics, adding items and
// starting a study session.
package deck

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/memora/internal/review"
	"github.com/abhisek/memora/internal/router"
	"github.com/abhisek/memora/internal/screen"
	"github.com/abhisek/memora/internal/screens/study"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
	"github.com/abhisek/memora/internal/ui/components"
	"github.com/abhisek/memora/internal/ui/layout"
	"github.com/abhisek/memora/internal/ui/theme"
)

// Menu positions.
const (
	menuStudy = iota
	menuAdd
	menuQuit
)

// labelLimit matches the label column width of the item store.
const labelLimit = 2048

type statsLoadedMsg struct {
	Stats spacedrep.DeckStats
	Err   error
}

type startAddMsg struct{}

type itemAddedMsg struct {
	Item *store.Item
	Err  error
}

// DeckScreen is the home screen of the application.
type DeckScreen struct {
	svc        *review.Service
	studyLimit int
	menu       components.Menu
	input      components.TextInput
	adding     bool
	stats      spacedrep.DeckStats
	loaded     bool
	lastAdded  string
	errMsg     string
}

var _ screen.Screen = (*DeckScreen)(nil)
var _ screen.KeyHintProvider = (*DeckScreen)(nil)

// New creates a DeckScreen. studyLimit caps the size of each study session;
// zero studies everything that is due.
func New(svc *review.Service, studyLimit int) *DeckScreen {
	d := &DeckScreen{svc: svc, studyLimit: studyLimit}
	d.menu = components.NewMenu([]components.MenuItem{
		menuStudy: {Label: "Study due items", Action: d.startStudy, Disabled: true},
		menuAdd:   {Label: "Add item", Action: func() tea.Cmd { return func() tea.Msg { return startAddMsg{} } }},
		menuQuit:  {Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
	})
	return d
}

func (d *DeckScreen) Init() tea.Cmd {
	return d.loadStats()
}

func (d *DeckScreen) Title() string {
	return "Deck"
}

func (d *DeckScreen) KeyHints() []layout.KeyHint {
	if d.adding {
		return []layout.KeyHint{
			{Key: "Enter", Description: "Add"},
			{Key: "Esc", Description: "Cancel"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "a", Description: "Add"},
		{Key: "s", Description: "Study"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

// Stats returns the last loaded deck statistics.
func (d *DeckScreen) Stats() spacedrep.DeckStats {
	return d.stats
}

func (d *DeckScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		d.loaded = true
		if msg.Err != nil {
			d.errMsg = msg.Err.Error()
			return d, nil
		}
		d.errMsg = ""
		d.stats = msg.Stats
		d.menu.SetDisabled(menuStudy, msg.Stats.Due == 0)
		d.menu.Items[menuStudy].Label = fmt.Sprintf("Study due items (%d)", msg.Stats.Due)
		return d, nil

	case screen.DeckChangedMsg:
		return d, d.loadStats()

	case startAddMsg:
		d.adding = true
		d.input = components.NewTextInput("What do you want to remember?", labelLimit)
		return d, d.input.Init()

	case itemAddedMsg:
		if msg.Err != nil {
			d.input.SetError(msg.Err.Error())
			return d, nil
		}
		d.lastAdded = msg.Item.Label
		d.input.Reset()
		return d, func() tea.Msg { return screen.DeckChangedMsg{} }

	case tea.KeyMsg:
		if d.adding {
			return d.handleAddKey(msg)
		}
		switch msg.String() {
		case "a":
			return d, func() tea.Msg { return startAddMsg{} }
		case "s":
			if d.menu.Items[menuStudy].Disabled {
				return d, nil
			}
			return d, d.startStudy()
		}
		var cmd tea.Cmd
		d.menu, cmd = d.menu.Update(msg)
		return d, cmd
	}

	if d.adding {
		var cmd tea.Cmd
		d.input, cmd = d.input.Update(msg)
		return d, cmd
	}
	return d, nil
}

// handleAddKey keeps the input open after each add so several items can be
// entered in a row.
func (d *DeckScreen) handleAddKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "esc":
		d.adding = false
		return d, nil
	case "enter":
		label := d.input.Value()
		if label == "" {
			d.input.SetError("label is empty")
			return d, nil
		}
		return d, func() tea.Msg {
			it, err := d.svc.Add(context.Background(), label)
			return itemAddedMsg{Item: it, Err: err}
		}
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return d, cmd
}

func (d *DeckScreen) startStudy() tea.Cmd {
	return func() tea.Msg {
		return router.PushScreenMsg{Screen: study.New(d.svc, d.studyLimit)}
	}
}

func (d *DeckScreen) loadStats() tea.Cmd {
	return func() tea.Msg {
		stats, err := d.svc.Stats(context.Background())
		return statsLoadedMsg{Stats: stats, Err: err}
	}
}

func (d *DeckScreen) View(width, height int) string {
	center := func(str string) string {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, str)
	}

	var b strings.Builder
	b.WriteString("\n")

	switch {
	case d.errMsg != "":
		b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Error).
			Render("Error: " + d.errMsg)))
	case !d.loaded:
		b.WriteString(center(theme.Hint.Render("Loading deck...")))
	case d.stats.Total == 0:
		b.WriteString(center(theme.Hint.Render("Your deck is empty. Press a to add an item.")))
	default:
		b.WriteString(center(d.renderStats()))
	}
	b.WriteString("\n\n")

	if d.adding {
		box := theme.Card.Width(min(width-8, 64)).Render(
			theme.Body.Bold(true).Render("New item") + "\n\n" + d.input.View())
		b.WriteString(center(box))
		if d.lastAdded != "" {
			b.WriteString("\n\n")
			b.WriteString(center(lipgloss.NewStyle().Foreground(theme.Success).
				Render("✓ added " + d.lastAdded)))
		}
		return b.String()
	}

	b.WriteString(center(lipgloss.NewStyle().Width(28).Render(d.menu.View())))
	return b.String()
}

func (d *DeckScreen) renderStats() string {
	st := d.stats
	cell := func(label string, n int, c spacedrep.State) string {
		return lipgloss.NewStyle().
			Width(12).
			Align(lipgloss.Center).
			Render(lipgloss.NewStyle().Foreground(theme.StateColor(c)).Bold(true).Render(fmt.Sprint(n)) +
				"\n" + theme.Hint.Render(label))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("new", st.New, spacedrep.StateNew),
		cell("learning", st.Learning, spacedrep.StateLearning),
		cell("review", st.Review, spacedrep.StateReview),
		cell("relearning", st.Relearning, spacedrep.StateRelearning),
	)

	due := fmt.Sprintf("%d due now", st.Due)
	if st.Overdue > 0 {
		due += fmt.Sprintf(", %d overdue", st.Overdue)
	}
	return theme.Card.Render(row + "\n\n" + lipgloss.PlaceHorizontal(lipgloss.Width(row), lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.Accent).Render(due)))
}
