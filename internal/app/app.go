package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/memora/internal/review"
	"github.com/abhisek/memora/internal/router"
	"github.com/abhisek/memora/internal/screen"
	"github.com/abhisek/memora/internal/screens/deck"
	"github.com/abhisek/memora/internal/ui/layout"
)

// headerStatsMsg carries the counts shown in the header.
type headerStatsMsg struct {
	Due   int
	Total int
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	svc    *review.Service
	width  int
	height int
	due    int
	total  int
}

// newAppModel creates a new AppModel with the deck screen.
func newAppModel(svc *review.Service, studyLimit int) AppModel {
	return AppModel{
		router: router.New(deck.New(svc, studyLimit)),
		svc:    svc,
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.router.Active().Init(), m.refreshHeader())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case headerStatsMsg:
		m.due = msg.Due
		m.total = msg.Total
		return m, nil

	case screen.DeckChangedMsg:
		return m, tea.Batch(m.refreshHeader(), m.router.Update(msg))

	case router.PopScreenMsg:
		// The screen underneath may show stale counts.
		cmd := m.router.Update(msg)
		return m, tea.Batch(cmd, func() tea.Msg { return screen.DeckChangedMsg{} })

	case tea.KeyMsg:
		// Esc is left to the screens: it ends a session or closes a form
		// before it navigates back.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) refreshHeader() tea.Cmd {
	return func() tea.Msg {
		st, err := m.svc.Stats(context.Background())
		if err != nil {
			// The deck screen reports load errors; keep the old counts.
			return nil
		}
		return headerStatsMsg{Due: st.Due, Total: st.Total}
	}
}

func (m AppModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the whole frame as a string.
func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.RenderHeader(title, m.due, m.total, m.width)

	var footerHints []layout.KeyHint
	if hp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = hp.KeyHints()
	} else if m.router.Depth() > 1 {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}

	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the study TUI over svc. A positive studyLimit caps the number
// of items per study session.
func Run(svc *review.Service, studyLimit int) error {
	p := tea.NewProgram(newAppModel(svc, studyLimit))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
