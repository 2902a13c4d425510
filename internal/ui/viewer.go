package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/unicode/norm"
)

var (
	viewerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	viewerEnterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	viewerExitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	viewerHelpStyle  = lipgloss.NewStyle().Faint(true)
)

type viewerModel struct {
	title   string
	entries []string
	vp      viewport.Model
	ready   bool
}

// NewViewerModel returns a Bubble Tea model that lets the user scroll
// through a replayed trace.
func NewViewerModel(title string, entries []string) tea.Model {
	return &viewerModel{title: title, entries: entries}
}

func (m *viewerModel) Init() tea.Cmd {
	return nil
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		// Leave room for the title and help lines.
		height := msg.Height - 3
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.vp.SetContent(m.renderEntries(msg.Width))
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *viewerModel) View() string {
	if !m.ready {
		return ""
	}
	title := viewerTitleStyle.Render(fmt.Sprintf("%s (%d entries)", m.title, len(m.entries)))
	help := viewerHelpStyle.Render("↑/↓/pgup/pgdn scroll · q quit")
	return title + "\n" + m.vp.View() + "\n" + help
}

func (m *viewerModel) renderEntries(width int) string {
	if len(m.entries) == 0 {
		return viewerHelpStyle.Render("(empty trace)")
	}
	var b strings.Builder
	for _, entry := range m.entries {
		// Export names are arbitrary UTF-8 (usually mangled C++), so
		// normalize before measuring and truncating.
		line := clip(norm.NFC.String(entry), width-2)
		switch {
		case strings.HasPrefix(entry, "entering "):
			b.WriteString(viewerEnterStyle.Render("→ " + line))
		case strings.HasPrefix(entry, "exiting "):
			b.WriteString(viewerExitStyle.Render("← " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
