package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	progressHeaderStyle = lipgloss.NewStyle().Bold(true)
	progressDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	progressErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	progressBusyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	progressIdleStyle   = lipgloss.NewStyle().Faint(true)
)

// stageWeight is how far through the pipeline a module is while a
// stage is still running.
func stageWeight(stage Stage) float64 {
	switch stage {
	case StageDecode:
		return 0.25
	case StageInstrument:
		return 0.5
	case StageEncode:
		return 0.75
	case StageSidecar:
		return 0.9
	default:
		return 0
	}
}

// moduleRow tracks one input module through the pipeline.
type moduleRow struct {
	path  string
	stage Stage
	state Status
}

func (r moduleRow) label() string {
	switch r.state {
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	case StatusWorking:
		switch r.stage {
		case StageDecode:
			return "decoding"
		case StageInstrument:
			return "instrumenting"
		case StageEncode:
			return "encoding"
		case StageSidecar:
			return "writing names"
		}
	}
	return "queued"
}

func (r moduleRow) style() lipgloss.Style {
	switch r.state {
	case StatusDone:
		return progressDoneStyle
	case StatusError:
		return progressErrorStyle
	case StatusWorking:
		return progressBusyStyle
	default:
		return progressIdleStyle
	}
}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	bar     progress.Model
	rows    []moduleRow
	index   map[string]int
	width   int
	done    bool
}

type eventMsg Event
type pipelineDoneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders
// instrumentation progress for a batch of modules.
func NewProgressModel(title string, files []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = progressBusyStyle

	rows := make([]moduleRow, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		rows[i] = moduleRow{path: file, state: StatusQueued}
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		rows:    rows,
		index:   index,
		width:   72,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.nextEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(Event(msg)), m.nextEvent())
	case pipelineDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 6
		}
		return m, nil
	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}

	var b strings.Builder
	if m.done {
		b.WriteString(progressHeaderStyle.Render(m.title + ": done"))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(progressHeaderStyle.Render(m.title))
	}
	b.WriteString("\n\n")

	labelWidth := 0
	for _, r := range m.rows {
		if w := runewidth.StringWidth(r.label()); w > labelWidth {
			labelWidth = w
		}
	}
	pathWidth := m.width - labelWidth - 4
	if pathWidth < 16 {
		pathWidth = 16
	}

	for _, r := range m.rows {
		label := r.style().Render(fmt.Sprintf("%-*s", labelWidth, r.label()))
		fmt.Fprintf(&b, "  %s  %s\n", label, clip(r.path, pathWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1.0))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return pipelineDoneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev Event) tea.Cmd {
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	m.rows[idx].state = ev.Status
	if ev.Stage != 0 {
		m.rows[idx].stage = ev.Stage
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	var total float64
	for _, r := range m.rows {
		switch r.state {
		case StatusDone, StatusError:
			total += 1
		case StatusWorking:
			total += stageWeight(r.stage)
		}
	}
	return total / float64(len(m.rows))
}

// clip shortens a path to fit the given display width.
func clip(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
