package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"clifmatch/internal/pipeline"
)

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	width   int
	done    bool
}

type fileItem struct {
	path   string
	status string
	stage  pipeline.Stage
	note   string
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders batch progress.
// It quits once events is closed.
func NewProgressModel(title string, files []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, status: "queued"})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(pipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
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
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%s)", m.title, m.tally())
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		text := item.path
		if item.note != "" {
			text += "  " + item.note
		}
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		b.WriteString(fmt.Sprintf("  %s %s", statusStyled, truncate(text, nameWidth)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

// tally counts finished sessions by outcome.
func (m *progressModel) tally() string {
	var done, failed, errs int
	for _, item := range m.items {
		switch item.status {
		case "done":
			done++
		case "failed":
			failed++
		case "error":
			errs++
		}
	}
	return fmt.Sprintf("%d/%d matched, %d failed, %d errors", done, len(m.items), failed, errs)
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	// a failed match stays failed through the write stage
	if item.status == "failed" && ev.Stage == pipeline.StageWrite && ev.Status != pipeline.StatusError {
		item.stage = ev.Stage
	} else if label := statusLabel(ev.Stage, ev.Status); label != "" {
		item.status = label
		item.stage = ev.Stage
	}
	if ev.Err != nil {
		item.note = firstLine(ev.Err.Error())
	}

	total := 0.0
	for _, it := range m.items {
		total += progressFor(it)
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

func progressFor(item fileItem) float64 {
	switch item.status {
	case "error":
		return 1.0
	case "done", "failed":
		// matching is the last mandatory stage
		if item.stage == pipeline.StageMatch || item.stage == pipeline.StageWrite {
			return 1.0
		}
	}
	switch item.stage {
	case pipeline.StageLoad:
		return 0.1
	case pipeline.StageMatch:
		return 0.3
	case pipeline.StageWrite:
		return 0.9
	default:
		return 0.0
	}
}

func statusLabel(stage pipeline.Stage, status pipeline.Status) string {
	switch status {
	case pipeline.StatusQueued:
		return "queued"
	case pipeline.StatusDone:
		if stage == pipeline.StageLoad {
			return "loaded"
		}
		return "done"
	case pipeline.StatusFailed:
		return "failed"
	case pipeline.StatusError:
		return "error"
	case pipeline.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageLoad:
		return "loading"
	case pipeline.StageMatch:
		return "matching"
	case pipeline.StageWrite:
		return "writing"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "failed":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "loading", "loaded", "matching", "writing":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// the tail counts toward width
	return runewidth.Truncate(value, width, "...")
}
