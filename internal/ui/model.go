package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/john/popupchat/internal/message"
	"github.com/john/popupchat/internal/poller"
)

const title = "Popup Chat"

// Snapshotter is the read side of the message buffer
type Snapshotter interface {
	Snapshot() ([]message.ChatRecord, error)
}

type tickMsg poller.Tick

type feedClosedMsg struct{}

// Model renders the buffer snapshot in a scrolling viewport
type Model struct {
	log        *slog.Logger
	source     Snapshotter
	ticks      <-chan poller.Tick
	appearance Appearance
	styles     styles
	viewport   viewport.Model
}

// New creates the overlay model
func New(log *slog.Logger, source Snapshotter, ticks <-chan poller.Tick, appearance Appearance) Model {
	cols, rows := appearance.Cells()
	m := Model{
		log:        log,
		source:     source,
		ticks:      ticks,
		appearance: appearance,
		styles:     newStyles(appearance),
	}
	m.viewport = viewport.New(cols, rows)
	m.resize(cols, rows)
	return m
}

// Init starts listening for poller ticks
func (m Model) Init() tea.Cmd {
	return waitForTick(m.ticks)
}

// Update handles ticks, resizes and keys
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.viewport.SetContent(m.content())
		m.viewport.GotoBottom()
		return m, waitForTick(m.ticks)

	case feedClosedMsg:
		return m, nil

	case tea.WindowSizeMsg:
		cols, rows := m.appearance.Cells()
		m.resize(min(cols, msg.Width), min(rows, msg.Height))
		m.viewport.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View re-reads the buffer on every redraw
func (m Model) View() string {
	vp := m.viewport
	vp.SetContent(m.content())

	body := vp.View()
	if m.appearance.Decorations {
		body = lipgloss.JoinVertical(lipgloss.Left, m.styles.title.Render(title), body)
	}
	return m.styles.frame.Render(body)
}

// resize fits the viewport inside the frame for the given outer size
func (m *Model) resize(cols, rows int) {
	frameW, frameH := m.styles.frame.GetFrameSize()
	innerH := rows - frameH
	if m.appearance.Decorations {
		innerH-- // title line
	}
	m.viewport.Width = max(cols-frameW, 1)
	m.viewport.Height = max(innerH, 1)
}

func (m Model) content() string {
	records, err := m.source.Snapshot()
	if err != nil {
		m.log.Error("Cannot read messages", "error", err)
		records = nil
	}
	return renderRows(m.styles, records, m.viewport.Width)
}

// renderRows draws one "[author] text" row per record, wrapped to width
func renderRows(s styles, records []message.ChatRecord, width int) string {
	wrap := s.body.Width(max(width, 1))
	rows := make([]string, 0, len(records))
	for _, r := range records {
		row := s.author.Render("["+r.Author+"]") + " " + r.Text
		rows = append(rows, wrap.Render(row))
	}
	return strings.Join(rows, "\n")
}

func waitForTick(ticks <-chan poller.Tick) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ticks
		if !ok {
			return feedClosedMsg{}
		}
		return tickMsg(t)
	}
}
