package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vitaminmoo/blelink/internal/link"
	"github.com/vitaminmoo/blelink/internal/protocol"
)

// updateMsg carries a link.Update into the program.
type updateMsg struct {
	update link.Update
}

// clockMsg refreshes relative times ("3 seconds ago").
type clockMsg time.Time

// doneMsg is sent when the link has shut down.
type doneMsg struct {
	err error
}

// Model is the dashboard's Bubbletea model.
type Model struct {
	target string
	quit   func()
	now    time.Time
	width  int

	// Client role
	centralState link.State
	sent         int
	failed       int
	lastSent     int32
	lastSentAt   time.Time
	lastErr      string
	acks         AckRatio

	// Server role
	peripheralState link.State
	received        int
	rejected        int
	lastRecv        int32
	lastRecvAt      time.Time
	client          string

	stopping bool
	err      error

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// NewModel builds the dashboard for target. quit is called once when the
// user asks to leave; it should cancel the link.
func NewModel(target string, quit func()) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	if quit == nil {
		quit = func() {}
	}
	return Model{
		target:  target,
		quit:    quit,
		now:     time.Now(),
		acks:    NewAckRatio(),
		keys:    DefaultKeyMap(),
		help:    h,
		spinner: s,
		styles:  DefaultStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, clockCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if !m.stopping {
				m.stopping = true
				m.quit()
			}
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case clockMsg:
		m.now = time.Time(msg)
		return m, clockCmd()

	case updateMsg:
		m.apply(msg.update)
		return m, nil

	case doneMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(u link.Update) {
	switch u := u.(type) {
	case link.StateChanged:
		if u.Role == link.RoleCentral {
			m.centralState = u.State
		} else {
			m.peripheralState = u.State
		}
	case link.CounterSent:
		m.lastSent = u.Value
		m.lastSentAt = u.At
		m.acks.Record(u.Err == nil)
		if u.Err != nil {
			m.failed++
			m.lastErr = u.Err.Error()
		} else {
			m.sent++
		}
	case link.CounterReceived:
		m.received++
		m.lastRecv = u.Value
		m.lastRecvAt = u.At
		if u.Client != "" {
			m.client = u.Client
		}
	case link.PayloadRejected:
		m.rejected++
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteString("\n")

	b.WriteString(m.styles.Section.Render("Central"))
	b.WriteString("\n")
	b.WriteString(m.renderField("State", m.renderState(m.centralState, link.StateWriteLoop)))
	if m.sent+m.failed > 0 {
		b.WriteString(m.renderField("Last sent", fmt.Sprintf("%d (%s)", m.lastSent, m.ago(m.lastSentAt))))
		b.WriteString(m.renderField("Writes", humanize.Comma(int64(m.sent))+" ok, "+humanize.Comma(int64(m.failed))+" failed"))
		b.WriteString(m.renderField("Acked", m.acks.View()))
	}
	if m.lastErr != "" {
		b.WriteString(m.renderField("Last error", m.styles.Error.Render(truncate(m.lastErr, 60))))
	}

	b.WriteString(m.styles.Section.Render("Peripheral"))
	b.WriteString("\n")
	b.WriteString(m.renderField("State", m.renderState(m.peripheralState, link.StateEventLoop)))
	if m.received > 0 {
		b.WriteString(m.renderField("Last received", fmt.Sprintf("%d (%s)", m.lastRecv, m.ago(m.lastRecvAt))))
		b.WriteString(m.renderField("Received", humanize.Comma(int64(m.received))))
	}
	if m.rejected > 0 {
		b.WriteString(m.renderField("Malformed", m.styles.Warning.Render(humanize.Comma(int64(m.rejected)))))
	}
	if m.client != "" {
		b.WriteString(m.renderField("Client", m.client))
	}

	if m.stopping {
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " " + m.styles.Warning.Render("Shutting down..."))
		b.WriteString("\n")
	}

	helpView := m.styles.Help.Render(m.help.View(m.keys))
	return m.styles.App.Render(b.String() + "\n" + helpView)
}

// renderTitleBar renders the title with the peer address and link status.
func (m Model) renderTitleBar() string {
	parts := []string{
		m.styles.Title.Render(protocol.DeviceName),
		m.styles.Muted.Render("peer " + m.target),
	}
	if m.centralState == link.StateWriteLoop {
		parts = append(parts, m.styles.StatusOnline.Render("● Linked"))
	} else {
		parts = append(parts, m.styles.StatusOffline.Render("○ Not linked"))
	}
	return strings.Join(parts, "  ")
}

// renderState shows a spinner until the role reaches its steady state.
func (m Model) renderState(s, steady link.State) string {
	switch s {
	case steady:
		return m.styles.Success.Render(s.String())
	case link.StateStopped:
		return m.styles.Muted.Render(s.String())
	default:
		return m.spinner.View() + " " + m.styles.Warning.Render(s.String())
	}
}

func (m Model) renderField(label, value string) string {
	return m.styles.Label.Render(label+":") + " " + m.styles.Value.Render(value) + "\n"
}

func (m Model) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if m.now.Sub(t) < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, m.now, "ago", "from now")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}
