package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitaminmoo/blelink/internal/link"
)

// updateBuffer is how many link updates may queue while the dashboard is
// busy or not yet running. Updates beyond it are dropped.
const updateBuffer = 256

// Program is the running dashboard.
type Program struct {
	p       *tea.Program
	updates chan link.Update
	exited  chan struct{}
}

// New creates the dashboard for target. quit cancels the link.
func New(target string, quit func(), opts ...tea.ProgramOption) *Program {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	prog := &Program{
		p:       tea.NewProgram(NewModel(target, quit), opts...),
		updates: make(chan link.Update, updateBuffer),
		exited:  make(chan struct{}),
	}
	go prog.forward()
	return prog
}

// forward hands queued updates to the program one at a time.
func (p *Program) forward() {
	for {
		select {
		case u := <-p.updates:
			p.p.Send(updateMsg{update: u})
		case <-p.exited:
			return
		}
	}
}

// Notify queues a link update for the dashboard. It is a link.Notifier and
// never blocks; when the queue is full the update is dropped.
func (p *Program) Notify(u link.Update) {
	select {
	case p.updates <- u:
	default:
	}
}

// Done tells the dashboard the link has shut down; the program exits.
func (p *Program) Done(err error) {
	p.p.Send(doneMsg{err: err})
}

// Run blocks until the program exits.
func (p *Program) Run() error {
	defer close(p.exited)
	_, err := p.p.Run()
	return err
}
