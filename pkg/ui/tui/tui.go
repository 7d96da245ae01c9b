package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI that renders the events of a run over accounts.
// Quitting the TUI calls cancel.
func NewTUI(accounts []models.Account, events <-chan monitor.Event, cancel context.CancelFunc, opts ...tea.ProgramOption) *TUI {
	model := NewModel(accounts, events, cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the TUI until the user exits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// ReportWritten tells the TUI the report step has finished
func (t *TUI) ReportWritten(path string, err error) {
	t.program.Send(ReportMsg{Path: path, Err: err})
}

// Cancelled reports whether the user stopped the run. Only read it after
// Start returns.
func (t *TUI) Cancelled() bool {
	return t.model.Cancelled()
}
