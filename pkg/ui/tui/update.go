package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"igmonitor/pkg/monitor"
)

// Message types for the TUI

// EventMsg carries one monitor event into the update loop
type EventMsg struct {
	Event monitor.Event
}

// EventsClosedMsg is sent once the event channel is closed
type EventsClosedMsg struct{}

// ReportMsg is sent when the report step has finished
type ReportMsg struct {
	Path string
	Err  error
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, (msg.Width-4)/2-16)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.ApplyEvent(msg.Event)
		return m, waitForEvent(m.events)

	case EventsClosedMsg:
		m.eventsDone = true
		return m, nil

	case ReportMsg:
		m.done = true
		m.reportPath = msg.Path
		m.reportErr = msg.Err
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Report failed: "+msg.Err.Error())
		} else if msg.Path != "" {
			m.AddLogMessage("SUCCESS", "Report written to "+msg.Path)
		}
		if m.cancelling {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input. The first quit request cancels the
// run and waits for the report; a second one, or any after the report, exits.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if m.done || m.cancelling {
			return m, tea.Quit
		}
		m.cancelling = true
		if m.cancel != nil {
			m.cancel()
		}
		m.AddLogMessage("WARN", "Stopping after the current page, press q again to leave now")
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// Commands

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForEvent reads the next event from ch
func waitForEvent(ch <-chan monitor.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}
