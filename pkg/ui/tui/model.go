package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
)

// AccountState represents how far an account's scan has got
type AccountState int

const (
	AccountPending AccountState = iota
	AccountActive
	AccountDone
	AccountFailed
)

// AccountItem is one row of the accounts panel
type AccountItem struct {
	Account  models.Account
	State    AccountState
	Posts    int
	Failed   int
	Err      error
	Started  time.Time
	Finished time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model driven by monitor events
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// Run state
	events      <-chan monitor.Event
	cancel      context.CancelFunc
	accounts    []*AccountItem
	index       map[models.Account]int
	recent      []models.Post
	maxRecent   int
	postsFound  int
	postsFailed int
	finished    int
	result      *models.RunResult
	runErr      error
	reportPath  string
	reportErr   error
	eventsDone  bool
	done        bool
	cancelling  bool

	// UI state
	sessionStartTime time.Time
	width            int
	height           int
	showHelp         bool
	logMessages      []LogMessage
	maxLogMessages   int
	now              func() time.Time
}

// NewModel creates a model for a run over accounts. cancel is called when
// the user asks to stop; it may be nil.
func NewModel(accounts []models.Account, events <-chan monitor.Event, cancel context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithGradient(string(neonMagenta), string(neonCyan)))
	p.Width = 40

	m := &Model{
		spinner:          s,
		progress:         p,
		events:           events,
		cancel:           cancel,
		index:            make(map[models.Account]int, len(accounts)),
		maxRecent:        8,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		now:              time.Now,
	}
	for i, a := range accounts {
		m.accounts = append(m.accounts, &AccountItem{Account: a})
		m.index[a] = i
	}
	return m
}

// Init starts the spinner, the redraw tick and the event listener
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), waitForEvent(m.events))
}

func (m *Model) item(a models.Account) *AccountItem {
	i, ok := m.index[a]
	if !ok {
		m.index[a] = len(m.accounts)
		m.accounts = append(m.accounts, &AccountItem{Account: a})
		return m.accounts[len(m.accounts)-1]
	}
	return m.accounts[i]
}

// ApplyEvent folds one monitor event into the model
func (m *Model) ApplyEvent(ev monitor.Event) {
	switch ev.Type {
	case monitor.EventRunStarted:
		m.AddLogMessage("INFO", "Scanning accounts")

	case monitor.EventAccountStarted:
		it := m.item(ev.Account)
		it.State = AccountActive
		it.Started = ev.Time
		m.AddLogMessage("INFO", "Opening @"+ev.Account.String())

	case monitor.EventPostExtracted:
		m.item(ev.Account).Posts++
		m.postsFound++
		if ev.Post != nil {
			m.recent = append(m.recent, *ev.Post)
			if len(m.recent) > m.maxRecent {
				m.recent = m.recent[len(m.recent)-m.maxRecent:]
			}
		}

	case monitor.EventPostFailed:
		m.item(ev.Account).Failed++
		m.postsFailed++
		m.AddLogMessage("WARN", "Skipped "+ev.URL)

	case monitor.EventAccountFinished:
		it := m.item(ev.Account)
		it.Finished = ev.Time
		it.Posts = ev.Posts
		m.finished++
		if ev.Err != nil {
			it.State = AccountFailed
			it.Err = ev.Err
			m.AddLogMessage("ERROR", ev.Err.Error())
		} else {
			it.State = AccountDone
			m.AddLogMessage("SUCCESS", "@"+ev.Account.String()+" done")
		}

	case monitor.EventLog:
		m.AddLogMessage(levelName(ev.Level), ev.Message)

	case monitor.EventRunFinished:
		m.result = ev.Result
		m.runErr = ev.Err
		if ev.Err != nil {
			m.AddLogMessage("ERROR", "Run aborted: "+ev.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Run finished")
		}
	}
}

func levelName(level string) string {
	switch level {
	case "error":
		return "ERROR"
	case "warn":
		return "WARN"
	default:
		return "INFO"
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = neonRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Fraction returns the share of accounts finished
func (m *Model) Fraction() float64 {
	if len(m.accounts) == 0 {
		return 0
	}
	return float64(m.finished) / float64(len(m.accounts))
}

// Active returns the account being scanned, if any
func (m *Model) Active() *AccountItem {
	for _, it := range m.accounts {
		if it.State == AccountActive {
			return it
		}
	}
	return nil
}

// Accounts returns the account rows in run order
func (m *Model) Accounts() []*AccountItem {
	return m.accounts
}

// Result returns the run result once the final event arrived
func (m *Model) Result() *models.RunResult {
	return m.result
}

// Cancelled reports whether the user asked the run to stop
func (m *Model) Cancelled() bool {
	return m.cancelling
}

// Done reports whether the report step finished
func (m *Model) Done() bool {
	return m.done
}
