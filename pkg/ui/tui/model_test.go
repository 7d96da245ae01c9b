package tui

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
)

var start = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testModel(cancel func()) (*Model, chan monitor.Event) {
	ch := make(chan monitor.Event, 16)
	m := NewModel([]models.Account{"alice", "bob"}, ch, cancel)
	m.now = func() time.Time { return start }
	m.sessionStartTime = start
	return m, ch
}

func post(account models.Account, code, caption string) *models.Post {
	at := start.Add(-time.Hour)
	return &models.Post{
		URL:         "https://www.instagram.com/p/" + code + "/",
		Account:     account,
		Caption:     caption,
		PublishedAt: &at,
	}
}

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApplyEvents(t *testing.T) {
	m, _ := testModel(nil)

	authErr := errs.New(errs.ErrorTypeAuthWall, "open profile", errors.New("login required")).WithAccount("bob")
	run := &models.RunResult{TotalPosts: 1, StartedAt: start, FinishedAt: start.Add(90 * time.Second)}

	for _, ev := range []monitor.Event{
		{Type: monitor.EventRunStarted, Total: 2},
		{Type: monitor.EventAccountStarted, Account: "alice", Index: 0, Total: 2, Time: start},
		{Type: monitor.EventPostExtracted, Account: "alice", Post: post("alice", "A1", "hello")},
		{Type: monitor.EventPostFailed, Account: "alice", URL: "https://www.instagram.com/p/A2/", Err: errors.New("timeout")},
	} {
		m.ApplyEvent(ev)
	}

	active := m.Active()
	require.NotNil(t, active)
	assert.Equal(t, models.Account("alice"), active.Account)
	assert.Equal(t, 1, active.Posts)
	assert.Equal(t, 1, active.Failed)

	for _, ev := range []monitor.Event{
		{Type: monitor.EventAccountFinished, Account: "alice", Index: 0, Total: 2, Posts: 1, Time: start.Add(5 * time.Second)},
		{Type: monitor.EventAccountStarted, Account: "bob", Index: 1, Total: 2},
		{Type: monitor.EventAccountFinished, Account: "bob", Index: 1, Total: 2, Err: authErr},
		{Type: monitor.EventRunFinished, Total: 2, Posts: 1, Result: run},
	} {
		m.ApplyEvent(ev)
	}

	accounts := m.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, AccountDone, accounts[0].State)
	assert.Equal(t, 5*time.Second, accounts[0].Finished.Sub(accounts[0].Started))
	assert.Equal(t, AccountFailed, accounts[1].State)
	assert.True(t, errs.Is(accounts[1].Err, errs.ErrorTypeAuthWall))

	assert.Nil(t, m.Active())
	assert.Equal(t, 1.0, m.Fraction())
	assert.Equal(t, 1, m.postsFound)
	assert.Equal(t, 1, m.postsFailed)
	assert.Same(t, run, m.Result())
}

func TestUnknownAccountIsAppended(t *testing.T) {
	m, _ := testModel(nil)

	m.ApplyEvent(monitor.Event{Type: monitor.EventAccountStarted, Account: "carol"})

	require.Len(t, m.Accounts(), 3)
	assert.Equal(t, models.Account("carol"), m.Accounts()[2].Account)
	assert.Equal(t, AccountActive, m.Accounts()[2].State)
}

func TestRecentPostsAreCapped(t *testing.T) {
	m, _ := testModel(nil)

	for i := 0; i < 20; i++ {
		m.ApplyEvent(monitor.Event{
			Type:    monitor.EventPostExtracted,
			Account: "alice",
			Post:    post("alice", fmt.Sprintf("P%d", i), "caption"),
		})
	}

	require.Len(t, m.recent, m.maxRecent)
	assert.Equal(t, "https://www.instagram.com/p/P19/", m.recent[len(m.recent)-1].URL)
	assert.Equal(t, 20, m.postsFound)
}

func TestLogMessagesAreCapped(t *testing.T) {
	m, _ := testModel(nil)

	for i := 0; i < 60; i++ {
		m.AddLogMessage("INFO", fmt.Sprintf("line %d", i))
	}

	require.Len(t, m.logMessages, 50)
	assert.Equal(t, "line 59", m.logMessages[49].Message)
	assert.Equal(t, neonCyan, m.logMessages[0].Color)
}

func TestLogEventLevels(t *testing.T) {
	m, _ := testModel(nil)

	m.ApplyEvent(monitor.Event{Type: monitor.EventLog, Level: "warn", Message: "slow"})
	m.ApplyEvent(monitor.Event{Type: monitor.EventLog, Level: "debug", Message: "detail"})

	require.Len(t, m.logMessages, 2)
	assert.Equal(t, "WARN", m.logMessages[0].Level)
	assert.Equal(t, neonOrange, m.logMessages[0].Color)
	assert.Equal(t, "INFO", m.logMessages[1].Level)
}

func TestUpdateReadsNextEvent(t *testing.T) {
	m, ch := testModel(nil)

	ch <- monitor.Event{Type: monitor.EventAccountStarted, Account: "alice"}
	_, cmd := m.Update(EventMsg{Event: monitor.Event{Type: monitor.EventRunStarted, Total: 2}})
	require.NotNil(t, cmd)

	msg := cmd()
	evMsg, ok := msg.(EventMsg)
	require.True(t, ok)
	assert.Equal(t, monitor.EventAccountStarted, evMsg.Event.Type)

	close(ch)
	_, cmd = m.Update(evMsg)
	require.NotNil(t, cmd)
	assert.Equal(t, EventsClosedMsg{}, cmd())

	m.Update(EventsClosedMsg{})
	assert.True(t, m.eventsDone)
}

func TestQuitCancelsRunFirst(t *testing.T) {
	cancelled := 0
	m, _ := testModel(func() { cancelled++ })

	_, cmd := m.Update(key("q"))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, cancelled)
	assert.True(t, m.Cancelled())

	_, cmd = m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, cancelled)
}

func TestReportAfterCancelQuits(t *testing.T) {
	m, _ := testModel(func() {})

	m.Update(key("q"))
	_, cmd := m.Update(ReportMsg{Path: "/tmp/reports/10-03-2024.html"})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Done())
}

func TestReportKeepsScreenUntilQuit(t *testing.T) {
	m, _ := testModel(nil)

	_, cmd := m.Update(ReportMsg{Path: "/tmp/reports/10-03-2024.html"})
	assert.Nil(t, cmd)
	assert.True(t, m.Done())
	assert.False(t, m.Cancelled())

	_, cmd = m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestReportError(t *testing.T) {
	m, _ := testModel(nil)

	m.Update(ReportMsg{Err: errors.New("disk full")})

	require.NotEmpty(t, m.logMessages)
	last := m.logMessages[len(m.logMessages)-1]
	assert.Equal(t, "ERROR", last.Level)
	assert.Contains(t, last.Message, "disk full")
	assert.Equal(t, "q to exit", m.footer())
}

func TestHelpToggleAndClearLogs(t *testing.T) {
	m, _ := testModel(nil)
	m.AddLogMessage("INFO", "hello")

	m.Update(key("?"))
	assert.True(t, m.showHelp)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
}

func TestView(t *testing.T) {
	m, _ := testModel(nil)
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	m.ApplyEvent(monitor.Event{Type: monitor.EventAccountStarted, Account: "alice", Time: start})
	m.ApplyEvent(monitor.Event{Type: monitor.EventPostExtracted, Account: "alice", Post: post("alice", "A1", "Spring sale")})
	m.ApplyEvent(monitor.Event{Type: monitor.EventAccountFinished, Account: "alice", Posts: 1, Time: start.Add(3 * time.Second)})
	m.Update(ReportMsg{Path: "/tmp/reports/10-03-2024.html"})

	view := m.View()
	assert.Contains(t, view, "IGMONITOR")
	assert.Contains(t, view, "@alice")
	assert.Contains(t, view, "@bob")
	assert.Contains(t, view, "Spring sale")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "/tmp/reports/10-03-2024.html")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "00:00"},
		{0, "00:00"},
		{65 * time.Second, "01:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}
