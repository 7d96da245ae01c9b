package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
)

func init() {
	SetColor(false)
}

type recordingSender struct {
	title, message string
	calls          int
}

func (r *recordingSender) Send(title, message string) error {
	r.title, r.message = title, message
	r.calls++
	return nil
}

func TestStatusTracker(t *testing.T) {
	st := NewStatusTracker(0)
	assert.Equal(t, 1.0, st.Fraction())

	st.Apply(monitor.Event{Type: monitor.EventRunStarted, Total: 4})
	st.Apply(monitor.Event{Type: monitor.EventPostExtracted})
	st.Apply(monitor.Event{Type: monitor.EventPostExtracted})
	st.Apply(monitor.Event{Type: monitor.EventPostFailed})
	st.Apply(monitor.Event{Type: monitor.EventAccountFinished})
	st.Apply(monitor.Event{Type: monitor.EventAccountFinished, Err: errors.New("boom")})

	assert.Equal(t, 4, st.TotalAccounts)
	assert.Equal(t, 2, st.FinishedAccounts)
	assert.Equal(t, 1, st.FailedAccounts)
	assert.Equal(t, 2, st.PostsFound)
	assert.Equal(t, 1, st.PostsFailed)
	assert.Equal(t, 0.5, st.Fraction())
	assert.Equal(t, "["+strings.Repeat(ProgressBar, 10)+strings.Repeat(ProgressEmpty, 10)+"] 2/4", st.GetProgress())
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewProgressDisplay(&buf, true)

	at := time.Date(2024, 3, 9, 8, 30, 0, 0, time.UTC)
	ch := make(chan monitor.Event, 8)
	ch <- monitor.Event{Type: monitor.EventRunStarted, Total: 2}
	ch <- monitor.Event{Type: monitor.EventAccountStarted, Account: "alice", Index: 0, Total: 2}
	ch <- monitor.Event{Type: monitor.EventPostExtracted, Account: "alice", Post: &models.Post{Account: "alice", Caption: "Spring sale\nsecond line", PublishedAt: &at}}
	ch <- monitor.Event{Type: monitor.EventPostFailed, Account: "alice", URL: "https://www.instagram.com/p/B/", Err: errors.New("timeout")}
	ch <- monitor.Event{Type: monitor.EventAccountFinished, Account: "alice", Index: 0, Total: 2, Posts: 1}
	ch <- monitor.Event{Type: monitor.EventAccountFinished, Account: "bob", Index: 1, Total: 2, Err: errors.New("auth_wall error")}
	ch <- monitor.Event{Type: monitor.EventLog, Level: "warn", Message: "slow page"}
	ch <- monitor.Event{Type: monitor.EventRunFinished}
	close(ch)

	d.Consume(ch)

	out := buf.String()
	assert.Contains(t, out, "scanning 2 accounts")
	assert.Contains(t, out, "[1/2] @alice")
	assert.Contains(t, out, "09-03-2024 08:30 · Spring sale …")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "✗ https://www.instagram.com/p/B/ timeout")
	assert.Contains(t, out, "@alice: 1 posts")
	assert.Contains(t, out, "@bob failed: auth_wall error")
	assert.Contains(t, out, "⚠ slow page")
	assert.Contains(t, out, "done in")
	assert.Equal(t, 2, d.Tracker().FinishedAccounts)
}

func TestProgressDisplayQuiet(t *testing.T) {
	var buf bytes.Buffer
	d := NewProgressDisplay(&buf, false)

	d.Handle(monitor.Event{Type: monitor.EventPostExtracted, Post: &models.Post{Caption: "hidden"}})
	d.Handle(monitor.Event{Type: monitor.EventLog, Level: "info", Message: "chatty"})

	assert.Empty(t, buf.String())
	assert.Equal(t, 1, d.Tracker().PostsFound)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "(no caption)", Preview("   ", 40))
	assert.Equal(t, "short", Preview("short", 40))

	long := strings.Repeat("日本", 20)
	got := Preview(long, 10)
	assert.LessOrEqual(t, runewidth.StringWidth(got), 10)
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.LessOrEqual(t, runewidth.StringWidth(Preview(strings.Repeat("a", 50), 2)), 8)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()

	PrintInfo("Report", "/tmp/x.html")
	PrintError("Failed", errors.New("boom"))
	PrintWarning("Careful")

	assert.Equal(t, "Report: /tmp/x.html\nFailed: boom\nCareful\n", buf.String())
}

func TestNotifier(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifierWithSender(rec)

	require.NoError(t, n.SendNewPosts(0, "/tmp/r.html"))
	assert.Equal(t, 0, rec.calls)

	require.NoError(t, n.SendNewPosts(1, "/tmp/r.html"))
	assert.Equal(t, "igmonitor", rec.title)
	assert.Equal(t, "1 new post · /tmp/r.html", rec.message)

	require.NoError(t, n.SendNewPosts(3, "/tmp/r.html"))
	assert.Equal(t, "3 new posts · /tmp/r.html", rec.message)

	require.NoError(t, n.SendError("browser gone"))
	assert.Equal(t, "igmonitor error", rec.title)

	assert.NoError(t, NewNotifierWithSender(nil).SendNotification("a", "b"))
}

func TestSenderFor(t *testing.T) {
	assert.IsType(t, &LinuxNotificationSender{}, senderFor("linux"))
	assert.IsType(t, &MacOSNotificationSender{}, senderFor("darwin"))
	assert.IsType(t, &WindowsNotificationSender{}, senderFor("windows"))
	assert.Nil(t, senderFor("plan9"))
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
	}{
		{"linux", "xdg-open", []string{"/r/10-03-2024.html"}},
		{"freebsd", "xdg-open", []string{"/r/10-03-2024.html"}},
		{"darwin", "open", []string{"/r/10-03-2024.html"}},
		{"windows", "cmd", []string{"/c", "start", "", "/r/10-03-2024.html"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := OpenCommand(tt.goos, "/r/10-03-2024.html")
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
