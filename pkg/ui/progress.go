package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"igmonitor/pkg/extract"
	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker keeps track of run progress
type StatusTracker struct {
	TotalAccounts    int
	FinishedAccounts int
	FailedAccounts   int
	PostsFound       int
	PostsFailed      int
	StartTime        time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker(totalAccounts int) *StatusTracker {
	return &StatusTracker{
		TotalAccounts: totalAccounts,
		StartTime:     time.Now(),
	}
}

// Apply updates the counters from a pipeline event
func (st *StatusTracker) Apply(ev monitor.Event) {
	switch ev.Type {
	case monitor.EventRunStarted:
		st.TotalAccounts = ev.Total
	case monitor.EventAccountFinished:
		st.FinishedAccounts++
		if ev.Err != nil {
			st.FailedAccounts++
		}
	case monitor.EventPostExtracted:
		st.PostsFound++
	case monitor.EventPostFailed:
		st.PostsFailed++
	}
}

// Fraction returns the share of accounts finished, in [0, 1]
func (st *StatusTracker) Fraction() float64 {
	if st.TotalAccounts <= 0 {
		return 1
	}
	f := float64(st.FinishedAccounts) / float64(st.TotalAccounts)
	if f > 1 {
		return 1
	}
	return f
}

// GetProgress returns a formatted progress bar over the account list
func (st *StatusTracker) GetProgress() string {
	filled := int(st.Fraction() * float64(barWidth))
	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, barWidth-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.FinishedAccounts, st.TotalAccounts)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// ProgressDisplay prints pipeline events as console lines
type ProgressDisplay struct {
	out     io.Writer
	tracker *StatusTracker
	verbose bool
	width   int
}

// NewProgressDisplay creates a display writing to out. Verbose mode also
// prints every extracted post.
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		tracker: NewStatusTracker(0),
		verbose: verbose,
		width:   TerminalWidth(100),
	}
}

// Tracker returns the counters behind the display
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

// Consume prints events until ch is closed
func (p *ProgressDisplay) Consume(ch <-chan monitor.Event) {
	for ev := range ch {
		p.Handle(ev)
	}
}

// Handle prints one event
func (p *ProgressDisplay) Handle(ev monitor.Event) {
	p.tracker.Apply(ev)

	switch ev.Type {
	case monitor.EventRunStarted:
		fmt.Fprintf(p.out, "%s scanning %d accounts\n", Magenta("→"), ev.Total)

	case monitor.EventAccountStarted:
		fmt.Fprintf(p.out, "%s %s %s\n", Dim(fmt.Sprintf("[%d/%d]", ev.Index+1, ev.Total)), Cyan("@"+ev.Account.String()), Dim("…"))

	case monitor.EventPostExtracted:
		if p.verbose && ev.Post != nil {
			fmt.Fprintf(p.out, "    %s %s\n", Green("✓"), p.postLine(*ev.Post))
		}

	case monitor.EventPostFailed:
		fmt.Fprintf(p.out, "    %s %s %s\n", Red("✗"), ev.URL, Dim(errText(ev.Err)))

	case monitor.EventAccountFinished:
		if ev.Err != nil {
			fmt.Fprintf(p.out, "  %s @%s failed: %s\n", Red("✗"), ev.Account, errText(ev.Err))
		} else {
			fmt.Fprintf(p.out, "  %s @%s: %d posts %s\n", Green("✓"), ev.Account, ev.Posts, Dim(p.tracker.GetProgress()))
		}

	case monitor.EventLog:
		if ev.Level == "warn" || ev.Level == "error" {
			fmt.Fprintf(p.out, "  %s %s\n", Yellow("⚠"), ev.Message)
		} else if p.verbose {
			fmt.Fprintf(p.out, "  %s %s\n", Dim("·"), ev.Message)
		}

	case monitor.EventRunFinished:
		fmt.Fprintf(p.out, "%s done in %s\n", Magenta("→"), FormatDuration(p.tracker.GetElapsedTime()))
	}
}

// postLine renders a post as "date · caption preview" fitted to the terminal
func (p *ProgressDisplay) postLine(post models.Post) string {
	date := "undated"
	if post.PublishedAt != nil {
		date = post.PublishedAt.Format(models.DisplayDateLayout)
	}
	prefix := date + " · "
	return Dim(prefix) + Preview(post.Caption, p.width-runewidth.StringWidth(prefix)-8)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Preview cleans a caption and fits its first line into width cells
func Preview(caption string, width int) string {
	text := extract.CleanCaption(caption)
	if text == "" {
		return "(no caption)"
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " …"
	}
	if width < 8 {
		width = 8
	}
	return runewidth.Truncate(text, width, "…")
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
