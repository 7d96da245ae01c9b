package monitor

import (
	"context"
	"time"

	"igmonitor/pkg/models"
)

// EventType identifies what happened during a run
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventAccountStarted  EventType = "account_started"
	EventAccountFinished EventType = "account_finished"
	EventPostExtracted   EventType = "post_extracted"
	EventPostFailed      EventType = "post_failed"
	EventLog             EventType = "log"
	EventRunFinished     EventType = "run_finished"
)

// Event is a progress notification sent from the running pipeline to a front-end.
// Index is zero-based; Total is the number of accounts in the run.
type Event struct {
	Type    EventType
	Time    time.Time
	Account models.Account
	Index   int
	Total   int
	URL     string
	Post    *models.Post
	Posts   int
	Err     error
	Level   string
	Message string
	Result  *models.RunResult
}

// emit delivers ev to the events channel. It never blocks once ctx is done;
// a run that was cancelled still gets its final event through when the
// channel has room.
func (m *Monitor) emit(ctx context.Context, ev Event) {
	if m.events == nil {
		return
	}
	ev.Time = m.now()

	if ctx.Err() != nil {
		select {
		case m.events <- ev:
		default:
		}
		return
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

// logf emits an EventLog line for front-ends that show a log pane
func (m *Monitor) logf(ctx context.Context, level, msg string) {
	m.emit(ctx, Event{Type: EventLog, Level: level, Message: msg})
}
