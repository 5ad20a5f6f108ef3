package tasks

import (
	"fmt"
	"time"
)

// State is a step of the per-event state machine.
//
//	Detected → Dispatched → {Succeeded, FailedRetryable, FailedFatal}
//
// FailedRetryable is followed by another Dispatched when the event is retried.
type State int

const (
	Detected State = iota
	Dispatched
	Succeeded
	FailedRetryable
	FailedFatal
)

func (s State) String() string {
	switch s {
	case Detected:
		return "detected"
	case Dispatched:
		return "dispatched"
	case Succeeded:
		return "succeeded"
	case FailedRetryable:
		return "failed_retryable"
	case FailedFatal:
		return "failed_fatal"
	default:
		return ""
	}
}

// Terminal reports whether s ends an event's processing.
func (s State) Terminal() bool {
	return s == Succeeded || s == FailedFatal
}

// Update is emitted on every state transition of a change event.
//
// Used to send real-time updates to the CLI layer for display.
type Update struct {
	Integration string
	Seq         int64
	Trigger     string
	LocalID     string
	State       State
	Attempt     int   // Push attempt number, zero before the first dispatch
	Err         error // Set for failed states
	Time        time.Time
}

// Message renders the update as a single human-readable line.
func (u Update) Message() string {
	msg := fmt.Sprintf("[%s #%d] %s(%s) %s", u.Integration, u.Seq, u.Trigger, u.LocalID, u.State)
	if u.Attempt > 1 {
		msg += fmt.Sprintf(" (attempt %d)", u.Attempt)
	}
	if u.Err != nil {
		msg += ": " + u.Err.Error()
	}
	return msg
}

// sendUpdate sends an update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks a worker.
func sendUpdate(updates chan<- Update, update Update) {
	if updates == nil {
		return
	}
	select {
	case updates <- update:
	default:
	}
}
