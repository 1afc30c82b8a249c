package calendar

import (
	"context"
	"fmt"
	"time"
)

// Event is one expanded (non-recurring) instance on the external calendar.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	Status  string
}

// EventStatusCancelled is the external status marking an event removed on
// the calendar side.
const EventStatusCancelled = "cancelled"

// Client is the narrow contract the core needs from the external calendar
// of record. A constructed client is injected at startup; every failure is
// reported as *Error.
type Client interface {
	CreateEvent(ctx context.Context, date, startTime, endTime, title string) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Error wraps any transport, auth or API failure from the external calendar.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("calendar %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}
