package feed

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// EventKind enumerates change event kinds.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one mutation notification. UpdatedAt doubles as a per-ticket
// logical clock: consumers de-duplicate on (ticket id, updated_at).
type Event struct {
	Kind      EventKind     `json:"kind"`
	Ticket    domain.Ticket `json:"ticket"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// EventPublisher delivers change events to subscribers. Publication happens
// after the store write has committed and must never block or fail the
// writer; the Hub is the canonical implementation.
type EventPublisher interface {
	Publish(event Event)
}

// NewInsert builds an insert event from a ticket snapshot.
func NewInsert(t domain.Ticket) Event {
	return Event{Kind: EventInsert, Ticket: t, UpdatedAt: t.UpdatedAt}
}

// NewUpdate builds an update event from a ticket snapshot.
func NewUpdate(t domain.Ticket) Event {
	return Event{Kind: EventUpdate, Ticket: t, UpdatedAt: t.UpdatedAt}
}

// NewDelete builds a delete event for a ticket that was removed.
func NewDelete(t domain.Ticket) Event {
	return Event{Kind: EventDelete, Ticket: t, UpdatedAt: t.UpdatedAt}
}
