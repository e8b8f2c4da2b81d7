// Package telemetry defines the event stream emitted alongside the durable
// audit log (e.g. to Kafka or an OTLP collector).
package telemetry

import (
	"context"
	"time"
)

// Event is the wire shape of one streamed auth event. JSON field names are
// stable: the worker and any downstream consumers decode this exact shape.
type Event struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id,omitempty"`
	EventType string            `json:"event_type"`
	StateFrom string            `json:"state_from,omitempty"`
	StateTo   string            `json:"state_to"`
	Data      map[string]string `json:"data,omitempty"`
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}

// EventEmitter emits auth events to a stream. Callers use it best-effort:
// log and ignore errors, never block a transition on it.
type EventEmitter interface {
	// Emit sends a single event. Implementations may block briefly; call from
	// a goroutine if needed.
	Emit(ctx context.Context, e *Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
