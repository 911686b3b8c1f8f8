package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported session activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess      ActivityEventType = "session.signin.success"
	ActivityEventSignInFailure      ActivityEventType = "session.signin.failure"
	ActivityEventSignOut            ActivityEventType = "session.signout"
	ActivityEventRegistration       ActivityEventType = "session.registration"
	ActivityEventExchangeFailure    ActivityEventType = "session.exchange.failure"
	ActivityEventRoleFallback       ActivityEventType = "session.role.fallback"
	ActivityEventSessionEstablished ActivityEventType = "session.established"
)

// ActivityEvent captures audit-friendly information about a session action.
type ActivityEvent struct {
	ID         uuid.UUID
	EventType  ActivityEventType
	Email      string
	Role       Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort; errors are logged and never block a transition.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
