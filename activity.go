package membership

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventMemberRegistered       ActivityEventType = "member.registered"
	ActivityEventTagGranted             ActivityEventType = "membership.tag.granted"
	ActivityEventTagRevoked             ActivityEventType = "membership.tag.revoked"
	ActivityEventPasswordChanged        ActivityEventType = "credential.password.changed"
	ActivityEventPasswordResetRequested ActivityEventType = "credential.password.reset_requested"
	ActivityEventPasswordResetSuccess   ActivityEventType = "credential.password.reset"
	ActivityEventEmailVerified          ActivityEventType = "member.email.verified"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ActivityEvent describes a state change. Events are not persisted by
// this package; sinks decide what to do with them.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	MemberID   string
	Tag        string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for telemetry purposes.
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

// recordActivity is best effort, sink errors are only logged
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error for %s: %v", event.EventType, err)
	}
}
