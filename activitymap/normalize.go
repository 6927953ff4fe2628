// Package activitymap flattens membership activity events into records
// for structured logs and downstream feeds.
package activitymap

import (
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-membership"
)

// Metadata keys filled from the event itself
const (
	MetadataKeyActorType = "actor_type"
	MetadataKeyTag       = "tag"
)

const (
	Channel    = "membership"
	ObjectType = "member"
)

// Normalized is a transport-agnostic activity record
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields flattens the record into key/value pairs for zap's Infow
func (n Normalized) Fields() []any {
	fields := []any{
		"actor_id", n.ActorID,
		"verb", n.Verb,
		"object_type", n.ObjectType,
		"object_id", n.ObjectID,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt,
	}
	if len(n.Metadata) > 0 {
		fields = append(fields, "metadata", n.Metadata)
	}
	return fields
}

// Option customizes normalization
type Option func(*normalizer)

type normalizer struct {
	actor string
	now   func() time.Time
}

// WithActorFallback names the actor for events without actor or member id,
// e.g. the CLI acting on its own.
func WithActorFallback(actorID string) Option {
	return func(n *normalizer) {
		n.actor = strings.TrimSpace(actorID)
	}
}

// WithClock sets the time used for events without OccurredAt
func WithClock(now func() time.Time) Option {
	return func(n *normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalize maps event onto a Normalized record. The member is the object,
// the actor falls back to the member and then to "system".
func Normalize(event membership.ActivityEvent, opts ...Option) Normalized {
	n := normalizer{actor: "system", now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&n)
		}
	}

	memberID := strings.TrimSpace(event.MemberID)
	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = memberID
	}
	if actorID == "" {
		actorID = n.actor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = n.now()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: ObjectType,
		ObjectID:   memberID,
		Channel:    Channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

func metadata(event membership.ActivityEvent) map[string]any {
	out := maps.Clone(event.Metadata)
	set := func(key, value string) {
		if value == "" {
			return
		}
		if out == nil {
			out = map[string]any{}
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}
	set(MetadataKeyActorType, strings.TrimSpace(event.Actor.Type))
	set(MetadataKeyTag, strings.TrimSpace(event.Tag))
	if len(out) == 0 {
		return nil
	}
	return out
}
