package enroll

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityEventType enumerates supported audit categories
type ActivityEventType string

const (
	ActivityEventRegistrationCreated  ActivityEventType = "registration.created"
	ActivityEventStudentRegistered    ActivityEventType = "student.registered"
	ActivityEventStudentVerified      ActivityEventType = "student.verified"
	ActivityEventStudentStatusChanged ActivityEventType = "student.status.changed"
	ActivityEventStudentDeleted       ActivityEventType = "student.deleted"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventExternalLogin        ActivityEventType = "auth.external.login"
)

// ActorRef identifies who or what triggered an event
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	EntityType string
	EntityID   string
	FromStatus StudentStatus
	ToStatus   StudentStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events. Writes are fire-and-forget
// relative to the primary operation: callers log a failed Record and
// move on, they never roll back because of it.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink
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

// BunActivitySink appends activity events to the activity_logs table
type BunActivitySink struct {
	db *bun.DB
}

var _ ActivitySink = (*BunActivitySink)(nil)

// NewBunActivitySink creates a sink backed by the given database
func NewBunActivitySink(db *bun.DB) *BunActivitySink {
	return &BunActivitySink{db: db}
}

// Record appends one audit row
func (s *BunActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	entry := &ActivityLog{
		ID:         uuid.New(),
		ActionType: string(event.EventType),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    eventDetails(event),
	}

	if event.Actor.ID != "" {
		if actorID, err := uuid.Parse(event.Actor.ID); err == nil {
			entry.UserID = &actorID
		}
	}

	if !event.OccurredAt.IsZero() {
		at := event.OccurredAt
		entry.CreatedAt = &at
	}

	_, err := s.db.NewInsert().Model(entry).Exec(ctx)
	return err
}

func eventDetails(event ActivityEvent) map[string]any {
	details := map[string]any{}
	if event.Actor.Type != "" {
		details["actor_type"] = event.Actor.Type
	}
	if event.FromStatus != "" {
		details["from_status"] = event.FromStatus
	}
	if event.ToStatus != "" {
		details["to_status"] = event.ToStatus
	}
	for k, v := range event.Metadata {
		details[k] = v
	}
	return details
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("activity sink record error: %v", err)
	}
}
