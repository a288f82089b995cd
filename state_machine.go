package enroll

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_STUDENT_STATE_TRANSITION"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid student state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// TransitionMetadata captures extra context for a transition
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition
type TransitionOption func(*transitionOptions)

// WithTransitionReason sets the human-readable reason for the transition
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition event
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses validation rules (use sparingly)
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithSuspensionTime overrides the timestamp recorded when entering the suspended state
func WithSuspensionTime(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.suspensionTime = &t
	}
}

// StudentStateMachine defines lifecycle operations for student accounts
type StudentStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, student *Student, target StudentStatus, opts ...TransitionOption) (*Student, error)
	CurrentStatus(student *Student) StudentStatus
}

// StateMachineOption customizes state machine construction
type StateMachineOption func(*studentStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests)
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *studentStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the sink used to publish lifecycle events
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *studentStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *studentStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// NewStudentStateMachine returns the default implementation backed by
// the provided repository.
//
// Allowed transitions: unverified → pending (OTP check), pending →
// active (admin approval), active ⇄ suspended (admin action). Deletion
// is handled by the repository's soft delete, from any status.
func NewStudentStateMachine(students Students, opts ...StateMachineOption) StudentStateMachine {
	sm := &studentStateMachine{
		students: students,
		transitions: map[StudentStatus]map[StudentStatus]struct{}{
			StudentStatusUnverified: {
				StudentStatusPending: {},
			},
			StudentStatusPending: {
				StudentStatusActive: {},
			},
			StudentStatusActive: {
				StudentStatusSuspended: {},
			},
			StudentStatusSuspended: {
				StudentStatusActive: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type studentStateMachine struct {
	students     Students
	transitions  map[StudentStatus]map[StudentStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

type transitionOptions struct {
	metadata       TransitionMetadata
	force          bool
	suspensionTime *time.Time
}

func (sm *studentStateMachine) Transition(ctx context.Context, actor ActorRef, student *Student, target StudentStatus, opts ...TransitionOption) (*Student, error) {
	if student == nil {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"target": target,
			"reason": "student is nil",
		})
	}

	student.EnsureStatus()
	from := student.Status
	if target == "" {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"reason": "target status is empty",
		})
	}

	if from == target {
		return student, nil
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if !options.force && !sm.canTransition(from, target) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	statusOpts, suspensionTime := sm.buildStatusOptions(student, from, target, options)

	updated, err := sm.students.UpdateStatus(ctx, student.ID, target, statusOpts...)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(student, updated, target, from, suspensionTime)

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventStudentStatusChanged,
		Actor:      actor,
		EntityType: "student",
		EntityID:   student.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   transitionEventMetadata(options.metadata),
	})

	return student, nil
}

func (sm *studentStateMachine) CurrentStatus(student *Student) StudentStatus {
	if student == nil {
		return ""
	}
	student.EnsureStatus()
	return student.Status
}

func (sm *studentStateMachine) canTransition(from, to StudentStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *studentStateMachine) buildStatusOptions(student *Student, from, to StudentStatus, opts *transitionOptions) ([]StatusUpdateOption, *time.Time) {
	statusOpts := []StatusUpdateOption{}
	var suspensionTime *time.Time

	if to == StudentStatusSuspended {
		switch {
		case opts.suspensionTime != nil:
			suspensionTime = opts.suspensionTime
		case student.SuspendedAt != nil:
			suspensionTime = student.SuspendedAt
		default:
			now := sm.now()
			suspensionTime = &now
		}
		statusOpts = append(statusOpts, WithSuspendedAt(suspensionTime))
	} else if from == StudentStatusSuspended && student.SuspendedAt != nil {
		statusOpts = append(statusOpts, WithSuspendedAt(nil))
	}

	return statusOpts, suspensionTime
}

func (sm *studentStateMachine) applyUpdates(student, updated *Student, target, from StudentStatus, suspensionTime *time.Time) {
	if updated != nil {
		if updated.Status != "" {
			student.Status = updated.Status
		} else {
			student.Status = target
		}
		student.SuspendedAt = updated.SuspendedAt
		return
	}

	student.Status = target
	if target == StudentStatusSuspended {
		student.SuspendedAt = suspensionTime
	} else if from == StudentStatusSuspended {
		student.SuspendedAt = nil
	}
}

func (sm *studentStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}
	recordActivity(ctx, sm.activitySink, sm.logger, event)
}

func transitionEventMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
