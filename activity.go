package jobsculpt

import (
	"context"
	"errors"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister             ActivityEventType = "auth.register"
	ActivityEventRegisterFailure      ActivityEventType = "auth.register.failure"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventSocialLogin          ActivityEventType = "auth.social.login"
	ActivityEventSocialLoginFailure   ActivityEventType = "auth.social.login.failure"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventNewDevice            ActivityEventType = "auth.device.new"
	ActivityEventDeviceRemoved        ActivityEventType = "auth.device.removed"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventPasswordResetFailure ActivityEventType = "auth.password.reset.failure"
	ActivityEventVerificationSent     ActivityEventType = "auth.email.verification.sent"
	ActivityEventEmailVerified        ActivityEventType = "auth.email.verified"
	ActivityEventRoleChanged          ActivityEventType = "user.role.changed"
	ActivityEventSkillAdded           ActivityEventType = "user.skill.added"
	ActivityEventSkillRemoved         ActivityEventType = "user.skill.removed"
	ActivityEventJobPosted            ActivityEventType = "job.posted"
	ActivityEventJobDeleted           ActivityEventType = "job.deleted"
	ActivityEventJobApplied           ActivityEventType = "job.applied"
	ActivityEventNotificationFailure  ActivityEventType = "notification.failure"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
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

// MultiActivitySink fans an event out to every sink. All sinks run even if
// one fails; errors are joined.
type MultiActivitySink []ActivitySink

func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
