package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-jobsculpt"
	"github.com/goliatone/go-jobsculpt/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := jobsculpt.ActivityEvent{
		EventType: jobsculpt.ActivityEventNewDevice,
		Actor:     jobsculpt.ActorRef{ID: "user-100", Type: "user"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"device": "Firefox on Linux",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(jobsculpt.ActivityEventNewDevice) {
		t.Fatalf("expected verb %q, got %q", jobsculpt.ActivityEventNewDevice, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["device"] != "Firefox on Linux" {
		t.Fatalf("expected metadata device, got %#v", out.Metadata["device"])
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "user" {
		t.Fatalf("expected metadata actor_type user, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeJobEvents(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(jobsculpt.ActivityEvent{
		EventType: jobsculpt.ActivityEventJobApplied,
		Actor:     jobsculpt.ActorRef{ID: "seeker-1", Type: "user"},
		UserID:    "seeker-1",
		Metadata:  map[string]any{activitymap.MetadataKeyJobID: "job-9"},
	})

	if out.Channel != "jobs" {
		t.Fatalf("expected channel jobs, got %q", out.Channel)
	}
	if out.ObjectType != "job" {
		t.Fatalf("expected object_type job, got %q", out.ObjectType)
	}
	if out.ObjectID != "job-9" {
		t.Fatalf("expected object_id job-9, got %q", out.ObjectID)
	}

	out = activitymap.Normalize(jobsculpt.ActivityEvent{EventType: jobsculpt.ActivityEventSkillAdded, UserID: "u"})
	if out.Channel != "profile" {
		t.Fatalf("expected channel profile, got %q", out.Channel)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := jobsculpt.ActivityEvent{
		EventType: jobsculpt.ActivityEventPasswordResetSuccess,
		Actor:     jobsculpt.ActorRef{Type: "user"},
		UserID:    "user-200",
		Metadata: map[string]any{
			"reset_jti":                      "reset-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e jobsculpt.ActivityEvent) string {
			if v, ok := e.Metadata["reset_jti"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "reset-1" {
		t.Fatalf("expected object_id reset-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "existing" {
		t.Fatalf("expected existing actor_type preserved, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  jobsculpt.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  jobsculpt.ActivityEvent{Actor: jobsculpt.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  jobsculpt.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when actor and user missing",
			event:  jobsculpt.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when actor and user missing",
			event:  jobsculpt.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("mailer")},
			expect: "mailer",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

type captureLogger struct {
	jobsculpt.NopLogger
	msg  string
	args []any
}

func (l *captureLogger) Info(msg string, args ...any) {
	l.msg = msg
	l.args = args
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewLogSink(logger)

	err := sink.Record(context.Background(), jobsculpt.ActivityEvent{
		EventType: jobsculpt.ActivityEventJobPosted,
		UserID:    "boss-1",
		Metadata:  map[string]any{activitymap.MetadataKeyJobID: "job-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logger.msg != "activity" {
		t.Fatalf("expected activity log line, got %q", logger.msg)
	}

	kv := map[any]any{}
	for i := 0; i+1 < len(logger.args); i += 2 {
		kv[logger.args[i]] = logger.args[i+1]
	}
	if kv["verb"] != "job.posted" || kv["object_id"] != "job-1" || kv["actor_id"] != "boss-1" {
		t.Fatalf("unexpected fields %+v", kv)
	}
}
