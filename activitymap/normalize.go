package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-jobsculpt"
)

const (
	// MetadataKeyActorType stores the actor type derived from jobsculpt.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyJobID is set by job board events and becomes their object id.
	MetadataKeyJobID = "job_id"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(jobsculpt.ActivityEvent) string
}

// Normalize converts a jobsculpt.ActivityEvent into a generic normalized
// shape. Job board events ("job.*") get the job channel and object type
// unless an option overrides them.
func Normalize(event jobsculpt.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions(event)
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(jobsculpt.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the final actor-id fallback when actor/user ids are empty.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// LogSink records every event as one normalized log line
type LogSink struct {
	logger jobsculpt.Logger
	opts   []Option
}

var _ jobsculpt.ActivitySink = (*LogSink)(nil)

// NewLogSink returns a sink writing to logger
func NewLogSink(logger jobsculpt.Logger, opts ...Option) *LogSink {
	if logger == nil {
		logger = jobsculpt.NopLogger{}
	}
	return &LogSink{logger: logger, opts: opts}
}

func (s *LogSink) Record(_ context.Context, event jobsculpt.ActivityEvent) error {
	n := Normalize(event, s.opts...)

	args := []any{
		"verb", n.Verb,
		"actor_id", n.ActorID,
		"object_type", n.ObjectType,
		"object_id", n.ObjectID,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt,
	}
	if len(n.Metadata) > 0 {
		args = append(args, "metadata", n.Metadata)
	}

	s.logger.Info("activity", args...)
	return nil
}

func defaultNormalizeOptions(event jobsculpt.ActivityEvent) normalizeOptions {
	opts := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}

	switch prefix, _, _ := strings.Cut(string(event.EventType), "."); prefix {
	case "job":
		opts.channel = "jobs"
		opts.objectType = "job"
	case "user":
		opts.channel = "profile"
	case "notification":
		opts.channel = "notifications"
	}

	return opts
}

func resolveObjectID(event jobsculpt.ActivityEvent, resolver func(jobsculpt.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if id, ok := event.Metadata[MetadataKeyJobID].(string); ok && id != "" {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event jobsculpt.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
