package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amplifyops/publishkit/pkg/logger"
)

// Asset is the approved content item a job publishes. The content store owns
// it; the dispatcher only reads it to hand it to the platform adapter.
type Asset struct {
	ContentRef string
	Kind       string // e.g. "image", "video", "carousel"
	MediaURL   string
	Caption    string
}

// ContentStore is the read-only capability to resolve a job's content.
// GetAsset returns ErrAssetUnavailable when the content item was deleted or
// unapproved upstream, which skips the job instead of retrying it.
type ContentStore interface {
	GetAsset(ctx context.Context, contentRef string) (*Asset, error)
}

// PublishResult is a successful adapter outcome.
type PublishResult struct {
	PostURL string
}

// PlatformAdapter publishes an asset to a destination account. One
// implementation per platform. Errors should be wrapped with
// NewTransientError or NewPermanentError; unwrapped errors are treated as
// unknown and retried while consuming an attempt.
type PlatformAdapter interface {
	Publish(ctx context.Context, accountRef string, asset *Asset) (*PublishResult, error)
}

// AlertEventType discriminates operator notifications.
type AlertEventType string

const (
	// AlertJobFailed fires when a job lands in failed with no retry scheduled.
	AlertJobFailed AlertEventType = "job_failed"
)

// AlertEvent is the payload delivered to the alerting channel.
type AlertEvent struct {
	Type       AlertEventType
	JobID      uuid.UUID
	Platform   Platform
	AccountRef string
	Attempts   int
	Error      string
	OccurredAt time.Time
}

// AlertChannel notifies operators about terminal failures. Delivery is best
// effort: a notify failure never blocks or fails a job transition.
type AlertChannel interface {
	Notify(ctx context.Context, event AlertEvent) error
}

// LogAlertChannel is the default alert channel: it writes events to the
// structured log so a deployment without a real channel still surfaces
// failures somewhere.
type LogAlertChannel struct {
	log *slog.Logger
}

// NewLogAlertChannel creates an alert channel backed by the given logger.
func NewLogAlertChannel(log *slog.Logger) *LogAlertChannel {
	if log == nil {
		log = slog.Default()
	}
	return &LogAlertChannel{log: log}
}

func (c *LogAlertChannel) Notify(ctx context.Context, event AlertEvent) error {
	c.log.LogAttrs(ctx, slog.LevelWarn, "publish job alert",
		slog.String("event", string(event.Type)),
		logger.JobID(event.JobID),
		logger.Platform(event.Platform),
		logger.Account(event.AccountRef),
		slog.Int("attempts", event.Attempts),
		slog.String("error", event.Error),
	)
	return nil
}
