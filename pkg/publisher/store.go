package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows ListByStatus results for operator-facing listings.
type ListFilter struct {
	Platform   Platform // zero value matches all platforms
	AccountRef string   // empty matches all accounts
	Limit      int      // 0 means no limit
}

// StatsWindow bounds the time-windowed counters in Stats.
type StatsWindow struct {
	PublishedSince time.Time // count jobs published at or after this time
	FailedSince    time.Time // count jobs that failed at or after this time
	ScheduledUntil time.Time // count pending jobs scheduled before this time
}

// Stats is the aggregate queue projection consumed by operator tooling.
type Stats struct {
	Pending           int `json:"pending"`
	Processing        int `json:"processing"`
	Published         int `json:"published"`
	Failed            int `json:"failed"`
	ScheduledUpcoming int `json:"scheduled_upcoming"`
}

// JobStore is the single source of truth for publish jobs. Save implements
// optimistic versioning: it fails with ErrConflict when the stored version no
// longer matches expectedVersion, forcing callers to re-read and re-decide
// instead of overwriting concurrent changes. Jobs are never deleted; terminal
// jobs remain as the audit trail.
type JobStore interface {
	// Create persists a new job.
	Create(ctx context.Context, job *Job) error

	// Get returns the current state of a job or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListDue returns jobs eligible for automatic dispatch: status pending or
	// queued with scheduledFor <= now, ordered by scheduledFor ascending.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// ListByStatus returns jobs in the given status matching the filter,
	// ordered by scheduledFor ascending.
	ListByStatus(ctx context.Context, status Status, filter ListFilter) ([]*Job, error)

	// ListStaleClaims returns processing jobs whose claim is older than the
	// given cutoff, for reclaim by the scheduler sweep.
	ListStaleClaims(ctx context.Context, claimedBefore time.Time) ([]*Job, error)

	// Save persists the job if the stored version equals expectedVersion,
	// bumping the version. Returns ErrConflict on mismatch, ErrNotFound if
	// the job does not exist.
	Save(ctx context.Context, job *Job, expectedVersion int64) error

	// Counts returns the aggregate projection for the given window.
	Counts(ctx context.Context, window StatsWindow) (*Stats, error)
}
