package publisher

import (
	"time"

	"github.com/google/uuid"
)

// Platform is the target social network for a publish job.
type Platform string

const (
	PlatformMeta     Platform = "meta"
	PlatformTikTok   Platform = "tiktok"
	PlatformYouTube  Platform = "youtube"
	PlatformLinkedIn Platform = "linkedin"
	PlatformX        Platform = "x"
)

// Valid checks whether the platform is one of the supported networks.
func (p Platform) Valid() bool {
	switch p {
	case PlatformMeta, PlatformTikTok, PlatformYouTube, PlatformLinkedIn, PlatformX:
		return true
	}
	return false
}

// Status represents the lifecycle state of a publish job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPublished  Status = "published"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusSkipped    Status = "skipped"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusPublished, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// validTransitions is the single place the state machine is encoded.
// Every mutation goes through Job.TransitionTo, so call sites cannot
// invent transitions of their own.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusQueued, StatusProcessing, StatusCancelled, StatusSkipped, StatusPublished},
	StatusQueued:  {StatusProcessing},
	StatusProcessing: {
		StatusPublished,
		StatusFailed,
		// Stale claim reclaimed as WorkerLost: retried or exhausted.
		StatusQueued,
	},
	StatusFailed: {StatusQueued, StatusCancelled, StatusPublished},
}

// CanTransition reports whether from -> to is a defined transition.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one scheduled attempt to publish one content item to one account on
// one platform. The job store owns the record; Version implements optimistic
// concurrency for every mutation.
type Job struct {
	ID         uuid.UUID `json:"id"`
	ContentRef string    `json:"content_ref"`
	Platform   Platform  `json:"platform"`
	AccountRef string    `json:"account_ref"`
	Status     Status    `json:"status"`

	ScheduledFor time.Time `json:"scheduled_for"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	LastError    *string   `json:"last_error,omitempty"`

	PublishedAt       *time.Time `json:"published_at,omitempty"`
	PlatformPostURL   *string    `json:"platform_post_url,omitempty"`
	ManuallyPublished bool       `json:"manually_published"`

	ClaimToken *uuid.UUID `json:"claim_token,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransitionTo moves the job to the given status after validating the
// transition against the central table. Terminal states reject everything.
func (j *Job) TransitionTo(to Status) error {
	if !CanTransition(j.Status, to) {
		return invalidTransitionError(j.Status, to)
	}
	j.Status = to
	return nil
}

// AccountKey identifies the destination account across platforms; the sweep
// partitions concurrency and rate limits by this key.
func (j *Job) AccountKey() string {
	return string(j.Platform) + ":" + j.AccountRef
}

// Claimed reports whether the job currently carries a claim.
func (j *Job) Claimed() bool {
	return j.ClaimToken != nil
}

// ClaimStale reports whether the job's claim is older than the given
// threshold, meaning the worker holding it presumably crashed mid-dispatch.
func (j *Job) ClaimStale(now time.Time, threshold time.Duration) bool {
	return j.Status == StatusProcessing && j.ClaimedAt != nil && now.Sub(*j.ClaimedAt) > threshold
}

// NewJobParams carries the fields the upstream approval step provides when it
// creates a publish job.
type NewJobParams struct {
	ContentRef   string
	Platform     Platform
	AccountRef   string
	ScheduledFor time.Time
	MaxAttempts  int // 0 means DefaultMaxAttempts
}

// DefaultMaxAttempts bounds automatic retries when the caller does not set a limit.
const DefaultMaxAttempts = 3

// NewJob validates params and builds a pending job. The schedule may be at
// most grace in the past; anything older is rejected as a caller bug rather
// than silently published late.
func NewJob(params NewJobParams, now time.Time, grace time.Duration) (*Job, error) {
	if params.ContentRef == "" {
		return nil, validationError("content ref is required")
	}
	if !params.Platform.Valid() {
		return nil, validationError("unsupported platform %q", params.Platform)
	}
	if params.AccountRef == "" {
		return nil, validationError("account ref is required")
	}
	if params.ScheduledFor.Before(now.Add(-grace)) {
		return nil, validationError("scheduled time %s is more than %s in the past", params.ScheduledFor.Format(time.RFC3339), grace)
	}

	maxAttempts := params.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 0 {
		return nil, validationError("max attempts must be positive, got %d", maxAttempts)
	}

	return &Job{
		ID:           uuid.New(),
		ContentRef:   params.ContentRef,
		Platform:     params.Platform,
		AccountRef:   params.AccountRef,
		Status:       StatusPending,
		ScheduledFor: params.ScheduledFor,
		MaxAttempts:  maxAttempts,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
