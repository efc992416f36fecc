package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amplifyops/publishkit/pkg/logger"
)

// ClaimManager grants exclusive execution rights over a job: at most one
// worker holds a claim at any time. All coordination happens through the job
// store's versioned Save, so exclusivity holds across processes without any
// in-process locks.
type ClaimManager struct {
	store JobStore
	log   *slog.Logger
}

// ClaimOption configures a ClaimManager.
type ClaimOption func(*ClaimManager)

// WithClaimLogger sets the logger for claim operations.
func WithClaimLogger(log *slog.Logger) ClaimOption {
	return func(cm *ClaimManager) {
		if log != nil {
			cm.log = log
		}
	}
}

// NewClaimManager creates a claim manager over the given store.
func NewClaimManager(store JobStore, opts ...ClaimOption) (*ClaimManager, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}

	cm := &ClaimManager{
		store: store,
		log:   slog.Default(),
	}

	for _, opt := range opts {
		opt(cm)
	}

	return cm, nil
}

// Claim transitions a pending or queued job to processing and returns the
// claimed copy carrying the claim token. Exactly one of N concurrent callers
// succeeds: the versioned save rejects the rest with ErrAlreadyProcessing.
func (cm *ClaimManager) Claim(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := cm.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusProcessing {
		return nil, ErrAlreadyProcessing
	}

	expectedVersion := job.Version

	if err := job.TransitionTo(StatusProcessing); err != nil {
		return nil, err
	}

	token := uuid.New()
	now := time.Now()
	job.ClaimToken = &token
	job.ClaimedAt = &now

	if err := cm.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			// Another worker won the race.
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}

	cm.log.LogAttrs(ctx, slog.LevelDebug, "claimed publish job",
		logger.JobID(job.ID),
		slog.String("claim_token", token.String()),
	)

	return job, nil
}

// Release clears the claim and applies the outcome in the same atomic update.
// The apply callback mutates the job into its outcome state (status, attempt
// counters, error fields); Release validates the token first and clears the
// claim fields before saving. If the claim was reclaimed in the meantime —
// the sweep decided this worker was lost — Release fails with ErrWorkerLost
// and the sweep's decision stands.
func (cm *ClaimManager) Release(ctx context.Context, jobID, token uuid.UUID, apply func(*Job) error) (*Job, error) {
	job, err := cm.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.ClaimToken == nil || *job.ClaimToken != token {
		return nil, ErrWorkerLost
	}

	expectedVersion := job.Version

	if err := apply(job); err != nil {
		return nil, err
	}

	job.ClaimToken = nil
	job.ClaimedAt = nil

	if err := cm.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			// Version moved between our read and save; only a forced reclaim
			// can touch a claimed job, so the claim is gone.
			return nil, ErrWorkerLost
		}
		return nil, err
	}

	cm.log.LogAttrs(ctx, slog.LevelDebug, "released publish job",
		logger.JobID(job.ID),
		slog.String("status", job.Status.String()),
	)

	return job, nil
}
