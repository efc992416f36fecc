package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amplifyops/publishkit/pkg/logger"
)

// OverrideService is the operator-facing path around the automatic pipeline:
// cancel a job, force an immediate retry, or record that someone published
// the content by hand. Every mutation rides the same versioned save as the
// automatic path, so an override and a concurrent dispatch cannot both win.
type OverrideService struct {
	store      JobStore
	dispatcher *Dispatcher
	log        *slog.Logger
}

// OverrideOption configures an OverrideService.
type OverrideOption func(*OverrideService)

// WithOverrideLogger sets the logger for override operations.
func WithOverrideLogger(log *slog.Logger) OverrideOption {
	return func(s *OverrideService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewOverrideService creates the manual override path. The dispatcher is
// needed only for DispatchNow.
func NewOverrideService(store JobStore, dispatcher *Dispatcher, opts ...OverrideOption) (*OverrideService, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}
	if dispatcher == nil {
		return nil, validationError("dispatcher cannot be nil")
	}

	s := &OverrideService{
		store:      store,
		dispatcher: dispatcher,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Cancel withdraws a job that has not run yet. Pending and failed jobs
// cancel; a job already cancelled is left alone so repeated clicks are
// harmless. An in-flight job cannot be cancelled: the attempt runs to
// completion or timeout and the release decides the resulting state.
func (s *OverrideService) Cancel(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusCancelled {
		return job, nil
	}

	expectedVersion := job.Version
	if err := job.TransitionTo(StatusCancelled); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "cancelled publish job",
		logger.JobID(job.ID),
		logger.Platform(job.Platform),
	)

	return job, nil
}

// RetryNow puts a failed job back in the queue for immediate pickup without
// raising its attempt ceiling: the retry counter keeps counting, and the
// operator gets ErrValidation when automation has already used every attempt.
// A job already queued is returned as-is.
func (s *OverrideService) RetryNow(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusQueued {
		return job, nil
	}

	if job.Status != StatusFailed {
		return nil, invalidTransitionError(job.Status, StatusQueued)
	}

	if job.Attempts >= job.MaxAttempts {
		return nil, validationError("job %s has exhausted all %d attempts", job.ID, job.MaxAttempts)
	}

	expectedVersion := job.Version
	if err := job.TransitionTo(StatusQueued); err != nil {
		return nil, err
	}
	job.ScheduledFor = time.Now()

	if err := s.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "queued manual retry",
		logger.JobID(job.ID),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	return job, nil
}

// MarkManuallyPublished records that an operator published the content
// outside the system, optionally with the post URL they created. Pending and
// failed jobs close out as published with the manual flag set; a job the
// pipeline already published is returned unchanged, and no failure alert is
// re-evaluated. In-flight jobs must settle before they can be overridden.
func (s *OverrideService) MarkManuallyPublished(ctx context.Context, jobID uuid.UUID, postURL string) (*Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusPublished {
		return job, nil
	}

	if job.Status == StatusQueued || job.Status == StatusProcessing {
		return nil, ErrAlreadyProcessing
	}

	expectedVersion := job.Version
	if err := job.TransitionTo(StatusPublished); err != nil {
		return nil, err
	}

	now := time.Now()
	job.PublishedAt = &now
	job.ManuallyPublished = true
	job.LastError = nil
	if postURL != "" {
		job.PlatformPostURL = &postURL
	}

	if err := s.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "marked job manually published",
		logger.JobID(job.ID),
		logger.Platform(job.Platform),
	)

	return job, nil
}

// DispatchNow pulls a job's schedule forward and runs one attempt
// immediately, bypassing the sweep interval but nothing else: the claim
// protocol, rate classification, and retry policy all apply as usual.
func (s *OverrideService) DispatchNow(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, invalidTransitionError(job.Status, StatusProcessing)
	}
	if job.Status == StatusProcessing {
		return nil, ErrAlreadyProcessing
	}

	if now := time.Now(); job.ScheduledFor.After(now) {
		expectedVersion := job.Version
		job.ScheduledFor = now
		if err := s.store.Save(ctx, job, expectedVersion); err != nil {
			if errors.Is(err, ErrConflict) {
				return nil, ErrAlreadyProcessing
			}
			return nil, err
		}
	}

	return s.dispatcher.Dispatch(ctx, jobID)
}
