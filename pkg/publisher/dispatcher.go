package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amplifyops/publishkit/pkg/logger"
)

// Dispatcher drives one job through a single publish attempt: claim, call the
// platform adapter under a bounded timeout, classify the outcome, and release
// the job into its next state. It never retries inline — a retry is a fresh
// scheduling decision that resurfaces through the due-job path, so a crashed
// process cannot lose it.
type Dispatcher struct {
	store   JobStore
	claims  *ClaimManager
	policy  *RetryPolicy
	content ContentStore
	alerts  AlertChannel

	mu       sync.RWMutex
	adapters map[Platform]PlatformAdapter

	publishTimeout time.Duration
	log            *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAlertChannel sets the operator alert channel. Defaults to logging.
func WithAlertChannel(alerts AlertChannel) DispatcherOption {
	return func(d *Dispatcher) {
		if alerts != nil {
			d.alerts = alerts
		}
	}
}

// WithPublishTimeout bounds each adapter call. A timeout counts as a
// transient failure.
func WithPublishTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.publishTimeout = timeout
		}
	}
}

// WithDispatcherLogger sets the logger for dispatch operations.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher creates a dispatcher over the given collaborators.
func NewDispatcher(store JobStore, claims *ClaimManager, policy *RetryPolicy, content ContentStore, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}
	if claims == nil {
		return nil, validationError("claim manager cannot be nil")
	}
	if policy == nil {
		return nil, validationError("retry policy cannot be nil")
	}
	if content == nil {
		return nil, validationError("content store cannot be nil")
	}

	d := &Dispatcher{
		store:          store,
		claims:         claims,
		policy:         policy,
		content:        content,
		adapters:       make(map[Platform]PlatformAdapter),
		publishTimeout: 60 * time.Second,
		log:            slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.alerts == nil {
		d.alerts = NewLogAlertChannel(d.log)
	}

	return d, nil
}

// RegisterAdapter registers the publish capability for a platform.
func (d *Dispatcher) RegisterAdapter(platform Platform, adapter PlatformAdapter) {
	if adapter == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[platform] = adapter
}

func (d *Dispatcher) adapter(platform Platform) (PlatformAdapter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	adapter, ok := d.adapters[platform]
	return adapter, ok
}

// Dispatch executes one publish attempt for the job and returns its updated
// state. ErrAlreadyProcessing means another worker holds the job; the caller
// simply moves on.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := d.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, invalidTransitionError(job.Status, StatusProcessing)
	}

	// Resolve content before claiming so a job whose content was deleted or
	// unapproved upstream is skipped without burning an attempt.
	asset, assetErr := d.content.GetAsset(ctx, job.ContentRef)
	if assetErr != nil && !errors.Is(assetErr, ErrAssetUnavailable) {
		return nil, assetErr
	}

	if assetErr != nil && job.Status == StatusPending {
		return d.skip(ctx, job)
	}

	if job.Status == StatusPending {
		expectedVersion := job.Version
		if err := job.TransitionTo(StatusQueued); err != nil {
			return nil, err
		}
		if err := d.store.Save(ctx, job, expectedVersion); err != nil {
			if errors.Is(err, ErrConflict) {
				return nil, ErrAlreadyProcessing
			}
			return nil, err
		}
	}

	claimed, err := d.claims.Claim(ctx, jobID)
	if err != nil {
		return nil, err
	}
	token := *claimed.ClaimToken

	// Content vanished after the job was queued for retry; no point calling
	// the adapter.
	if assetErr != nil {
		return d.releaseFailure(ctx, claimed, token, NewPermanentError(assetErr))
	}

	adapter, ok := d.adapter(claimed.Platform)
	if !ok {
		return d.releaseFailure(ctx, claimed, token, NewPermanentError(ErrAdapterNotRegistered))
	}

	start := time.Now()
	publishCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	result, publishErr := adapter.Publish(publishCtx, claimed.AccountRef, asset)
	cancel()

	if publishErr != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "publish attempt failed",
			logger.JobID(claimed.ID),
			logger.Platform(claimed.Platform),
			logger.Account(claimed.AccountRef),
			slog.Int("attempt", claimed.Attempts+1),
			slog.Duration("duration", time.Since(start)),
			logger.Error(publishErr),
		)
		return d.releaseFailure(ctx, claimed, token, publishErr)
	}

	released, err := d.claims.Release(ctx, claimed.ID, token, func(j *Job) error {
		if err := j.TransitionTo(StatusPublished); err != nil {
			return err
		}
		now := time.Now()
		j.Attempts++
		j.PublishedAt = &now
		j.PlatformPostURL = &result.PostURL
		j.LastError = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "published",
		logger.JobID(released.ID),
		logger.Platform(released.Platform),
		logger.Account(released.AccountRef),
		slog.String("post_url", result.PostURL),
		slog.Duration("duration", time.Since(start)),
	)

	return released, nil
}

// skip moves a pending job whose content disappeared to the skipped terminal
// state. A concurrent update wins: skip is re-evaluated on the next sweep.
func (d *Dispatcher) skip(ctx context.Context, job *Job) (*Job, error) {
	expectedVersion := job.Version
	if err := job.TransitionTo(StatusSkipped); err != nil {
		return nil, err
	}

	if err := d.store.Save(ctx, job, expectedVersion); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "skipped job with unavailable content",
		logger.JobID(job.ID),
		logger.Platform(job.Platform),
	)

	return job, nil
}

// releaseFailure classifies the error, consults the retry policy, and
// releases the job into queued (another attempt scheduled) or failed
// (exhausted, pending operator action).
func (d *Dispatcher) releaseFailure(ctx context.Context, job *Job, token uuid.UUID, publishErr error) (*Job, error) {
	class := Classify(publishErr)
	now := time.Now()
	attempts := job.Attempts + 1
	decision := d.policy.Decide(now, attempts, job.MaxAttempts, class)
	errMsg := publishErr.Error()

	released, err := d.claims.Release(ctx, job.ID, token, func(j *Job) error {
		j.Attempts = attempts
		j.LastError = &errMsg

		if decision.Retry {
			if err := j.TransitionTo(StatusQueued); err != nil {
				return err
			}
			j.ScheduledFor = decision.NextAttemptAt
			return nil
		}

		return j.TransitionTo(StatusFailed)
	})
	if err != nil {
		return nil, err
	}

	if !decision.Retry {
		d.notifyFailed(ctx, released)
	}

	return released, nil
}

// notifyFailed alerts operators about a job that automation has given up on.
// Best effort only: a broken alert channel never affects the job transition.
func (d *Dispatcher) notifyFailed(ctx context.Context, job *Job) {
	errMsg := ""
	if job.LastError != nil {
		errMsg = *job.LastError
	}

	event := AlertEvent{
		Type:       AlertJobFailed,
		JobID:      job.ID,
		Platform:   job.Platform,
		AccountRef: job.AccountRef,
		Attempts:   job.Attempts,
		Error:      errMsg,
		OccurredAt: time.Now(),
	}

	if err := d.alerts.Notify(ctx, event); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to deliver alert",
			logger.JobID(job.ID),
			logger.Error(err),
		)
	}
}
