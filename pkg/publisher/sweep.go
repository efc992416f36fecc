package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amplifyops/publishkit/pkg/logger"
	"github.com/amplifyops/publishkit/pkg/ratelimiter"
)

// Sweep is the only component that initiates automatic work. On a fixed
// interval it reclaims stale claims, selects due jobs, and hands them to the
// dispatcher. Dispatch is parallelized across accounts but serialized within
// one account, so jobs for the same destination go out in scheduled order and
// one slow account cannot starve the rest.
type Sweep struct {
	store      JobStore
	dispatcher *Dispatcher
	policy     *RetryPolicy
	limiter    ratelimiter.RateLimiter

	interval              time.Duration
	batchSize             int
	staleAfter            time.Duration
	maxConcurrentAccounts int
	log                   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SweepOption configures a Sweep.
type SweepOption func(*Sweep)

// WithSweepInterval sets how often due jobs are collected.
func WithSweepInterval(d time.Duration) SweepOption {
	return func(s *Sweep) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepBatchSize caps how many due jobs one tick picks up.
func WithSweepBatchSize(n int) SweepOption {
	return func(s *Sweep) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithStaleClaimThreshold sets how old a claim must be before the sweep
// treats its worker as lost and reclaims the job.
func WithStaleClaimThreshold(d time.Duration) SweepOption {
	return func(s *Sweep) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithMaxConcurrentAccounts bounds how many accounts dispatch in parallel
// within one tick.
func WithMaxConcurrentAccounts(n int) SweepOption {
	return func(s *Sweep) {
		if n > 0 {
			s.maxConcurrentAccounts = n
		}
	}
}

// WithAccountRateLimiter gates dispatch per destination account. Without a
// limiter every due job dispatches immediately.
func WithAccountRateLimiter(limiter ratelimiter.RateLimiter) SweepOption {
	return func(s *Sweep) {
		s.limiter = limiter
	}
}

// WithSweepLogger sets the logger for sweep operations.
func WithSweepLogger(log *slog.Logger) SweepOption {
	return func(s *Sweep) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSweep creates a scheduler sweep over the given collaborators.
func NewSweep(store JobStore, dispatcher *Dispatcher, policy *RetryPolicy, opts ...SweepOption) (*Sweep, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}
	if dispatcher == nil {
		return nil, validationError("dispatcher cannot be nil")
	}
	if policy == nil {
		return nil, validationError("retry policy cannot be nil")
	}

	s := &Sweep{
		store:                 store,
		dispatcher:            dispatcher,
		policy:                policy,
		interval:              30 * time.Second,
		batchSize:             50,
		staleAfter:            5 * time.Minute,
		maxConcurrentAccounts: 8,
		log:                   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start begins sweeping in the background.
func (s *Sweep) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweep already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.log.Info("scheduler sweep started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
		slog.Int("max_concurrent_accounts", s.maxConcurrentAccounts))

	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *Sweep) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return fmt.Errorf("sweep not started")
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.log.Info("scheduler sweep stopped")
	return nil
}

// Run starts the sweep and returns a function suitable for errgroup.
func (s *Sweep) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

func (s *Sweep) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First tick immediately so restarts pick up overdue work without
	// waiting a full interval.
	s.Tick(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.ctx)
		}
	}
}

// Tick performs one sweep cycle: reclaim stale claims, then dispatch due
// jobs. Exported so operator tooling and tests can force a cycle.
func (s *Sweep) Tick(ctx context.Context) {
	now := time.Now()

	if err := s.reclaimStale(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		s.log.LogAttrs(ctx, slog.LevelError, "stale claim reclaim failed", logger.Error(err))
	}

	if err := s.dispatchDue(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		s.log.LogAttrs(ctx, slog.LevelError, "due job dispatch failed", logger.Error(err))
	}
}

// reclaimStale treats each over-age claim as a failed attempt with a
// WorkerLost error and feeds it into the retry policy, so a crashed worker
// cannot strand a job in processing forever.
func (s *Sweep) reclaimStale(ctx context.Context, now time.Time) error {
	stale, err := s.store.ListStaleClaims(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return err
	}

	for _, job := range stale {
		expectedVersion := job.Version
		attempts := job.Attempts + 1
		decision := s.policy.Decide(now, attempts, job.MaxAttempts, ErrorClassTransient)
		errMsg := ErrWorkerLost.Error()

		job.Attempts = attempts
		job.LastError = &errMsg
		job.ClaimToken = nil
		job.ClaimedAt = nil

		if decision.Retry {
			if err := job.TransitionTo(StatusQueued); err != nil {
				return err
			}
			job.ScheduledFor = decision.NextAttemptAt
		} else {
			if err := job.TransitionTo(StatusFailed); err != nil {
				return err
			}
		}

		if err := s.store.Save(ctx, job, expectedVersion); err != nil {
			if errors.Is(err, ErrConflict) {
				// Someone else resolved the job between our read and save.
				continue
			}
			return err
		}

		s.log.LogAttrs(ctx, slog.LevelWarn, "reclaimed stale claim",
			logger.JobID(job.ID),
			slog.String("status", job.Status.String()),
			slog.Int("attempts", job.Attempts),
		)

		if !decision.Retry {
			s.dispatcher.notifyFailed(ctx, job)
		}
	}

	return nil
}

// dispatchDue fans due jobs out per account: accounts run in parallel up to
// the concurrency limit, jobs within one account run sequentially in
// scheduled order, and each dispatch consumes a token from the account's rate
// budget.
func (s *Sweep) dispatchDue(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	// ListDue is ordered by scheduledFor, so per-account slices stay ordered.
	accounts := make(map[string][]*Job)
	var order []string
	for _, job := range due {
		key := job.AccountKey()
		if _, seen := accounts[key]; !seen {
			order = append(order, key)
		}
		accounts[key] = append(accounts[key], job)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentAccounts)

	for _, key := range order {
		jobs := accounts[key]
		g.Go(func() error {
			s.dispatchAccount(gctx, key, jobs)
			return nil
		})
	}

	return g.Wait()
}

func (s *Sweep) dispatchAccount(ctx context.Context, accountKey string, jobs []*Job) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}

		if s.limiter != nil {
			result, err := s.limiter.Allow(ctx, accountKey)
			if err != nil {
				// A broken limiter backend must not halt publishing; the
				// platform's own rate limits still classify as transient.
				s.log.LogAttrs(ctx, slog.LevelError, "rate limiter unavailable, dispatching anyway",
					slog.String("account", accountKey),
					logger.Error(err),
				)
			} else if !result.Allowed() {
				s.log.LogAttrs(ctx, slog.LevelDebug, "account rate budget exhausted, deferring",
					slog.String("account", accountKey),
					slog.Int("deferred", len(jobs)),
				)
				return
			}
		}

		if _, err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
			if errors.Is(err, ErrAlreadyProcessing) {
				// Another sweeper got there first.
				continue
			}
			s.log.LogAttrs(ctx, slog.LevelError, "dispatch failed",
				logger.JobID(job.ID),
				slog.String("account", accountKey),
				logger.Error(err),
			)
		}
	}
}
