package publisher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amplifyops/publishkit/pkg/backoff"
	"github.com/amplifyops/publishkit/pkg/publisher"
	"github.com/amplifyops/publishkit/pkg/ratelimiter"
)

// recordingAdapter captures publish calls in order so tests can assert
// per-account sequencing.
type recordingAdapter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *recordingAdapter) Publish(ctx context.Context, accountRef string, asset *publisher.Asset) (*publisher.PublishResult, error) {
	a.mu.Lock()
	a.calls = append(a.calls, asset.ContentRef)
	a.mu.Unlock()

	if a.err != nil {
		return nil, a.err
	}
	return &publisher.PublishResult{PostURL: "https://meta.example.com/p/" + asset.ContentRef}, nil
}

func (a *recordingAdapter) published() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type sweepFixture struct {
	store   *publisher.MemoryStore
	content *mockContentStore
	adapter *recordingAdapter
	alerts  *mockAlertChannel
	policy  *publisher.RetryPolicy
	d       *publisher.Dispatcher
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()

	store := publisher.NewMemoryStore()
	claims, err := publisher.NewClaimManager(store)
	require.NoError(t, err)

	policy := publisher.NewRetryPolicy(backoff.Fixed{Interval: time.Minute})
	content := &mockContentStore{}
	alerts := &mockAlertChannel{}

	d, err := publisher.NewDispatcher(store, claims, policy, content,
		publisher.WithAlertChannel(alerts),
	)
	require.NoError(t, err)

	adapter := &recordingAdapter{}
	d.RegisterAdapter(publisher.PlatformMeta, adapter)

	return &sweepFixture{
		store:   store,
		content: content,
		adapter: adapter,
		alerts:  alerts,
		policy:  policy,
		d:       d,
	}
}

func (f *sweepFixture) newSweep(t *testing.T, opts ...publisher.SweepOption) *publisher.Sweep {
	t.Helper()

	sweep, err := publisher.NewSweep(f.store, f.d, f.policy, opts...)
	require.NoError(t, err)
	return sweep
}

func (f *sweepFixture) createJob(t *testing.T, contentRef, accountRef string, scheduledFor time.Time) *publisher.Job {
	t.Helper()

	now := time.Now()
	job, err := publisher.NewJob(publisher.NewJobParams{
		ContentRef:   contentRef,
		Platform:     publisher.PlatformMeta,
		AccountRef:   accountRef,
		ScheduledFor: scheduledFor,
	}, now, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), job))

	f.content.On("GetAsset", mock.Anything, contentRef).Return(&publisher.Asset{
		ContentRef: contentRef,
		Kind:       "image",
		MediaURL:   "https://cdn.example.com/" + contentRef + ".jpg",
	}, nil)

	return job
}

func TestSweep_Tick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("dispatches every due job and leaves future ones alone", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		now := time.Now()
		due1 := f.createJob(t, "due-1", "acct-1", now.Add(-2*time.Minute))
		due2 := f.createJob(t, "due-2", "acct-2", now.Add(-time.Minute))
		future := f.createJob(t, "future", "acct-3", now.Add(time.Hour))

		f.newSweep(t).Tick(ctx)

		for _, id := range []uuid.UUID{due1.ID, due2.ID} {
			got, err := f.store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, publisher.StatusPublished, got.Status)
		}

		got, err := f.store.Get(ctx, future.ID)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusPending, got.Status)
	})

	t.Run("does not touch cancelled jobs", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		job := f.createJob(t, "cancelled", "acct-1", time.Now().Add(-time.Minute))
		require.NoError(t, job.TransitionTo(publisher.StatusCancelled))
		require.NoError(t, f.store.Save(ctx, job, job.Version))

		f.newSweep(t).Tick(ctx)

		got, err := f.store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusCancelled, got.Status)
		assert.Empty(t, f.adapter.published())
	})

	t.Run("publishes same-account jobs in scheduled order", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		now := time.Now()
		f.createJob(t, "first", "acct-1", now.Add(-3*time.Minute))
		f.createJob(t, "second", "acct-1", now.Add(-2*time.Minute))
		f.createJob(t, "third", "acct-1", now.Add(-time.Minute))

		f.newSweep(t).Tick(ctx)

		assert.Equal(t, []string{"first", "second", "third"}, f.adapter.published())
	})

	t.Run("requeues a stale claim with an extra attempt", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		job := f.createJob(t, "stale", "acct-1", time.Now().Add(time.Hour))
		job.Status = publisher.StatusProcessing
		token := uuid.New()
		claimedAt := time.Now().Add(-time.Hour)
		job.ClaimToken = &token
		job.ClaimedAt = &claimedAt
		require.NoError(t, f.store.Save(ctx, job, job.Version))

		f.newSweep(t, publisher.WithStaleClaimThreshold(5*time.Minute)).Tick(ctx)

		got, err := f.store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusQueued, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Nil(t, got.ClaimToken)
		require.NotNil(t, got.LastError)
		assert.Contains(t, *got.LastError, "worker lost")
		assert.True(t, got.ScheduledFor.After(time.Now()), "requeued with backoff, not immediately")
	})

	t.Run("fails a stale claim with no attempts left and alerts", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		job := f.createJob(t, "stale-exhausted", "acct-1", time.Now().Add(time.Hour))
		job.Status = publisher.StatusProcessing
		job.Attempts = job.MaxAttempts - 1
		token := uuid.New()
		claimedAt := time.Now().Add(-time.Hour)
		job.ClaimToken = &token
		job.ClaimedAt = &claimedAt
		require.NoError(t, f.store.Save(ctx, job, job.Version))

		f.alerts.On("Notify", mock.Anything, mock.MatchedBy(func(e publisher.AlertEvent) bool {
			return e.Type == publisher.AlertJobFailed && e.JobID == job.ID
		})).Return(nil).Once()

		f.newSweep(t, publisher.WithStaleClaimThreshold(5*time.Minute)).Tick(ctx)

		got, err := f.store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusFailed, got.Status)
		assert.Equal(t, job.MaxAttempts, got.Attempts)
		f.alerts.AssertExpectations(t)
	})

	t.Run("leaves fresh claims alone", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		job := f.createJob(t, "fresh", "acct-1", time.Now().Add(time.Hour))
		job.Status = publisher.StatusProcessing
		token := uuid.New()
		claimedAt := time.Now().Add(-time.Minute)
		job.ClaimToken = &token
		job.ClaimedAt = &claimedAt
		require.NoError(t, f.store.Save(ctx, job, job.Version))

		f.newSweep(t, publisher.WithStaleClaimThreshold(5*time.Minute)).Tick(ctx)

		got, err := f.store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusProcessing, got.Status)
	})

	t.Run("defers an account once its rate budget is spent", func(t *testing.T) {
		t.Parallel()

		f := newSweepFixture(t)
		now := time.Now()
		f.createJob(t, "allowed", "acct-1", now.Add(-2*time.Minute))
		f.createJob(t, "deferred", "acct-1", now.Add(-time.Minute))
		f.createJob(t, "other-account", "acct-2", now.Add(-time.Minute))

		limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})
		require.NoError(t, err)

		f.newSweep(t, publisher.WithAccountRateLimiter(limiter)).Tick(ctx)

		published := f.adapter.published()
		assert.Contains(t, published, "allowed")
		assert.Contains(t, published, "other-account")
		assert.NotContains(t, published, "deferred")
	})
}

func TestSweep_StartStop(t *testing.T) {
	t.Parallel()

	f := newSweepFixture(t)
	job := f.createJob(t, "startup", "acct-1", time.Now().Add(-time.Minute))

	sweep := f.newSweep(t, publisher.WithSweepInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweep.Start(ctx))
	assert.Error(t, sweep.Start(ctx), "double start is rejected")

	// The first tick runs on start; give it a moment.
	require.Eventually(t, func() bool {
		got, err := f.store.Get(context.Background(), job.ID)
		return err == nil && got.Status == publisher.StatusPublished
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sweep.Stop())
	assert.Error(t, sweep.Stop(), "double stop is rejected")
}
