package publisher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifyops/publishkit/pkg/publisher"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to publisher.Status
	}{
		{publisher.StatusPending, publisher.StatusQueued},
		{publisher.StatusPending, publisher.StatusProcessing},
		{publisher.StatusPending, publisher.StatusCancelled},
		{publisher.StatusPending, publisher.StatusSkipped},
		{publisher.StatusPending, publisher.StatusPublished},
		{publisher.StatusQueued, publisher.StatusProcessing},
		{publisher.StatusProcessing, publisher.StatusPublished},
		{publisher.StatusProcessing, publisher.StatusFailed},
		{publisher.StatusProcessing, publisher.StatusQueued},
		{publisher.StatusFailed, publisher.StatusQueued},
		{publisher.StatusFailed, publisher.StatusCancelled},
		{publisher.StatusFailed, publisher.StatusPublished},
	}
	for _, tc := range allowed {
		assert.True(t, publisher.CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to publisher.Status
	}{
		{publisher.StatusQueued, publisher.StatusCancelled},
		{publisher.StatusQueued, publisher.StatusSkipped},
		{publisher.StatusProcessing, publisher.StatusCancelled},
		{publisher.StatusPublished, publisher.StatusQueued},
		{publisher.StatusPublished, publisher.StatusFailed},
		{publisher.StatusCancelled, publisher.StatusQueued},
		{publisher.StatusSkipped, publisher.StatusQueued},
		{publisher.StatusFailed, publisher.StatusProcessing},
	}
	for _, tc := range denied {
		assert.False(t, publisher.CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, status := range []publisher.Status{
		publisher.StatusPublished, publisher.StatusCancelled, publisher.StatusSkipped,
	} {
		assert.True(t, status.Terminal(), "%s should be terminal", status)
	}

	// Failed is final for automation but operators can still act on it.
	for _, status := range []publisher.Status{
		publisher.StatusPending, publisher.StatusQueued, publisher.StatusProcessing, publisher.StatusFailed,
	} {
		assert.False(t, status.Terminal(), "%s should not be terminal", status)
	}
}

func TestJob_TransitionTo(t *testing.T) {
	t.Parallel()

	t.Run("moves the job through a valid path", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		require.NoError(t, job.TransitionTo(publisher.StatusQueued))
		require.NoError(t, job.TransitionTo(publisher.StatusProcessing))
		require.NoError(t, job.TransitionTo(publisher.StatusPublished))
		assert.Equal(t, publisher.StatusPublished, job.Status)
	})

	t.Run("rejects an undefined transition and keeps the status", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		require.NoError(t, job.TransitionTo(publisher.StatusQueued))

		err := job.TransitionTo(publisher.StatusCancelled)
		require.ErrorIs(t, err, publisher.ErrInvalidTransition)
		assert.Equal(t, publisher.StatusQueued, job.Status)
	})

	t.Run("rejects everything out of a terminal state", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t)
		require.NoError(t, job.TransitionTo(publisher.StatusCancelled))

		for _, to := range []publisher.Status{
			publisher.StatusPending, publisher.StatusQueued, publisher.StatusProcessing,
			publisher.StatusPublished, publisher.StatusFailed, publisher.StatusSkipped,
		} {
			assert.ErrorIs(t, job.TransitionTo(to), publisher.ErrInvalidTransition)
		}
	})
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	now := time.Now()
	grace := 10 * time.Minute

	t.Run("creates a pending job with defaults", func(t *testing.T) {
		t.Parallel()

		job, err := publisher.NewJob(publisher.NewJobParams{
			ContentRef:   "content-1",
			Platform:     publisher.PlatformMeta,
			AccountRef:   "acct-1",
			ScheduledFor: now.Add(time.Hour),
		}, now, grace)
		require.NoError(t, err)

		assert.Equal(t, publisher.StatusPending, job.Status)
		assert.Equal(t, publisher.DefaultMaxAttempts, job.MaxAttempts)
		assert.Equal(t, int64(1), job.Version)
		assert.Zero(t, job.Attempts)
		assert.False(t, job.ManuallyPublished)
		assert.NotEqual(t, job.ID.String(), "00000000-0000-0000-0000-000000000000")
	})

	t.Run("accepts a schedule slightly in the past", func(t *testing.T) {
		t.Parallel()

		job, err := publisher.NewJob(publisher.NewJobParams{
			ContentRef:   "content-1",
			Platform:     publisher.PlatformTikTok,
			AccountRef:   "acct-1",
			ScheduledFor: now.Add(-5 * time.Minute),
		}, now, grace)
		require.NoError(t, err)
		assert.Equal(t, publisher.StatusPending, job.Status)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name   string
			params publisher.NewJobParams
		}{
			{
				name: "missing content ref",
				params: publisher.NewJobParams{
					Platform:     publisher.PlatformMeta,
					AccountRef:   "acct-1",
					ScheduledFor: now.Add(time.Hour),
				},
			},
			{
				name: "unsupported platform",
				params: publisher.NewJobParams{
					ContentRef:   "content-1",
					Platform:     publisher.Platform("myspace"),
					AccountRef:   "acct-1",
					ScheduledFor: now.Add(time.Hour),
				},
			},
			{
				name: "missing account ref",
				params: publisher.NewJobParams{
					ContentRef:   "content-1",
					Platform:     publisher.PlatformMeta,
					ScheduledFor: now.Add(time.Hour),
				},
			},
			{
				name: "schedule too far in the past",
				params: publisher.NewJobParams{
					ContentRef:   "content-1",
					Platform:     publisher.PlatformMeta,
					AccountRef:   "acct-1",
					ScheduledFor: now.Add(-time.Hour),
				},
			},
			{
				name: "negative max attempts",
				params: publisher.NewJobParams{
					ContentRef:   "content-1",
					Platform:     publisher.PlatformMeta,
					AccountRef:   "acct-1",
					ScheduledFor: now.Add(time.Hour),
					MaxAttempts:  -1,
				},
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				_, err := publisher.NewJob(tc.params, now, grace)
				assert.ErrorIs(t, err, publisher.ErrValidation)
			})
		}
	})
}

func TestJob_AccountKey(t *testing.T) {
	t.Parallel()

	job := newTestJob(t)
	job.Platform = publisher.PlatformLinkedIn
	job.AccountRef = "acct-42"

	assert.Equal(t, "linkedin:acct-42", job.AccountKey())
}

func TestJob_ClaimStale(t *testing.T) {
	t.Parallel()

	now := time.Now()
	threshold := 5 * time.Minute

	job := newTestJob(t)
	assert.False(t, job.ClaimStale(now, threshold), "unclaimed job is never stale")

	require.NoError(t, job.TransitionTo(publisher.StatusProcessing))
	fresh := now.Add(-time.Minute)
	job.ClaimedAt = &fresh
	assert.False(t, job.ClaimStale(now, threshold))

	old := now.Add(-10 * time.Minute)
	job.ClaimedAt = &old
	assert.True(t, job.ClaimStale(now, threshold))
}

func newTestJob(t *testing.T) *publisher.Job {
	t.Helper()

	now := time.Now()
	job, err := publisher.NewJob(publisher.NewJobParams{
		ContentRef:   "content-1",
		Platform:     publisher.PlatformMeta,
		AccountRef:   "acct-1",
		ScheduledFor: now.Add(-time.Minute),
	}, now, 10*time.Minute)
	require.NoError(t, err)

	return job
}
