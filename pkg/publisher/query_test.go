package publisher_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifyops/publishkit/pkg/publisher"
)

func TestQueryService_ListQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := publisher.NewMemoryStore()
	qs, err := publisher.NewQueryService(store)
	require.NoError(t, err)

	now := time.Now()
	mk := func(contentRef string, status publisher.Status, platform publisher.Platform, scheduledFor time.Time) *publisher.Job {
		job, err := publisher.NewJob(publisher.NewJobParams{
			ContentRef:   contentRef,
			Platform:     platform,
			AccountRef:   "acct-1",
			ScheduledFor: scheduledFor,
		}, now, 24*time.Hour)
		require.NoError(t, err)
		job.Status = status
		require.NoError(t, store.Create(ctx, job))
		return job
	}

	pending := mk("a", publisher.StatusPending, publisher.PlatformMeta, now.Add(time.Hour))
	queued := mk("b", publisher.StatusQueued, publisher.PlatformX, now.Add(-time.Hour))
	processing := mk("c", publisher.StatusProcessing, publisher.PlatformMeta, now.Add(-2*time.Hour))
	mk("d", publisher.StatusPublished, publisher.PlatformMeta, now.Add(-3*time.Hour))
	failed := mk("e", publisher.StatusFailed, publisher.PlatformMeta, now.Add(-4*time.Hour))

	t.Run("lists the live queue ordered by schedule", func(t *testing.T) {
		t.Parallel()

		jobs, err := qs.ListQueue(ctx, publisher.QueueFilter{})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, processing.ID, jobs[0].ID)
		assert.Equal(t, queued.ID, jobs[1].ID)
		assert.Equal(t, pending.ID, jobs[2].ID)
	})

	t.Run("filters by explicit status", func(t *testing.T) {
		t.Parallel()

		jobs, err := qs.ListQueue(ctx, publisher.QueueFilter{Status: publisher.StatusFailed})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, failed.ID, jobs[0].ID)
	})

	t.Run("filters by platform", func(t *testing.T) {
		t.Parallel()

		jobs, err := qs.ListQueue(ctx, publisher.QueueFilter{Platform: publisher.PlatformX})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, queued.ID, jobs[0].ID)
	})

	t.Run("applies the limit after merging statuses", func(t *testing.T) {
		t.Parallel()

		jobs, err := qs.ListQueue(ctx, publisher.QueueFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, processing.ID, jobs[0].ID)
	})
}

func TestQueryService_Get(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := publisher.NewMemoryStore()
	qs, err := publisher.NewQueryService(store)
	require.NoError(t, err)

	job := newTestJob(t)
	require.NoError(t, store.Create(ctx, job))

	got, err := qs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = qs.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, publisher.ErrNotFound)
}

func TestQueryService_Stats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := publisher.NewMemoryStore()
	qs, err := publisher.NewQueryService(store)
	require.NoError(t, err)

	now := time.Now()

	pending := newTestJob(t)
	pending.ScheduledFor = now.Add(2 * time.Hour)
	require.NoError(t, store.Create(ctx, pending))

	published := newTestJob(t)
	published.Status = publisher.StatusPublished
	publishedAt := now.Add(-time.Hour)
	published.PublishedAt = &publishedAt
	require.NoError(t, store.Create(ctx, published))

	failed := newTestJob(t)
	failed.Status = publisher.StatusFailed
	require.NoError(t, store.Create(ctx, failed))

	stats, err := qs.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.ScheduledUpcoming)
}
