package publisher

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// QueueFilter narrows a queue listing. Zero values mean no constraint.
type QueueFilter struct {
	Status     Status
	Platform   Platform
	AccountRef string
	Limit      int
}

// QueryService is the read-only surface for dashboards and operator tooling.
type QueryService struct {
	store JobStore
}

// NewQueryService creates a query service over the given store.
func NewQueryService(store JobStore) (*QueryService, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}
	return &QueryService{store: store}, nil
}

// Get returns one job by id.
func (s *QueryService) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return s.store.Get(ctx, jobID)
}

// ListQueue returns jobs matching the filter, ordered by scheduled time. With
// no status set it lists the live queue: pending, queued, and processing jobs.
func (s *QueryService) ListQueue(ctx context.Context, filter QueueFilter) ([]*Job, error) {
	if filter.Status != "" {
		return s.store.ListByStatus(ctx, filter.Status, ListFilter{
			Platform:   filter.Platform,
			AccountRef: filter.AccountRef,
			Limit:      filter.Limit,
		})
	}

	var out []*Job
	for _, status := range []Status{StatusPending, StatusQueued, StatusProcessing} {
		jobs, err := s.store.ListByStatus(ctx, status, ListFilter{
			Platform:   filter.Platform,
			AccountRef: filter.AccountRef,
			Limit:      filter.Limit,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, jobs...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

// Stats returns operational counts for the default dashboard windows:
// publishes over the last day, failures over the last week, and everything
// scheduled for the next day.
func (s *QueryService) Stats(ctx context.Context) (*Stats, error) {
	now := time.Now()
	return s.StatsWindow(ctx, StatsWindow{
		PublishedSince: now.Add(-24 * time.Hour),
		FailedSince:    now.Add(-7 * 24 * time.Hour),
		ScheduledUntil: now.Add(24 * time.Hour),
	})
}

// StatsWindow returns operational counts for a caller-chosen window.
func (s *QueryService) StatsWindow(ctx context.Context, window StatsWindow) (*Stats, error) {
	return s.store.Counts(ctx, window)
}
