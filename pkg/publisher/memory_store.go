package publisher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements JobStore for tests and local development. All access
// is mutex-guarded; Save enforces the same compare-and-set discipline as the
// Postgres store so concurrency bugs show up in tests too.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*Job),
	}
}

// Create implements JobStore.
func (ms *MemoryStore) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return validationError("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return validationError("job %s already exists", job.ID)
	}

	// Clone to prevent external mutation of the stored record.
	clone := *job
	ms.jobs[job.ID] = &clone

	return nil
}

// Get implements JobStore.
func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, exists := ms.jobs[id]
	if !exists {
		return nil, ErrNotFound
	}

	clone := *job
	return &clone, nil
}

// ListDue implements JobStore.
func (ms *MemoryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []*Job
	for _, job := range ms.jobs {
		if job.Status != StatusPending && job.Status != StatusQueued {
			continue
		}
		if job.ScheduledFor.After(now) {
			continue
		}
		clone := *job
		due = append(due, &clone)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// ListByStatus implements JobStore.
func (ms *MemoryStore) ListByStatus(ctx context.Context, status Status, filter ListFilter) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Job
	for _, job := range ms.jobs {
		if job.Status != status {
			continue
		}
		if filter.Platform != "" && job.Platform != filter.Platform {
			continue
		}
		if filter.AccountRef != "" && job.AccountRef != filter.AccountRef {
			continue
		}
		clone := *job
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

// ListStaleClaims implements JobStore.
func (ms *MemoryStore) ListStaleClaims(ctx context.Context, claimedBefore time.Time) ([]*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var stale []*Job
	for _, job := range ms.jobs {
		if job.Status != StatusProcessing || job.ClaimedAt == nil {
			continue
		}
		if job.ClaimedAt.Before(claimedBefore) {
			clone := *job
			stale = append(stale, &clone)
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return stale[i].ClaimedAt.Before(*stale[j].ClaimedAt)
	})

	return stale, nil
}

// Save implements JobStore.
func (ms *MemoryStore) Save(ctx context.Context, job *Job, expectedVersion int64) error {
	if job == nil {
		return validationError("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, exists := ms.jobs[job.ID]
	if !exists {
		return ErrNotFound
	}

	if stored.Version != expectedVersion {
		return ErrConflict
	}

	clone := *job
	clone.Version = expectedVersion + 1
	clone.UpdatedAt = time.Now()
	ms.jobs[job.ID] = &clone

	// Reflect the bump back so the caller can keep mutating without re-reading.
	job.Version = clone.Version
	job.UpdatedAt = clone.UpdatedAt

	return nil
}

// Counts implements JobStore.
func (ms *MemoryStore) Counts(ctx context.Context, window StatsWindow) (*Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := &Stats{}
	for _, job := range ms.jobs {
		switch job.Status {
		case StatusPending:
			stats.Pending++
			if !window.ScheduledUntil.IsZero() && job.ScheduledFor.Before(window.ScheduledUntil) {
				stats.ScheduledUpcoming++
			}
		case StatusProcessing:
			stats.Processing++
		case StatusPublished:
			if job.PublishedAt != nil && !job.PublishedAt.Before(window.PublishedSince) {
				stats.Published++
			}
		case StatusFailed:
			if !job.UpdatedAt.Before(window.FailedSince) {
				stats.Failed++
			}
		}
	}

	return stats, nil
}
