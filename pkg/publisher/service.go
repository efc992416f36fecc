package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/amplifyops/publishkit/pkg/logger"
)

// ScheduleJob is the entry point for the upstream approval step: it validates
// the params, applies defaults, and persists a pending job. The grace window
// bounds how far in the past a schedule may be before it is rejected as a
// caller bug.
func ScheduleJob(ctx context.Context, store JobStore, params NewJobParams, grace time.Duration) (*Job, error) {
	if store == nil {
		return nil, validationError("job store cannot be nil")
	}

	job, err := NewJob(params, time.Now(), grace)
	if err != nil {
		return nil, err
	}

	if err := store.Create(ctx, job); err != nil {
		return nil, err
	}

	slog.Default().LogAttrs(ctx, slog.LevelInfo, "scheduled publish job",
		logger.JobID(job.ID),
		logger.Platform(job.Platform),
		logger.Account(job.AccountRef),
		slog.Time("scheduled_for", job.ScheduledFor),
	)

	return job, nil
}
