package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements JobStore on top of pgx. The versioned UPDATE is
// the entire concurrency story: no advisory locks, no SELECT FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a job store over the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, validationError("connection pool cannot be nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const jobColumns = `id, content_ref, platform, account_ref, status,
	scheduled_for, attempts, max_attempts, last_error,
	published_at, platform_post_url, manually_published,
	claim_token, claimed_at, version, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID, &job.ContentRef, &job.Platform, &job.AccountRef, &job.Status,
		&job.ScheduledFor, &job.Attempts, &job.MaxAttempts, &job.LastError,
		&job.PublishedAt, &job.PlatformPostURL, &job.ManuallyPublished,
		&job.ClaimToken, &job.ClaimedAt, &job.Version, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan publish job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read publish jobs: %w", err)
	}

	return jobs, nil
}

// Create implements JobStore.
func (ps *PostgresStore) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return validationError("job cannot be nil")
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO publish_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		job.ID, job.ContentRef, job.Platform, job.AccountRef, job.Status,
		job.ScheduledFor, job.Attempts, job.MaxAttempts, job.LastError,
		job.PublishedAt, job.PlatformPostURL, job.ManuallyPublished,
		job.ClaimToken, job.ClaimedAt, job.Version, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create publish job: %w", err)
	}

	return nil
}

// Get implements JobStore.
func (ps *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM publish_jobs
		WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get publish job: %w", err)
	}

	return job, nil
}

// ListDue implements JobStore.
func (ps *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM publish_jobs
		WHERE status IN ('pending', 'queued')
		  AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}

	return collectJobs(rows)
}

// ListByStatus implements JobStore.
func (ps *PostgresStore) ListByStatus(ctx context.Context, status Status, filter ListFilter) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM publish_jobs
		WHERE status = $1
		  AND ($2 = '' OR platform = $2)
		  AND ($3 = '' OR account_ref = $3)
		ORDER BY scheduled_for ASC`
	args := []any{status, string(filter.Platform), filter.AccountRef}

	if filter.Limit > 0 {
		query += ` LIMIT $4`
		args = append(args, filter.Limit)
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	return collectJobs(rows)
}

// ListStaleClaims implements JobStore.
func (ps *PostgresStore) ListStaleClaims(ctx context.Context, claimedBefore time.Time) ([]*Job, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM publish_jobs
		WHERE status = 'processing'
		  AND claimed_at IS NOT NULL
		  AND claimed_at < $1
		ORDER BY claimed_at ASC`, claimedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale claims: %w", err)
	}

	return collectJobs(rows)
}

// Save implements JobStore. The WHERE clause on version makes the update a
// compare-and-set: zero rows affected means either the job vanished or
// someone got there first, and a follow-up existence check disambiguates.
func (ps *PostgresStore) Save(ctx context.Context, job *Job, expectedVersion int64) error {
	if job == nil {
		return validationError("job cannot be nil")
	}

	now := time.Now()
	tag, err := ps.pool.Exec(ctx, `
		UPDATE publish_jobs
		SET status = $1,
		    scheduled_for = $2,
		    attempts = $3,
		    max_attempts = $4,
		    last_error = $5,
		    published_at = $6,
		    platform_post_url = $7,
		    manually_published = $8,
		    claim_token = $9,
		    claimed_at = $10,
		    version = version + 1,
		    updated_at = $11
		WHERE id = $12 AND version = $13`,
		job.Status, job.ScheduledFor, job.Attempts, job.MaxAttempts, job.LastError,
		job.PublishedAt, job.PlatformPostURL, job.ManuallyPublished,
		job.ClaimToken, job.ClaimedAt, now,
		job.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save publish job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := ps.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM publish_jobs WHERE id = $1)`, job.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check publish job existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	job.Version = expectedVersion + 1
	job.UpdatedAt = now

	return nil
}

// Counts implements JobStore.
func (ps *PostgresStore) Counts(ctx context.Context, window StatsWindow) (*Stats, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'published' AND published_at >= $1),
			COUNT(*) FILTER (WHERE status = 'failed' AND updated_at >= $2),
			COUNT(*) FILTER (WHERE status = 'pending' AND scheduled_for < $3)
		FROM publish_jobs`,
		window.PublishedSince, window.FailedSince, window.ScheduledUntil,
	)

	var stats Stats
	if err := row.Scan(&stats.Pending, &stats.Processing, &stats.Published, &stats.Failed, &stats.ScheduledUpcoming); err != nil {
		return nil, fmt.Errorf("failed to count publish jobs: %w", err)
	}

	return &stats, nil
}
