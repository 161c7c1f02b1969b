package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/dustgatherer/internal/model"
)

// RecordJob appends a finished backup job to the history.
func RecordJob(ctx context.Context, db *sql.DB, job *model.BackupJob) (int64, error) {
	var strategy sql.NullString
	if job.Strategy != "" {
		strategy = sql.NullString{String: job.Strategy, Valid: true}
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO backup_jobs (kind, strategy, status, total_items, imported, skipped,
		                          message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Kind, strategy, job.Status, job.TotalItems, job.Imported, job.Skipped,
		job.Message, job.StartedAt.UTC(), job.FinishedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording backup job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting backup job id: %w", err)
	}
	return id, nil
}

// ListJobs returns the most recent backup jobs, newest first.
func ListJobs(ctx context.Context, db *sql.DB, limit int) ([]model.BackupJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, strategy, status, total_items, imported, skipped, message,
		        started_at, finished_at
		 FROM backup_jobs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		var job model.BackupJob
		var strategy sql.NullString
		if err := rows.Scan(&job.ID, &job.Kind, &strategy, &job.Status, &job.TotalItems,
			&job.Imported, &job.Skipped, &job.Message, &job.StartedAt, &job.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning backup job: %w", err)
		}
		job.Strategy = strategy.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStore records backup jobs in a single database.
type JobStore struct {
	DB *sql.DB
}

// RecordJob appends job to the history.
func (s *JobStore) RecordJob(ctx context.Context, job *model.BackupJob) (int64, error) {
	return RecordJob(ctx, s.DB, job)
}
