package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLJobStore persists queue jobs in MySQL.
type SQLJobStore struct {
	DB *sql.DB
}

// NewSQLJobStore wraps the shared database pool.
func NewSQLJobStore(db *sql.DB) *SQLJobStore {
	return &SQLJobStore{DB: db}
}

// Insert adds a pending job.
func (s *SQLJobStore) Insert(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (job_id, queue, task_id, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Unix()
	_, err := s.DB.ExecContext(ctx, query,
		job.ID, job.Queue, job.TaskID, job.Payload, job.Status,
		job.Attempts, job.MaxAttempts, job.RunAt, job.CreatedAt, now)
	return err
}

// Claim picks the oldest ready job and flips it to running with a
// conditional update, so a concurrent claimer can never take the same
// job twice.
func (s *SQLJobStore) Claim(ctx context.Context, queue string, now int64) (*Job, error) {
	query := `
		SELECT job_id, queue, task_id, payload, status, attempts, max_attempts, run_at, last_error, created_at
		FROM jobs
		WHERE queue = ? AND status = ? AND run_at <= ?
		ORDER BY run_at, created_at
		LIMIT 5
	`
	rows, err := s.DB.QueryContext(ctx, query, queue, JobPending, now)
	if err != nil {
		return nil, err
	}

	var candidates []Job
	for rows.Next() {
		var job Job
		var lastError sql.NullString
		if err := rows.Scan(&job.ID, &job.Queue, &job.TaskID, &job.Payload, &job.Status,
			&job.Attempts, &job.MaxAttempts, &job.RunAt, &lastError, &job.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		job.LastError = lastError.String
		candidates = append(candidates, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claim := `
		UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE job_id = ? AND status = ?
	`
	for i := range candidates {
		job := &candidates[i]
		result, err := s.DB.ExecContext(ctx, claim, JobRunning, time.Now().UTC().Unix(), job.ID, JobPending)
		if err != nil {
			return nil, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			job.Status = JobRunning
			job.Attempts++
			return job, nil
		}
		// Someone else won this one; try the next candidate.
	}

	return nil, nil
}

// MarkCompleted finishes a job successfully.
func (s *SQLJobStore) MarkCompleted(ctx context.Context, jobID string) error {
	return s.setStatus(ctx, jobID, JobCompleted, "")
}

// Reschedule puts a job back in the queue for a later attempt.
func (s *SQLJobStore) Reschedule(ctx context.Context, jobID string, runAt int64, lastError string) error {
	query := `UPDATE jobs SET status = ?, run_at = ?, last_error = ?, updated_at = ? WHERE job_id = ?`
	result, err := s.DB.ExecContext(ctx, query, JobPending, runAt, lastError, time.Now().UTC().Unix(), jobID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// MarkFailed finishes a job as permanently failed.
func (s *SQLJobStore) MarkFailed(ctx context.Context, jobID string, lastError string) error {
	return s.setStatus(ctx, jobID, JobFailed, lastError)
}

func (s *SQLJobStore) setStatus(ctx context.Context, jobID, status, lastError string) error {
	query := `UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE job_id = ?`
	result, err := s.DB.ExecContext(ctx, query, status, lastError, time.Now().UTC().Unix(), jobID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("job not found")
	}
	return nil
}
