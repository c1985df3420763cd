package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/feedscope/feedscope/pkg/domain"
)

// JobRepository persists pipeline jobs so in-flight work survives restarts
type JobRepository struct {
	db *sqlx.DB
}

type jobSQL struct {
	ID         string    `db:"id"`
	FeedbackID int64     `db:"feedback_id"`
	Stage      string    `db:"stage"`
	Attempts   int       `db:"attempts"`
	Verdict    string    `db:"verdict"`
	Embedding  string    `db:"embedding"`
	Error      string    `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// NewJobRepository creates a new job repository
func NewJobRepository(database *sqlx.DB) *JobRepository {
	return &JobRepository{db: database}
}

func toDomainJob(j *jobSQL) (*domain.Job, error) {
	job := &domain.Job{
		ID:         j.ID,
		FeedbackID: j.FeedbackID,
		Stage:      domain.Stage(j.Stage),
		Attempts:   j.Attempts,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
	if j.Verdict != "" {
		var v domain.Verdict
		if err := json.Unmarshal([]byte(j.Verdict), &v); err != nil {
			return nil, fmt.Errorf("unmarshal job verdict: %w", err)
		}
		job.Verdict = &v
	}
	if j.Embedding != "" {
		if err := json.Unmarshal([]byte(j.Embedding), &job.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal job embedding: %w", err)
		}
	}
	return job, nil
}

// Create inserts a new job at the fetch stage
func (r *JobRepository) Create(ctx context.Context, id string, feedbackID int64) error {
	return newRetrier().Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO pipeline_jobs (id, feedback_id, stage) VALUES (?, ?, ?)",
			id, feedbackID, domain.StageFetch)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("insert job: %w", err)}
		}
		return nil
	})
}

// Get returns a job by its handle
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var row jobSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM pipeline_jobs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return toDomainJob(&row)
}

// Update persists job progress: stage, attempts, durable stage outputs and
// the last error text
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	verdictJSON := ""
	if job.Verdict != nil {
		data, err := json.Marshal(job.Verdict)
		if err != nil {
			return fmt.Errorf("marshal job verdict: %w", err)
		}
		verdictJSON = string(data)
	}
	embeddingJSON := ""
	if len(job.Embedding) > 0 {
		data, err := json.Marshal(job.Embedding)
		if err != nil {
			return fmt.Errorf("marshal job embedding: %w", err)
		}
		embeddingJSON = string(data)
	}

	return newRetrier().Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE pipeline_jobs
			SET stage = ?, attempts = ?, verdict = ?, embedding = ?, error = ?,
			    updated_at = datetime('now')
			WHERE id = ?`,
			job.Stage, job.Attempts, verdictJSON, embeddingJSON, job.Error, job.ID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update job: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// GetIncomplete returns jobs stuck in a non-terminal stage, oldest first.
// Used on startup to resume work interrupted by a crash or shutdown.
func (r *JobRepository) GetIncomplete(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []jobSQL
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM pipeline_jobs
		WHERE stage NOT IN (?, ?)
		ORDER BY created_at ASC
		LIMIT ?`, domain.StageCompleted, domain.StageFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("get incomplete jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for i := range rows {
		job, err := toDomainJob(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetActiveForFeedback reports whether a non-terminal job already exists for
// the feedback item, to avoid double-enqueueing the same work
func (r *JobRepository) GetActiveForFeedback(ctx context.Context, feedbackID int64) (*domain.Job, error) {
	var row jobSQL
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM pipeline_jobs
		WHERE feedback_id = ? AND stage NOT IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1`, feedbackID, domain.StageCompleted, domain.StageFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job for feedback %d: %w", feedbackID, err)
	}
	return toDomainJob(&row)
}

// DeleteCompleted prunes terminal jobs older than the cutoff
func (r *JobRepository) DeleteCompleted(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM pipeline_jobs
		WHERE stage IN (?, ?) AND updated_at < ?`,
		domain.StageCompleted, domain.StageFailed, before)
	if err != nil {
		return 0, fmt.Errorf("delete completed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
