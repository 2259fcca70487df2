package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, enabled, last_run, next_run, last_success, last_error`

// GetTask returns a task by ID.
func (s *schedulerStore) GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns all tasks ordered by ID.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask creates or updates a task.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error
	`, task.ID, task.Name, int64(task.Interval/time.Second), boolToInt(task.Enabled),
		nullTime(task.LastRun), nullTime(task.NextRun), nullTime(task.LastSuccess),
		task.LastError)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// RecordResult appends a result and prunes the task's history to keep
// entries in one transaction.
func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult, keep int) error {
	if result == nil || result.TaskID == "" || keep < 1 {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := result.Counts
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_results
			(task_id, started_at, ended_at, success, error, items, derived, skipped, failed, finalize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.TaskID, result.StartedAt.UTC(), result.EndedAt.UTC(), boolToInt(result.Success),
		result.Error, c.Items, c.Derived, c.Skipped, c.Failed, c.Finalize); err != nil {
		return fmt.Errorf("recording result: %w", err)
	}

	// IDs grow with insertion, so the newest keep rows have the largest IDs
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM task_results
		WHERE task_id = ? AND id NOT IN (
			SELECT id FROM task_results WHERE task_id = ? ORDER BY id DESC LIMIT ?
		)
	`, result.TaskID, result.TaskID, keep); err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}

	return tx.Commit()
}

// History returns up to limit results of a task, newest first.
func (s *schedulerStore) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, started_at, ended_at, success, error, items, derived, skipped, failed, finalize
		FROM task_results
		WHERE task_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult
	for rows.Next() {
		var r domain.TaskResult
		var success int
		if err := rows.Scan(&r.TaskID, &r.StartedAt, &r.EndedAt, &success, &r.Error,
			&r.Counts.Items, &r.Counts.Derived, &r.Counts.Skipped, &r.Counts.Failed, &r.Counts.Finalize); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Success = success == 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return results, nil
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var intervalSeconds int64
	var enabled int
	var lastRun, nextRun, lastSuccess sql.NullTime

	if err := row.Scan(&task.ID, &task.Name, &intervalSeconds, &enabled,
		&lastRun, &nextRun, &lastSuccess, &task.LastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Interval = time.Duration(intervalSeconds) * time.Second
	task.Enabled = enabled == 1
	task.LastRun = lastRun.Time
	task.NextRun = nextRun.Time
	task.LastSuccess = lastSuccess.Time
	return &task, nil
}
