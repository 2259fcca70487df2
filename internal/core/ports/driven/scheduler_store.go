package driven

import (
	"context"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// SchedulerStore keeps scheduled task state and run history so schedules
// survive restarts.
type SchedulerStore interface {
	// GetTask returns a task by ID or ErrNotFound.
	GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error)

	// ListTasks returns all tasks ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends a result to its task's history and drops all
	// but the newest keep results of that task.
	RecordResult(ctx context.Context, result *domain.TaskResult, keep int) error

	// History returns up to limit results of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
