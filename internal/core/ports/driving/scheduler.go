package driving

import (
	"context"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// Scheduler runs the media filter as a recurring background task.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error

	// Tasks returns the scheduled tasks with their recent history.
	Tasks(ctx context.Context) ([]TaskStatus, error)
}

// TaskStatus is a scheduled task with its latest results.
type TaskStatus struct {
	Task    domain.ScheduledTask
	History []domain.TaskResult
}
