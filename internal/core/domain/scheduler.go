package domain

import "time"

// TaskIDMediaFilter runs the media filter over every item.
const TaskIDMediaFilter = "media-filter"

// DefaultFilterInterval is the default gap between scheduled filter runs.
const DefaultFilterInterval = time.Hour

// ScheduledTask is the persisted state of a recurring run.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is the error of the last run, empty after a success.
	LastError string
}

// Due reports whether the task should run at now. A task that never ran
// has a zero NextRun and is always due.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskResult records one execution of a scheduled task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// Counts summarises the run report. It is zero when the run failed
	// before producing a report.
	Counts RunCounts
}

// Duration is how long the execution took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig controls scheduled media filter runs.
type SchedulerConfig struct {
	// Enabled is the master switch; when off no task runs.
	Enabled bool

	// MediaFilter configures the media-filter task.
	MediaFilter TaskConfig
}

// TaskConfig configures one recurring task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Task returns the configuration of a task by ID. The master switch is
// applied, so a disabled scheduler reports every task as disabled.
func (c SchedulerConfig) Task(id string) (TaskConfig, bool) {
	if id != TaskIDMediaFilter {
		return TaskConfig{}, false
	}
	tc := c.MediaFilter
	tc.Enabled = tc.Enabled && c.Enabled
	return tc, true
}

// DefaultSchedulerConfig runs the media filter every hour.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		MediaFilter: TaskConfig{
			Enabled:  true,
			Interval: DefaultFilterInterval,
		},
	}
}
