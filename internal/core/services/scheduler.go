package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// historyKeep is the number of results retained per task.
	historyKeep = 100

	// statusHistory is the number of results returned by Tasks.
	statusHistory = 10

	// busyRetry postpones a run that found another run active.
	busyRetry = time.Minute

	mediaFilterTaskName = "Media Filter"
)

// Scheduler repeats the media filter run on the configured interval. The
// task's next run time is persisted, so a restart picks up where the last
// process left off instead of running immediately.
type Scheduler struct {
	config      domain.SchedulerConfig
	store       driven.SchedulerStore
	mediaFilter driving.MediaFilterService
	runOpts     domain.RunOptions
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. runOpts are used for every scheduled
// media filter run.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	mediaFilter driving.MediaFilterService,
	runOpts domain.RunOptions,
) *Scheduler {
	return &Scheduler{
		config:      config,
		store:       store,
		mediaFilter: mediaFilter,
		runOpts:     runOpts,
		now:         time.Now,
	}
}

// Start runs the schedule until Stop is called or ctx is done. It returns
// ctx.Err() in the latter case. A second concurrent Start returns nil at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		close(done)
	}()

	task, err := s.syncTask(runCtx)
	if err != nil {
		logger.Error("scheduler: %v", err)
	}
	if task == nil || !task.Enabled {
		logger.Info("scheduler: media filter task disabled")
		<-runCtx.Done()
	} else {
		s.loop(runCtx, task)
	}
	return ctx.Err()
}

// Stop cancels any run in progress and waits for Start to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Tasks returns the stored tasks with their most recent results.
func (s *Scheduler) Tasks(ctx context.Context) ([]driving.TaskStatus, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	statuses := make([]driving.TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		history, err := s.store.History(ctx, task.ID, statusHistory)
		if err != nil {
			return nil, fmt.Errorf("history of %s: %w", task.ID, err)
		}
		statuses = append(statuses, driving.TaskStatus{Task: task, History: history})
	}
	return statuses, nil
}

// syncTask brings the stored media filter task in line with the config and
// returns it. A changed interval reschedules the next run from now; an
// unchanged one keeps the stored next run.
func (s *Scheduler) syncTask(ctx context.Context) (*domain.ScheduledTask, error) {
	cfg, _ := s.config.Task(domain.TaskIDMediaFilter)
	if cfg.Interval <= 0 {
		return nil, nil
	}

	task, err := s.store.GetTask(ctx, domain.TaskIDMediaFilter)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		task = &domain.ScheduledTask{
			ID:       domain.TaskIDMediaFilter,
			Name:     mediaFilterTaskName,
			Interval: cfg.Interval,
			NextRun:  s.now().Add(cfg.Interval),
		}
	case err != nil:
		return nil, fmt.Errorf("load task: %w", err)
	case task.Interval != cfg.Interval:
		task.Interval = cfg.Interval
		task.NextRun = s.now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled

	if err := s.store.SaveTask(ctx, task); err != nil {
		return task, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// loop sleeps until the task is due, runs it and repeats.
func (s *Scheduler) loop(ctx context.Context, task *domain.ScheduledTask) {
	timer := time.NewTimer(s.untilDue(task))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if task.Due(s.now()) {
				s.runTask(ctx, task)
			}
			timer.Reset(s.untilDue(task))
		}
	}
}

func (s *Scheduler) untilDue(task *domain.ScheduledTask) time.Duration {
	if d := task.NextRun.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// runTask performs one run, then stores the task's new state and the
// result. A run refused because another is active is retried after
// busyRetry and not recorded.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	// State must be saved even when the run was cut short by Stop.
	saveCtx := context.WithoutCancel(ctx)

	result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}
	counts, err := s.runMediaFilter(ctx)
	result.EndedAt = s.now()
	result.Counts = counts

	if errors.Is(err, domain.ErrRunInProgress) {
		logger.Info("scheduler: %s busy, retrying in %s", task.ID, busyRetry)
		task.NextRun = result.EndedAt.Add(busyRetry)
		s.saveTask(saveCtx, task)
		return
	}

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)
	if err != nil {
		result.Error = err.Error()
		task.LastError = result.Error
		logger.Error("scheduler: %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Info("scheduler: %s done in %s, next run %s",
			task.ID, result.Duration().Round(time.Millisecond), task.NextRun.Format(time.RFC3339))
	}

	s.saveTask(saveCtx, task)
	if err := s.store.RecordResult(saveCtx, result, historyKeep); err != nil {
		logger.Error("scheduler: record result for %s: %v", task.ID, err)
	}
}

func (s *Scheduler) saveTask(ctx context.Context, task *domain.ScheduledTask) {
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: save task %s: %v", task.ID, err)
	}
}

// runMediaFilter runs the media filter over every item. Bitstream failures
// are reported in the counts; only a failed run returns an error.
func (s *Scheduler) runMediaFilter(ctx context.Context) (domain.RunCounts, error) {
	if s.mediaFilter == nil {
		return domain.RunCounts{}, nil
	}
	report, err := s.mediaFilter.ApplyAll(ctx, s.runOpts)
	if report == nil {
		return domain.RunCounts{}, err
	}
	counts := report.Counts()
	if err == nil && counts.Failed > 0 {
		logger.Warn("scheduler: media filter finished with %d failures", counts.Failed)
	}
	return counts, err
}
