package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()

	lastRun := time.Now().Add(-time.Hour).Truncate(time.Second)
	task := &domain.ScheduledTask{
		ID:          domain.TaskIDMediaFilter,
		Name:        "Media Filter",
		Interval:    30 * time.Minute,
		Enabled:     true,
		LastRun:     lastRun,
		NextRun:     lastRun.Add(30 * time.Minute),
		LastSuccess: lastRun,
		LastError:   "",
	}
	require.NoError(t, tasks.SaveTask(ctx, task))

	got, err := tasks.GetTask(ctx, domain.TaskIDMediaFilter)
	require.NoError(t, err)
	assert.Equal(t, "Media Filter", got.Name)
	assert.Equal(t, 30*time.Minute, got.Interval)
	assert.True(t, got.Enabled)
	assert.True(t, got.LastRun.Equal(lastRun))
	assert.True(t, got.NextRun.Equal(lastRun.Add(30*time.Minute)))
	assert.True(t, got.LastSuccess.Equal(lastRun))
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SchedulerStore().GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSchedulerStore_SaveTask_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	assert.ErrorIs(t, store.SchedulerStore().SaveTask(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SchedulerStore().SaveTask(ctx, &domain.ScheduledTask{}), domain.ErrInvalidInput)
}

func TestSchedulerStore_SaveTask_UpdateAndZeroTimes(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()

	task := &domain.ScheduledTask{ID: domain.TaskIDMediaFilter, Name: "Media Filter", Interval: time.Hour, Enabled: true}
	require.NoError(t, tasks.SaveTask(ctx, task))

	got, err := tasks.GetTask(ctx, domain.TaskIDMediaFilter)
	require.NoError(t, err)
	assert.True(t, got.LastRun.IsZero())
	assert.True(t, got.NextRun.IsZero())
	assert.True(t, got.Due(time.Now()))

	task.Enabled = false
	task.LastError = "media filter run: context canceled"
	require.NoError(t, tasks.SaveTask(ctx, task))

	got, err = tasks.GetTask(ctx, domain.TaskIDMediaFilter)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "media filter run: context canceled", got.LastError)
}

func TestSchedulerStore_ListTasks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()

	empty, err := tasks.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, id := range []string{"media-filter", "b-task", "a-task"} {
		require.NoError(t, tasks.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Hour}))
	}

	list, err := tasks.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a-task", list[0].ID)
	assert.Equal(t, "b-task", list[1].ID)
	assert.Equal(t, "media-filter", list[2].ID)
}

func TestSchedulerStore_RecordResultAndHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()
	start := time.Now().Add(-time.Minute)

	require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDMediaFilter,
		StartedAt: start,
		EndedAt:   start.Add(10 * time.Second),
		Success:   true,
		Counts:    domain.RunCounts{Items: 4, Derived: 6, Skipped: 2, Failed: 1, Finalize: 1},
	}, 10))
	require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
		TaskID:    domain.TaskIDMediaFilter,
		StartedAt: start.Add(time.Second),
		EndedAt:   start.Add(2 * time.Second),
		Error:     "list items: database is locked",
	}, 10))

	history, err := tasks.History(ctx, domain.TaskIDMediaFilter, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first
	assert.False(t, history[0].Success)
	assert.Equal(t, "list items: database is locked", history[0].Error)
	assert.Zero(t, history[0].Counts)

	assert.True(t, history[1].Success)
	assert.Equal(t, domain.RunCounts{Items: 4, Derived: 6, Skipped: 2, Failed: 1, Finalize: 1}, history[1].Counts)
	assert.Equal(t, 10*time.Second, history[1].Duration())
}

func TestSchedulerStore_RecordResult_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()

	assert.ErrorIs(t, tasks.RecordResult(ctx, nil, 10), domain.ErrInvalidInput)
	assert.ErrorIs(t, tasks.RecordResult(ctx, &domain.TaskResult{}, 10), domain.ErrInvalidInput)
	assert.ErrorIs(t, tasks.RecordResult(ctx, &domain.TaskResult{TaskID: "x"}, 0), domain.ErrInvalidInput)
}

func TestSchedulerStore_RecordResult_PrunesPerTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()
	start := time.Now()

	for i := 1; i <= 5; i++ {
		require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
			TaskID:    domain.TaskIDMediaFilter,
			StartedAt: start,
			EndedAt:   start,
			Success:   true,
			Counts:    domain.RunCounts{Items: i},
		}, 3))
	}
	require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
		TaskID: "other", StartedAt: start, EndedAt: start, Success: true,
	}, 3))

	history, err := tasks.History(ctx, domain.TaskIDMediaFilter, 100)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 5, history[0].Counts.Items)
	assert.Equal(t, 4, history[1].Counts.Items)
	assert.Equal(t, 3, history[2].Counts.Items)

	other, err := tasks.History(ctx, "other", 100)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSchedulerStore_History_LimitAndEmpty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	tasks := store.SchedulerStore()

	empty, err := tasks.History(ctx, domain.TaskIDMediaFilter, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	now := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, tasks.RecordResult(ctx, &domain.TaskResult{
			TaskID: domain.TaskIDMediaFilter, StartedAt: now, EndedAt: now, Success: true,
		}, 100))
	}

	limited, err := tasks.History(ctx, domain.TaskIDMediaFilter, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
