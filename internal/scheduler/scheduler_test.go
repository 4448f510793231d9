package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
)

type blockingRunner struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	started chan struct{}
	results []models.PublishingRunResult
}

func (r *blockingRunner) RunCycle(ctx context.Context, opts pipeline.RunOptions) models.PublishingRunResult {
	r.mu.Lock()
	i := r.calls
	r.calls++
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}

	result := models.PublishingRunResult{RunID: fmt.Sprintf("run-%d", i), Trigger: opts.Trigger, Success: true, Status: models.RunStatusSuccess, StartedAt: time.Now()}
	if i < len(r.results) {
		result = r.results[i]
		result.Trigger = opts.Trigger
	}
	return result
}

type panicRunner struct{}

func (panicRunner) RunCycle(ctx context.Context, opts pipeline.RunOptions) models.PublishingRunResult {
	panic("boom")
}

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) SaveRun(ctx context.Context, run *models.PublishingRunResult) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]models.PublishingRunResult, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]models.PublishingRunResult)
	return runs, args.Error(1)
}

func testConfig() common.SchedulerConfig {
	return common.SchedulerConfig{Enabled: true, Schedule: "30 7 * * 1-5", Timezone: "Asia/Seoul", HistorySize: 3}
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule = "* * * * *"
	_, err := NewService(&blockingRunner{}, nil, cfg, arbor.NewLogger())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err = NewService(&blockingRunner{}, nil, cfg, arbor.NewLogger())
	assert.Error(t, err)
}

func TestRunNow_SkipIfRunning(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, err := NewService(runner, nil, testConfig(), arbor.NewLogger())
	require.NoError(t, err)

	done := make(chan models.PublishingRunResult)
	go func() {
		result, err := svc.RunNow(context.Background(), pipeline.RunOptions{})
		assert.NoError(t, err)
		done <- result
	}()
	<-runner.started

	assert.True(t, svc.Running())
	assert.Equal(t, StateRunning, svc.State())

	_, err = svc.RunNow(context.Background(), pipeline.RunOptions{Trigger: pipeline.TriggerAPI})
	assert.ErrorIs(t, err, ErrRunInProgress)

	// a cron tick while busy is recorded as skipped, not queued
	svc.tick()

	close(runner.release)
	result := <-done
	assert.Equal(t, pipeline.TriggerManual, result.Trigger)
	assert.False(t, svc.Running())
	assert.Equal(t, StateIdle, svc.State())
	assert.Equal(t, 1, runner.calls)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SkippedRuns)
	assert.Equal(t, 1, stats.SuccessfulRuns)
	assert.Equal(t, 100.0, stats.SuccessRate)
}

func TestHistoryAndStats(t *testing.T) {
	runner := &blockingRunner{results: []models.PublishingRunResult{
		{RunID: "a", Success: true, Status: models.RunStatusSuccess, Results: []models.PublishResult{{Platform: "github", Success: true}}},
		{RunID: "b", Success: false, Status: models.RunStatusFailed, Errors: []string{"github: 401"}, Results: []models.PublishResult{{Platform: "github", Error: "401"}}},
		{RunID: "c", Success: true, Status: models.RunStatusPartial, Results: []models.PublishResult{{Platform: "github", Success: true}, {Platform: "telegram", Error: "down"}}},
		{RunID: "d", Success: true, Status: models.RunStatusSuccess, Results: []models.PublishResult{{Platform: "rest", Success: true}}},
	}}
	svc, err := NewService(runner, nil, testConfig(), arbor.NewLogger())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := svc.RunNow(context.Background(), pipeline.RunOptions{})
		require.NoError(t, err)
	}

	history := svc.History(0)
	require.Len(t, history, 3, "history is bounded")
	assert.Equal(t, "d", history[0].RunID)
	assert.Equal(t, "b", history[2].RunID)
	assert.Len(t, svc.History(1), 1)

	stats := svc.Stats()
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 2, stats.SuccessfulRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.InDelta(t, 66.67, stats.SuccessRate, 0.01)
	assert.Equal(t, models.PlatformStats{Total: 2, Succeeded: 1, Failed: 1}, stats.Platforms["github"])
	assert.Equal(t, models.PlatformStats{Total: 1, Failed: 1}, stats.Platforms["telegram"])
	assert.Equal(t, "github: 401", stats.LastError)
}

func TestPanicRecordedAsFailure(t *testing.T) {
	svc, err := NewService(panicRunner{}, nil, testConfig(), arbor.NewLogger())
	require.NoError(t, err)

	result, err := svc.RunNow(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Equal(t, StateFailed, svc.State())
	assert.False(t, svc.Running())
}

func TestPersistence(t *testing.T) {
	store := &mockRunStore{}
	store.On("ListRuns", mock.Anything, 3).Return([]models.PublishingRunResult{
		{RunID: "old-2", Success: true, Status: models.RunStatusSuccess},
		{RunID: "old-1", Success: true, Status: models.RunStatusSuccess},
	}, nil)
	store.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *models.PublishingRunResult) bool { return r.RunID == "run-0" })).
		Return(errors.New("disk full"))

	cfg := testConfig()
	cfg.Persist = true
	svc, err := NewService(&blockingRunner{}, store, cfg, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, svc.LoadHistory(context.Background()))

	// a persistence failure does not fail the run
	_, err = svc.RunNow(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	history := svc.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "run-0", history[0].RunID)
	assert.Equal(t, "old-2", history[1].RunID)
	assert.Equal(t, "old-1", history[2].RunID)
	store.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	svc, err := NewService(&blockingRunner{}, nil, testConfig(), arbor.NewLogger())
	require.NoError(t, err)
	assert.True(t, svc.NextRun().IsZero())

	require.NoError(t, svc.Start(context.Background()))
	next := svc.NextRun()
	assert.False(t, next.IsZero())
	assert.Equal(t, 30, next.Minute())
	assert.Error(t, svc.Start(context.Background()))

	svc.Stop(time.Second)
	assert.True(t, svc.NextRun().IsZero())
}
