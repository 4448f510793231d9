package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
	"github.com/ternarybob/briefing/internal/pipeline"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("briefing run already in progress")

// DefaultHistorySize is the number of runs kept in memory
const DefaultHistorySize = 100

// State is the scheduler lifecycle state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// Runner executes one briefing cycle
type Runner interface {
	RunCycle(ctx context.Context, opts pipeline.RunOptions) models.PublishingRunResult
}

// Service triggers briefing runs from a cron schedule or on demand.
// At most one run is active; a tick that arrives while busy is skipped.
type Service struct {
	runner      Runner
	store       interfaces.RunHistoryStore
	schedule    string
	location    *time.Location
	historySize int
	logger      arbor.ILogger

	cron    *cron.Cron
	entryID cron.EntryID
	baseCtx context.Context
	cancel  context.CancelFunc

	busy      atomic.Bool
	mu        sync.Mutex // protects history, state and lastError
	history   []models.PublishingRunResult
	state     State
	lastError string
	now       func() time.Time
}

// NewService creates the scheduler. store may be nil to keep history in memory only.
func NewService(runner Runner, store interfaces.RunHistoryStore, config common.SchedulerConfig, logger arbor.ILogger) (*Service, error) {
	if err := common.ValidateSchedule(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	location := time.Local
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
		}
		location = loc
	}

	historySize := config.HistorySize
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if !config.Persist {
		store = nil
	}

	return &Service{
		runner:      runner,
		store:       store,
		schedule:    config.Schedule,
		location:    location,
		historySize: historySize,
		logger:      logger,
		state:       StateIdle,
		now:         time.Now,
	}, nil
}

// Start registers the cron entry and begins ticking
func (s *Service) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already running")
	}

	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithLocation(s.location))

	id, err := s.cron.AddFunc(s.schedule, s.tick)
	if err != nil {
		s.cron = nil
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("timezone", s.location.String()).
		Str("next_run", s.NextRun().Format(time.RFC3339)).
		Msg("Briefing scheduler started")
	return nil
}

// Stop halts the cron and waits up to timeout for an active run to return
func (s *Service) Stop(timeout time.Duration) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("Active briefing run did not finish before shutdown, cancelling")
		s.cancel()
		<-done
	}
	s.cancel()
	s.cron = nil
	s.logger.Info().Msg("Briefing scheduler stopped")
}

// NextRun returns the next scheduled tick, or zero when not started
func (s *Service) NextRun() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Schedule returns the cron expression
func (s *Service) Schedule() string {
	return s.schedule
}

func (s *Service) tick() {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.execute(ctx, pipeline.RunOptions{Trigger: pipeline.TriggerCron}); errors.Is(err, ErrRunInProgress) {
		s.logger.Warn().Msg("Scheduled tick skipped, previous briefing run still active")
		now := s.now()
		s.record(models.PublishingRunResult{
			RunID:      common.NewRunID(),
			Trigger:    pipeline.TriggerCron,
			Status:     models.RunStatusSkipped,
			StartedAt:  now,
			FinishedAt: now,
			Errors:     []string{ErrRunInProgress.Error()},
		}, false)
	}
}

// RunNow runs one cycle immediately, sharing the overlap guard with the cron tick
func (s *Service) RunNow(ctx context.Context, opts pipeline.RunOptions) (models.PublishingRunResult, error) {
	if opts.Trigger == "" {
		opts.Trigger = pipeline.TriggerManual
	}
	return s.execute(ctx, opts)
}

// Running reports whether a run is active
func (s *Service) Running() bool {
	return s.busy.Load()
}

// State returns the lifecycle state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) execute(ctx context.Context, opts pipeline.RunOptions) (models.PublishingRunResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return models.PublishingRunResult{}, ErrRunInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	result := s.safeRun(ctx, opts)
	s.record(result, true)
	return result, nil
}

// safeRun converts a panic inside the pipeline into a failed result
func (s *Service) safeRun(ctx context.Context, opts pipeline.RunOptions) (result models.PublishingRunResult) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic in briefing run")
			result = models.PublishingRunResult{
				RunID:      common.NewRunID(),
				Trigger:    opts.Trigger,
				Status:     models.RunStatusFailed,
				StartedAt:  started,
				FinishedAt: s.now(),
				Errors:     []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()
	return s.runner.RunCycle(ctx, opts)
}

func (s *Service) record(result models.PublishingRunResult, persist bool) {
	s.mu.Lock()
	s.history = append(s.history, result)
	if len(s.history) > s.historySize {
		s.history = append([]models.PublishingRunResult(nil), s.history[len(s.history)-s.historySize:]...)
	}
	if result.Status != models.RunStatusSkipped {
		if result.Success {
			s.state = StateIdle
		} else {
			s.state = StateFailed
		}
	}
	if len(result.Errors) > 0 {
		s.lastError = result.Errors[len(result.Errors)-1]
	}
	s.mu.Unlock()

	if persist && s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.SaveRun(ctx, &result); err != nil {
			s.logger.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to persist run result")
		}
	}
}

// LoadHistory seeds the in-memory history from the persistent store
func (s *Service) LoadHistory(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	runs, err := s.store.ListRuns(ctx, s.historySize)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// store returns newest first
	loaded := make([]models.PublishingRunResult, 0, len(runs)+len(s.history))
	for i := len(runs) - 1; i >= 0; i-- {
		loaded = append(loaded, runs[i])
	}
	s.history = append(loaded, s.history...)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	s.logger.Debug().Int("runs", len(runs)).Msg("Run history loaded")
	return nil
}

// History returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Service) History(limit int) []models.PublishingRunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.PublishingRunResult, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// Stats aggregates the in-memory history
func (s *Service) Stats() models.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.RunStats{
		TotalRuns: len(s.history),
		Platforms: make(map[string]models.PlatformStats),
		LastError: s.lastError,
	}

	for _, run := range s.history {
		switch {
		case run.Status == models.RunStatusSkipped:
			stats.SkippedRuns++
			continue
		case run.Success:
			stats.SuccessfulRuns++
		default:
			stats.FailedRuns++
		}
		for _, r := range run.Results {
			ps := stats.Platforms[r.Platform]
			ps.Total++
			if r.Success {
				ps.Succeeded++
			} else {
				ps.Failed++
			}
			stats.Platforms[r.Platform] = ps
		}
	}

	if executed := stats.SuccessfulRuns + stats.FailedRuns; executed > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRuns) / float64(executed) * 100
	}
	if n := len(s.history); n > 0 {
		last := s.history[n-1].StartedAt
		stats.LastRunAt = &last
	}
	return stats
}
