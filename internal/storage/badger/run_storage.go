package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// RunHistoryStorage persists briefing run results keyed by run ID
type RunHistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunHistoryStore creates the run history store
func NewRunHistoryStore(db *BadgerDB, logger arbor.ILogger) interfaces.RunHistoryStore {
	return &RunHistoryStorage{db: db, logger: logger}
}

func (s *RunHistoryStorage) SaveRun(ctx context.Context, run *models.PublishingRunResult) error {
	if err := s.db.Store().Upsert(run.RunID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first
func (s *RunHistoryStorage) ListRuns(ctx context.Context, limit int) ([]models.PublishingRunResult, error) {
	query := badgerhold.Where("RunID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.PublishingRunResult
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
