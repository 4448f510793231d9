package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// Manager implements StorageManager on a gorm connection. One type serves every store.
type Manager struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewManager opens the database for driver ("postgres" or "sqlite")
func NewManager(logger arbor.ILogger, driver string, config *common.SQLConfig) (interfaces.StorageManager, error) {
	db, err := Open(driver, config, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("driver", driver).Msg("SQL storage manager initialized")
	return &Manager{db: db, logger: logger}, nil
}

// NewManagerFromDB wraps an existing connection
func NewManagerFromDB(db *gorm.DB, logger arbor.ILogger) *Manager {
	return &Manager{db: db, logger: logger}
}

func (m *Manager) SubscriberStore() interfaces.SubscriberStore { return m }
func (m *Manager) WatchlistStore() interfaces.WatchlistStore   { return m }
func (m *Manager) DeliveryLedger() interfaces.DeliveryLedger   { return m }
func (m *Manager) RunHistoryStore() interfaces.RunHistoryStore { return m }

// Close closes the underlying connection pool
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return interfaces.ErrNotFound
	}
	return err
}

// --- subscribers and plans ---

func (m *Manager) ListActiveSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := m.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

func (m *Manager) GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := m.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (m *Manager) SaveSubscriber(ctx context.Context, subscriber *models.Subscriber) error {
	if subscriber.ID == "" {
		return fmt.Errorf("subscriber ID is required")
	}
	if err := m.db.WithContext(ctx).Save(subscriber).Error; err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

func (m *Manager) GetPlan(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	if err := m.db.WithContext(ctx).First(&plan, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (m *Manager) SavePlan(ctx context.Context, plan *models.Plan) error {
	if plan.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if err := m.db.WithContext(ctx).Save(plan).Error; err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// --- watchlists ---

func (m *Manager) ListActiveItems(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	if err := m.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).Order("created_at").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return items, nil
}

func (m *Manager) ListAllActive(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	if err := m.db.WithContext(ctx).Where("is_active = ?", true).Order("user_id, created_at").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	return items, nil
}

// AddItem locks the subscriber row so concurrent adds for one user serialize on
// the limit check. The partial unique index backs the duplicate check.
func (m *Manager) AddItem(ctx context.Context, item *models.WatchlistItem, maxItems int) error {
	item.Code = common.StripSuffix(item.Symbol)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner []models.Subscriber
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", item.UserID).Find(&owner).Error; err != nil {
			return fmt.Errorf("failed to lock subscriber: %w", err)
		}

		var existing []models.WatchlistItem
		if err := tx.Where("user_id = ? AND is_active = ?", item.UserID, true).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to read watchlist: %w", err)
		}

		for _, e := range existing {
			if common.StripSuffix(e.Symbol) == item.Code {
				return interfaces.ErrDuplicate
			}
		}
		if maxItems > 0 && len(existing) >= maxItems {
			return interfaces.ErrWatchlistLimit
		}

		return tx.Create(item).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, interfaces.ErrDuplicate), errors.Is(err, interfaces.ErrWatchlistLimit):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return interfaces.ErrDuplicate
	default:
		return fmt.Errorf("failed to add watchlist item: %w", err)
	}
}

func (m *Manager) RemoveItem(ctx context.Context, userID, itemID string) error {
	result := m.db.WithContext(ctx).Model(&models.WatchlistItem{}).
		Where("id = ? AND user_id = ? AND is_active = ?", itemID, userID, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to remove watchlist item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// --- delivery ledger ---

// Record relies on the (user_id, news_url) unique index; a conflict inserts nothing
func (m *Manager) Record(ctx context.Context, record *models.DeliveryRecord) (bool, error) {
	record.NewsURL = models.NormalizeURL(record.NewsURL)
	if record.ID == "" {
		record.ID = common.NewDeliveryID()
	}
	result := m.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record delivery: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (m *Manager) DeliveredURLs(ctx context.Context, userID string) (map[string]bool, error) {
	var urls []string
	if err := m.db.WithContext(ctx).Model(&models.DeliveryRecord{}).Where("user_id = ?", userID).Pluck("news_url", &urls).Error; err != nil {
		return nil, fmt.Errorf("failed to read delivery ledger: %w", err)
	}
	out := make(map[string]bool, len(urls))
	for _, u := range urls {
		out[u] = true
	}
	return out, nil
}

// --- run history ---

func (m *Manager) SaveRun(ctx context.Context, run *models.PublishingRunResult) error {
	if err := m.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (m *Manager) ListRuns(ctx context.Context, limit int) ([]models.PublishingRunResult, error) {
	query := m.db.WithContext(ctx).Order("started_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []models.PublishingRunResult
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
