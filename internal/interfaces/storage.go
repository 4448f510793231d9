package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/briefing/internal/models"
)

var (
	// ErrNotFound is returned when a keyed record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an active watchlist entry already exists for the symbol
	ErrDuplicate = errors.New("duplicate entry")
	// ErrWatchlistLimit is returned when a user's plan limit would be exceeded
	ErrWatchlistLimit = errors.New("watchlist limit reached")
)

// SubscriberStore reads subscribers and plans owned by the auth/billing collaborator
type SubscriberStore interface {
	ListActiveSubscribers(ctx context.Context) ([]models.Subscriber, error)
	GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error)
	SaveSubscriber(ctx context.Context, subscriber *models.Subscriber) error
	GetPlan(ctx context.Context, name string) (*models.Plan, error)
	SavePlan(ctx context.Context, plan *models.Plan) error
}

// WatchlistStore persists per-user watchlists. Removal is a soft delete.
type WatchlistStore interface {
	ListActiveItems(ctx context.Context, userID string) ([]models.WatchlistItem, error)
	ListAllActive(ctx context.Context) ([]models.WatchlistItem, error)
	// AddItem fails with ErrDuplicate or ErrWatchlistLimit. maxItems <= 0 means unlimited.
	AddItem(ctx context.Context, item *models.WatchlistItem, maxItems int) error
	RemoveItem(ctx context.Context, userID, itemID string) error
}

// DeliveryLedger records which news URLs each user has received
type DeliveryLedger interface {
	// Record inserts the pair and reports false when it was already present
	Record(ctx context.Context, record *models.DeliveryRecord) (bool, error)
	DeliveredURLs(ctx context.Context, userID string) (map[string]bool, error)
}

// RunHistoryStore persists briefing run results across restarts
type RunHistoryStore interface {
	SaveRun(ctx context.Context, run *models.PublishingRunResult) error
	ListRuns(ctx context.Context, limit int) ([]models.PublishingRunResult, error)
}

// StorageManager exposes all stores for one backend
type StorageManager interface {
	SubscriberStore() SubscriberStore
	WatchlistStore() WatchlistStore
	DeliveryLedger() DeliveryLedger
	RunHistoryStore() RunHistoryStore
	Close() error
}
