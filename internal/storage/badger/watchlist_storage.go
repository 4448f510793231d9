package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// WatchlistStorage stores watchlist items keyed by ID with a UserID index
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	// mu serialises writers so concurrent adds never hit a transaction conflict
	mu sync.Mutex
}

// NewWatchlistStore creates the watchlist store
func NewWatchlistStore(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStore {
	return &WatchlistStorage{db: db, logger: logger}
}

func (s *WatchlistStorage) ListActiveItems(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID").And("IsActive").Eq(true).SortBy("CreatedAt")
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return items, nil
}

func (s *WatchlistStorage) ListAllActive(ctx context.Context) ([]models.WatchlistItem, error) {
	var items []models.WatchlistItem
	if err := s.db.Store().Find(&items, badgerhold.Where("IsActive").Eq(true).SortBy("UserID", "CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list watchlists: %w", err)
	}
	return items, nil
}

func (s *WatchlistStorage) AddItem(ctx context.Context, item *models.WatchlistItem, maxItems int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.db.Store()
	err := store.Badger().Update(func(txn *badgerdb.Txn) error {
		var existing []models.WatchlistItem
		query := badgerhold.Where("UserID").Eq(item.UserID).Index("UserID").And("IsActive").Eq(true)
		if err := store.TxFind(txn, &existing, query); err != nil {
			return fmt.Errorf("failed to list watchlist: %w", err)
		}

		code := common.StripSuffix(item.Symbol)
		for _, e := range existing {
			if common.StripSuffix(e.Symbol) == code {
				return interfaces.ErrDuplicate
			}
		}
		if maxItems > 0 && len(existing) >= maxItems {
			return interfaces.ErrWatchlistLimit
		}
		return store.TxInsert(txn, item.ID, item)
	})
	if errors.Is(err, interfaces.ErrDuplicate) || errors.Is(err, interfaces.ErrWatchlistLimit) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to add watchlist item: %w", err)
	}
	return nil
}

func (s *WatchlistStorage) RemoveItem(ctx context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.WatchlistItem
	err := s.db.Store().Get(itemID, &item)
	if errors.Is(err, badgerhold.ErrNotFound) || (err == nil && (item.UserID != userID || !item.IsActive)) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get watchlist item: %w", err)
	}

	item.IsActive = false
	item.UpdatedAt = time.Now()
	if err := s.db.Store().Update(itemID, &item); err != nil {
		return fmt.Errorf("failed to remove watchlist item: %w", err)
	}
	return nil
}
