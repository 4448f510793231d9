package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	subscribers interfaces.SubscriberStore
	watchlist   interfaces.WatchlistStore
	ledger      interfaces.DeliveryLedger
	runs        interfaces.RunHistoryStore
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return newManager(db, logger), nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:          db,
		subscribers: NewSubscriberStore(db, logger),
		watchlist:   NewWatchlistStore(db, logger),
		ledger:      NewDeliveryLedger(db, logger),
		runs:        NewRunHistoryStore(db, logger),
		logger:      logger,
	}
}

// SubscriberStore returns the subscriber and plan store
func (m *Manager) SubscriberStore() interfaces.SubscriberStore {
	return m.subscribers
}

// WatchlistStore returns the watchlist store
func (m *Manager) WatchlistStore() interfaces.WatchlistStore {
	return m.watchlist
}

// DeliveryLedger returns the alert de-duplication ledger
func (m *Manager) DeliveryLedger() interfaces.DeliveryLedger {
	return m.ledger
}

// RunHistoryStore returns the run history store
func (m *Manager) RunHistoryStore() interfaces.RunHistoryStore {
	return m.runs
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
