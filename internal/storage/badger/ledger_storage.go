package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// DeliveryLedgerStorage keys records by (user, normalized url) so a second insert is a key conflict
type DeliveryLedgerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDeliveryLedger creates the ledger store
func NewDeliveryLedger(db *BadgerDB, logger arbor.ILogger) interfaces.DeliveryLedger {
	return &DeliveryLedgerStorage{db: db, logger: logger}
}

func (s *DeliveryLedgerStorage) Record(ctx context.Context, record *models.DeliveryRecord) (bool, error) {
	record.NewsURL = models.NormalizeURL(record.NewsURL)
	err := s.db.Store().Insert(models.DeliveryKey(record.UserID, record.NewsURL), record)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		s.logger.Debug().Str("user_id", record.UserID).Str("url", record.NewsURL).Msg("Delivery already recorded")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}
	return true, nil
}

func (s *DeliveryLedgerStorage) DeliveredURLs(ctx context.Context, userID string) (map[string]bool, error) {
	var records []models.DeliveryRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("failed to read delivery ledger: %w", err)
	}
	urls := make(map[string]bool, len(records))
	for _, r := range records {
		urls[r.NewsURL] = true
	}
	return urls, nil
}
