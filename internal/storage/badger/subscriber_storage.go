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

// SubscriberStorage keeps subscribers keyed by ID and plans keyed by name
type SubscriberStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSubscriberStore creates the subscriber store
func NewSubscriberStore(db *BadgerDB, logger arbor.ILogger) interfaces.SubscriberStore {
	return &SubscriberStorage{db: db, logger: logger}
}

func (s *SubscriberStorage) ListActiveSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := s.db.Store().Find(&subs, badgerhold.Where("IsActive").Eq(true).Index("IsActive").SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

func (s *SubscriberStorage) GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := s.db.Store().Get(id, &sub)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return &sub, nil
}

func (s *SubscriberStorage) SaveSubscriber(ctx context.Context, subscriber *models.Subscriber) error {
	if subscriber.ID == "" {
		return fmt.Errorf("subscriber ID is required")
	}
	if err := s.db.Store().Upsert(subscriber.ID, subscriber); err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	return nil
}

func (s *SubscriberStorage) GetPlan(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.Store().Get(name, &plan)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (s *SubscriberStorage) SavePlan(ctx context.Context, plan *models.Plan) error {
	if plan.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if err := s.db.Store().Upsert(plan.Name, plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}
