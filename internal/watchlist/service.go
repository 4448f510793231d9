package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/entitlement"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// ErrInvalidSymbol is returned when a symbol cannot be normalized
var ErrInvalidSymbol = errors.New("invalid symbol")

// DefaultWatchlistLimit applies when the subscriber's plan is unknown
const DefaultWatchlistLimit = 5

// Service manages user watchlists against plan limits
type Service struct {
	items         interfaces.WatchlistStore
	subscribers   interfaces.SubscriberStore
	defaultMarket common.Market
	logger        arbor.ILogger
	now           func() time.Time
}

// NewService creates a watchlist service
func NewService(items interfaces.WatchlistStore, subscribers interfaces.SubscriberStore, defaultMarket string, logger arbor.ILogger) *Service {
	return &Service{
		items:         items,
		subscribers:   subscribers,
		defaultMarket: common.Market(strings.ToUpper(defaultMarket)),
		logger:        logger,
		now:           time.Now,
	}
}

// List returns the user's active entries
func (s *Service) List(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	return s.items.ListActiveItems(ctx, userID)
}

// Add normalizes the symbol and stores it, enforcing the plan's watchlist size
func (s *Service) Add(ctx context.Context, userID, rawSymbol, name string) (*models.WatchlistItem, error) {
	sym := common.ParseSymbol(rawSymbol, s.defaultMarket)
	if sym.Code == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, rawSymbol)
	}

	limit, err := s.planLimit(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &models.WatchlistItem{
		ID:        common.NewWatchlistID(),
		UserID:    userID,
		Symbol:    sym.DisplaySymbol(),
		Code:      sym.Code,
		Name:      strings.TrimSpace(name),
		Market:    string(sym.Market),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.items.AddItem(ctx, item, limit); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("symbol", item.Symbol).
		Int("limit", limit).
		Msg("Watchlist item added")
	return item, nil
}

// Remove soft-deletes one entry
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	return s.items.RemoveItem(ctx, userID, itemID)
}

// Tier resolves the subscriber's effective tier from the stored plan
func (s *Service) Tier(ctx context.Context, userID string) (models.Tier, error) {
	sub, err := s.subscribers.GetSubscriber(ctx, userID)
	if err != nil {
		return models.TierFree, fmt.Errorf("failed to load subscriber %s: %w", userID, err)
	}

	plan, err := s.subscribers.GetPlan(ctx, sub.PlanName)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return models.TierFree, fmt.Errorf("failed to load plan %s: %w", sub.PlanName, err)
	}
	return entitlement.EffectiveTier(*sub, plan), nil
}

func (s *Service) planLimit(ctx context.Context, userID string) (int, error) {
	sub, err := s.subscribers.GetSubscriber(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load subscriber %s: %w", userID, err)
	}

	plan, err := s.subscribers.GetPlan(ctx, sub.PlanName)
	if errors.Is(err, interfaces.ErrNotFound) {
		return DefaultWatchlistLimit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load plan %s: %w", sub.PlanName, err)
	}
	return plan.MaxWatchlist, nil
}
