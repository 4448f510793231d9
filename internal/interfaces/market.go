package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/briefing/internal/models"
)

// MarketDataProvider serves quotes and daily history for a symbol
type MarketDataProvider interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	// Historical returns daily bars ordered oldest first
	Historical(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalBar, error)
	Search(ctx context.Context, query string) ([]models.SymbolMatch, error)
}
