package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// ErrNoProvider is returned when no provider serves the symbol's market
var ErrNoProvider = errors.New("no market data provider configured")

// Router dispatches Korean symbols to the KRX provider and the rest to the US provider.
// When the US provider is nil, the KRX provider serves every market.
type Router struct {
	krx           interfaces.MarketDataProvider
	us            interfaces.MarketDataProvider
	defaultMarket common.Market
	batchSize     int
	batchWait     time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        arbor.ILogger
}

var _ interfaces.MarketDataProvider = (*Router)(nil)

// NewRouter creates a market data router
func NewRouter(krx, us interfaces.MarketDataProvider, config common.MarketConfig, logger arbor.ILogger) *Router {
	batchSize := config.QuoteBatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Router{
		krx:           krx,
		us:            us,
		defaultMarket: common.Market(config.DefaultMarket),
		batchSize:     batchSize,
		batchWait:     config.QuoteBatchWait,
		sleep:         common.SleepContext,
		logger:        logger,
	}
}

func (r *Router) providerFor(symbol string) (interfaces.MarketDataProvider, error) {
	sym := common.ParseSymbol(symbol, r.defaultMarket)
	if sym.Code == "" {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	if !sym.IsKorean() && r.us != nil {
		return r.us, nil
	}
	if r.krx != nil {
		return r.krx, nil
	}
	if r.us != nil {
		return r.us, nil
	}
	return nil, ErrNoProvider
}

// Quote routes a quote lookup by market
func (r *Router) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	p, err := r.providerFor(symbol)
	if err != nil {
		return nil, err
	}
	return p.Quote(ctx, symbol)
}

// Historical routes a history lookup by market
func (r *Router) Historical(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalBar, error) {
	p, err := r.providerFor(symbol)
	if err != nil {
		return nil, err
	}
	return p.Historical(ctx, symbol, start, end)
}

// Search queries every provider and merges results. One failing provider is tolerated.
func (r *Router) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	var (
		merged []models.SymbolMatch
		errs   []error
		seen   = make(map[string]bool)
	)
	for _, p := range []interfaces.MarketDataProvider{r.krx, r.us} {
		if p == nil {
			continue
		}
		matches, err := p.Search(ctx, query)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range matches {
			if seen[m.Symbol] {
				continue
			}
			seen[m.Symbol] = true
			merged = append(merged, m)
		}
	}
	if len(merged) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

// Quotes fetches quotes in fixed-size concurrent batches with a delay between batches.
// Failed lookups are logged and omitted from the result.
func (r *Router) Quotes(ctx context.Context, symbols []string) map[string]*models.Quote {
	result := make(map[string]*models.Quote, len(symbols))
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += r.batchSize {
		if start > 0 && r.batchWait > 0 {
			if err := r.sleep(ctx, r.batchWait); err != nil {
				break
			}
		}
		end := start + r.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, symbol := range symbols[start:end] {
			symbol := symbol
			wg.Add(1)
			common.SafeGo(r.logger, &wg, "quote-"+symbol, func() {
				q, err := r.Quote(ctx, symbol)
				if err != nil {
					r.logger.Warn().Err(err).Str("symbol", symbol).Msg("Quote lookup failed, skipping symbol")
					return
				}
				mu.Lock()
				result[symbol] = q
				mu.Unlock()
			})
		}
		wg.Wait()
	}
	return result
}
