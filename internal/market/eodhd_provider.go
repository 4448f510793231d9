package market

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/eodhd"
	"github.com/ternarybob/briefing/internal/models"
)

// EODHDProvider serves KRX (and fallback US) data from EODHD
type EODHDProvider struct {
	client        *eodhd.Client
	defaultMarket common.Market
	logger        arbor.ILogger
}

// NewEODHDProvider wraps an EODHD client
func NewEODHDProvider(client *eodhd.Client, defaultMarket common.Market, logger arbor.ILogger) *EODHDProvider {
	return &EODHDProvider{
		client:        client,
		defaultMarket: defaultMarket,
		logger:        logger,
	}
}

// Quote returns the delayed live quote
func (p *EODHDProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym := common.ParseSymbol(symbol, p.defaultMarket)
	if sym.Code == "" {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}

	rt, err := p.client.GetRealTimeQuote(ctx, sym.EODHDSymbol())
	if err != nil {
		return nil, fmt.Errorf("eodhd quote %s: %w", sym.EODHDSymbol(), err)
	}

	price := rt.Close.Float()
	prev := rt.PreviousClose.Float()
	if price <= 0 {
		return nil, fmt.Errorf("eodhd quote %s: no price available", sym.EODHDSymbol())
	}

	change := rt.Change.Float()
	if change == 0 && prev > 0 {
		change = price - prev
	}

	return &models.Quote{
		Symbol:        sym.DisplaySymbol(),
		Price:         RoundPrice(price),
		PreviousClose: RoundPrice(prev),
		Change:        RoundPrice(change),
		ChangePercent: ChangePercent(price, prev, rt.ChangePercent.Float()),
		Volume:        rt.Volume.Float(),
		Currency:      currencyFor(sym),
		AsOf:          rt.Time(),
	}, nil
}

// Historical returns daily bars oldest first
func (p *EODHDProvider) Historical(ctx context.Context, symbol string, start, end time.Time) ([]models.HistoricalBar, error) {
	sym := common.ParseSymbol(symbol, p.defaultMarket)
	if sym.Code == "" {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}

	data, err := p.client.GetEOD(ctx, sym.EODHDSymbol(),
		eodhd.WithDateRange(start, end),
		eodhd.WithPeriod("d"),
		eodhd.WithOrder("a"),
	)
	if err != nil {
		return nil, fmt.Errorf("eodhd history %s: %w", sym.EODHDSymbol(), err)
	}

	bars := make([]models.HistoricalBar, 0, len(data))
	for _, d := range data {
		if d.Date.IsZero() || d.Close <= 0 {
			continue
		}
		bars = append(bars, models.HistoricalBar{
			Date:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: float64(d.Volume),
		})
	}
	return SortBars(bars), nil
}

// Search finds instruments on Korean exchanges first, then anywhere
func (p *EODHDProvider) Search(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	results, err := p.client.Search(ctx, query, "")
	if err != nil {
		return nil, fmt.Errorf("eodhd search %q: %w", query, err)
	}

	matches := make([]models.SymbolMatch, 0, len(results))
	for _, r := range results {
		sym := common.ParseSymbol(r.Code+"."+r.Exchange, p.defaultMarket)
		matches = append(matches, models.SymbolMatch{
			Symbol:   sym.DisplaySymbol(),
			Name:     r.Name,
			Exchange: r.Exchange,
			Market:   string(sym.Market),
			Currency: r.Currency,
		})
	}
	return matches, nil
}

func currencyFor(sym common.Symbol) string {
	if sym.IsKorean() {
		return "KRW"
	}
	return "USD"
}
