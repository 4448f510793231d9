package market

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	domain "github.com/ternarybob/briefing/internal/models"
)

// PolygonProvider serves US listings from Polygon.io
type PolygonProvider struct {
	client *polygon.Client
	logger arbor.ILogger
}

// NewPolygonProvider creates a provider with its own Polygon client
func NewPolygonProvider(apiKey string, logger arbor.ILogger) *PolygonProvider {
	return &PolygonProvider{
		client: polygon.New(apiKey),
		logger: logger,
	}
}

// Client exposes the underlying Polygon client for the news source
func (p *PolygonProvider) Client() *polygon.Client {
	return p.client
}

// Quote returns the current snapshot
func (p *PolygonProvider) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	sym := common.ParseSymbol(symbol, common.MarketUS)
	params := models.GetTickerSnapshotParams{
		Ticker:     sym.Code,
		Locale:     "us",
		MarketType: "stocks",
	}

	res, err := p.client.GetTickerSnapshot(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("polygon snapshot %s: %w", sym.Code, err)
	}
	return quoteFromSnapshot(sym.Code, res.Snapshot)
}

func quoteFromSnapshot(ticker string, snap models.TickerSnapshot) (*domain.Quote, error) {
	price := snap.LastTrade.Price
	if price <= 0 {
		price = snap.Day.Close
	}
	if price <= 0 {
		return nil, fmt.Errorf("polygon snapshot %s: no price available", ticker)
	}
	prev := snap.PrevDay.Close
	change := snap.TodaysChange
	if change == 0 && prev > 0 {
		change = price - prev
	}

	return &domain.Quote{
		Symbol:        ticker,
		Price:         RoundPrice(price),
		PreviousClose: RoundPrice(prev),
		Change:        RoundPrice(change),
		ChangePercent: ChangePercent(price, prev, snap.TodaysChangePerc),
		Volume:        snap.Day.Volume,
		Currency:      "USD",
		AsOf:          time.Time(snap.Updated),
	}, nil
}

// Historical returns daily aggregates oldest first
func (p *PolygonProvider) Historical(ctx context.Context, symbol string, start, end time.Time) ([]domain.HistoricalBar, error) {
	sym := common.ParseSymbol(symbol, common.MarketUS)
	params := models.ListAggsParams{
		Ticker:     sym.Code,
		Multiplier: 1,
		Timespan:   models.Timespan("day"),
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.
		WithAdjusted(true).
		WithOrder(models.Order("asc")).
		WithLimit(5000)

	it := p.client.ListAggs(ctx, params)
	var bars []domain.HistoricalBar
	for it.Next() {
		bars = append(bars, barFromAgg(it.Item()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("polygon aggregates %s: %w", sym.Code, err)
	}
	return SortBars(bars), nil
}

func barFromAgg(agg models.Agg) domain.HistoricalBar {
	return domain.HistoricalBar{
		Date:   time.Time(agg.Timestamp).UTC(),
		Open:   agg.Open,
		High:   agg.High,
		Low:    agg.Low,
		Close:  agg.Close,
		Volume: agg.Volume,
	}
}

// Search matches US tickers by name or symbol
func (p *PolygonProvider) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	active := true
	limit := 10
	params := models.ListTickersParams{
		Search: &query,
		Active: &active,
		Limit:  &limit,
	}

	it := p.client.ListTickers(ctx, &params)
	var matches []domain.SymbolMatch
	for it.Next() && len(matches) < limit {
		t := it.Item()
		matches = append(matches, domain.SymbolMatch{
			Symbol:   t.Ticker,
			Name:     t.Name,
			Exchange: t.PrimaryExchange,
			Market:   string(common.MarketUS),
			Currency: t.CurrencyName,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("polygon search %q: %w", query, err)
	}
	return matches, nil
}
