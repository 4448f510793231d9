package market

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ternarybob/briefing/internal/models"
)

// RoundPrice rounds to two decimal places using decimal arithmetic
func RoundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ChangePercent derives the daily change percent from price and previous close.
// The upstream value is used only when no previous close is known.
func ChangePercent(price, previousClose, upstream float64) float64 {
	if previousClose <= 0 {
		return decimal.NewFromFloat(upstream).Round(2).InexactFloat64()
	}
	p := decimal.NewFromFloat(price)
	prev := decimal.NewFromFloat(previousClose)
	return p.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// SortBars orders bars oldest first and drops duplicate dates
func SortBars(bars []models.HistoricalBar) []models.HistoricalBar {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Date.Equal(bars[i-1].Date) {
			continue
		}
		out = append(out, b)
	}
	return out
}
