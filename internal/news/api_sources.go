package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/eodhd"
	domain "github.com/ternarybob/briefing/internal/models"
)

// EODHDSource fetches financial news from EODHD for a symbol or topic tag
type EODHDSource struct {
	client        *eodhd.Client
	defaultMarket common.Market
	limit         int
	lookback      time.Duration
	now           func() time.Time
}

// NewEODHDSource creates an EODHD news source
func NewEODHDSource(client *eodhd.Client, defaultMarket common.Market, limit int, lookback time.Duration) *EODHDSource {
	if limit <= 0 {
		limit = 20
	}
	return &EODHDSource{client: client, defaultMarket: defaultMarket, limit: limit, lookback: lookback, now: time.Now}
}

// Name identifies the source
func (s *EODHDSource) Name() string { return "eodhd" }

// Topical marks the source as query driven
func (s *EODHDSource) Topical() bool { return true }

// Fetch queries by symbol when the query parses as one, otherwise by topic tag
func (s *EODHDSource) Fetch(ctx context.Context, query string) ([]domain.NewsItem, error) {
	opts := []eodhd.QueryOption{eodhd.WithLimit(s.limit)}
	if s.lookback > 0 {
		now := s.now()
		opts = append(opts, eodhd.WithDateRange(now.Add(-s.lookback), now))
	}

	var symbols []string
	switch {
	case query == "":
		opts = append(opts, eodhd.WithTopic("market"))
	case looksLikeSymbol(query):
		symbols = []string{common.ParseSymbol(query, s.defaultMarket).EODHDSymbol()}
	default:
		opts = append(opts, eodhd.WithTopic(query))
	}

	resp, err := s.client.GetNews(ctx, symbols, opts...)
	if err != nil {
		return nil, fmt.Errorf("eodhd news %q: %w", query, err)
	}

	items := make([]domain.NewsItem, 0, len(resp))
	for _, n := range resp {
		items = append(items, domain.NewsItem{
			Title:       n.Title,
			Link:        n.Link,
			PublishedAt: n.Date,
			Snippet:     truncateRunes(whitespaceRe.ReplaceAllString(n.Content, " "), maxSnippetRunes),
			Source:      s.Name(),
		})
	}
	return items, nil
}

// PolygonSource fetches ticker news from Polygon.io
type PolygonSource struct {
	client *polygon.Client
	limit  int
}

// NewPolygonSource creates a Polygon news source
func NewPolygonSource(client *polygon.Client, limit int) *PolygonSource {
	if limit <= 0 {
		limit = 20
	}
	return &PolygonSource{client: client, limit: limit}
}

// Name identifies the source
func (s *PolygonSource) Name() string { return "polygon" }

// Topical marks the source as query driven
func (s *PolygonSource) Topical() bool { return true }

// Fetch returns the latest articles for a US ticker. Korean codes are skipped.
func (s *PolygonSource) Fetch(ctx context.Context, query string) ([]domain.NewsItem, error) {
	params := models.ListTickerNewsParams{
		Sort:  (*models.Sort)(ptr("published_utc")),
		Order: (*models.Order)(ptr("desc")),
		Limit: &s.limit,
	}
	if query != "" {
		sym := common.ParseSymbol(query, common.MarketUS)
		if sym.IsKorean() {
			return nil, nil
		}
		params.TickerEQ = &sym.Code
	}

	it := s.client.ListTickerNews(ctx, &params)
	var items []domain.NewsItem
	for it.Next() && len(items) < s.limit {
		n := it.Item()
		items = append(items, domain.NewsItem{
			Title:       n.Title,
			Link:        n.ArticleURL,
			PublishedAt: time.Time(n.PublishedUTC),
			Snippet:     truncateRunes(n.Description, maxSnippetRunes),
			Source:      s.Name(),
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("polygon news %q: %w", query, err)
	}
	return items, nil
}

// looksLikeSymbol treats Korean codes, qualified symbols and short upper-case tickers as symbols
func looksLikeSymbol(q string) bool {
	if strings.ContainsAny(q, ".:") || common.IsKoreanCode(q) {
		return true
	}
	if len(q) == 0 || len(q) > 5 {
		return false
	}
	for _, r := range q {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func ptr(s string) *string {
	return &s
}
