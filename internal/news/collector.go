package news

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// DefaultPromoKeywords flags sponsored or promotional items
var DefaultPromoKeywords = []string{"광고", "협찬", "[AD]", "sponsored", "이벤트", "프로모션", "promotion"}

// topical is implemented by sources that take a topic or symbol query.
// Other sources are fetched once per run with an empty query.
type topical interface {
	Topical() bool
}

// Collector gathers news from every configured source, tolerating per-source failure
type Collector struct {
	sources []interfaces.NewsSource
	config  common.NewsConfig
	logger  arbor.ILogger
	now     func() time.Time
}

// NewCollector creates a collector over the given sources
func NewCollector(sources []interfaces.NewsSource, config common.NewsConfig, logger arbor.ILogger) *Collector {
	if len(config.PromoKeywords) == 0 {
		config.PromoKeywords = DefaultPromoKeywords
	}
	return &Collector{
		sources: sources,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Sources returns the names of the configured sources
func (c *Collector) Sources() []string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return names
}

// Collect fetches every source concurrently, then filters, de-duplicates by link
// and returns items newest first. A failing source is logged and skipped.
func (c *Collector) Collect(ctx context.Context) []models.NewsItem {
	perSource := make([][]models.NewsItem, len(c.sources))

	var wg sync.WaitGroup
	for i, source := range c.sources {
		i, source := i, source
		wg.Add(1)
		common.SafeGo(c.logger, &wg, "news-"+source.Name(), func() {
			perSource[i] = c.fetchSource(ctx, source)
		})
	}
	wg.Wait()

	var all []models.NewsItem
	for _, items := range perSource {
		all = append(all, items...)
	}

	filtered := c.filter(all)

	c.logger.Info().
		Int("sources", len(c.sources)).
		Int("fetched", len(all)).
		Int("kept", len(filtered)).
		Msg("News collection completed")

	return filtered
}

func (c *Collector) fetchSource(ctx context.Context, source interfaces.NewsSource) []models.NewsItem {
	queries := []string{""}
	if t, ok := source.(topical); ok && t.Topical() && len(c.config.Topics) > 0 {
		queries = c.config.Topics
	}

	var items []models.NewsItem
	for _, q := range queries {
		fetched, err := source.Fetch(ctx, q)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("source", source.Name()).
				Str("query", q).
				Msg("News source failed, continuing without it")
			continue
		}
		for i := range fetched {
			if fetched[i].Source == "" {
				fetched[i].Source = source.Name()
			}
		}
		items = append(items, fetched...)
	}

	if c.config.PerSourceLimit > 0 && len(items) > c.config.PerSourceLimit {
		items = items[:c.config.PerSourceLimit]
	}
	return items
}

func (c *Collector) filter(items []models.NewsItem) []models.NewsItem {
	seen := make(map[string]bool, len(items))
	var cutoff time.Time
	if c.config.MaxAge > 0 {
		cutoff = c.now().Add(-c.config.MaxAge)
	}

	out := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		key := item.LinkKey()
		if item.Title == "" || key == "" || seen[key] {
			continue
		}
		if !cutoff.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}
		if IsPromotional(item, c.config.PromoKeywords) {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})

	if c.config.MaxItems > 0 && len(out) > c.config.MaxItems {
		out = out[:c.config.MaxItems]
	}
	return out
}

// IsPromotional reports whether the title or snippet contains a promo keyword (case-insensitive)
func IsPromotional(item models.NewsItem, keywords []string) bool {
	text := strings.ToLower(item.SearchText())
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
