package news

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

type fakeSource struct {
	name    string
	items   []models.NewsItem
	err     error
	topical bool
	queries []string
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Topical() bool { return f.topical }

func (f *fakeSource) Fetch(ctx context.Context, query string) ([]models.NewsItem, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

var collectorNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestCollector(sources []interfaces.NewsSource, config common.NewsConfig) *Collector {
	c := NewCollector(sources, config, arbor.NewLogger())
	c.now = func() time.Time { return collectorNow }
	return c
}

func TestCollector_PartialSourceFailure(t *testing.T) {
	good := &fakeSource{name: "good", items: []models.NewsItem{
		{Title: "삼성전자 실적 발표", Link: "https://news.example/1", PublishedAt: collectorNow.Add(-time.Hour)},
	}}
	bad := &fakeSource{name: "bad", err: errors.New("upstream 503")}

	items := newTestCollector([]interfaces.NewsSource{bad, good}, common.NewsConfig{}).Collect(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "good", items[0].Source)
}

func TestCollector_FiltersAndDedupes(t *testing.T) {
	src := &fakeSource{name: "feed", items: []models.NewsItem{
		{Title: "Older", Link: "https://x/older", PublishedAt: collectorNow.Add(-3 * time.Hour)},
		{Title: "Newest", Link: "https://x/new", PublishedAt: collectorNow.Add(-time.Hour)},
		{Title: "Dup", Link: "https://x/new/", PublishedAt: collectorNow.Add(-time.Hour)},
		{Title: "[AD] 특가 이벤트", Link: "https://x/ad", PublishedAt: collectorNow},
		{Title: "Stale", Link: "https://x/stale", PublishedAt: collectorNow.Add(-72 * time.Hour)},
		{Title: "", Link: "https://x/empty"},
		{Title: "Undated", Link: "https://x/undated"},
	}}

	items := newTestCollector([]interfaces.NewsSource{src}, common.NewsConfig{MaxAge: 36 * time.Hour}).Collect(context.Background())

	var titles []string
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"Newest", "Older", "Undated"}, titles)
}

func TestCollector_Limits(t *testing.T) {
	var many []models.NewsItem
	for i := 0; i < 10; i++ {
		many = append(many, models.NewsItem{
			Title:       "item",
			Link:        "https://x/" + string(rune('a'+i)),
			PublishedAt: collectorNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	a := &fakeSource{name: "a", items: many}
	b := &fakeSource{name: "b", items: []models.NewsItem{{Title: "b", Link: "https://y/1", PublishedAt: collectorNow.Add(time.Minute)}}}

	items := newTestCollector([]interfaces.NewsSource{a, b}, common.NewsConfig{PerSourceLimit: 4, MaxItems: 3}).Collect(context.Background())
	require.Len(t, items, 3)
	assert.Equal(t, "b", items[0].Title)
}

func TestCollector_TopicalSourcesGetTopics(t *testing.T) {
	api := &fakeSource{name: "api", topical: true}
	feed := &fakeSource{name: "feed"}

	newTestCollector([]interfaces.NewsSource{api, feed}, common.NewsConfig{Topics: []string{"005930", "AAPL"}}).Collect(context.Background())

	assert.Equal(t, []string{"005930", "AAPL"}, api.queries)
	assert.Equal(t, []string{""}, feed.queries)
}

func TestIsPromotional(t *testing.T) {
	kw := DefaultPromoKeywords
	assert.True(t, IsPromotional(models.NewsItem{Title: "Sponsored: best ETF"}, kw))
	assert.True(t, IsPromotional(models.NewsItem{Title: "뉴스", Snippet: "본 기사는 협찬을 받았습니다"}, kw))
	assert.False(t, IsPromotional(models.NewsItem{Title: "코스피 상승 마감"}, kw))
}

func TestLooksLikeSymbol(t *testing.T) {
	tests := map[string]bool{
		"005930":     true,
		"005930.KS":  true,
		"KRX:005930": true,
		"AAPL":       true,
		"earnings":   false,
		"반도체":        false,
		"TOOLONG":    false,
	}
	for q, want := range tests {
		assert.Equal(t, want, looksLikeSymbol(q), q)
	}
}
