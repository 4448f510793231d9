package news

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ternarybob/briefing/internal/models"
)

const maxFeedBytes = 5 << 20

// RSSSource reads an RSS 0.9x/1.0/2.0 or Atom feed in any declared charset
type RSSSource struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewRSSSource creates a feed source
func NewRSSSource(name, url string, httpClient *http.Client) *RSSSource {
	return &RSSSource{name: name, url: url, httpClient: httpClient}
}

// Name returns the configured feed name
func (s *RSSSource) Name() string {
	return s.name
}

// Fetch downloads and parses the feed. The query is ignored.
func (s *RSSSource) Fetch(ctx context.Context, _ string) ([]models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/rdf+xml, application/xml, text/xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", s.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", s.name, err)
	}
	return parseFeed(body, s.name, s.url)
}

// parseFeed decodes the feed body; the XML declaration selects the charset
func parseFeed(body []byte, source, baseURL string) ([]models.NewsItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", source, err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" && strings.HasPrefix(it.GUID, "http") {
			link = strings.TrimSpace(it.GUID)
		}
		summary := it.Description
		if strings.TrimSpace(summary) == "" {
			summary = it.Content
		}
		items = append(items, models.NewsItem{
			Title:       strings.TrimSpace(it.Title),
			Link:        link,
			PublishedAt: itemTime(it),
			Snippet:     cleanSnippet(summary, baseURL),
			Source:      source,
		})
	}
	return items, nil
}

func itemTime(it *gofeed.Item) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return *it.PublishedParsed
	case it.UpdatedParsed != nil:
		return *it.UpdatedParsed
	case it.Published != "":
		return parseDate(it.Published)
	default:
		return parseDate(it.Updated)
	}
}
