package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/models"
)

// HTMLSource scrapes a news listing page with CSS selectors
type HTMLSource struct {
	config     common.HTMLSourceConfig
	httpClient *http.Client
}

// NewHTMLSource creates a scraping source
func NewHTMLSource(config common.HTMLSourceConfig, httpClient *http.Client) *HTMLSource {
	return &HTMLSource{config: config, httpClient: httpClient}
}

// Name returns the configured source name
func (s *HTMLSource) Name() string {
	return s.config.Name
}

// Fetch downloads the listing page and extracts one item per ItemSelector match. The query is ignored.
func (s *HTMLSource) Fetch(ctx context.Context, _ string) ([]models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.config.Name, resp.StatusCode)
	}

	// Legacy portals still serve EUC-KR; decode by header, meta tag or sniffing
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.config.Name, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", s.config.Name, err)
	}

	base, _ := url.Parse(s.config.URL)
	var items []models.NewsItem
	doc.Find(s.config.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		title := strings.TrimSpace(pick(sel, s.config.TitleSelector).Text())
		linkSel := pick(sel, s.config.LinkSelector)
		href, _ := linkSel.Attr("href")
		if href == "" {
			href, _ = sel.Find("a[href]").First().Attr("href")
		}
		if title == "" || href == "" {
			return
		}

		item := models.NewsItem{
			Title:  whitespaceRe.ReplaceAllString(title, " "),
			Link:   resolveLink(base, href),
			Source: s.config.Name,
		}
		if s.config.SnippetSelector != "" {
			if snippetHTML, err := sel.Find(s.config.SnippetSelector).First().Html(); err == nil {
				item.Snippet = cleanSnippet(snippetHTML, s.config.URL)
			}
		}
		if s.config.DateSelector != "" {
			dateSel := sel.Find(s.config.DateSelector).First()
			raw, ok := dateSel.Attr("datetime")
			if !ok {
				raw = dateSel.Text()
			}
			item.PublishedAt = parseDate(raw, s.config.DateLayout)
		}
		items = append(items, item)
	})

	return items, nil
}

// pick returns the selector match within sel, or sel itself when selector is empty
func pick(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel
	}
	return sel.Find(selector).First()
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
