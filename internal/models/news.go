package models

import (
	"strings"
	"time"
)

// NewsItem is a single collected article. Link is the unique key.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Snippet     string    `json:"snippet"`
	Source      string    `json:"source"`
}

// SearchText returns title and snippet joined for substring matching
func (n NewsItem) SearchText() string {
	if n.Snippet == "" {
		return n.Title
	}
	return n.Title + " " + n.Snippet
}

// LinkKey returns the normalized link used for de-duplication
func (n NewsItem) LinkKey() string {
	return NormalizeURL(n.Link)
}

// NormalizeURL trims whitespace and trailing slashes so equivalent links compare equal
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
