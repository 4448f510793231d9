package news

import (
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const maxSnippetRunes = 300

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	mdLinkRe     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdMarkRe     = regexp.MustCompile("[*_`#>]+")
)

// cleanSnippet converts feed HTML to plain text and bounds its length
func cleanSnippet(html, baseURL string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	text := html
	converter := md.NewConverter(baseURL, true, nil)
	if converted, err := converter.ConvertString(html); err == nil && strings.TrimSpace(converted) != "" {
		text = converted
	}

	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdMarkRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return truncateRunes(strings.TrimSpace(text), maxSnippetRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
}

// parseDate tries common feed layouts, returning the zero time when none match
func parseDate(s string, extra ...string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range append(extra, dateLayouts...) {
		if layout == "" {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
