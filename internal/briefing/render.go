package briefing

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

const (
	dateLayout = "2006-01-02"
	// telegramLimit is the Bot API message length cap
	telegramLimit = 4096
)

var markdownEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `|`, `\|`, `*`, `\*`, `_`, `\_`)

// SentimentLabel returns the Korean label for a sentiment
func SentimentLabel(s indicators.Sentiment) string {
	switch s {
	case indicators.SentimentBullish:
		return "강세"
	case indicators.SentimentBearish:
		return "약세"
	default:
		return "중립"
	}
}

// Title is the headline used for emails and blog posts
func Title(b Briefing) string {
	return fmt.Sprintf("데일리 마켓 브리핑 %s", b.Date.Format(dateLayout))
}

// RenderMarkdown produces the canonical text of a briefing
func RenderMarkdown(b Briefing) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", Title(b))
	fmt.Fprintf(&sb, "**시장 심리:** %s\n\n", SentimentLabel(b.Market.MarketSentiment))
	if b.Market.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", b.Market.Summary)
	}

	if len(b.Market.TopNews) > 0 {
		sb.WriteString("## 주요 뉴스\n\n")
		for i, story := range b.Market.TopNews {
			fmt.Fprintf(&sb, "%d. %s", i+1, link(story.Title, story.Link))
			if story.Summary != "" {
				fmt.Fprintf(&sb, " - %s", escape(story.Summary))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(b.Market.Keywords) > 0 {
		sb.WriteString("## 키워드\n\n")
		for i, kw := range b.Market.Keywords {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "`%s`", strings.ReplaceAll(kw, "`", ""))
		}
		sb.WriteString("\n\n")
	}

	if len(b.Stocks) > 0 {
		sb.WriteString("## 관심 종목\n\n")
		sb.WriteString("| 종목 | 현재가 | 등락률 |\n|---|---:|---:|\n")
		for _, s := range b.Stocks {
			fmt.Fprintf(&sb, "| %s | %.2f | %+.2f%% |\n", escape(label(s)), s.Price, s.ChangePercent)
		}
		sb.WriteString("\n")
		for _, s := range b.Stocks {
			writeSignals(&sb, label(s), s.Signals)
		}
	}

	if len(b.Technical) > 0 {
		sb.WriteString("## 기술적 분석\n\n")
		for _, t := range b.Technical {
			writeTechnical(&sb, t)
		}
	}

	if len(b.Alerts) > 0 {
		sb.WriteString(RenderAlerts(b.Alerts))
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// RenderAlerts renders the per-user watchlist news digest
func RenderAlerts(alerts []models.MatchedNews) string {
	if len(alerts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 관심 종목 뉴스\n\n")
	for _, a := range alerts {
		name := a.Item.Name
		if name == "" {
			name = a.Item.Symbol
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", link(a.News.Title, a.News.Link), escape(name))
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeSignals(sb *strings.Builder, name string, signals []string) {
	if len(signals) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", escape(name))
	for _, s := range signals {
		fmt.Fprintf(sb, "- %s\n", escape(s))
	}
	sb.WriteString("\n")
}

func writeTechnical(sb *strings.Builder, t TechnicalBrief) {
	fmt.Fprintf(sb, "### %s\n\n", escape(label(t.StockBrief)))
	fmt.Fprintf(sb, "- 현재가: %.2f (%+.2f%%)\n", t.Price, t.ChangePercent)
	fmt.Fprintf(sb, "- RSI(14): %s\n", optional(t.RSI, func(v float64) string { return fmt.Sprintf("%.2f", v) }))
	fmt.Fprintf(sb, "- MACD: %s\n", optional(t.MACD, func(m indicators.MACD) string {
		return fmt.Sprintf("%.4f / 시그널 %.4f / 히스토그램 %.4f", m.MACD, m.Signal, m.Histogram)
	}))
	fmt.Fprintf(sb, "- 볼린저 밴드: %s\n", optional(t.Bollinger, func(b indicators.Bands) string {
		return fmt.Sprintf("상단 %.2f / 중심 %.2f / 하단 %.2f", b.Upper, b.Middle, b.Lower)
	}))
	price := func(v float64) string { return fmt.Sprintf("%.2f", v) }
	fmt.Fprintf(sb, "- 이동평균: 5일 %s / 20일 %s / 60일 %s\n",
		optional(t.SMA.SMA5, price), optional(t.SMA.SMA20, price), optional(t.SMA.SMA60, price))
	fmt.Fprintf(sb, "- 거래량 비율: %s\n", optional(t.VolumeRatio, func(v float64) string { return fmt.Sprintf("%.0f%%", v) }))
	fmt.Fprintf(sb, "- 종합 신호: %s\n", SentimentLabel(t.Sentiment))
	for _, s := range t.Signals {
		fmt.Fprintf(sb, "  - %s\n", escape(s))
	}
	if t.Comment != "" {
		fmt.Fprintf(sb, "\n> %s (전망 %s, 신뢰도 %d%%)\n", escape(t.Comment), SentimentLabel(t.Outlook), t.Confidence)
	}
	sb.WriteString("\n")
}

func optional[T any](o indicators.Optional[T], format func(T) string) string {
	v, ok := o.Get()
	if !ok {
		return "데이터 부족"
	}
	return format(v)
}

func label(s StockBrief) string {
	if s.Name == "" || s.Name == s.Symbol {
		return s.Symbol
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Symbol)
}

func link(title, url string) string {
	if url == "" {
		return escape(title)
	}
	return fmt.Sprintf("[%s](%s)", escape(title), strings.ReplaceAll(url, ")", "%29"))
}

func escape(s string) string {
	return markdownEscaper.Replace(strings.TrimSpace(s))
}

// MarkdownToHTML converts markdown with GitHub Flavored Markdown extensions
func MarkdownToHTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderEmailHTML renders the briefing as a styled email body with an unsubscribe footer
func RenderEmailHTML(markdown, unsubscribeURL string) (string, error) {
	content, err := MarkdownToHTML(markdown)
	if err != nil {
		return "", err
	}

	footer := "<p>본 메일은 데일리 마켓 브리핑 구독자에게 자동 발송되었습니다. 투자 권유가 아닙니다.</p>"
	if unsubscribeURL != "" {
		footer += fmt.Sprintf(`<p><a href="%s">수신 거부</a></p>`, html.EscapeString(unsubscribeURL))
	}
	return wrapInEmailTemplate(content, footer), nil
}

func wrapInEmailTemplate(content, footer string) string {
	return `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Apple SD Gothic Neo', 'Malgun Gothic', sans-serif; line-height: 1.6; color: #333; max-width: 760px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; }
    .content { background-color: #fff; padding: 28px; border-radius: 8px; }
    h1 { font-size: 22px; margin-top: 0; border-bottom: 2px solid #eee; padding-bottom: 10px; }
    h2 { font-size: 18px; margin-top: 24px; }
    h3 { font-size: 16px; margin-top: 18px; }
    blockquote { border-left: 4px solid #ddd; margin: 12px 0; padding-left: 12px; color: #555; }
    table { border-collapse: collapse; width: 100%; margin: 12px 0; }
    th, td { border: 1px solid #ddd; padding: 6px 10px; }
    th { background: #f4f4f4; }
    code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; }
    a { color: #0066cc; text-decoration: none; }
    .footer { margin-top: 24px; font-size: 12px; color: #888; }
  </style>
</head>
<body>
  <div class="content">
    ` + content + `
  </div>
  <div class="footer">
    ` + footer + `
  </div>
</body>
</html>`
}

// RenderTelegram renders the broadcast message in Bot API HTML with quoted blocks
func RenderTelegram(b Briefing) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(Title(b)))
	fmt.Fprintf(&sb, "시장 심리: <b>%s</b>\n", SentimentLabel(b.Market.MarketSentiment))
	if b.Market.Summary != "" {
		fmt.Fprintf(&sb, "<blockquote>%s</blockquote>\n", html.EscapeString(b.Market.Summary))
	}

	if len(b.Market.TopNews) > 0 {
		sb.WriteString("\n<b>주요 뉴스</b>\n<blockquote>")
		for i, story := range b.Market.TopNews {
			if i > 0 {
				sb.WriteString("\n")
			}
			title := html.EscapeString(story.Title)
			if story.Link != "" {
				title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(story.Link), title)
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, title)
		}
		sb.WriteString("</blockquote>\n")
	}

	if len(b.Market.Keywords) > 0 {
		tags := make([]string, len(b.Market.Keywords))
		for i, kw := range b.Market.Keywords {
			tags[i] = "#" + html.EscapeString(strings.ReplaceAll(kw, " ", "_"))
		}
		fmt.Fprintf(&sb, "\n%s\n", strings.Join(tags, " "))
	}

	return sb.String()
}

// RenderTelegramText quotes free-form briefing text for the bot, trimmed to the message cap
func RenderTelegramText(title, text string) string {
	head := fmt.Sprintf("<b>%s</b>\n<blockquote>", html.EscapeString(title))
	tail := "</blockquote>"
	budget := telegramLimit - len([]rune(head)) - len(tail)

	var body strings.Builder
	used := 0
	for _, r := range strings.TrimSpace(text) {
		escaped := html.EscapeString(string(r))
		if used+len([]rune(escaped)) > budget {
			break
		}
		body.WriteString(escaped)
		used += len([]rune(escaped))
	}
	return head + body.String() + tail
}
