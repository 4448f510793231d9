package analyzer

import (
	"fmt"
	"strings"

	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

const summarySystemPrompt = `You are a financial news editor writing a Korean morning market briefing.
Respond with a single JSON object and nothing else, using this schema:
{"top_news":[{"index":<number from the list>,"title":"<headline in Korean>","summary":"<one sentence>","sentiment":"bullish|bearish|neutral"}],
 "keywords":["<short keyword>"],
 "market_sentiment":"bullish|bearish|neutral",
 "sentiment_score":<-1.0 to 1.0>,
 "summary":"<two or three sentences>"}
Select at most 3 top_news items and at most 5 keywords.`

const technicalSystemPrompt = `You are a technical analyst. Read the indicators and write a short Korean comment for retail investors.
Respond with a single JSON object and nothing else:
{"comment":"<at most two sentences>","outlook":"bullish|bearish|neutral","confidence":<0-100>}
Do not give investment advice.`

func buildSummaryPrompt(news []models.NewsItem) string {
	var sb strings.Builder
	sb.WriteString("Today's news items:\n")
	for i, n := range news {
		fmt.Fprintf(&sb, "%d. [%s] %s", i+1, n.Source, n.Title)
		if n.Snippet != "" {
			fmt.Fprintf(&sb, " - %s", n.Snippet)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func buildTechnicalPrompt(symbol, name string, a indicators.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s", symbol)
	if name != "" {
		fmt.Fprintf(&sb, " (%s)", name)
	}
	fmt.Fprintf(&sb, "\nPrice: %.2f\n", a.Price)

	ind := a.Indicators
	if v, ok := ind.RSI.Get(); ok {
		fmt.Fprintf(&sb, "RSI(14): %.2f\n", v)
	}
	if m, ok := ind.MACD.Get(); ok {
		fmt.Fprintf(&sb, "MACD: %.4f, signal %.4f, histogram %.4f\n", m.MACD, m.Signal, m.Histogram)
	}
	if b, ok := ind.Bollinger.Get(); ok {
		fmt.Fprintf(&sb, "Bollinger(20,2): upper %.2f, middle %.2f, lower %.2f\n", b.Upper, b.Middle, b.Lower)
	}
	for _, s := range []struct {
		label string
		value indicators.Optional[float64]
	}{
		{"SMA5", ind.SMA.SMA5},
		{"SMA20", ind.SMA.SMA20},
		{"SMA60", ind.SMA.SMA60},
		{"Volume ratio (%)", ind.VolumeRatio},
	} {
		if v, ok := s.value.Get(); ok {
			fmt.Fprintf(&sb, "%s: %.2f\n", s.label, v)
		}
	}

	sb.WriteString("Signals:\n")
	for _, text := range a.Interpretation.Texts() {
		fmt.Fprintf(&sb, "- %s\n", text)
	}
	fmt.Fprintf(&sb, "Rule-based sentiment: %s\n", a.Interpretation.Sentiment)
	return sb.String()
}
