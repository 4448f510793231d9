package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// Analyzer runs the two LLM transforms. It never returns an error: malformed
// or missing model output is replaced by a neutral default.
type Analyzer struct {
	llm          interfaces.LLMService
	maxNewsItems int
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewAnalyzer creates an analyzer. A nil llm yields neutral defaults for every call.
func NewAnalyzer(llm interfaces.LLMService, maxNewsItems int, logger arbor.ILogger) *Analyzer {
	if maxNewsItems <= 0 {
		maxNewsItems = defaultMaxNewsSent
	}
	return &Analyzer{
		llm:          llm,
		maxNewsItems: maxNewsItems,
		validate:     validator.New(),
		logger:       logger,
	}
}

// SummarizeNews picks top stories, keywords and an overall market sentiment
func (a *Analyzer) SummarizeNews(ctx context.Context, news []models.NewsItem) NewsSummary {
	if len(news) > a.maxNewsItems {
		news = news[:a.maxNewsItems]
	}
	if len(news) == 0 || a.llm == nil {
		return NeutralSummary(news)
	}

	reply, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: buildSummaryPrompt(news)},
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("provider", a.llm.Name()).Msg("News summary LLM call failed, using neutral default")
		return NeutralSummary(news)
	}

	summary, err := a.parseSummary(reply, news)
	if err != nil {
		a.logger.Warn().Err(err).Int("reply_length", len(reply)).Msg("News summary response invalid, using neutral default")
		return NeutralSummary(news)
	}
	return summary
}

func (a *Analyzer) parseSummary(reply string, news []models.NewsItem) (NewsSummary, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return NewsSummary{}, fmt.Errorf("no JSON object in response")
	}

	var resp summaryResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return NewsSummary{}, fmt.Errorf("failed to decode summary: %w", err)
	}

	resp.Sentiment = normalizeEnum(resp.Sentiment)
	for i := range resp.TopNews {
		resp.TopNews[i].Sentiment = normalizeEnum(resp.TopNews[i].Sentiment)
	}
	if err := a.validate.Struct(resp); err != nil {
		return NewsSummary{}, fmt.Errorf("summary failed validation: %w", err)
	}

	out := NewsSummary{
		MarketSentiment: indicators.Sentiment(resp.Sentiment),
		SentimentScore:  clamp(resp.Score, -1, 1),
		Summary:         truncate(resp.Summary, maxSummaryRunes),
	}

	for _, s := range resp.TopNews {
		if len(out.TopNews) == MaxTopNews {
			break
		}
		story := Story{
			Title:     truncate(s.Title, maxStoryRunes),
			Summary:   truncate(s.Summary, maxStoryRunes),
			Sentiment: indicators.Sentiment(s.Sentiment),
		}
		if story.Sentiment == "" {
			story.Sentiment = indicators.SentimentNeutral
		}
		// links come from our own list, never from the model
		if s.Index >= 1 && s.Index <= len(news) {
			story.Link = news[s.Index-1].Link
		}
		out.TopNews = append(out.TopNews, story)
	}

	for _, kw := range resp.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out.Keywords = append(out.Keywords, truncate(kw, maxKeywordRunes))
		if len(out.Keywords) == MaxKeywords {
			break
		}
	}

	return out, nil
}

// TechnicalRead asks the model for a short reading of one symbol's indicators
func (a *Analyzer) TechnicalRead(ctx context.Context, symbol, name string, analysis indicators.Analysis) TechnicalRead {
	if a.llm == nil {
		return NeutralRead(symbol)
	}

	reply, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: technicalSystemPrompt},
		{Role: "user", Content: buildTechnicalPrompt(symbol, name, analysis)},
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("Technical read LLM call failed, using neutral default")
		return NeutralRead(symbol)
	}

	read, err := a.parseTechnical(reply)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("Technical read response invalid, using neutral default")
		return NeutralRead(symbol)
	}
	read.Symbol = symbol
	return read
}

func (a *Analyzer) parseTechnical(reply string) (TechnicalRead, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return TechnicalRead{}, fmt.Errorf("no JSON object in response")
	}

	var resp technicalResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return TechnicalRead{}, fmt.Errorf("failed to decode technical read: %w", err)
	}
	resp.Outlook = normalizeEnum(resp.Outlook)
	resp.Comment = strings.TrimSpace(resp.Comment)
	if err := a.validate.Struct(resp); err != nil {
		return TechnicalRead{}, fmt.Errorf("technical read failed validation: %w", err)
	}

	return TechnicalRead{
		Comment:    truncate(resp.Comment, maxCommentRunes),
		Outlook:    indicators.Sentiment(resp.Outlook),
		Confidence: int(clamp(resp.Confidence, 0, 100)),
	}, nil
}

// NeutralSummary is the default digest: the first headlines, no keywords, neutral sentiment
func NeutralSummary(news []models.NewsItem) NewsSummary {
	out := NewsSummary{
		Keywords:        []string{},
		MarketSentiment: indicators.SentimentNeutral,
		Fallback:        true,
	}
	for _, n := range news {
		if len(out.TopNews) == MaxTopNews {
			break
		}
		out.TopNews = append(out.TopNews, Story{
			Title:     truncate(n.Title, maxStoryRunes),
			Link:      n.Link,
			Sentiment: indicators.SentimentNeutral,
		})
	}
	return out
}

// NeutralRead is the default technical reading
func NeutralRead(symbol string) TechnicalRead {
	return TechnicalRead{
		Symbol:   symbol,
		Outlook:  indicators.SentimentNeutral,
		Fallback: true,
	}
}
