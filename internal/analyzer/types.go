package analyzer

import "github.com/ternarybob/briefing/internal/indicators"

// Output bounds applied to every LLM response
const (
	MaxTopNews         = 3
	MaxKeywords        = 5
	maxKeywordRunes    = 20
	maxSummaryRunes    = 500
	maxStoryRunes      = 200
	maxCommentRunes    = 300
	defaultMaxNewsSent = 20
)

// Story is one headline selected for the briefing
type Story struct {
	Title     string               `json:"title"`
	Link      string               `json:"link,omitempty"`
	Summary   string               `json:"summary,omitempty"`
	Sentiment indicators.Sentiment `json:"sentiment"`
}

// NewsSummary is the classified digest of one news batch
type NewsSummary struct {
	TopNews         []Story              `json:"topNews"`
	Keywords        []string             `json:"keywords"`
	MarketSentiment indicators.Sentiment `json:"marketSentiment"`
	SentimentScore  float64              `json:"sentimentScore"`
	Summary         string               `json:"summary,omitempty"`
	// Fallback is set when the neutral default replaced the model output
	Fallback bool `json:"-"`
}

// TechnicalRead is the natural-language reading of one symbol's indicators
type TechnicalRead struct {
	Symbol     string               `json:"symbol"`
	Comment    string               `json:"comment"`
	Outlook    indicators.Sentiment `json:"outlook"`
	Confidence int                  `json:"confidence"`
	Fallback   bool                 `json:"-"`
}

// summaryResponse is the JSON schema requested from the model for news batches
type summaryResponse struct {
	TopNews   []storyResponse `json:"top_news" validate:"dive"`
	Keywords  []string        `json:"keywords"`
	Sentiment string          `json:"market_sentiment" validate:"required,oneof=bullish bearish neutral"`
	Score     float64         `json:"sentiment_score"`
	Summary   string          `json:"summary"`
}

type storyResponse struct {
	Index     int    `json:"index"`
	Title     string `json:"title" validate:"required"`
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment" validate:"omitempty,oneof=bullish bearish neutral"`
}

// technicalResponse is the JSON schema requested for a single-symbol reading
type technicalResponse struct {
	Comment    string  `json:"comment" validate:"required"`
	Outlook    string  `json:"outlook" validate:"required,oneof=bullish bearish neutral"`
	Confidence float64 `json:"confidence"`
}
