package briefing

import (
	"time"

	"github.com/ternarybob/briefing/internal/analyzer"
	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

// SymbolData is everything known about one watched symbol before tiering
type SymbolData struct {
	Symbol   string
	Name     string
	Quote    *models.Quote
	Bars     []models.HistoricalBar
	Analysis indicators.Analysis
	Read     analyzer.TechnicalRead
}

// Input is the untiered material for one user's briefing
type Input struct {
	Date    time.Time
	Summary analyzer.NewsSummary
	Symbols []SymbolData
	Alerts  []models.MatchedNews
}

// MarketDigest is the content every tier receives
type MarketDigest struct {
	TopNews         []analyzer.Story     `json:"topNews"`
	Keywords        []string             `json:"keywords"`
	MarketSentiment indicators.Sentiment `json:"marketSentiment"`
	Summary         string               `json:"summary,omitempty"`
}

// StockBrief is the basic-tier view of a symbol. It has no premium indicator fields.
type StockBrief struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	Price         float64  `json:"price"`
	ChangePercent float64  `json:"changePercent"`
	Signals       []string `json:"signals"`
}

// TechnicalBrief is the pro-tier view of a symbol
type TechnicalBrief struct {
	StockBrief
	RSI         indicators.Optional[float64]          `json:"rsi"`
	MACD        indicators.Optional[indicators.MACD]  `json:"macd"`
	Bollinger   indicators.Optional[indicators.Bands] `json:"bollingerBands"`
	SMA         indicators.SMASet                     `json:"sma"`
	VolumeRatio indicators.Optional[float64]          `json:"volumeRatio"`
	Sentiment   indicators.Sentiment                  `json:"sentiment"`
	Comment     string                                `json:"comment,omitempty"`
	Outlook     indicators.Sentiment                  `json:"outlook,omitempty"`
	Confidence  int                                   `json:"confidence,omitempty"`
	// Chart is the closing-price series used for the attached chart
	Chart []models.HistoricalBar `json:"-"`
}

// Briefing is one tiered briefing. Stocks is set for basic, Technical for pro.
type Briefing struct {
	Tier      models.Tier          `json:"tier"`
	Date      time.Time            `json:"date"`
	Market    MarketDigest         `json:"market"`
	Stocks    []StockBrief         `json:"stocks,omitempty"`
	Technical []TechnicalBrief     `json:"technical,omitempty"`
	Alerts    []models.MatchedNews `json:"alerts,omitempty"`
}

// SymbolView is the on-demand analysis payload for one symbol
type SymbolView struct {
	Tier      models.Tier     `json:"tier"`
	Stock     *StockBrief     `json:"stock,omitempty"`
	Technical *TechnicalBrief `json:"technical,omitempty"`
}
