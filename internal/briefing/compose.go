package briefing

import (
	"github.com/ternarybob/briefing/internal/entitlement"
	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

// Composer maps untiered input to a tier-specific briefing. It performs no I/O.
type Composer struct {
	table entitlement.Table
}

// NewComposer creates a composer. A nil table uses entitlement.DefaultTable.
func NewComposer(table entitlement.Table) *Composer {
	if table == nil {
		table = entitlement.DefaultTable()
	}
	return &Composer{table: table}
}

// Compose builds the briefing for tier
func (c *Composer) Compose(tier models.Tier, in Input) Briefing {
	b := Briefing{
		Tier: tier,
		Date: in.Date,
		Market: MarketDigest{
			TopNews:         in.Summary.TopNews,
			Keywords:        in.Summary.Keywords,
			MarketSentiment: in.Summary.MarketSentiment,
			Summary:         in.Summary.Summary,
		},
		Alerts: in.Alerts,
	}
	if b.Market.MarketSentiment == "" {
		b.Market.MarketSentiment = indicators.SentimentNeutral
	}

	switch tier {
	case models.TierPro:
		for _, s := range in.Symbols {
			b.Technical = append(b.Technical, c.technical(s))
		}
	case models.TierBasic:
		for _, s := range in.Symbols {
			b.Stocks = append(b.Stocks, c.stock(models.TierBasic, s))
		}
	}

	return b
}

// ComposeSymbol builds the on-demand view of one symbol. Free and basic receive
// only the stock view with signals allowed for their tier.
func (c *Composer) ComposeSymbol(tier models.Tier, s SymbolData) SymbolView {
	if tier == models.TierPro {
		t := c.technical(s)
		return SymbolView{Tier: tier, Technical: &t}
	}
	stock := c.stock(tier, s)
	return SymbolView{Tier: tier, Stock: &stock}
}

func (c *Composer) stock(tier models.Tier, s SymbolData) StockBrief {
	allowed := c.table.Filter(s.Analysis.Interpretation.Signals, tier)
	texts := indicators.SignalTexts(allowed)
	if tier != models.TierPro {
		texts = entitlement.FilterBasicSignals(texts, tier)
	}

	brief := StockBrief{
		Symbol:  s.Symbol,
		Name:    s.Name,
		Price:   s.Analysis.Price,
		Signals: texts,
	}
	if s.Quote != nil {
		brief.Price = s.Quote.Price
		brief.ChangePercent = s.Quote.ChangePercent
		if brief.Name == "" {
			brief.Name = s.Quote.Name
		}
	}
	if brief.Signals == nil {
		brief.Signals = []string{}
	}
	return brief
}

func (c *Composer) technical(s SymbolData) TechnicalBrief {
	ind := s.Analysis.Indicators
	t := TechnicalBrief{
		StockBrief:  c.stock(models.TierPro, s),
		RSI:         ind.RSI,
		MACD:        ind.MACD,
		Bollinger:   ind.Bollinger,
		SMA:         ind.SMA,
		VolumeRatio: ind.VolumeRatio,
		Sentiment:   s.Analysis.Interpretation.Sentiment,
		Chart:       s.Bars,
	}
	if !s.Read.Fallback {
		t.Comment = s.Read.Comment
		t.Outlook = s.Read.Outlook
		t.Confidence = s.Read.Confidence
	}
	if t.Sentiment == "" {
		t.Sentiment = indicators.SentimentNeutral
	}
	return t
}
