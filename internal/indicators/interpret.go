package indicators

import (
	"fmt"

	"github.com/ternarybob/briefing/internal/models"
)

// SignalKind tags which indicator produced a signal, used for entitlement checks
type SignalKind string

const (
	KindRSI       SignalKind = "rsi"
	KindMACD      SignalKind = "macd"
	KindBollinger SignalKind = "bollinger"
	KindSMA       SignalKind = "sma"
	KindVolume    SignalKind = "volume"
)

// AllKinds lists every signal kind in interpretation order
var AllKinds = []SignalKind{KindRSI, KindMACD, KindBollinger, KindSMA, KindVolume}

// Vote is one indicator's directional contribution
type Vote int

const (
	VoteNone Vote = iota
	VoteBullish
	VoteBearish
)

// Sentiment is the overall reading across indicators
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Signal is one human-readable interpretation tagged with its indicator kind
type Signal struct {
	Kind SignalKind `json:"kind"`
	Text string     `json:"text"`
	Vote Vote       `json:"-"`
}

// Interpretation is the signal list plus vote tally
type Interpretation struct {
	Signals   []Signal  `json:"signals"`
	Bullish   int       `json:"bullishVotes"`
	Bearish   int       `json:"bearishVotes"`
	Sentiment Sentiment `json:"sentiment"`
}

// Texts returns the plain signal strings
func (in Interpretation) Texts() []string {
	return SignalTexts(in.Signals)
}

// SignalTexts returns the text of each signal in order
func SignalTexts(signals []Signal) []string {
	texts := make([]string, 0, len(signals))
	for _, s := range signals {
		texts = append(texts, s.Text)
	}
	return texts
}

// Analysis bundles indicators with their interpretation for one price
type Analysis struct {
	Price          float64             `json:"price"`
	Indicators     TechnicalIndicators `json:"indicators"`
	Interpretation Interpretation      `json:"interpretation"`
}

// Analyze computes and interprets indicators. A non-positive price falls back to the last close.
func Analyze(bars []models.HistoricalBar, price float64) Analysis {
	if price <= 0 && len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}
	ind := Compute(bars)
	return Analysis{
		Price:          price,
		Indicators:     ind,
		Interpretation: Interpret(ind, price),
	}
}

// Interpret turns indicators into signals. Each indicator casts at most one vote.
func Interpret(ind TechnicalIndicators, price float64) Interpretation {
	var signals []Signal

	if v, ok := ind.RSI.Get(); ok {
		switch {
		case v < 30:
			signals = append(signals, Signal{Kind: KindRSI, Text: fmt.Sprintf("RSI %.1f: 과매도 구간", v), Vote: VoteBullish})
		case v > 70:
			signals = append(signals, Signal{Kind: KindRSI, Text: fmt.Sprintf("RSI %.1f: 과매수 구간", v), Vote: VoteBearish})
		default:
			signals = append(signals, Signal{Kind: KindRSI, Text: fmt.Sprintf("RSI %.1f: 중립 구간", v)})
		}
	}

	if m, ok := ind.MACD.Get(); ok {
		if m.MACD > m.Signal {
			signals = append(signals, Signal{Kind: KindMACD, Text: "MACD 시그널 상향: 상승 모멘텀", Vote: VoteBullish})
		} else {
			signals = append(signals, Signal{Kind: KindMACD, Text: "MACD 시그널 하향: 하락 모멘텀", Vote: VoteBearish})
		}
	}

	if b, ok := ind.Bollinger.Get(); ok {
		switch {
		case price >= b.Upper:
			signals = append(signals, Signal{Kind: KindBollinger, Text: "볼린저 밴드 상단 도달: 단기 과열", Vote: VoteBearish})
		case price <= b.Lower:
			signals = append(signals, Signal{Kind: KindBollinger, Text: "볼린저 밴드 하단 도달: 반등 가능", Vote: VoteBullish})
		default:
			signals = append(signals, Signal{Kind: KindBollinger, Text: "볼린저 밴드 내 정상 범위"})
		}
	}

	short, shortOK := ind.SMA.SMA5.Get()
	medium, mediumOK := ind.SMA.SMA20.Get()
	if shortOK && mediumOK {
		if short > medium {
			signals = append(signals, Signal{Kind: KindSMA, Text: "이동평균: 5일선 > 20일선 (단기 상승 추세)", Vote: VoteBullish})
		} else {
			signals = append(signals, Signal{Kind: KindSMA, Text: "이동평균: 5일선 < 20일선 (단기 하락 추세)", Vote: VoteBearish})
		}
	}

	if v, ok := ind.VolumeRatio.Get(); ok {
		switch {
		case v > 150:
			signals = append(signals, Signal{Kind: KindVolume, Text: fmt.Sprintf("거래량 급증: 20일 평균 대비 %.0f%%", v)})
		case v < 50:
			signals = append(signals, Signal{Kind: KindVolume, Text: fmt.Sprintf("거래량 감소: 20일 평균 대비 %.0f%%", v)})
		}
	}

	bull, bear := CountVotes(signals)
	return Interpretation{
		Signals:   signals,
		Bullish:   bull,
		Bearish:   bear,
		Sentiment: OverallSentiment(bull, bear),
	}
}

// CountVotes tallies bullish and bearish votes
func CountVotes(signals []Signal) (bullish, bearish int) {
	for _, s := range signals {
		switch s.Vote {
		case VoteBullish:
			bullish++
		case VoteBearish:
			bearish++
		}
	}
	return bullish, bearish
}

// OverallSentiment requires a margin of more than one vote to leave neutral
func OverallSentiment(bullish, bearish int) Sentiment {
	switch {
	case bullish > bearish+1:
		return SentimentBullish
	case bearish > bullish+1:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}
