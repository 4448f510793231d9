package indicators

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/briefing/internal/models"
)

func makeBars(n int, closeAt func(i int) float64) []models.HistoricalBar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.HistoricalBar, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		bars[i] = models.HistoricalBar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func rising(i int) float64 { return 100 + float64(i) }

func TestCompute_InsufficientHistory(t *testing.T) {
	tests := []struct {
		name          string
		bars          int
		wantRSI       bool
		wantMACD      bool
		wantBollinger bool
		wantSMA5      bool
		wantSMA20     bool
		wantSMA60     bool
		wantVolume    bool
	}{
		{name: "empty", bars: 0},
		{name: "10 bars", bars: 10, wantSMA5: true},
		{name: "14 bars", bars: 14, wantRSI: true, wantSMA5: true},
		{name: "25 bars", bars: 25, wantRSI: true, wantBollinger: true, wantSMA5: true, wantSMA20: true, wantVolume: true},
		{name: "26 bars", bars: 26, wantRSI: true, wantMACD: true, wantBollinger: true, wantSMA5: true, wantSMA20: true, wantVolume: true},
		{name: "60 bars", bars: 60, wantRSI: true, wantMACD: true, wantBollinger: true, wantSMA5: true, wantSMA20: true, wantSMA60: true, wantVolume: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := Compute(makeBars(tt.bars, rising))
			assert.Equal(t, tt.wantRSI, ind.RSI.Available(), "rsi")
			assert.Equal(t, tt.wantMACD, ind.MACD.Available(), "macd")
			assert.Equal(t, tt.wantBollinger, ind.Bollinger.Available(), "bollinger")
			assert.Equal(t, tt.wantSMA5, ind.SMA.SMA5.Available(), "sma5")
			assert.Equal(t, tt.wantSMA20, ind.SMA.SMA20.Available(), "sma20")
			assert.Equal(t, tt.wantSMA60, ind.SMA.SMA60.Available(), "sma60")
			assert.Equal(t, tt.wantVolume, ind.VolumeRatio.Available(), "volumeRatio")
		})
	}
}

func TestRSI_Extremes(t *testing.T) {
	up := Compute(makeBars(30, rising))
	v, ok := up.RSI.Get()
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	down := Compute(makeBars(30, func(i int) float64 { return 200 - float64(i) }))
	v, ok = down.RSI.Get()
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	flat := Compute(makeBars(30, func(int) float64 { return 50 }))
	v, ok = flat.RSI.Get()
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestRSI_Alternating(t *testing.T) {
	// equal gains and losses balance at 50
	bars := makeBars(15, func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 102
	})
	v, ok := Compute(bars).RSI.Get()
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 0.01)
}

func TestMACD_Trend(t *testing.T) {
	m, ok := Compute(makeBars(60, rising)).MACD.Get()
	require.True(t, ok)
	assert.Greater(t, m.MACD, 0.0)
	assert.InDelta(t, m.MACD-m.Signal, m.Histogram, 0.0001)

	flat, ok := Compute(makeBars(26, func(int) float64 { return 10 })).MACD.Get()
	require.True(t, ok)
	assert.Equal(t, MACD{}, flat)
}

func TestBollinger(t *testing.T) {
	b, ok := Compute(makeBars(20, func(int) float64 { return 42 })).Bollinger.Get()
	require.True(t, ok)
	assert.Equal(t, Bands{Upper: 42, Middle: 42, Lower: 42}, b)

	// closes 1..20: mean 10.5, population sd = sqrt(33.25)
	b, ok = Compute(makeBars(20, func(i int) float64 { return float64(i + 1) })).Bollinger.Get()
	require.True(t, ok)
	assert.InDelta(t, 10.5, b.Middle, 0.001)
	assert.InDelta(t, 10.5+2*5.766, b.Upper, 0.01)
	assert.InDelta(t, 10.5-2*5.766, b.Lower, 0.01)
}

func TestSMA(t *testing.T) {
	ind := Compute(makeBars(60, func(i int) float64 { return float64(i + 1) }))
	assert.Equal(t, 58.0, ind.SMA.SMA5.OrElse(0))
	assert.Equal(t, 50.5, ind.SMA.SMA20.OrElse(0))
	assert.Equal(t, 30.5, ind.SMA.SMA60.OrElse(0))
}

func TestVolumeRatio(t *testing.T) {
	bars := makeBars(20, rising)
	bars[19].Volume = 3000
	v, ok := Compute(bars).VolumeRatio.Get()
	require.True(t, ok)
	// mean = (19*1000 + 3000) / 20 = 1100
	assert.InDelta(t, 272.73, v, 0.01)

	for i := range bars {
		bars[i].Volume = 0
	}
	assert.False(t, Compute(bars).VolumeRatio.Available())
}

func TestOverallSentiment(t *testing.T) {
	tests := []struct {
		bullish, bearish int
		want             Sentiment
	}{
		{3, 1, SentimentBullish},
		{2, 2, SentimentNeutral},
		{2, 1, SentimentNeutral},
		{1, 2, SentimentNeutral},
		{1, 3, SentimentBearish},
		{0, 0, SentimentNeutral},
		{4, 0, SentimentBullish},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OverallSentiment(tt.bullish, tt.bearish), "bullish=%d bearish=%d", tt.bullish, tt.bearish)
	}
}

func TestInterpret_AllBullish(t *testing.T) {
	ind := TechnicalIndicators{
		RSI:       Value(25.0),
		MACD:      Value(MACD{MACD: 1.2, Signal: 0.8, Histogram: 0.4}),
		Bollinger: Value(Bands{Upper: 120, Middle: 110, Lower: 100}),
		SMA: SMASet{
			SMA5:  Value(105.0),
			SMA20: Value(101.0),
			SMA60: Unavailable[float64](),
		},
		VolumeRatio: Value(200.0),
	}

	in := Interpret(ind, 99)
	assert.Equal(t, 4, in.Bullish)
	assert.Equal(t, 0, in.Bearish)
	assert.Equal(t, SentimentBullish, in.Sentiment)
	require.Len(t, in.Signals, 5)
	assert.Contains(t, in.Signals[0].Text, "과매도")
	assert.Equal(t, KindVolume, in.Signals[4].Kind)
	assert.Equal(t, VoteNone, in.Signals[4].Vote)
}

func TestInterpret_OrderIndependentMixedVotes(t *testing.T) {
	ind := TechnicalIndicators{
		RSI:       Value(75.0),
		MACD:      Value(MACD{MACD: 1, Signal: 0.5}),
		Bollinger: Value(Bands{Upper: 120, Middle: 110, Lower: 100}),
		SMA:       SMASet{SMA5: Value(99.0), SMA20: Value(101.0)},
	}

	in := Interpret(ind, 110)
	// rsi bearish, macd bullish, bollinger neutral, sma bearish
	assert.Equal(t, 1, in.Bullish)
	assert.Equal(t, 2, in.Bearish)
	assert.Equal(t, SentimentNeutral, in.Sentiment)
	assert.Contains(t, in.Texts(), "볼린저 밴드 내 정상 범위")
}

func TestInterpret_NoData(t *testing.T) {
	in := Interpret(TechnicalIndicators{}, 100)
	assert.Empty(t, in.Signals)
	assert.Equal(t, SentimentNeutral, in.Sentiment)
}

func TestAnalyze_PriceFallback(t *testing.T) {
	a := Analyze(makeBars(30, rising), 0)
	assert.Equal(t, 129.0, a.Price)
}

func TestOptional_JSON(t *testing.T) {
	ind := Compute(makeBars(10, rising))
	data, err := json.Marshal(ind)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Nil(t, raw["rsi"])
	assert.Nil(t, raw["macd"])
	sma := raw["sma"].(map[string]any)
	assert.Equal(t, 107.0, sma["sma5"])
	assert.Nil(t, sma["sma60"])

	var back TechnicalIndicators
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.RSI.Available())
	assert.Equal(t, 107.0, back.SMA.SMA5.OrElse(0))
}
