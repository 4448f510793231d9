package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

func TestFilterBasicSignals(t *testing.T) {
	tests := []struct {
		name    string
		signals []string
		tier    models.Tier
		want    []string
	}{
		{
			name:    "basic drops rsi",
			signals: []string{"RSI 25.3: 과매도 구간", "이동평균: 5일선 > 20일선"},
			tier:    models.TierBasic,
			want:    []string{"이동평균: 5일선 > 20일선"},
		},
		{
			name:    "case insensitive",
			signals: []string{"macd crossed up", "Rsi high", "거래량 급증"},
			tier:    models.TierBasic,
			want:    []string{"거래량 급증"},
		},
		{
			name:    "korean and english terms",
			signals: []string{"볼린저 밴드 상단", "Bollinger squeeze", "Oversold bounce", "OVERBOUGHT", "과매수", "golden cross"},
			tier:    models.TierFree,
			want:    []string{"golden cross"},
		},
		{
			name:    "pro keeps everything",
			signals: []string{"RSI 25.3: 과매도 구간", "MACD up"},
			tier:    models.TierPro,
			want:    []string{"RSI 25.3: 과매도 구간", "MACD up"},
		},
		{
			name:    "empty",
			signals: nil,
			tier:    models.TierBasic,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterBasicSignals(tt.signals, tt.tier))
		})
	}
}

func TestFilterBasicSignals_InterpretationText(t *testing.T) {
	// every premium indicator text produced by the interpreter is caught by the keyword list
	ind := indicators.TechnicalIndicators{
		RSI:         indicators.Value(80.0),
		MACD:        indicators.Value(indicators.MACD{MACD: 1, Signal: 2}),
		Bollinger:   indicators.Value(indicators.Bands{Upper: 10, Middle: 9, Lower: 8}),
		SMA:         indicators.SMASet{SMA5: indicators.Value(2.0), SMA20: indicators.Value(1.0)},
		VolumeRatio: indicators.Value(300.0),
	}
	in := indicators.Interpret(ind, 11)

	fromText := FilterBasicSignals(in.Texts(), models.TierBasic)
	fromKind := indicators.SignalTexts(DefaultTable().Filter(in.Signals, models.TierBasic))
	assert.Equal(t, fromKind, fromText)
	assert.Len(t, fromText, 2)
}

func TestTable_Filter(t *testing.T) {
	signals := []indicators.Signal{
		{Kind: indicators.KindRSI, Text: "a"},
		{Kind: indicators.KindSMA, Text: "b"},
		{Kind: indicators.KindVolume, Text: "c"},
		{Kind: indicators.KindMACD, Text: "d"},
	}
	table := DefaultTable()

	assert.Empty(t, table.Filter(signals, models.TierFree))
	assert.Equal(t, []string{"b", "c"}, indicators.SignalTexts(table.Filter(signals, models.TierBasic)))
	assert.Len(t, table.Filter(signals, models.TierPro), 4)
	assert.Empty(t, table.Filter(signals, models.Tier("unknown")))
}

func TestAllowsTechnical(t *testing.T) {
	free := models.Subscriber{PlanName: "free"}
	assert.False(t, AllowsTechnical(free, nil))

	flagged := models.Subscriber{PlanName: "free", Entitlements: []models.Feature{models.FeatureTechnicalAnalysis}}
	assert.True(t, AllowsTechnical(flagged, nil))

	assert.True(t, AllowsTechnical(models.Subscriber{PlanName: "basic"}, nil))
	assert.Equal(t, models.TierPro, EffectiveTier(free, &models.Plan{Name: "x", Tier: models.TierPro}))
}

func TestCapTier(t *testing.T) {
	tests := []struct {
		requested, allowed, want models.Tier
	}{
		{models.TierPro, models.TierFree, models.TierFree},
		{models.TierPro, models.TierBasic, models.TierBasic},
		{models.TierBasic, models.TierPro, models.TierBasic},
		{models.TierFree, models.TierPro, models.TierFree},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CapTier(tt.requested, tt.allowed), "%s capped at %s", tt.requested, tt.allowed)
	}
}
