package indicators

import (
	"github.com/ternarybob/briefing/internal/models"
)

// Indicator windows
const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerWidth  = 2.0
	VolumeRatioBars = 20
	ShortSMAPeriod  = 5
	MediumSMAPeriod = 20
	LongSMAPeriod   = 60
)

// MACD is the latest MACD line, signal line and histogram
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Bands is the latest Bollinger envelope
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// SMASet holds the three moving averages, each independently available
type SMASet struct {
	SMA5  Optional[float64] `json:"sma5"`
	SMA20 Optional[float64] `json:"sma20"`
	SMA60 Optional[float64] `json:"sma60"`
}

// TechnicalIndicators is the derived indicator set for one series
type TechnicalIndicators struct {
	RSI         Optional[float64] `json:"rsi"`
	MACD        Optional[MACD]    `json:"macd"`
	Bollinger   Optional[Bands]   `json:"bollingerBands"`
	SMA         SMASet            `json:"sma"`
	VolumeRatio Optional[float64] `json:"volumeRatio"`
}

// Compute derives all indicators from chronological bars. A period-N indicator
// is unavailable unless at least N bars exist. Never panics on empty input.
func Compute(bars []models.HistoricalBar) TechnicalIndicators {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = bar.Volume
	}

	return TechnicalIndicators{
		RSI:       rsi(closes, RSIPeriod),
		MACD:      macd(closes, MACDFast, MACDSlow, MACDSignal),
		Bollinger: bollinger(closes, BollingerPeriod, BollingerWidth),
		SMA: SMASet{
			SMA5:  movingAverage(closes, ShortSMAPeriod),
			SMA20: movingAverage(closes, MediumSMAPeriod),
			SMA60: movingAverage(closes, LongSMAPeriod),
		},
		VolumeRatio: volumeRatio(volumes, VolumeRatioBars),
	}
}

func movingAverage(closes []float64, period int) Optional[float64] {
	if len(closes) < period {
		return Unavailable[float64]()
	}
	return Value(round(sma(closes, period), 2))
}

// rsi uses Wilder smoothing. The seed average covers up to period changes,
// so exactly period closes seed over period-1 changes.
func rsi(closes []float64, period int) Optional[float64] {
	if len(closes) < period || len(closes) < 2 {
		return Unavailable[float64]()
	}

	changes := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes[i-1] = closes[i] - closes[i-1]
	}

	seed := period
	if seed > len(changes) {
		seed = len(changes)
	}

	var gain, loss float64
	for _, c := range changes[:seed] {
		if c > 0 {
			gain += c
		} else {
			loss -= c
		}
	}
	avgGain := gain / float64(seed)
	avgLoss := loss / float64(seed)

	for _, c := range changes[seed:] {
		g, l := 0.0, 0.0
		if c > 0 {
			g = c
		} else {
			l = -c
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	switch {
	case avgGain == 0 && avgLoss == 0:
		return Value(50.0)
	case avgLoss == 0:
		return Value(100.0)
	}
	rs := avgGain / avgLoss
	return Value(round(100-100/(1+rs), 2))
}

func macd(closes []float64, fast, slow, signal int) Optional[MACD] {
	if len(closes) < slow {
		return Unavailable[MACD]()
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// fastEMA starts at index fast-1, slowEMA at slow-1
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalEMA := emaSeries(line, signal)
	last := line[len(line)-1]
	sig := signalEMA[len(signalEMA)-1]

	return Value(MACD{
		MACD:      round(last, 4),
		Signal:    round(sig, 4),
		Histogram: round(last-sig, 4),
	})
}

func bollinger(closes []float64, period int, width float64) Optional[Bands] {
	if len(closes) < period {
		return Unavailable[Bands]()
	}
	window := closes[len(closes)-period:]
	middle := avg(window)
	sd := pstddev(window)
	return Value(Bands{
		Upper:  round(middle+width*sd, 2),
		Middle: round(middle, 2),
		Lower:  round(middle-width*sd, 2),
	})
}

// volumeRatio is the latest volume as a percentage of the mean of the last n volumes
func volumeRatio(volumes []float64, n int) Optional[float64] {
	if len(volumes) < n {
		return Unavailable[float64]()
	}
	mean := sma(volumes, n)
	if mean == 0 {
		return Unavailable[float64]()
	}
	return Value(round(volumes[len(volumes)-1]/mean*100, 2))
}
