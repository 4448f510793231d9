package briefing

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// ErrNotEnoughBars is returned when a chart would have fewer than two points
var ErrNotEnoughBars = errors.New("not enough bars to chart")

// RenderChart draws the closing price and 20-day SMA of a pro symbol as PNG
func RenderChart(t TechnicalBrief) ([]byte, error) {
	if len(t.Chart) < 2 {
		return nil, ErrNotEnoughBars
	}

	dates := make([]time.Time, len(t.Chart))
	closes := make([]float64, len(t.Chart))
	for i, bar := range t.Chart {
		dates[i] = bar.Date
		closes[i] = bar.Close
	}

	price := chart.TimeSeries{
		Name:    "Close",
		XValues: dates,
		YValues: closes,
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			StrokeWidth: 2,
		},
	}

	series := []chart.Series{price}
	if len(closes) >= 20 {
		series = append(series, &chart.SMASeries{
			Name:        "SMA20",
			Period:      20,
			InnerSeries: price,
			Style: chart.Style{
				StrokeColor:     chart.ColorOrange,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}

	graph := chart.Chart{
		Title:  t.Symbol,
		Width:  800,
		Height: 360,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart for %s: %w", t.Symbol, err)
	}
	return buf.Bytes(), nil
}
