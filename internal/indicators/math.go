package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// round rounds to specified decimal places
func round(value float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(value*mult) / mult
}

// sma calculates the simple moving average of the last n values
func sma(values []float64, n int) float64 {
	if len(values) < n || n <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(values) - n; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(n)
}

// avg calculates the average of all values
func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// pstddev calculates the population standard deviation
func pstddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

// emaSeries returns the exponential moving average series seeded with the SMA of
// the first period values. The result starts at index min(period, len)-1 of the input.
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	seed := period
	if seed > len(values) {
		seed = len(values)
	}
	out := make([]float64, 0, len(values)-seed+1)
	out = append(out, avg(values[:seed]))
	k := 2.0 / float64(period+1)
	for i := seed; i < len(values); i++ {
		prev := out[len(out)-1]
		out = append(out, values[i]*k+prev*(1-k))
	}
	return out
}
