package indicator

import (
	"fmt"
	"math"

	"stock-analyzer/internal/model"
)

// Bollinger computes a period SMA middle band with upper/lower bands k sample
// standard deviations away. A period of zero returns all-null bands.
func Bollinger(s model.PriceSeries, period int, k float64) (model.BandResult, error) {
	if period < 0 || period == 1 || (period > 0 && k <= 0) {
		return model.BandResult{}, fmt.Errorf("bollinger period=%d k=%g: %w", period, k, ErrInvalidConfig)
	}

	n := s.Len()
	upper := make([]model.Value, n)
	middle := make([]model.Value, n)
	lower := make([]model.Value, n)

	if period > 0 {
		w := newWindow(period)
		for i, x := range s.Closes() {
			mean, ok := w.push(x)
			if !ok {
				continue
			}
			sd := sampleStdDev(w.values(), mean)
			middle[i] = model.Some(mean)
			upper[i] = model.Some(mean + k*sd)
			lower[i] = model.Some(mean - k*sd)
		}
	}

	ts := s.Timestamps()
	return model.BandResult{
		Upper:  model.NewIndicatorSeries(Name("BB_UPPER", period), ts, upper),
		Middle: model.NewIndicatorSeries(Name("BB_MIDDLE", period), ts, middle),
		Lower:  model.NewIndicatorSeries(Name("BB_LOWER", period), ts, lower),
	}, nil
}

func sampleStdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|); the first bar
// has no previous close and uses high-low alone.
func trueRange(points []model.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		tr := p.High - p.Low
		if i > 0 {
			prev := points[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(p.High-prev), math.Abs(p.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR is the rolling mean of the true range over period bars.
// A period of zero returns an all-null series.
func ATR(s model.PriceSeries, period int) (model.IndicatorSeries, error) {
	if period < 0 {
		return model.IndicatorSeries{}, fmt.Errorf("atr period=%d: %w", period, ErrInvalidConfig)
	}
	values := make([]model.Value, s.Len())
	if period > 0 {
		values = smaValues(trueRange(s.Points), period)
	}
	return model.NewIndicatorSeries(Name("ATR", period), s.Timestamps(), values), nil
}
