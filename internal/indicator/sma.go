package indicator

import (
	"fmt"

	"stock-analyzer/internal/model"
)

// window is a rolling mean over the last period values.
// Uses a preallocated circular buffer; lives only for one fold.
type window struct {
	period int
	buf    []float64 // circular buffer
	idx    int       // next write position
	count  int       // total values pushed
	sum    float64
}

func newWindow(period int) *window {
	return &window{
		period: period,
		buf:    make([]float64, period),
	}
}

// push adds x and returns the mean of the last period values once the window is full.
func (w *window) push(x float64) (float64, bool) {
	if w.count >= w.period {
		// Subtract the oldest value being overwritten
		w.sum -= w.buf[w.idx]
	}
	w.buf[w.idx] = x
	w.sum += x
	w.idx = (w.idx + 1) % w.period
	w.count++

	if w.count < w.period {
		return 0, false
	}
	return w.sum / float64(w.period), true
}

// values returns the current window contents, oldest first. Only valid once full.
func (w *window) values() []float64 {
	out := make([]float64, 0, w.period)
	for i := 0; i < w.period; i++ {
		out = append(out, w.buf[(w.idx+i)%w.period])
	}
	return out
}

// smaValues is the rolling mean of in; null for i < period-1.
func smaValues(in []float64, period int) []model.Value {
	out := make([]model.Value, len(in))
	w := newWindow(period)
	for i, x := range in {
		if mean, ok := w.push(x); ok {
			out[i] = model.Some(mean)
		}
	}
	return out
}

// SMA computes the simple moving average of closing prices.
// Value at i is null for i < period-1, else mean(close[i-period+1..i]).
func SMA(s model.PriceSeries, period int) (model.IndicatorSeries, error) {
	if period < 1 {
		return model.IndicatorSeries{}, fmt.Errorf("sma period=%d: %w", period, ErrInvalidConfig)
	}
	return model.NewIndicatorSeries(Name("SMA", period), s.Timestamps(), smaValues(s.Closes(), period)), nil
}
