package indicator

import (
	"fmt"

	"stock-analyzer/internal/model"
)

// wilder is Wilder's smoothed moving average: the first value is the SMA of
// period inputs, then avg = (prev*(period-1) + x) / period.
type wilder struct {
	period  int
	count   int
	sum     float64
	current float64
}

func (w *wilder) push(x float64) (float64, bool) {
	w.count++

	if w.count <= w.period {
		w.sum += x
		if w.count < w.period {
			return 0, false
		}
		w.current = w.sum / float64(w.period)
		return w.current, true
	}

	p := float64(w.period)
	w.current = (w.current*(p-1) + x) / p
	return w.current, true
}

// rsiFromAverages maps smoothed gain/loss to [0,100].
// Both zero is a flat market and reads as a neutral 50; zero loss alone is 100.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func rsiValues(closes []float64, period int) []model.Value {
	out := make([]model.Value, len(closes))
	gains := &wilder{period: period}
	losses := &wilder{period: period}

	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		ag, ok := gains.push(gain)
		al, _ := losses.push(loss)
		if ok {
			out[i] = model.Some(rsiFromAverages(ag, al))
		}
	}
	return out
}

// RSI computes the Relative Strength Index with Wilder's smoothing.
// The first value appears at index period (after period price deltas).
func RSI(s model.PriceSeries, period int) (model.IndicatorSeries, error) {
	if period < 2 {
		return model.IndicatorSeries{}, fmt.Errorf("rsi period=%d must be >= 2: %w", period, ErrInvalidConfig)
	}
	return model.NewIndicatorSeries(Name("RSI", period), s.Timestamps(), rsiValues(s.Closes(), period)), nil
}
