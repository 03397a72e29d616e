package indicator

import (
	"fmt"

	"stock-analyzer/internal/model"
)

// ema is an exponential moving average seeded with the SMA of its first
// period inputs. O(1) per push, no window storage.
type ema struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

func newEMA(period int) *ema {
	return &ema{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ema) push(x float64) (float64, bool) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += x
		if e.count < e.period {
			return 0, false
		}
		e.current = e.sum / float64(e.period)
		return e.current, true
	}

	// EMA = (x * k) + (EMA_prev * (1 - k))
	e.current = (x * e.multiplier) + (e.current * (1 - e.multiplier))
	return e.current, true
}

func (e *ema) reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// emaValues applies an EMA over an optional input. A null input yields a null
// output and restarts seeding, so the seed always covers period consecutive
// non-null values.
func emaValues(in []model.Value, period int) []model.Value {
	out := make([]model.Value, len(in))
	e := newEMA(period)
	for i, v := range in {
		if !v.Valid {
			e.reset()
			continue
		}
		if cur, ok := e.push(v.Float); ok {
			out[i] = model.Some(cur)
		}
	}
	return out
}

func present(in []float64) []model.Value {
	out := make([]model.Value, len(in))
	for i, x := range in {
		out[i] = model.Some(x)
	}
	return out
}

// EMA computes the exponential moving average of closing prices with
// k = 2/(period+1), seeded by the SMA of the first period closes.
func EMA(s model.PriceSeries, period int) (model.IndicatorSeries, error) {
	if period < 1 {
		return model.IndicatorSeries{}, fmt.Errorf("ema period=%d: %w", period, ErrInvalidConfig)
	}
	return model.NewIndicatorSeries(Name("EMA", period), s.Timestamps(), emaValues(present(s.Closes()), period)), nil
}
