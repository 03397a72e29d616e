package indicator

import "stock-analyzer/internal/model"

// MACD computes the fast/slow EMA difference, its signal-line EMA and the histogram.
// The line starts at index slow-1; the signal line once the line has signal
// consecutive values; the histogram wherever both exist.
func MACD(s model.PriceSeries, fast, slow, signal int) (model.MacdResult, error) {
	if err := validateMACD(fast, slow, signal); err != nil {
		return model.MacdResult{}, err
	}

	closes := present(s.Closes())
	fastEMA := emaValues(closes, fast)
	slowEMA := emaValues(closes, slow)

	line := make([]model.Value, len(closes))
	for i := range line {
		line[i] = fastEMA[i].Sub(slowEMA[i])
	}
	sig := emaValues(line, signal)
	hist := make([]model.Value, len(closes))
	for i := range hist {
		hist[i] = line[i].Sub(sig[i])
	}

	ts := s.Timestamps()
	return model.MacdResult{
		Line:      model.NewIndicatorSeries(Name("MACD", fast, slow), ts, line),
		Signal:    model.NewIndicatorSeries(Name("MACD_SIGNAL", signal), ts, sig),
		Histogram: model.NewIndicatorSeries("MACD_HIST", ts, hist),
	}, nil
}
