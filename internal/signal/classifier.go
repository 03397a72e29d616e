package signal

import (
	"fmt"
	"math"

	"stock-analyzer/internal/model"
)

// Thresholds tunes the momentum and confirmation rules.
type Thresholds struct {
	Overbought float64 `json:"overbought" yaml:"overbought"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	// Tolerance below which two averages, or MACD and its signal line,
	// count as equal.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// DefaultThresholds returns the conventional 70/30 RSI bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Overbought: 70, Oversold: 30, Tolerance: 1e-9}
}

// Classify evaluates every rule independently and returns the signals in
// rule order: trend, momentum, confirmation. A rule whose inputs are null
// emits nothing.
func Classify(w Window, th Thresholds) []model.Signal {
	out := make([]model.Signal, 0, 3)
	if s, ok := Trend(w, th); ok {
		out = append(out, s)
	}
	if s, ok := Momentum(w, th); ok {
		out = append(out, s)
	}
	if s, ok := Confirmation(w, th); ok {
		out = append(out, s)
	}
	return out
}

// compare returns -1, 0 or +1 as a is below, within tol of, or above b.
func compare(a, b, tol float64) int {
	switch d := a - b; {
	case math.Abs(d) < tol:
		return 0
	case d > 0:
		return 1
	default:
		return -1
	}
}

// Trend detects SMA crossovers between the prior and latest index.
func Trend(w Window, th Thresholds) (model.Signal, bool) {
	ps, ok1 := w.Prior.SMAShort.Get()
	pl, ok2 := w.Prior.SMALong.Get()
	s, ok3 := w.Latest.SMAShort.Get()
	l, ok4 := w.Latest.SMALong.Get()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return model.Signal{}, false
	}

	sig := model.Signal{
		Rule: model.RuleTrend,
		Inputs: []model.Input{
			{Name: "sma_short", Value: s},
			{Name: "sma_long", Value: l},
			{Name: "prior_sma_short", Value: ps},
			{Name: "prior_sma_long", Value: pl},
		},
	}

	prior, latest := compare(ps, pl, th.Tolerance), compare(s, l, th.Tolerance)
	switch {
	case prior <= 0 && latest > 0:
		sig.Category = model.Bullish
		sig.Label = "golden cross"
		sig.Message = fmt.Sprintf("Short SMA (%.2f) crossed above long SMA (%.2f): golden cross, trend turning bullish", s, l)
	case prior >= 0 && latest < 0:
		sig.Category = model.Bearish
		sig.Label = "death cross"
		sig.Message = fmt.Sprintf("Short SMA (%.2f) crossed below long SMA (%.2f): death cross, trend turning bearish", s, l)
	case latest > 0:
		sig.Category = model.Neutral
		sig.Bias = model.Bullish
		sig.Label = "above long average"
		sig.Message = fmt.Sprintf("Short SMA (%.2f) remains above long SMA (%.2f): no crossover, trend leans bullish", s, l)
	case latest < 0:
		sig.Category = model.Neutral
		sig.Bias = model.Bearish
		sig.Label = "below long average"
		sig.Message = fmt.Sprintf("Short SMA (%.2f) remains below long SMA (%.2f): no crossover, trend leans bearish", s, l)
	default:
		sig.Category = model.Neutral
		sig.Label = "averages converged"
		sig.Message = fmt.Sprintf("Short and long SMA are equal at %.2f: no clear trend", s)
	}
	return sig, true
}

// Momentum maps the latest RSI onto the overbought/oversold bands.
func Momentum(w Window, th Thresholds) (model.Signal, bool) {
	rsi, ok := w.Latest.RSI.Get()
	if !ok {
		return model.Signal{}, false
	}

	sig := model.Signal{
		Rule: model.RuleMomentum,
		Inputs: []model.Input{
			{Name: "rsi", Value: rsi},
			{Name: "overbought", Value: th.Overbought},
			{Name: "oversold", Value: th.Oversold},
		},
	}
	switch {
	case rsi > th.Overbought:
		sig.Category = model.Bearish
		sig.Label = "overbought"
		sig.Message = fmt.Sprintf("RSI is %.1f, above %g: momentum suggests overbought conditions, price may retrace", rsi, th.Overbought)
	case rsi < th.Oversold:
		sig.Category = model.Bullish
		sig.Label = "oversold"
		sig.Message = fmt.Sprintf("RSI is %.1f, below %g: momentum suggests oversold conditions, price may rebound", rsi, th.Oversold)
	default:
		sig.Category = model.Neutral
		sig.Label = "neutral momentum"
		sig.Message = fmt.Sprintf("RSI is %.1f, between %g and %g: momentum is neutral", rsi, th.Oversold, th.Overbought)
	}
	return sig, true
}

// Confirmation compares MACD with its signal line and describes the
// histogram trend as auxiliary detail.
func Confirmation(w Window, th Thresholds) (model.Signal, bool) {
	m, ok1 := w.Latest.MACD.Get()
	sl, ok2 := w.Latest.MACDSig.Get()
	if !ok1 || !ok2 {
		return model.Signal{}, false
	}

	sig := model.Signal{
		Rule: model.RuleConfirmation,
		Inputs: []model.Input{
			{Name: "macd", Value: m},
			{Name: "macd_signal", Value: sl},
		},
	}
	switch compare(m, sl, th.Tolerance) {
	case 0:
		sig.Category = model.Neutral
		sig.Label = "on signal line"
		sig.Message = fmt.Sprintf("MACD (%.4f) is level with its signal line (%.4f): no momentum confirmation", m, sl)
	case 1:
		sig.Category = model.Bullish
		sig.Label = "above signal line"
		sig.Message = fmt.Sprintf("MACD (%.4f) is above its signal line (%.4f): momentum confirms upside", m, sl)
	default:
		sig.Category = model.Bearish
		sig.Label = "below signal line"
		sig.Message = fmt.Sprintf("MACD (%.4f) is below its signal line (%.4f): momentum confirms downside", m, sl)
	}

	h, okH := w.Latest.Histogram.Get()
	ph, okP := w.Prior.Histogram.Get()
	if okH && okP {
		sig.Inputs = append(sig.Inputs,
			model.Input{Name: "histogram", Value: h},
			model.Input{Name: "prior_histogram", Value: ph},
		)
		switch {
		case math.Abs(h) > math.Abs(ph):
			sig.Detail = fmt.Sprintf("Histogram widened from %.4f to %.4f: momentum strengthening", ph, h)
		case math.Abs(h) < math.Abs(ph):
			sig.Detail = fmt.Sprintf("Histogram narrowed from %.4f to %.4f: momentum weakening", ph, h)
		default:
			sig.Detail = fmt.Sprintf("Histogram unchanged at %.4f", h)
		}
	}
	return sig, true
}
