package model

import (
	"encoding/json"
	"time"
)

// Indicators is the full set of aligned series produced for one analysis.
type Indicators struct {
	SMAShort  IndicatorSeries `json:"sma_short"`
	SMALong   IndicatorSeries `json:"sma_long"`
	RSI       IndicatorSeries `json:"rsi"`
	MACD      MacdResult      `json:"macd"`
	Bollinger BandResult      `json:"bollinger"`
	ATR       IndicatorSeries `json:"atr"`
}

// VolumeStats compares the latest volume against its 20-session mean.
type VolumeStats struct {
	Status  string  `json:"status"` // High, Normal, Low, Insufficient data
	Current int64   `json:"current,omitempty"`
	Average int64   `json:"average_20d,omitempty"`
	Ratio   float64 `json:"ratio,omitempty"`
}

// VolatilityStats holds annualised volatility of daily returns.
type VolatilityStats struct {
	Status     string  `json:"status"` // High, Moderate, Low, Insufficient data
	Annualized float64 `json:"annualized_20d,omitempty"`
}

// Report is the presentation-ready result of one analysis run.
type Report struct {
	Symbol       string          `json:"symbol"`
	GeneratedAt  time.Time       `json:"generated_at"`
	AsOf         time.Time       `json:"as_of"` // timestamp of the latest bar
	Bars         int             `json:"bars"`
	Price        float64         `json:"price"`
	PrevClose    float64         `json:"prev_close"`
	ChangePct    float64         `json:"change_pct"`
	Trend        TrendState      `json:"trend"`
	Signals      []Signal        `json:"signals"`
	Outlook      Outlook         `json:"outlook"`
	Volume       VolumeStats     `json:"volume"`
	Volatility   VolatilityStats `json:"volatility"`
	Support      []float64       `json:"support_levels"`
	Resistance   []float64       `json:"resistance_levels"`
	Indicators   Indicators      `json:"indicators"`
	Warnings     []string        `json:"warnings,omitempty"`
	// Fundamentals is attached on request; analysis never sets it.
	Fundamentals *Fundamentals   `json:"fundamentals,omitempty"`
}

// JSON returns the JSON-encoded report.
func (r *Report) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
