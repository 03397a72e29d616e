package model

import (
	"encoding/json"
	"math"
	"time"
)

// PricePoint is one daily OHLCV bar for a single instrument.
// Prices are float64 in the instrument's quote currency.
type PricePoint struct {
	TS     time.Time `json:"ts"` // session date (UTC midnight for daily bars)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded point (ignoring errors, the struct always encodes).
func (p *PricePoint) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}

// Finite reports whether every price of p is a finite number. Upstream
// sources decode missing quotes as NaN.
func (p PricePoint) Finite() bool {
	for _, f := range [...]float64{p.Open, p.High, p.Low, p.Close} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// PriceSeries is an ascending, duplicate-free sequence of daily bars for one symbol.
// Consumers borrow it read-only.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns a fresh slice of closing prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Timestamps returns a fresh slice of bar timestamps.
func (s PriceSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.TS
	}
	return out
}

// Last returns the most recent bar. ok is false for an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Clone returns a deep copy so callers can hand the series across goroutines.
func (s PriceSeries) Clone() PriceSeries {
	pts := make([]PricePoint, len(s.Points))
	copy(pts, s.Points)
	return PriceSeries{Symbol: s.Symbol, Points: pts}
}

// FiniteOnly returns a copy of s without bars carrying a NaN or infinite
// price, and the number of bars dropped.
func (s PriceSeries) FiniteOnly() (PriceSeries, int) {
	pts := make([]PricePoint, 0, len(s.Points))
	for _, p := range s.Points {
		if p.Finite() {
			pts = append(pts, p)
		}
	}
	return PriceSeries{Symbol: s.Symbol, Points: pts}, len(s.Points) - len(pts)
}
