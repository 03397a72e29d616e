package model

import "time"

// SeriesPoint is one index-aligned indicator sample.
type SeriesPoint struct {
	TS    time.Time `json:"ts"`
	Value Value     `json:"value"`
}

// IndicatorSeries is a named indicator output aligned one-to-one with the
// PriceSeries it was computed from.
type IndicatorSeries struct {
	Name   string        `json:"name"` // e.g. "SMA_20", "RSI_14"
	Points []SeriesPoint `json:"points"`
}

// NewIndicatorSeries pairs values with timestamps. Both slices must have equal length.
func NewIndicatorSeries(name string, ts []time.Time, values []Value) IndicatorSeries {
	pts := make([]SeriesPoint, len(values))
	for i, v := range values {
		pts[i] = SeriesPoint{TS: ts[i], Value: v}
	}
	return IndicatorSeries{Name: name, Points: pts}
}

// Len returns the number of samples.
func (s IndicatorSeries) Len() int { return len(s.Points) }

// At returns the value at index i, or null when i is out of range.
func (s IndicatorSeries) At(i int) Value {
	if i < 0 || i >= len(s.Points) {
		return Null
	}
	return s.Points[i].Value
}

// Values returns the bare values without timestamps.
func (s IndicatorSeries) Values() []Value {
	out := make([]Value, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// FirstValid returns the index of the first non-null sample, or -1.
func (s IndicatorSeries) FirstValid() int {
	for i, p := range s.Points {
		if p.Value.Valid {
			return i
		}
	}
	return -1
}

// MacdResult holds the three aligned MACD outputs.
type MacdResult struct {
	Line      IndicatorSeries `json:"line"`
	Signal    IndicatorSeries `json:"signal"`
	Histogram IndicatorSeries `json:"histogram"`
}

// BandResult holds Bollinger upper/middle/lower bands.
type BandResult struct {
	Upper  IndicatorSeries `json:"upper"`
	Middle IndicatorSeries `json:"middle"`
	Lower  IndicatorSeries `json:"lower"`
}
