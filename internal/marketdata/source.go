// Package marketdata defines where daily bars come from and decorators that
// sit between the analyzer and a concrete source.
package marketdata

import (
	"context"
	"errors"
	"time"

	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// ErrNoDataFound means the source has no bars for the symbol or window.
var ErrNoDataFound = errors.New("no data found")

// Source retrieves raw daily bars for one symbol.
type Source = model.SeriesSource

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error)

func (f SourceFunc) Fetch(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error) {
	return f(ctx, req)
}

// Instrument wraps src so every fetch records latency and errors under name.
// A nil m returns src unchanged.
func Instrument(name string, src Source, m *metrics.Metrics) Source {
	if m == nil {
		return src
	}
	return SourceFunc(func(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error) {
		start := time.Now()
		s, err := src.Fetch(ctx, req)
		m.FetchDur.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			m.FetchErrors.WithLabelValues(name).Inc()
		}
		return s, err
	})
}

// Ranges accepted for daily bars.
var Ranges = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// ValidRange reports whether r is one of Ranges.
func ValidRange(r string) bool {
	for _, v := range Ranges {
		if v == r {
			return true
		}
	}
	return false
}

// RangeStart converts a chart range ("1mo", "6mo", "1y", "ytd", ...) into the
// first instant it covers, counted back from to. "max", "" and unknown ranges
// return the zero time, meaning no lower bound.
func RangeStart(to time.Time, r string) time.Time {
	switch r {
	case "1mo":
		return to.AddDate(0, -1, 0)
	case "3mo":
		return to.AddDate(0, -3, 0)
	case "6mo":
		return to.AddDate(0, -6, 0)
	case "1y":
		return to.AddDate(-1, 0, 0)
	case "2y":
		return to.AddDate(-2, 0, 0)
	case "5y":
		return to.AddDate(-5, 0, 0)
	case "10y":
		return to.AddDate(-10, 0, 0)
	case "ytd":
		return time.Date(to.Year(), time.January, 1, 0, 0, 0, 0, to.Location())
	default:
		return time.Time{}
	}
}
