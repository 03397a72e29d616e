package model

import (
	"context"
	"time"
)

// ── Port interfaces ──
// These decouple the analysis pipeline from concrete collaborators
// (Yahoo, SQLite, Redis). Implementations satisfy one or more of them.

// FetchRequest selects a daily series for one symbol. Either Range
// ("6mo", "1y", ...) or the From/To window is used; From/To wins when set.
type FetchRequest struct {
	Symbol string
	Range  string
	From   time.Time
	To     time.Time
}

// SeriesSource retrieves raw daily bars.
type SeriesSource interface {
	// Fetch returns the series or an error wrapping marketdata.ErrNoDataFound.
	Fetch(ctx context.Context, req FetchRequest) (PriceSeries, error)
}

// SeriesWriter persists fetched bars.
type SeriesWriter interface {
	SaveSeries(ctx context.Context, series PriceSeries) error
	Close() error
}

// ReportWriter persists analysis reports.
type ReportWriter interface {
	SaveReport(ctx context.Context, report *Report) error
	Close() error
}

// ReportReader loads previously stored reports.
type ReportReader interface {
	// LatestReport returns nil, nil when no report exists for the symbol.
	LatestReport(ctx context.Context, symbol string) (*Report, error)
}

// ReportPublisher fans reports out to other processes.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *Report) error
}

// FundamentalsSource returns the company summary for a symbol.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
}
