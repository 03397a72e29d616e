// Package analysis runs the full pipeline for one symbol: validate the raw
// bars, compute indicators, classify the latest window and summarise the
// series into a Report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/signal"
	"stock-analyzer/internal/validate"
)

// Options tunes an Analyzer.
type Options struct {
	Thresholds signal.Thresholds
	// Strict rejects the whole series on the first bad bar.
	Strict bool
}

// DefaultOptions uses the conventional RSI bands and drop-mode validation.
func DefaultOptions() Options {
	return Options{Thresholds: signal.DefaultThresholds()}
}

// Analyzer is stateless apart from its options and metrics; one value can
// serve concurrent calls.
type Analyzer struct {
	opts    Options
	metrics *metrics.Metrics // nil disables instrumentation
	now     func() time.Time
}

// New creates an Analyzer. m may be nil.
func New(opts Options, m *metrics.Metrics) *Analyzer {
	return &Analyzer{opts: opts, metrics: m, now: time.Now}
}

// Analyze validates points, computes every indicator with cfg and builds the
// report. Config errors are returned before the series is looked at.
// Insufficient history is not an error: it surfaces as a report warning and
// null indicator values.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, points []model.PricePoint, cfg indicator.Config) (*model.Report, error) {
	start := time.Now()
	rep, err := a.analyze(symbol, points, cfg)
	a.observe(rep, err, time.Since(start))

	if err != nil {
		slog.Warn("analysis failed",
			append([]any{slog.String("symbol", symbol), slog.String("error", err.Error())}, logger.Attrs(ctx)...)...)
		return nil, err
	}
	slog.Info("analysis complete",
		append([]any{
			slog.String("symbol", symbol),
			slog.Int("bars", rep.Bars),
			slog.Int("signals", len(rep.Signals)),
			slog.String("outlook", string(rep.Outlook.Rating)),
		}, logger.Attrs(ctx)...)...)
	return rep, nil
}

func (a *Analyzer) analyze(symbol string, points []model.PricePoint, cfg indicator.Config) (*model.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	raw := model.PriceSeries{Symbol: symbol, Points: points}
	res, verr := validate.Validate(raw, validate.Options{Lookback: cfg.MaxLookback(), Strict: a.opts.Strict})
	if validate.IsFatal(verr) {
		return nil, verr
	}
	if a.metrics != nil && len(res.Rejected) > 0 {
		a.metrics.RejectedBars.Add(float64(len(res.Rejected)))
	}

	s := res.Series
	ind, err := indicator.Compute(s, cfg)
	if err != nil {
		return nil, err
	}

	w := signal.LatestWindow(s, ind)
	last, _ := s.Last()
	rep := &model.Report{
		Symbol:      symbol,
		GeneratedAt: a.now().UTC(),
		AsOf:        last.TS,
		Bars:        s.Len(),
		Trend:       signal.TrendStateOf(w.Latest, a.opts.Thresholds),
		Signals:     signal.Classify(w, a.opts.Thresholds),
		Outlook:     signal.Outlook(w, a.opts.Thresholds),
		Volume:      VolumeOf(s),
		Volatility:  VolatilityOf(s),
		Indicators:  ind,
	}
	rep.Price, rep.PrevClose, rep.ChangePct = PriceChange(s)
	rep.Support, rep.Resistance = SupportResistance(s, LevelWindow)

	if len(res.Rejected) > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dropped %d invalid bar(s)", len(res.Rejected)))
	}
	if errors.Is(verr, validate.ErrInsufficientHistory) {
		rep.Warnings = append(rep.Warnings, verr.Error())
	}
	return rep, nil
}

func (a *Analyzer) observe(rep *model.Report, err error, d time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.AnalysisDur.Observe(d.Seconds())
	if err != nil {
		a.metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return
	}
	a.metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	for _, sig := range rep.Signals {
		a.metrics.SignalsTotal.WithLabelValues(string(sig.Rule), string(sig.Category)).Inc()
	}
	a.metrics.LastRefresh.WithLabelValues(rep.Symbol).Set(float64(rep.GeneratedAt.Unix()))
}
