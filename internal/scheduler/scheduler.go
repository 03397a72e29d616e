// Package scheduler refreshes the watchlist on a cron schedule: plan the
// fetch window, fetch (through the cache), analyze, persist, publish,
// broadcast and notify, independently for each symbol.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stock-analyzer/internal/analysis"
	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/marketdata/calendar"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
)

// Broadcaster pushes a fresh report to live clients.
type Broadcaster interface {
	BroadcastReport(r *model.Report)
}

// Notifier raises alerts for a fresh report.
type Notifier interface {
	NotifyReport(ctx context.Context, r *model.Report) int
}

// Deps are the collaborators of a run. Only Source and Analyzer are
// required; nil optional stages are skipped.
type Deps struct {
	Source   model.SeriesSource
	Analyzer *analysis.Analyzer
	Planner  calendar.Planner

	Series    model.SeriesWriter
	Reports   model.ReportWriter
	Publisher model.ReportPublisher
	Broadcast Broadcaster
	Notify    Notifier

	Health  *metrics.HealthStatus
	Metrics *metrics.Metrics
}

// Options controls what a run analyzes.
type Options struct {
	Symbols     []string
	HistoryBars int
	Indicators  indicator.Config
	// Concurrency bounds symbols processed at once; <1 means 4.
	Concurrency int
	// SymbolTimeout bounds one symbol's run; 0 means 2 minutes.
	SymbolTimeout time.Duration
	// SkipClosed skips cron-triggered runs for symbols whose exchange had
	// no session that day. Manual runs always execute.
	SkipClosed bool
}

// Result is the outcome of one symbol's run.
type Result struct {
	Symbol  string
	RunID   string
	Report  *model.Report
	Skipped bool
	Stage   string // where it failed: "fetch" or "analyze"
	Err     error
}

// Scheduler manages the refresh cron task.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	deps Deps
	opts Options
	now  func() time.Time

	// held for the duration of a run; overlapping triggers are dropped
	running sync.Mutex
}

// New creates a Scheduler whose runs derive from ctx.
func New(ctx context.Context, deps Deps, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.SymbolTimeout <= 0 {
		opts.SymbolTimeout = 2 * time.Minute
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Ctx:  ctx,
		deps: deps,
		opts: opts,
		now:  time.Now,
	}
}

// Register adds the refresh task under spec (six fields, seconds first).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.run(s.Ctx, s.opts.SkipClosed) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", slog.Int("symbols", len(s.opts.Symbols)))
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.running.Lock()
	s.running.Unlock()
	slog.Info("scheduler stopped")
}

// RunOnce refreshes every symbol now, regardless of exchange sessions.
// It returns nil when another run is still in progress.
func (s *Scheduler) RunOnce(ctx context.Context) []Result {
	return s.run(ctx, false)
}

func (s *Scheduler) run(ctx context.Context, skipClosed bool) []Result {
	if !s.running.TryLock() {
		slog.Warn("refresh skipped: previous run still in progress")
		return nil
	}
	defer s.running.Unlock()

	start := s.now()
	results := make([]Result, len(s.opts.Symbols))
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup
	for i, symbol := range s.opts.Symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, symbol string) {
			defer func() { <-sem; wg.Done() }()
			if skipClosed && !s.deps.Planner.IsSession(symbol, start) {
				results[i] = Result{Symbol: symbol, Skipped: true}
				slog.Info("refresh skipped: exchange closed", slog.String("symbol", symbol))
				return
			}
			results[i] = s.RunSymbol(ctx, symbol)
		}(i, symbol)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastRefresh(s.now())
	}
	slog.Info("refresh complete",
		slog.Int("symbols", len(results)),
		slog.Int("failed", failed),
		slog.Duration("took", s.now().Sub(start)))
	return results
}

// RunSymbol runs the full pipeline for one symbol. Storage, publish and
// notification failures are logged but do not fail the run.
func (s *Scheduler) RunSymbol(ctx context.Context, symbol string) Result {
	now := s.now()
	res := Result{Symbol: symbol, RunID: logger.NewRunID(symbol, now)}
	ctx = logger.WithRunID(ctx, res.RunID)
	ctx, cancel := context.WithTimeout(ctx, s.opts.SymbolTimeout)
	defer cancel()
	log := slog.With(append([]any{slog.String("symbol", symbol)}, logger.Attrs(ctx)...)...)

	bars := s.opts.HistoryBars
	if lb := s.opts.Indicators.MaxLookback(); bars < lb {
		bars = lb
	}
	req := s.deps.Planner.Plan(symbol, bars, now)

	series, err := s.deps.Source.Fetch(ctx, req)
	if err != nil {
		res.Stage, res.Err = "fetch", err
		log.Error("fetch failed", slog.String("error", err.Error()))
		return res
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	if s.deps.Series != nil {
		if err := s.deps.Series.SaveSeries(ctx, series); err != nil {
			log.Warn("save series failed", slog.String("error", err.Error()))
		}
	}

	rep, err := s.deps.Analyzer.Analyze(ctx, symbol, series.Points, s.opts.Indicators)
	if err != nil {
		res.Stage, res.Err = "analyze", err
		return res
	}
	res.Report = rep

	if s.deps.Reports != nil {
		if err := s.deps.Reports.SaveReport(ctx, rep); err != nil {
			log.Warn("save report failed", slog.String("error", err.Error()))
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishReport(ctx, rep); err != nil {
			log.Warn("publish report failed", slog.String("error", err.Error()))
		}
	}
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.BroadcastReport(rep)
	}
	if s.deps.Notify != nil {
		if n := s.deps.Notify.NotifyReport(ctx, rep); n > 0 {
			log.Info("alerts sent", slog.Int("deliveries", n))
		}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.LastRefresh.WithLabelValues(symbol).Set(float64(now.Unix()))
	}
	return res
}
