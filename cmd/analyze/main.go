// cmd/analyze runs a one-shot analysis for a single symbol and prints the
// indicator table tail, signals and outlook.
//
// Usage:
//
//	go run ./cmd/analyze --symbol=AAPL --range=1y
//	go run ./cmd/analyze --symbol=RELIANCE.NS --source=sqlite --db=data/analyzer.db
//	go run ./cmd/analyze --symbol=AAPL --sma-short=10 --rsi=21 --save
//	FMP_API_KEY=... go run ./cmd/analyze --symbol=AAPL --fundamentals
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"stock-analyzer/config"
	"stock-analyzer/internal/analysis"
	"stock-analyzer/internal/fundamental"
	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/marketdata/yahoo"
	"stock-analyzer/internal/model"
	sqlitestore "stock-analyzer/internal/store/sqlite"
)

type options struct {
	configPath string
	symbol     string
	source     string
	rng        string
	dbPath     string
	rows       int
	asJSON     bool
	save       bool
	strict     bool
	funds      bool
	smaShort   int
	smaLong    int
	rsi        int
	macdFast   int
	macdSlow   int
	macdSignal int
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "config.yaml", "Path to YAML config (optional)")
	fs.StringVar(&o.symbol, "symbol", "", "Ticker to analyze, e.g. AAPL or RELIANCE.NS (required)")
	fs.StringVar(&o.source, "source", "yahoo", "Bar source: yahoo or sqlite")
	fs.StringVar(&o.rng, "range", "1y", "History range: "+strings.Join(marketdata.Ranges, ", "))
	fs.StringVar(&o.dbPath, "db", "", "SQLite database (default from config)")
	fs.IntVar(&o.rows, "rows", 10, "Indicator rows to print from the end")
	fs.BoolVar(&o.asJSON, "json", false, "Print the full report as JSON")
	fs.BoolVar(&o.save, "save", false, "Store fetched bars and the report in SQLite")
	fs.BoolVar(&o.strict, "strict", false, "Reject the series on the first invalid bar")
	fs.BoolVar(&o.funds, "fundamentals", false, "Attach the company fundamentals summary (needs an FMP API key)")
	fs.IntVar(&o.smaShort, "sma-short", 0, "Short SMA period (0 = config)")
	fs.IntVar(&o.smaLong, "sma-long", 0, "Long SMA period (0 = config)")
	fs.IntVar(&o.rsi, "rsi", 0, "RSI period (0 = config)")
	fs.IntVar(&o.macdFast, "macd-fast", 0, "MACD fast EMA period (0 = config)")
	fs.IntVar(&o.macdSlow, "macd-slow", 0, "MACD slow EMA period (0 = config)")
	fs.IntVar(&o.macdSignal, "macd-signal", 0, "MACD signal period (0 = config)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.symbol = strings.ToUpper(strings.TrimSpace(o.symbol))
	switch {
	case o.symbol == "":
		return o, errors.New("--symbol is required")
	case o.source != "yahoo" && o.source != "sqlite":
		return o, fmt.Errorf("--source must be yahoo or sqlite, got %q", o.source)
	case !marketdata.ValidRange(o.rng):
		return o, fmt.Errorf("--range %q not one of %s", o.rng, strings.Join(marketdata.Ranges, ", "))
	}
	return o, nil
}

// apply overrides cfg with any non-zero period flags.
func (o options) apply(cfg indicator.Config) indicator.Config {
	for _, f := range []struct {
		v   int
		dst *int
	}{
		{o.smaShort, &cfg.SMAShort}, {o.smaLong, &cfg.SMALong}, {o.rsi, &cfg.RSIPeriod},
		{o.macdFast, &cfg.MACDFast}, {o.macdSlow, &cfg.MACDSlow}, {o.macdSignal, &cfg.MACDSignal},
	} {
		if f.v != 0 {
			*f.dst = f.v
		}
	}
	return cfg
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	logger.Init("analyze", logger.ParseLevel(cfg.LogLevel))

	icfg := o.apply(cfg.Indicators)
	if err := icfg.CheckRanges(); err != nil {
		return err
	}
	if o.funds && cfg.FMP.APIKey == "" {
		return errors.New("--fundamentals needs fmp.api_key or FMP_API_KEY")
	}
	dbPath := o.dbPath
	if dbPath == "" {
		dbPath = cfg.SQLite.Path
	}

	var src marketdata.Source
	switch o.source {
	case "sqlite":
		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return err
		}
		defer reader.Close()
		src = reader
	default:
		src = yahoo.New(yahoo.Options{
			BaseURL: cfg.Yahoo.BaseURL,
			Timeout: cfg.Yahoo.Timeout,
			Retries: cfg.Yahoo.Retries,
		})
	}

	ctx = logger.WithRunID(ctx, logger.NewRunID(o.symbol, time.Now()))
	series, err := src.Fetch(ctx, model.FetchRequest{Symbol: o.symbol, Range: o.rng})
	if err != nil {
		return err
	}

	opts := analysis.Options{Thresholds: cfg.Thresholds, Strict: o.strict || cfg.Strict}
	rep, err := analysis.New(opts, nil).Analyze(ctx, o.symbol, series.Points, icfg)
	if err != nil {
		return err
	}

	if o.funds {
		svc := fundamental.NewService(fmp.New(fmp.Options{
			APIKey:  cfg.FMP.APIKey,
			BaseURL: cfg.FMP.BaseURL,
			Timeout: cfg.FMP.Timeout,
			Retries: cfg.Yahoo.Retries,
		}), cfg.Cache.TTL, nil)
		f, err := svc.Fundamentals(ctx, o.symbol)
		if err != nil {
			log.Printf("[analyze] fundamentals %s: %v", o.symbol, err)
			rep.Warnings = append(rep.Warnings, "fundamentals unavailable: "+err.Error())
		} else {
			rep.Fundamentals = f
		}
	}

	if o.save {
		if err := save(ctx, dbPath, cfg.SQLite.KeepReports, series, rep, o.source == "yahoo"); err != nil {
			return err
		}
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	render(out, rep, o.rows)
	return nil
}

func save(ctx context.Context, dbPath string, keep int, series model.PriceSeries, rep *model.Report, withBars bool) error {
	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: dbPath, KeepReports: keep})
	if err != nil {
		return err
	}
	defer w.Close()
	if withBars {
		if err := w.SaveSeries(ctx, series); err != nil {
			return err
		}
	}
	return w.SaveReport(ctx, rep)
}

// render prints the human-readable report.
func render(out io.Writer, rep *model.Report, rows int) {
	fmt.Fprintf(out, "%s  %s  %.2f (%+.2f%%)  %d bars\n",
		rep.Symbol, rep.AsOf.Format("2006-01-02"), rep.Price, rep.ChangePct, rep.Bars)
	fmt.Fprintf(out, "Trend: %s   Volume: %s   Volatility: %s\n\n",
		rep.Trend, rep.Volume.Status, rep.Volatility.Status)

	ind := rep.Indicators
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "DATE\t%s\t%s\t%s\tMACD\tSIGNAL\tHIST\t\n", ind.SMAShort.Name, ind.SMALong.Name, ind.RSI.Name)
	n := ind.SMAShort.Len()
	start := n - rows
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			ind.SMAShort.Points[i].TS.Format("2006-01-02"),
			ind.SMAShort.At(i), ind.SMALong.At(i), ind.RSI.At(i),
			ind.MACD.Line.At(i), ind.MACD.Signal.At(i), ind.MACD.Histogram.At(i))
	}
	tw.Flush()

	fmt.Fprintln(out, "\nSignals:")
	if len(rep.Signals) == 0 {
		fmt.Fprintln(out, "  (none: not enough history)")
	}
	for _, s := range rep.Signals {
		fmt.Fprintf(out, "  [%-8s] %-12s %s\n", s.Category, s.Rule, s.Message)
		if s.Detail != "" {
			fmt.Fprintf(out, "  %23s %s\n", "", s.Detail)
		}
	}

	fmt.Fprintf(out, "\nOutlook: %s (score %+d)\n", rep.Outlook.Rating, rep.Outlook.Score)
	for _, r := range rep.Outlook.Reasons {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if len(rep.Support) > 0 || len(rep.Resistance) > 0 {
		fmt.Fprintf(out, "\nSupport: %v\nResistance: %v\n", rep.Support, rep.Resistance)
	}
	if rep.Fundamentals != nil {
		renderFundamentals(out, rep.Fundamentals)
	}
	for _, w := range rep.Warnings {
		fmt.Fprintf(out, "\nwarning: %s\n", w)
	}
}

func renderFundamentals(out io.Writer, f *model.Fundamentals) {
	fmt.Fprintln(out, "\nFundamentals:")
	if p := f.Profile; p != nil {
		fmt.Fprintf(out, "  %s  %s / %s  cap %s\n", p.CompanyName, p.Sector, p.Industry, p.MarketCapFmt)
	}
	if m := f.Metrics; m != nil {
		fmt.Fprintf(out, "  P/E %s (%s)  P/B %s (%s)  ROE %s (%s)\n",
			m.PE, m.PEBand, m.PB, m.PBBand, m.ROE, m.ROEBand)
		fmt.Fprintf(out, "  D/E %s (%s)  current ratio %s (%s)\n",
			m.DebtToEquity, m.DebtBand, m.CurrentRatio, m.LiquidityBand)
	}
	if r := f.Ratings; r != nil {
		fmt.Fprintf(out, "  Analysts: %s (%d buy / %d hold / %d sell, %.1f%% buy)\n",
			r.Consensus, r.Buy, r.Hold, r.Sell, r.BuyPct)
	}
	if e := f.Earnings; e != nil {
		fmt.Fprintf(out, "  Next earnings: %s  EPS est. %s\n", e.Date, e.EPSEstimated)
	}
	if n := f.News; n != nil {
		for _, a := range n.Articles {
			fmt.Fprintf(out, "  * %s  %s\n", a.Published, a.Title)
		}
	}
}
