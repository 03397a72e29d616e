// cmd/server runs the long-lived analyzer: a cron refresh of the watchlist,
// the REST/WebSocket gateway, Prometheus metrics and health.
//
// Usage:
//
//	go run ./cmd/server --config=config.yaml
//	STOCK_SYMBOLS=AAPL,MSFT REDIS_ADDR=localhost:6379 go run ./cmd/server
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"stock-analyzer/config"
	"stock-analyzer/internal/analysis"
	"stock-analyzer/internal/fundamental"
	"stock-analyzer/internal/gateway"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/marketdata/cache"
	"stock-analyzer/internal/marketdata/calendar"
	"stock-analyzer/internal/marketdata/fmp"
	"stock-analyzer/internal/marketdata/yahoo"
	"stock-analyzer/internal/metrics"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/notification"
	"stock-analyzer/internal/scheduler"
	redisstore "stock-analyzer/internal/store/redis"
	sqlitestore "stock-analyzer/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config (optional)")
	runOnStart := flag.Bool("run-on-start", true, "Refresh every symbol once at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] invalid config: %v", err)
	}
	logger.Init("stock-analyzer", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting", slog.Any("symbols", cfg.Symbols), slog.String("cron", cfg.Cron))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Symbols)

	// ── Storage ──
	var (
		writer *sqlitestore.Writer
		reader *sqlitestore.Reader
	)
	if cfg.SQLite.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			log.Fatalf("[server] sqlite dir: %v", err)
		}
		writer, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLite.Path, KeepReports: cfg.SQLite.KeepReports})
		if err != nil {
			log.Fatalf("[server] sqlite: %v", err)
		}
		defer writer.Close()
		reader, err = sqlitestore.NewReader(cfg.SQLite.Path)
		if err != nil {
			log.Fatalf("[server] sqlite reader: %v", err)
		}
		defer reader.Close()
	}

	var (
		rdb       *goredis.Client
		remote    cache.Remote
		publisher *redisstore.Publisher
	)
	if cfg.Redis.Addr != "" {
		rdb, err = redisstore.Connect(redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			slog.Warn("redis unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			defer rdb.Close()
			cb := redisstore.NewBreaker(m)
			remote = redisstore.NewSeriesCache(rdb, cb)
			publisher = redisstore.NewPublisher(rdb, cb, 0)
		}
	}

	// ── Market data ──
	upstream := marketdata.Instrument("yahoo", yahoo.New(yahoo.Options{
		BaseURL: cfg.Yahoo.BaseURL,
		Timeout: cfg.Yahoo.Timeout,
		Retries: cfg.Yahoo.Retries,
	}), m)
	src := cache.New(upstream, remote, cfg.Cache.TTL, m)

	// ── Pipeline ──
	analyzer := analysis.New(analysis.Options{Thresholds: cfg.Thresholds, Strict: cfg.Strict}, m)
	hub := gateway.NewHub(m)

	alerts := notification.NewDispatcher(m).Add("log", notification.NewLogNotifier())
	if cfg.WebhookURL != "" {
		alerts.Add("webhook", notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		alerts.Add("telegram", notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}

	deps := scheduler.Deps{
		Source:   src,
		Analyzer: analyzer,
		Planner:  calendar.Planner{Slack: 5},
		Notify:   alerts,
		Health:   health,
		Metrics:  m,
	}
	var reports model.ReportReader
	if writer != nil {
		deps.Series = writer
		deps.Reports = writer
		reports = reader
	}
	if publisher != nil {
		// Reports reach the hub through Redis so every instance sees them.
		deps.Publisher = publisher
		if reports == nil {
			reports = publisher
		}
		go hub.Relay(ctx, publisher)
	} else {
		deps.Broadcast = hub
	}

	sched := scheduler.New(ctx, deps, scheduler.Options{
		Symbols:     cfg.Symbols,
		HistoryBars: cfg.HistoryBars,
		Indicators:  cfg.Indicators,
		SkipClosed:  true,
	})
	if err := sched.Register(cfg.Cron); err != nil {
		log.Fatalf("[server] %v", err)
	}
	sched.Start()
	if *runOnStart {
		go sched.RunOnce(ctx)
	}

	// ── HTTP ──
	health.StartLivenessChecker(ctx, rdb, dbOf(writer), 15*time.Second)

	api := &gateway.Server{
		Analyzer:     analyzer,
		Source:       src,
		Reports:      reports,
		Hub:          hub,
		Health:       health,
		Metrics:      metrics.Handler(prometheus.DefaultGatherer),
		Defaults:     cfg.Indicators,
		DefaultRange: "1y",
		FetchTimeout: 3 * cfg.Yahoo.Timeout,
	}
	if cfg.FMP.APIKey != "" {
		api.Fundamentals = fundamental.NewService(fmp.New(fmp.Options{
			APIKey:  cfg.FMP.APIKey,
			BaseURL: cfg.FMP.BaseURL,
			Timeout: cfg.FMP.Timeout,
			Retries: cfg.Yahoo.Retries,
		}), cfg.Cache.TTL, m)
	} else {
		slog.Info("fundamentals disabled: no FMP API key")
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	sched.Stop()
	hub.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", slog.String("error", err.Error()))
	}
}

func dbOf(w *sqlitestore.Writer) *sql.DB {
	if w == nil {
		return nil
	}
	return w.DB()
}
