package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analyzer.
type Metrics struct {
	// Analysis pipeline
	AnalysisDur   prometheus.Histogram
	AnalysesTotal *prometheus.CounterVec // labels: status=ok|error
	SignalsTotal  *prometheus.CounterVec // labels: rule, category
	RejectedBars  prometheus.Counter
	LastRefresh   *prometheus.GaugeVec // labels: symbol

	// Market data
	FetchDur    *prometheus.HistogramVec // labels: source
	FetchErrors *prometheus.CounterVec   // labels: source
	CacheHits   *prometheus.CounterVec   // labels: tier=l1|l2
	CacheMisses prometheus.Counter

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Delivery
	WSClients          prometheus.Gauge
	NotificationsTotal *prometheus.CounterVec // labels: channel
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// means the global default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analyzer_analysis_duration_seconds",
			Help:    "Validate + indicators + classification latency per symbol",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_analyses_total",
			Help: "Analysis runs by outcome",
		}, []string{"status"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_signals_total",
			Help: "Signals emitted by rule and category",
		}, []string{"rule", "category"}),
		RejectedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_rejected_bars_total",
			Help: "Bars dropped by the series validator",
		}),
		LastRefresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "analyzer_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful analysis per symbol",
		}, []string{"symbol"}),

		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyzer_fetch_duration_seconds",
			Help:    "Price series fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_fetch_errors_total",
			Help: "Failed price series fetches",
		}, []string{"source"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_cache_hits_total",
			Help: "Series cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_cache_misses_total",
			Help: "Series cache misses (fetched upstream)",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analyzer_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analyzer_ws_clients",
			Help: "Connected websocket clients",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyzer_notifications_total",
			Help: "Alerts sent by channel",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.AnalysisDur,
		m.AnalysesTotal,
		m.SignalsTotal,
		m.RejectedBars,
		m.LastRefresh,
		m.FetchDur,
		m.FetchErrors,
		m.CacheHits,
		m.CacheMisses,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.WSClients,
		m.NotificationsTotal,
	)

	return m
}

// Handler serves the metrics gathered by g (nil means the default gatherer).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastRefresh    time.Time `json:"last_refresh"`
	Symbols        []string  `json:"symbols"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastRefresh(t time.Time) {
	h.mu.Lock()
	h.LastRefresh = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes the configured dependencies once, then every interval.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// ServeHTTP handles the health endpoint. Only enabled dependencies count
// toward the overall status.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	sqliteDown := h.SQLiteEnabled && !h.SQLiteOK
	if redisDown || sqliteDown {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && sqliteDown {
		overallStatus = "unhealthy"
	}

	refreshAge := ""
	lastRefresh := ""
	if !h.LastRefresh.IsZero() {
		refreshAge = time.Since(h.LastRefresh).Round(time.Second).String()
		lastRefresh = h.LastRefresh.Format(time.RFC3339)
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		LastRefresh     string   `json:"last_refresh"`
		RefreshAge      string   `json:"refresh_age"`
		Symbols         []string `json:"symbols"`
		RedisEnabled    bool     `json:"redis_enabled"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteEnabled   bool     `json:"sqlite_enabled"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastRefresh:     lastRefresh,
		RefreshAge:      refreshAge,
		Symbols:         h.Symbols,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
