// Package gateway exposes analysis over HTTP: REST endpoints for on-demand
// analysis and stored reports, and a WebSocket hub that pushes refreshed
// reports to connected clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stock-analyzer/internal/analysis"
	"stock-analyzer/internal/indicator"
	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/model"
	"stock-analyzer/internal/validate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server holds the collaborators behind the HTTP routes.
type Server struct {
	Analyzer *analysis.Analyzer
	Source   model.SeriesSource
	Reports  model.ReportReader // optional; falls back to the hub's latest
	Hub      *Hub
	Health   http.Handler
	Metrics  http.Handler

	Fundamentals model.FundamentalsSource // optional

	Defaults     indicator.Config
	DefaultRange string
	FetchTimeout time.Duration
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if s.Health != nil {
		mux.Handle("/api/v1/health", s.Health)
	}
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics)
	}
	mux.HandleFunc("/api/v1/analysis", s.handleAnalysis)
	mux.HandleFunc("/api/v1/reports/latest", s.handleLatestReport)
	mux.HandleFunc("/api/v1/missed", s.handleMissed)
	mux.HandleFunc("/api/v1/fundamentals", s.handleFundamentals)
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	defaultRange := s.DefaultRange
	if defaultRange == "" {
		defaultRange = "1y"
	}
	p, err := ParseAnalysisParams(r.URL.Query(), s.Defaults, defaultRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if s.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
		defer cancel()
	}
	series, err := s.Source.Fetch(ctx, model.FetchRequest{Symbol: p.Symbol, Range: p.Range})
	if err != nil {
		writeError(w, statusFor(err, true), err)
		return
	}

	rep, err := s.Analyzer.Analyze(r.Context(), p.Symbol, series.Points, p.Config)
	if err != nil {
		writeError(w, statusFor(err, false), err)
		return
	}
	if !p.Indicators {
		rep.Indicators = model.Indicators{}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	symbol := normSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}

	if s.Reports != nil {
		rep, err := s.Reports.LatestReport(r.Context(), symbol)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if rep != nil {
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}
	if s.Hub != nil {
		if env, ok := s.Hub.LatestEnvelope(symbol); ok {
			var e struct {
				Data json.RawMessage `json:"data"`
			}
			if json.Unmarshal(env, &e) == nil {
				SetCORS(w)
				w.Header().Set("Content-Type", "application/json")
				w.Write(e.Data)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, errors.New("no report for "+symbol))
}

func (s *Server) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	symbol := normSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}
	if s.Fundamentals == nil {
		writeError(w, http.StatusNotFound, errors.New("fundamentals not configured"))
		return
	}

	ctx := r.Context()
	if s.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
		defer cancel()
	}
	f, err := s.Fundamentals.Fundamentals(ctx, symbol)
	if err != nil {
		writeError(w, statusFor(err, true), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleMissed serves buffered envelopes so clients can backfill a gap in
// channel_seq: /api/v1/missed?symbol=AAPL&from=3&to=7
func (s *Server) handleMissed(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	q := r.URL.Query()
	symbol := normSymbol(q.Get("symbol"))
	from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
	to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
	if symbol == "" || errFrom != nil || errTo != nil || from > to {
		writeError(w, http.StatusBadRequest, errors.New("symbol, from and to (from <= to) are required"))
		return
	}

	envs := s.Hub.ReplayRange(symbol, from, to)
	out := make([]json.RawMessage, len(envs))
	for i, e := range envs {
		out[i] = e
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":      symbol,
		"channel_seq": s.Hub.ChannelSeq(symbol),
		"envelopes":   out,
	})
}

// handleWS upgrades to WebSocket. Optional query: symbols=AAPL,MSFT and
// last_ts (RFC3339) to skip state the client already has.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	if raw := q.Get("last_ts"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			since = t
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	conn.EnableWriteCompression(true)
	s.Hub.HandleConn(conn, splitSymbols(q.Get("symbols")), since)
}

// statusFor maps pipeline errors onto HTTP status codes. fetching selects
// 502 rather than 500 for unclassified errors.
func statusFor(err error, fetching bool) int {
	switch {
	case errors.Is(err, indicator.ErrOutOfRange), errors.Is(err, indicator.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrNoDataFound):
		return http.StatusNotFound
	case errors.Is(err, validate.ErrEmptySeries), errors.Is(err, validate.ErrInvalidPoint):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case fetching:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	SetCORS(w)
	switch r.Method {
	case http.MethodGet:
		return true
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if sym := normSymbol(part); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
