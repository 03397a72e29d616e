package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"stock-analyzer/internal/marketdata"
	"stock-analyzer/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to stored bars and reports. It also
// serves as a marketdata.Source for offline analysis.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadSeries returns bars for symbol with from <= ts <= to, ascending.
// A zero from or to leaves that side open.
func (r *Reader) ReadSeries(ctx context.Context, symbol string, from, to time.Time) (model.PriceSeries, error) {
	lo, hi := int64(-1<<62), int64(1<<62)
	if !from.IsZero() {
		lo = from.Unix()
	}
	if !to.IsZero() {
		hi = to.Unix()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, lo, hi)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	s := model.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var p model.PricePoint
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return model.PriceSeries{}, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		p.TS = time.Unix(tsUnix, 0).UTC()
		s.Points = append(s.Points, p)
	}
	return s, rows.Err()
}

// Fetch implements marketdata.Source over stored bars.
func (r *Reader) Fetch(ctx context.Context, req model.FetchRequest) (model.PriceSeries, error) {
	from, to := req.From, req.To
	if from.IsZero() && req.Range != "" {
		end := to
		if end.IsZero() {
			end = time.Now()
		}
		from = marketdata.RangeStart(end, req.Range)
	}
	s, err := r.ReadSeries(ctx, req.Symbol, from, to)
	if err != nil {
		return model.PriceSeries{}, err
	}
	if len(s.Points) == 0 {
		return model.PriceSeries{}, fmt.Errorf("sqlite %s: %w", req.Symbol, marketdata.ErrNoDataFound)
	}
	return s, nil
}

// LatestReport loads the newest stored report for symbol, or nil if none.
func (r *Reader) LatestReport(ctx context.Context, symbol string) (*model.Report, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `
		SELECT data FROM analysis_reports
		WHERE symbol = ?
		ORDER BY id DESC
		LIMIT 1
	`, symbol).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read report: %w", err)
	}

	var rep model.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
