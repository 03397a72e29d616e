package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stock-analyzer/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const defaultKeepReports = 30

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/analyzer.db"
	// KeepReports is how many reports to retain per symbol (default 30).
	KeepReports int
}

// Writer is the single-connection SQLite writer for bars and reports.
type Writer struct {
	db   *sql.DB
	keep int
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a Writer, opening the database in WAL mode and creating the schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	keep := cfg.KeepReports
	if keep <= 0 {
		keep = defaultKeepReports
	}
	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, keep: keep}, nil
}

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS analysis_reports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol       TEXT    NOT NULL,
			as_of        INTEGER NOT NULL,
			generated_at INTEGER NOT NULL,
			rating       TEXT    NOT NULL,
			data         TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_symbol ON analysis_reports (symbol, id);
	`)
	return err
}

// SaveSeries upserts every bar of s in one transaction. Bars with a
// non-finite price are skipped; the price columns are NOT NULL.
func (w *Writer) SaveSeries(ctx context.Context, s model.PriceSeries) error {
	s, skipped := s.FiniteOnly()
	if skipped > 0 {
		log.Printf("[sqlite] skipping %d non-finite bar(s) for %s", skipped, s.Symbol)
	}
	if len(s.Points) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range s.Points {
		if _, err := stmt.ExecContext(ctx, s.Symbol, p.TS.Unix(), p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s@%s: %w", s.Symbol, p.TS.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] committed %d bars for %s in %v", len(s.Points), s.Symbol, time.Since(start))
	return nil
}

// SaveReport stores r and prunes the symbol's history to the newest KeepReports.
func (w *Writer) SaveReport(ctx context.Context, r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analysis_reports (symbol, as_of, generated_at, rating, data)
		VALUES (?, ?, ?, ?, ?)
	`, r.Symbol, r.AsOf.Unix(), r.GeneratedAt.Unix(), string(r.Outlook.Rating), string(data)); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM analysis_reports
		WHERE symbol = ? AND id NOT IN (
			SELECT id FROM analysis_reports WHERE symbol = ? ORDER BY id DESC LIMIT ?
		)
	`, r.Symbol, r.Symbol, w.keep); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prune reports: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
