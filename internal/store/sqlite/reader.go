package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"smc-enginev1/internal/model"
)

// Reader provides read-only access for the history API.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// History returns the most recent runs for (pair, timeframe), newest first.
// Empty pair or timeframe matches everything.
func (r *Reader) History(pair, timeframe string, limit int) ([]model.RunRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT run_id, pair, timeframe, op, requested_at, duration_ms, finding_count, status, COALESCE(error, '')
		FROM analysis_runs
		WHERE (? = '' OR pair = ?) AND (? = '' OR timeframe = ?)
		ORDER BY requested_at DESC, run_id, op
		LIMIT ?
	`, pair, pair, timeframe, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var run model.RunRecord
		var requestedMS int64
		if err := rows.Scan(&run.RunID, &run.Pair, &run.Timeframe, &run.Op,
			&requestedMS, &run.DurationMS, &run.FindingCount, &run.Status, &run.Error); err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		run.RequestedAt = time.UnixMilli(requestedMS).UTC()
		out = append(out, run)
	}
	return out, rows.Err()
}

// Findings returns the stored findings of one run in sequence order.
func (r *Reader) Findings(runID string) ([]model.FindingRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, seq, kind, COALESCE(direction, ''), price_high, price_low, score, payload
		FROM findings
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query findings: %w", err)
	}
	defer rows.Close()

	var out []model.FindingRecord
	for rows.Next() {
		var row model.FindingRecord
		var payload string
		if err := rows.Scan(&row.RunID, &row.Seq, &row.Kind, &row.Direction,
			&row.PriceHigh, &row.PriceLow, &row.Score, &payload); err != nil {
			return nil, fmt.Errorf("sqlite scan finding: %w", err)
		}
		row.Payload = []byte(payload)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
