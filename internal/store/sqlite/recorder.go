// Package sqlite persists analysis runs and their findings for the history
// API. Writes are enqueued on channels and committed by a single goroutine
// in batched transactions, so the analysis path never blocks on disk.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"smc-enginev1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	// queue capacities; RecordRun/RecordFindings drop with a log line when
	// full rather than stall an analysis
	runQueueSize     = 1024
	findingQueueSize = 256
)

// Config configures the recorder.
type Config struct {
	DBPath string // e.g. "data/smc.db"
}

// Recorder is the single-writer SQLite store behind model.AnalysisRecorder.
type Recorder struct {
	db     *sql.DB
	runCh  chan model.RunRecord
	rowsCh chan []model.FindingRecord
}

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Recorder, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Recorder{
		db:     db,
		runCh:  make(chan model.RunRecord, runQueueSize),
		rowsCh: make(chan []model.FindingRecord, findingQueueSize),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id        TEXT    NOT NULL,
			pair          TEXT    NOT NULL,
			timeframe     TEXT    NOT NULL,
			op            TEXT    NOT NULL,
			requested_at  INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL,
			finding_count INTEGER NOT NULL,
			status        TEXT    NOT NULL,
			error         TEXT,
			PRIMARY KEY (run_id, op)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_pair_tf_ts
			ON analysis_runs (pair, timeframe, requested_at DESC);

		CREATE TABLE IF NOT EXISTS findings (
			run_id     TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			kind       TEXT    NOT NULL,
			direction  TEXT,
			price_high REAL    NOT NULL,
			price_low  REAL    NOT NULL,
			score      REAL    NOT NULL,
			payload    TEXT    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`)
	return err
}

// DB exposes the handle for health checks.
func (r *Recorder) DB() *sql.DB { return r.db }

// RecordRun implements model.AnalysisRecorder. Never blocks.
func (r *Recorder) RecordRun(run model.RunRecord) {
	select {
	case r.runCh <- run:
	default:
		log.Printf("[sqlite] run queue full, dropping run %s/%s", run.RunID, run.Op)
	}
}

// RecordFindings implements model.AnalysisRecorder. Never blocks.
func (r *Recorder) RecordFindings(rows []model.FindingRecord) {
	if len(rows) == 0 {
		return
	}
	select {
	case r.rowsCh <- rows:
	default:
		log.Printf("[sqlite] finding queue full, dropping %d rows", len(rows))
	}
}

// Run drains the queues into batched transactions. Flushes every batchSize
// records or every flushDelay, whichever comes first. Blocks until ctx is
// cancelled; pending batches are flushed on the way out.
func (r *Recorder) Run(ctx context.Context) {
	runs := make([]model.RunRecord, 0, defaultBatchSize)
	rows := make([]model.FindingRecord, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(runs) > 0 {
			if err := r.insertRuns(runs); err != nil {
				log.Printf("[sqlite] run batch insert error: %v", err)
			}
			runs = runs[:0]
		}
		if len(rows) > 0 {
			if err := r.insertFindings(rows); err != nil {
				log.Printf("[sqlite] finding batch insert error: %v", err)
			}
			rows = rows[:0]
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case run := <-r.runCh:
			runs = append(runs, run)
			if len(runs) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case batch := <-r.rowsCh:
			rows = append(rows, batch...)
			if len(rows) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (r *Recorder) insertRuns(runs []model.RunRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO analysis_runs
			(run_id, pair, timeframe, op, requested_at, duration_ms, finding_count, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, run := range runs {
		_, err := stmt.Exec(run.RunID, run.Pair, run.Timeframe, run.Op,
			run.RequestedAt.UnixMilli(), run.DurationMS, run.FindingCount, run.Status, run.Error)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Recorder) insertFindings(rows []model.FindingRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO findings
			(run_id, seq, kind, direction, price_high, price_low, score, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.Exec(row.RunID, row.Seq, row.Kind, row.Direction,
			row.PriceHigh, row.PriceLow, row.Score, string(row.Payload))
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
