package model

import (
	"context"
	"time"
)

// ── Service Port Interfaces ──
// These interfaces decouple the analysis service from concrete collaborators
// (market data source, SQLite history, Redis fan-out). The engine packages
// themselves never touch them — detectors only see a CandleSeries.

// CandleProvider supplies the candle window an analysis runs over.
type CandleProvider interface {
	// Candles returns a validated series for (pair, timeframe) holding up to
	// count candles, oldest first. Implementations must return series that
	// pass NewCandleSeries validation.
	Candles(ctx context.Context, pair, timeframe string, count int) (*CandleSeries, error)
}

// AnalysisRecorder persists completed runs for the history API.
// Implementations are expected to batch writes and must not block callers.
type AnalysisRecorder interface {
	// RecordRun enqueues one run summary.
	RecordRun(run RunRecord)

	// RecordFindings enqueues the flattened findings of a run.
	RecordFindings(rows []FindingRecord)
}

// SnapshotPublisher fans a finished scheduled analysis out to subscribers.
type SnapshotPublisher interface {
	// PublishSnapshot sends the JSON payload for (pair, timeframe).
	PublishSnapshot(ctx context.Context, pair, timeframe string, payload []byte) error
}

// RunRecord summarizes one detector invocation for persistence.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Pair         string    `json:"pair"`
	Timeframe    string    `json:"timeframe"`
	Op           string    `json:"op"`
	RequestedAt  time.Time `json:"requested_at"`
	DurationMS   int64     `json:"duration_ms"`
	FindingCount int       `json:"finding_count"`
	Status       string    `json:"status"` // "ok" | "error"
	Error        string    `json:"error,omitempty"`
}

// FindingRecord is one flattened finding row for history queries.
type FindingRecord struct {
	RunID     string  `json:"run_id"`
	Seq       int     `json:"seq"`
	Kind      string  `json:"kind"`
	Direction string  `json:"direction"`
	PriceHigh float64 `json:"price_high"`
	PriceLow  float64 `json:"price_low"`
	Score     float64 `json:"score"`
	Payload   []byte  `json:"payload"` // full finding JSON
}
