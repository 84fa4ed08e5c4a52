// Package scheduler runs the watchlist analyses on cron schedules and fans
// the resulting snapshots out to subscribers and alert channels.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"smc-enginev1/config"
	"smc-enginev1/internal/detect"
	"smc-enginev1/internal/logger"
	"smc-enginev1/internal/metrics"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/notification"
)

const jobTimeout = 30 * time.Second

// Snapshot is the payload published after each scheduled run.
type Snapshot struct {
	RunID       string         `json:"run_id"`
	Pair        string         `json:"pair"`
	Timeframe   string         `json:"timeframe"`
	Candles     int            `json:"candles"`
	GeneratedAt time.Time      `json:"generated_at"`
	Results     map[string]any `json:"results"`
}

// Scheduler drives periodic analyses over the configured watchlist.
type Scheduler struct {
	cron      *cron.Cron
	provider  model.CandleProvider
	recorder  model.AnalysisRecorder
	publisher model.SnapshotPublisher
	notifier  notification.Notifier
	metrics   *metrics.Metrics
	health    *metrics.HealthStatus
	threshold float64
}

// New builds a scheduler over the watchlist. Recorder, publisher, notifier,
// metrics, and health may each be nil; the corresponding side effect is
// skipped. Unknown op names in the watchlist fail construction.
func New(
	wl *config.Watchlist,
	provider model.CandleProvider,
	recorder model.AnalysisRecorder,
	publisher model.SnapshotPublisher,
	notifier notification.Notifier,
	m *metrics.Metrics,
	health *metrics.HealthStatus,
	alertThreshold float64,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		provider:  provider,
		recorder:  recorder,
		publisher: publisher,
		notifier:  notifier,
		metrics:   m,
		health:    health,
		threshold: alertThreshold,
	}

	for _, e := range wl.Entries {
		for _, op := range e.Ops {
			if !detect.Known(op) {
				return nil, fmt.Errorf("%w: %s (watchlist %s %s)", model.ErrUnknownOp, op, e.Pair, e.Timeframe)
			}
		}
		params, err := entryParams(e)
		if err != nil {
			return nil, fmt.Errorf("watchlist %s %s: %w", e.Pair, e.Timeframe, err)
		}
		entry := e
		if _, err := s.cron.AddFunc(entry.Schedule, func() { s.runEntry(entry, params) }); err != nil {
			return nil, fmt.Errorf("schedule %q for %s %s: %w", entry.Schedule, entry.Pair, entry.Timeframe, err)
		}
	}
	return s, nil
}

// entryParams applies a watchlist entry's overrides on top of the defaults.
// Override keys use the same json names as the REST API.
func entryParams(e config.WatchEntry) (detect.Params, error) {
	p := detect.Defaults()
	if len(e.Params) == 0 {
		return p, nil
	}
	raw, err := json.Marshal(e.Params)
	if err != nil {
		return p, fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("apply params: %w", err)
	}
	return p.Normalize()
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.health != nil {
		s.health.SetSchedulerOK(true)
	}
	log.Printf("[scheduler] started, %d jobs", len(s.cron.Entries()))
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.health != nil {
		s.health.SetSchedulerOK(false)
	}
	log.Println("[scheduler] stopped")
}

func (s *Scheduler) runEntry(e config.WatchEntry, params detect.Params) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.analyze(ctx, e, params); err != nil {
		log.Printf("[scheduler] %s %s: %v", e.Pair, e.Timeframe, err)
	}
}

// analyze performs one full watchlist run: fetch, detect, record, publish,
// and alert when a strong confluence shows up.
func (s *Scheduler) analyze(ctx context.Context, e config.WatchEntry, params detect.Params) error {
	series, err := s.provider.Candles(ctx, e.Pair, e.Timeframe, e.Count)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	runID := uuid.NewString()
	requestedAt := time.Now().UTC()
	ctx = logger.WithTraceID(ctx, runID)

	results, timings, err := detect.RunManyTimed(e.Ops, series, params)
	if err != nil {
		if s.recorder != nil {
			s.recorder.RecordRun(model.RunRecord{
				RunID:       runID,
				Pair:        e.Pair,
				Timeframe:   e.Timeframe,
				Op:          "scheduled",
				RequestedAt: requestedAt,
				Status:      "error",
				Error:       err.Error(),
			})
		}
		return fmt.Errorf("run ops: %w", err)
	}

	s.record(runID, e, requestedAt, results, timings)

	if s.metrics != nil {
		s.metrics.ScheduledRuns.Inc()
	}
	if s.health != nil {
		s.health.SetLastAnalysisAt(time.Now().UTC())
	}

	if s.publisher != nil {
		snap := Snapshot{
			RunID:       runID,
			Pair:        e.Pair,
			Timeframe:   e.Timeframe,
			Candles:     series.Len(),
			GeneratedAt: requestedAt,
			Results:     results,
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		if err := s.publisher.PublishSnapshot(ctx, e.Pair, e.Timeframe, payload); err != nil {
			log.Printf("[scheduler] publish %s %s: %v", e.Pair, e.Timeframe, err)
		} else if s.metrics != nil {
			s.metrics.SnapshotsPublished.Inc()
		}
	}

	s.maybeAlert(ctx, e, results)

	slog.Info("scheduled analysis complete", append([]any{
		slog.String("pair", e.Pair),
		slog.String("timeframe", e.Timeframe),
		slog.Int("candles", series.Len()),
		slog.Int("ops", len(results)),
	}, logger.LogWithTrace(ctx)...)...)
	return nil
}

func (s *Scheduler) record(runID string, e config.WatchEntry, requestedAt time.Time, results map[string]any, timings map[string]time.Duration) {
	if s.recorder == nil {
		return
	}

	var all []model.FindingRecord
	// registry order, so identical runs persist identical row sequences
	for _, op := range detect.List() {
		result, ok := results[op]
		if !ok {
			continue
		}
		rows := detect.Flatten(runID, result)
		s.recorder.RecordRun(model.RunRecord{
			RunID:        runID,
			Pair:         e.Pair,
			Timeframe:    e.Timeframe,
			Op:           op,
			RequestedAt:  requestedAt,
			DurationMS:   timings[op].Milliseconds(),
			FindingCount: len(rows),
			Status:       "ok",
		})
		if s.metrics != nil {
			s.metrics.ObserveOp(op, timings[op], len(rows), nil)
		}
		all = append(all, rows...)
	}
	for i := range all {
		all[i].Seq = i
	}
	if len(all) > 0 {
		s.recorder.RecordFindings(all)
	}
}

// maybeAlert sends a notification when the strongest confluence in the run
// clears the configured threshold.
func (s *Scheduler) maybeAlert(ctx context.Context, e config.WatchEntry, results map[string]any) {
	if s.notifier == nil {
		return
	}
	best, ok := strongestConfluence(results)
	if !ok || best.Score < s.threshold {
		return
	}

	alert := notification.Alert{
		Level:     notification.AlertInfo,
		Pair:      e.Pair,
		Timeframe: e.Timeframe,
		Setup:     best.SetupType,
		Direction: string(best.Direction),
		Price:     best.PriceLevel,
		Score:     best.Score,
		Factors:   len(best.Factors),
	}
	if best.Score >= 0.9 {
		alert.Level = notification.AlertStrong
	}
	s.trySend(ctx, alert)
}

func (s *Scheduler) trySend(ctx context.Context, alert notification.Alert) {
	if err := s.notifier.Send(ctx, alert); err != nil {
		log.Printf("[scheduler] notify: %v", err)
	}
}

func strongestConfluence(results map[string]any) (model.Confluence, bool) {
	raw, ok := results[detect.OpConfluences]
	if !ok {
		return model.Confluence{}, false
	}
	confluences, ok := raw.([]model.Confluence)
	if !ok || len(confluences) == 0 {
		return model.Confluence{}, false
	}
	best := confluences[0]
	for _, c := range confluences[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
