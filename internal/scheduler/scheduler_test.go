package scheduler

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"smc-enginev1/config"
	"smc-enginev1/internal/detect"
	"smc-enginev1/internal/marketdata"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/notification"
)

type fakeRecorder struct {
	mu   sync.Mutex
	runs []model.RunRecord
	rows []model.FindingRecord
}

func (r *fakeRecorder) RecordRun(run model.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *fakeRecorder) RecordFindings(rows []model.FindingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	channels []string
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, pair, timeframe string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, pair+":"+timeframe)
	p.payloads = append(p.payloads, payload)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
}

func (n *fakeNotifier) Send(_ context.Context, alert notification.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func testWatchlist() *config.Watchlist {
	return &config.Watchlist{Entries: []config.WatchEntry{
		{Pair: "EUR/USD", Timeframe: "15m", Count: 300, Schedule: "@every 1h"},
	}}
}

func TestNewRejectsUnknownOp(t *testing.T) {
	wl := testWatchlist()
	wl.Entries[0].Ops = []string{"detect_bos", "detect_nothing"}

	_, err := New(wl, marketdata.NewSynthetic(), nil, nil, nil, nil, nil, 0.7)
	if err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	wl := testWatchlist()
	wl.Entries[0].Schedule = "not a cron spec"

	_, err := New(wl, marketdata.NewSynthetic(), nil, nil, nil, nil, nil, 0.7)
	if err == nil {
		t.Fatal("expected error for bad schedule")
	}
}

func TestAnalyzeRecordsAndPublishes(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	wl := testWatchlist()

	s, err := New(wl, marketdata.NewSynthetic(), rec, pub, nil, nil, nil, 0.7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	entry := wl.Entries[0]
	if err := s.analyze(context.Background(), entry, detect.Defaults()); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.runs) == 0 {
		t.Fatal("no runs recorded")
	}
	runID := rec.runs[0].RunID
	for _, run := range rec.runs {
		if run.RunID != runID {
			t.Errorf("run IDs differ within one analysis: %s vs %s", run.RunID, runID)
		}
		if run.Status != "ok" {
			t.Errorf("run %s status = %q", run.Op, run.Status)
		}
	}
	for i, row := range rec.rows {
		if row.Seq != i {
			t.Fatalf("rows[%d].Seq = %d", i, row.Seq)
		}
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.payloads) != 1 {
		t.Fatalf("published %d snapshots, want 1", len(pub.payloads))
	}
	if pub.channels[0] != "EUR/USD:15m" {
		t.Errorf("published to %q", pub.channels[0])
	}
	var snap Snapshot
	if err := json.Unmarshal(pub.payloads[0], &snap); err != nil {
		t.Fatalf("snapshot payload: %v", err)
	}
	if snap.RunID != runID || snap.Pair != "EUR/USD" || snap.Candles != 300 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Results) == 0 {
		t.Error("snapshot has no results")
	}
}

func TestAnalyzePersistsRowsInStableOrder(t *testing.T) {
	wl := testWatchlist()
	entry := wl.Entries[0]

	rowKinds := func(t *testing.T) []string {
		t.Helper()
		rec := &fakeRecorder{}
		s, err := New(wl, marketdata.NewSynthetic(), rec, nil, nil, nil, nil, 0.7)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.analyze(context.Background(), entry, detect.Defaults()); err != nil {
			t.Fatalf("analyze: %v", err)
		}
		rec.mu.Lock()
		defer rec.mu.Unlock()
		kinds := make([]string, len(rec.rows))
		for i, r := range rec.rows {
			kinds[i] = r.Kind
		}
		return kinds
	}

	first := rowKinds(t)
	second := rowKinds(t)
	if len(first) == 0 {
		t.Fatal("no finding rows persisted")
	}
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("row %d kind differs across identical runs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestAnalyzeSubsetOfOps(t *testing.T) {
	rec := &fakeRecorder{}
	wl := testWatchlist()
	wl.Entries[0].Ops = []string{"detect_bos", "identify_order_blocks"}

	s, err := New(wl, marketdata.NewSynthetic(), rec, nil, nil, nil, nil, 0.7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.analyze(context.Background(), wl.Entries[0], detect.Defaults()); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(rec.runs))
	}
	ops := map[string]bool{}
	for _, run := range rec.runs {
		ops[run.Op] = true
	}
	if !ops["detect_bos"] || !ops["identify_order_blocks"] {
		t.Errorf("recorded ops = %v", ops)
	}
}

func TestMaybeAlertThreshold(t *testing.T) {
	n := &fakeNotifier{}
	s := &Scheduler{notifier: n, threshold: 0.7}
	entry := config.WatchEntry{Pair: "EUR/USD", Timeframe: "15m"}

	weak := map[string]any{
		"identify_confluences": []model.Confluence{{Score: 0.4, PriceLevel: 1.08}},
	}
	s.maybeAlert(context.Background(), entry, weak)
	if len(n.alerts) != 0 {
		t.Fatalf("alerted on weak confluence: %+v", n.alerts)
	}

	strong := map[string]any{
		"identify_confluences": []model.Confluence{
			{Score: 0.75, PriceLevel: 1.08, Direction: model.Bullish, SetupType: "reversal"},
			{Score: 0.92, PriceLevel: 1.09, Direction: model.Bearish, SetupType: "continuation"},
		},
	}
	s.maybeAlert(context.Background(), entry, strong)
	if len(n.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(n.alerts))
	}
	got := n.alerts[0]
	if got.Level != notification.AlertStrong {
		t.Errorf("level = %s, want STRONG for score >= 0.9", got.Level)
	}
	if got.Pair != "EUR/USD" || got.Timeframe != "15m" {
		t.Errorf("alert identity = %s %s", got.Pair, got.Timeframe)
	}
	if got.Score != 0.92 || got.Setup != "continuation" || got.Direction != "bearish" {
		t.Errorf("alert carries wrong finding: %+v", got)
	}
}

func TestEntryParamsOverrides(t *testing.T) {
	defaults := detect.Defaults()

	p, err := entryParams(config.WatchEntry{})
	if err != nil {
		t.Fatalf("entryParams: %v", err)
	}
	if p.SwingWindow != defaults.SwingWindow {
		t.Errorf("no overrides should keep defaults, got window %d", p.SwingWindow)
	}

	p, err = entryParams(config.WatchEntry{Params: map[string]any{
		"swing_window": 3,
		"soup_rr":      2.0,
	}})
	if err != nil {
		t.Fatalf("entryParams with overrides: %v", err)
	}
	if p.SwingWindow != 3 {
		t.Errorf("swing_window = %d, want 3", p.SwingWindow)
	}
	if p.SoupRR != 2.0 {
		t.Errorf("soup_rr = %g, want 2", p.SoupRR)
	}
	if p.ATRPeriod != defaults.ATRPeriod {
		t.Errorf("untouched param changed: atr_period = %d", p.ATRPeriod)
	}

	if _, err := entryParams(config.WatchEntry{Params: map[string]any{
		"swing_window": 99,
	}}); err == nil {
		t.Error("expected out-of-range override to fail")
	}
}

func TestStrongestConfluencePicksMax(t *testing.T) {
	results := map[string]any{
		"identify_confluences": []model.Confluence{
			{Score: 0.3}, {Score: 0.8}, {Score: 0.5},
		},
	}
	best, ok := strongestConfluence(results)
	if !ok {
		t.Fatal("expected a confluence")
	}
	if math.Abs(best.Score-0.8) > 1e-12 {
		t.Errorf("best score = %g", best.Score)
	}

	if _, ok := strongestConfluence(map[string]any{}); ok {
		t.Error("expected no confluence for empty results")
	}
}

func TestStartStop(t *testing.T) {
	wl := testWatchlist()
	s, err := New(wl, marketdata.NewSynthetic(), nil, nil, nil, nil, nil, 0.7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	done := make(chan struct{})
	go func() { s.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
