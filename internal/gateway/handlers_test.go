package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"smc-enginev1/internal/detect"
	"smc-enginev1/internal/marketdata"
	"smc-enginev1/internal/model"
)

type captureRecorder struct {
	runs     []model.RunRecord
	findings []model.FindingRecord
}

func (c *captureRecorder) RecordRun(run model.RunRecord) { c.runs = append(c.runs, run) }
func (c *captureRecorder) RecordFindings(rows []model.FindingRecord) {
	c.findings = append(c.findings, rows...)
}

func newTestServer(rec model.AnalysisRecorder) *Server {
	return NewServer(":0", Deps{
		Provider: marketdata.NewSynthetic(),
		Recorder: rec,
		Hub:      NewHub(nil),
	})
}

func postAnalyze(t *testing.T, srv *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndToEnd(t *testing.T) {
	rec := &captureRecorder{}
	srv := newTestServer(rec)

	w := postAnalyze(t, srv, AnalyzeRequest{
		Pair:      "EUR/USD",
		Timeframe: "15m",
		Count:     200,
		Ops:       []string{detect.OpBOS, detect.OpOrderBlocks},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID == "" || resp.Candles != 200 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if _, ok := resp.Results[detect.OpBOS]; !ok {
		t.Error("detect_bos missing from results")
	}

	if len(rec.runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(rec.runs))
	}
	for _, run := range rec.runs {
		if run.RunID != resp.RunID || run.Status != "ok" {
			t.Errorf("run = %+v", run)
		}
	}
	// findings are re-sequenced across ops
	for i, row := range rec.findings {
		if row.Seq != i {
			t.Errorf("finding %d has seq %d", i, row.Seq)
		}
	}
}

func TestAnalyzeUnknownOpIs404(t *testing.T) {
	srv := newTestServer(nil)
	w := postAnalyze(t, srv, AnalyzeRequest{
		Pair: "EUR/USD", Timeframe: "15m", Ops: []string{"detect_unicorns"},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeBadParamIs400(t *testing.T) {
	srv := newTestServer(nil)
	w := postAnalyze(t, srv, AnalyzeRequest{
		Pair: "EUR/USD", Timeframe: "15m",
		Params: detect.Params{SwingWindow: 99},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeBadTimeframeIs400(t *testing.T) {
	srv := newTestServer(nil)
	w := postAnalyze(t, srv, AnalyzeRequest{Pair: "EUR/USD", Timeframe: "7m"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeMissingFields(t *testing.T) {
	srv := newTestServer(nil)
	w := postAnalyze(t, srv, AnalyzeRequest{Timeframe: "15m"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOpsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/ops", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp OpsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Ops) != len(detect.List()) {
		t.Errorf("got %d ops, want %d", len(resp.Ops), len(detect.List()))
	}
	if resp.DefaultParams.SwingWindow != detect.Defaults().SwingWindow {
		t.Errorf("default params missing: %+v", resp.DefaultParams)
	}
}

func TestCandlesEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/candles?pair=EUR/USD&timeframe=1h&count=50", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var s model.CandleSeries
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Len() != 50 || s.Pair != "EUR/USD" {
		t.Errorf("series = %s len %d", s.Key(), s.Len())
	}
}

func TestServerStops(t *testing.T) {
	srv := newTestServer(nil)
	srv.Start()
	srv.Stop(context.Background())
}
