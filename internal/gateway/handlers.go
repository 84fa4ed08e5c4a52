package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smc-enginev1/internal/detect"
	"smc-enginev1/internal/logger"
	"smc-enginev1/internal/metrics"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/store/sqlite"
)

const (
	defaultCandleCount = 300
	maxCandleCount     = 1000
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Deps wires the gateway to its collaborators. Recorder and History may be
// nil (recording disabled); Metrics and Health may be nil in tests.
type Deps struct {
	Provider model.CandleProvider
	Recorder model.AnalysisRecorder
	History  *sqlite.Reader
	Hub      *Hub
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
}

// Server is the REST + WebSocket front of the engine.
type Server struct {
	deps Deps
	srv  *http.Server
}

// NewServer builds the route table and returns an unstarted server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/ops", s.handleOps)
	mux.HandleFunc("/api/candles", s.handleCandles)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	if deps.Health != nil {
		mux.Handle("/healthz", deps.Health)
	}

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[gateway] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Pair == "" || req.Timeframe == "" {
		writeError(w, http.StatusBadRequest, "pair and timeframe are required")
		return
	}
	count := req.Count
	if count <= 0 {
		count = defaultCandleCount
	}
	if count > maxCandleCount {
		writeError(w, http.StatusBadRequest, "count above "+strconv.Itoa(maxCandleCount))
		return
	}

	series, err := s.deps.Provider.Candles(r.Context(), req.Pair, req.Timeframe, count)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	runID := uuid.NewString()
	requestedAt := time.Now().UTC()
	ctx := logger.WithTraceID(r.Context(), runID)
	results, durs, err := detect.RunManyTimed(req.Ops, series, req.Params)
	if err != nil {
		slog.Warn("analysis failed", append([]any{
			slog.String("pair", req.Pair),
			slog.String("timeframe", req.Timeframe),
			slog.String("error", err.Error()),
		}, logger.LogWithTrace(ctx)...)...)
		if s.deps.Recorder != nil {
			s.deps.Recorder.RecordRun(model.RunRecord{
				RunID: runID, Pair: req.Pair, Timeframe: req.Timeframe,
				Op: "batch", RequestedAt: requestedAt, Status: "error", Error: err.Error(),
			})
		}
		writeEngineError(w, err)
		return
	}

	s.record(runID, req.Pair, req.Timeframe, requestedAt, results, durs)
	if s.deps.Metrics != nil {
		s.deps.Metrics.AnalysesTotal.Inc()
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastAnalysisAt(requestedAt)
	}
	slog.Info("analysis complete", append([]any{
		slog.String("pair", req.Pair),
		slog.String("timeframe", req.Timeframe),
		slog.Int("candles", series.Len()),
		slog.Int("ops", len(results)),
	}, logger.LogWithTrace(ctx)...)...)

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		RunID:       runID,
		Pair:        req.Pair,
		Timeframe:   req.Timeframe,
		Candles:     series.Len(),
		GeneratedAt: requestedAt,
		Results:     results,
	})
}

// record persists per-op run rows and the flattened findings.
func (s *Server) record(runID, pair, timeframe string, requestedAt time.Time, results map[string]any, durs map[string]time.Duration) {
	var all []model.FindingRecord
	// registry order, so identical runs persist identical row sequences
	for _, op := range detect.List() {
		res, ok := results[op]
		if !ok {
			continue
		}
		rows := detect.Flatten(runID, res)
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveOp(op, durs[op], len(rows), nil)
		}
		if s.deps.Recorder != nil {
			s.deps.Recorder.RecordRun(model.RunRecord{
				RunID:        runID,
				Pair:         pair,
				Timeframe:    timeframe,
				Op:           op,
				RequestedAt:  requestedAt,
				DurationMS:   durs[op].Milliseconds(),
				FindingCount: len(rows),
				Status:       "ok",
			})
		}
		all = append(all, rows...)
	}
	// re-sequence so (run_id, seq) stays unique across ops
	for i := range all {
		all[i].Seq = i
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordFindings(all)
	}
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	writeJSON(w, http.StatusOK, OpsResponse{
		Ops:           detect.List(),
		DefaultParams: detect.Defaults(),
	})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	pair := r.URL.Query().Get("pair")
	timeframe := r.URL.Query().Get("timeframe")
	if pair == "" || timeframe == "" {
		writeError(w, http.StatusBadRequest, "pair and timeframe are required")
		return
	}
	count := defaultCandleCount
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxCandleCount {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}

	series, err := s.deps.Provider.Candles(r.Context(), pair, timeframe, count)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	if runID := r.URL.Query().Get("run_id"); runID != "" {
		rows, err := s.deps.History.Findings(runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "findings": rows})
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := s.deps.History.History(r.URL.Query().Get("pair"), r.URL.Query().Get("timeframe"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	s.deps.Hub.HandleWSRequest(conn)
}

// writeEngineError maps engine errors onto HTTP statuses: bad input and bad
// params are the caller's fault, unknown ops are 404, the rest is on us.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case model.IsInputError(err), errors.Is(err, model.ErrBadParam):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnknownOp):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}
