package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analysis engine.
type Metrics struct {
	OpsTotal      *prometheus.CounterVec // labels: op, status
	OpDuration    *prometheus.HistogramVec
	FindingsTotal *prometheus.CounterVec // labels: op
	AnalysesTotal prometheus.Counter
	ScheduledRuns prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	SQLiteCommitDur prometheus.Histogram

	WSClients          prometheus.Gauge
	WSDroppedPushes    prometheus.Counter
	SnapshotsPublished prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smcengine_ops_total",
			Help: "Detector operations executed, by op and status",
		}, []string{"op", "status"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smcengine_op_duration_seconds",
			Help:    "Detector operation latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"op"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smcengine_findings_total",
			Help: "Findings produced, by op",
		}, []string{"op"}),
		AnalysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_analyses_total",
			Help: "Analysis requests served",
		}),
		ScheduledRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_scheduled_runs_total",
			Help: "Scheduled watchlist analyses executed",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_series_cache_hits_total",
			Help: "Candle series served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_series_cache_misses_total",
			Help: "Candle series fetched from the upstream provider",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smcengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smcengine_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smcengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDroppedPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_ws_dropped_pushes_total",
			Help: "Snapshot pushes dropped because a client send buffer was full",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcengine_snapshots_published_total",
			Help: "Analysis snapshots published to Redis pub/sub",
		}),
	}

	prometheus.MustRegister(
		m.OpsTotal,
		m.OpDuration,
		m.FindingsTotal,
		m.AnalysesTotal,
		m.ScheduledRuns,
		m.CacheHits,
		m.CacheMisses,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.SQLiteCommitDur,
		m.WSClients,
		m.WSDroppedPushes,
		m.SnapshotsPublished,
	)

	return m
}

// ObserveOp records one operation's outcome and latency.
func (m *Metrics) ObserveOp(op string, dur time.Duration, findings int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OpsTotal.WithLabelValues(op, status).Inc()
	m.OpDuration.WithLabelValues(op).Observe(dur.Seconds())
	if findings > 0 {
		m.FindingsTotal.WithLabelValues(op).Add(float64(findings))
	}
}

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`
	ProviderOK     bool `json:"provider_ok"`
	SchedulerOK    bool `json:"scheduler_ok"`

	LastAnalysisAt  time.Time `json:"last_analysis_at"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt:   time.Now(),
		ProviderOK:  true,
		SchedulerOK: true,
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetProviderOK(v bool) {
	h.mu.Lock()
	h.ProviderOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSchedulerOK(v bool) {
	h.mu.Lock()
	h.SchedulerOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastAnalysisAt(t time.Time) {
	h.mu.Lock()
	h.LastAnalysisAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK || !h.ProviderOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.SQLiteOK && !h.ProviderOK {
		overallStatus = "unhealthy"
	}

	lastAnalysis := ""
	if !h.LastAnalysisAt.IsZero() {
		lastAnalysis = h.LastAnalysisAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		ProviderOK      bool    `json:"provider_ok"`
		SchedulerOK     bool    `json:"scheduler_ok"`
		LastAnalysisAt  string  `json:"last_analysis_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		ProviderOK:      h.ProviderOK,
		SchedulerOK:     h.SchedulerOK,
		LastAnalysisAt:  lastAnalysis,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
