package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"smc-enginev1/config"
	"smc-enginev1/internal/gateway"
	"smc-enginev1/internal/logger"
	"smc-enginev1/internal/marketdata"
	"smc-enginev1/internal/metrics"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/notification"
	"smc-enginev1/internal/scheduler"
	redisstore "smc-enginev1/internal/store/redis"
	sqlitestore "smc-enginev1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[smcengine] starting...")

	cfg := config.Load()
	logger.Init("smcengine", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Market data source ----
	var source model.CandleProvider
	switch cfg.MarketSource {
	case "binance":
		source = marketdata.NewBinance("")
		log.Println("[smcengine] market source: binance")
	case "synthetic":
		source = marketdata.NewSynthetic()
		log.Println("[smcengine] market source: synthetic")
	default:
		log.Fatalf("[smcengine] unknown MARKET_SOURCE %q (want synthetic or binance)", cfg.MarketSource)
	}

	// ---- Redis cache (optional; service degrades to uncached on failure) ----
	var cache *redisstore.Cache
	provider := source
	if c, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	}); err != nil {
		log.Printf("[smcengine] WARNING: redis init failed: %v (continuing without cache)", err)
		health.SetRedisConnected(false)
	} else {
		cache = c
		defer cache.Close()
		health.SetRedisConnected(true)
		cached := marketdata.NewCached(source, cache)
		cached.OnHit = prom.CacheHits.Inc
		cached.OnMiss = prom.CacheMisses.Inc
		provider = cached
		log.Printf("[smcengine] redis cache ready at %s", cfg.RedisAddr)
	}

	// ---- SQLite history (single writer, batched off the request path) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	recorder, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[smcengine] sqlite init failed: %v", err)
	}
	defer recorder.Close()
	go recorder.Run(ctx)
	health.SetSQLiteOK(true)

	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[smcengine] sqlite reader init failed: %v", err)
	}
	defer reader.Close()
	log.Printf("[smcengine] sqlite ready at %s", cfg.SQLitePath)

	// ---- Liveness probes + breaker state gauge ----
	if cache != nil {
		health.StartLivenessChecker(ctx, cache.Client(), recorder.DB(), 10*time.Second)
		go watchBreaker(ctx, cache, prom)
	} else {
		health.StartLivenessChecker(ctx, nil, recorder.DB(), 10*time.Second)
	}

	// ---- WebSocket hub, fed by the snapshot pub/sub channel ----
	hub := gateway.NewHub(prom)
	if cache != nil {
		go hub.RunPubSub(ctx, cache)
	}

	// ---- REST + WS gateway ----
	gw := gateway.NewServer(cfg.GatewayAddr, gateway.Deps{
		Provider: provider,
		Recorder: recorder,
		History:  reader,
		Hub:      hub,
		Metrics:  prom,
		Health:   health,
	})
	gw.Start()
	log.Printf("[smcengine] gateway listening on %s", cfg.GatewayAddr)

	// ---- Scheduled watchlist analyses ----
	var sched *scheduler.Scheduler
	wl, err := config.LoadWatchlist(cfg.WatchlistPath)
	if err != nil {
		log.Printf("[smcengine] WARNING: %v (scheduler disabled)", err)
		health.SetSchedulerOK(false)
	} else {
		var publisher model.SnapshotPublisher
		if cache != nil {
			publisher = cache
		}
		sched, err = scheduler.New(wl, provider, recorder, publisher,
			buildNotifier(cfg), prom, health, cfg.AlertThreshold)
		if err != nil {
			log.Fatalf("[smcengine] scheduler init failed: %v", err)
		}
		sched.Start()
		log.Printf("[smcengine] scheduler running %d watchlist entries", len(wl.Entries))
	}

	// ---- Wait for shutdown ----
	sig := <-sigCh
	log.Printf("[smcengine] received %v, shutting down...", sig)

	if sched != nil {
		sched.Stop()
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	gw.Stop(shutCtx)
	metricsSrv.Stop(shutCtx)

	cancel() // flushes the recorder queue
	time.Sleep(300 * time.Millisecond)
	log.Println("[smcengine] shutdown complete")
}

// buildNotifier picks the configured alert channel, falling back to the log.
func buildNotifier(cfg *config.Config) notification.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		log.Println("[smcengine] alerts: telegram")
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	if cfg.WebhookURL != "" {
		log.Println("[smcengine] alerts: webhook")
		return notification.NewWebhookNotifier(cfg.WebhookURL)
	}
	return notification.NewLogNotifier()
}

// watchBreaker mirrors the redis circuit breaker state into the gauge and
// counts trips to open.
func watchBreaker(ctx context.Context, cache *redisstore.Cache, prom *metrics.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	prev := cache.BreakerState()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := cache.BreakerState()
			prom.RedisCircuitBreakerState.Set(float64(state))
			if state == redisstore.StateOpen && prev != redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
			prev = state
		}
	}
}
