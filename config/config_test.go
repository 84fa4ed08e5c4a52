package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"REDIS_ADDR", "SQLITE_PATH", "GATEWAY_ADDR", "MARKET_SOURCE", "CACHE_TTL"} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.MarketSource != "synthetic" {
		t.Errorf("MarketSource = %q", cfg.MarketSource)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MARKET_SOURCE", "binance")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALERT_THRESHOLD", "0.85")

	cfg := Load()
	if cfg.MarketSource != "binance" {
		t.Errorf("MarketSource = %q", cfg.MarketSource)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %s", cfg.CacheTTL)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
	if cfg.AlertThreshold != 0.85 {
		t.Errorf("AlertThreshold = %g", cfg.AlertThreshold)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("CACHE_TTL", "soon")

	cfg := Load()
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want fallback 0", cfg.RedisDB)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s, want fallback 5m", cfg.CacheTTL)
	}
}

func writeWatchlist(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWatchlist(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - pair: EUR/USD
    timeframe: 15m
  - pair: USD/JPY
    timeframe: 1h
    count: 250
    schedule: "0 * * * * *"
    ops: [detect_bos]
`)

	wl, err := LoadWatchlist(path)
	if err != nil {
		t.Fatalf("LoadWatchlist: %v", err)
	}
	if len(wl.Entries) != 2 {
		t.Fatalf("entries = %d", len(wl.Entries))
	}
	if wl.Entries[0].Count != 300 {
		t.Errorf("default count = %d", wl.Entries[0].Count)
	}
	if wl.Entries[0].Schedule != defaultSchedules["15m"] {
		t.Errorf("default schedule = %q", wl.Entries[0].Schedule)
	}
	if wl.Entries[1].Schedule != "0 * * * * *" {
		t.Errorf("explicit schedule = %q", wl.Entries[1].Schedule)
	}
}

func TestLoadWatchlistRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing pair":  "watchlist:\n  - timeframe: 15m\n",
		"bad timeframe": "watchlist:\n  - pair: EUR/USD\n    timeframe: 7m\n",
		"count too big": "watchlist:\n  - pair: EUR/USD\n    timeframe: 15m\n    count: 5000\n",
		"empty list":    "watchlist: []\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadWatchlist(writeWatchlist(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
