// Package config loads service configuration from environment variables,
// optionally seeded from a .env file, plus the YAML watchlist that drives
// scheduled analyses.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	GatewayAddr   string
	MetricsAddr   string
	LogLevel      string

	// Market data: "synthetic" or "binance"
	MarketSource string
	CacheTTL     time.Duration

	// Scheduled analysis
	WatchlistPath  string
	AlertThreshold float64 // min confluence score worth an alert

	// Alerting (both optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/smc.db"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		MarketSource: getEnv("MARKET_SOURCE", "synthetic"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),

		WatchlistPath:  getEnv("WATCHLIST_PATH", "watchlist.yaml"),
		AlertThreshold: getEnvFloat("ALERT_THRESHOLD", 0.7),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
