// Package notification delivers analysis alerts to external channels.
// Alerts are structured around the finding that triggered them (pair,
// timeframe, setup, score) so every backend renders from the same fields.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel grades how strong the triggering finding is.
type AlertLevel string

const (
	AlertInfo   AlertLevel = "INFO"
	AlertStrong AlertLevel = "STRONG"
)

// Alert is one noteworthy finding from a scheduled analysis run.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Pair      string     `json:"pair"`
	Timeframe string     `json:"timeframe"`
	Setup     string     `json:"setup"`     // e.g. "reversal", "continuation"
	Direction string     `json:"direction"` // "bullish" | "bearish"
	Price     float64    `json:"price"`
	Score     float64    `json:"score"`   // [0,1]
	Factors   int        `json:"factors"` // distinct confluence factors stacked
}

// Headline is the one-line identity of the alert.
func (a Alert) Headline() string {
	return fmt.Sprintf("%s %s: %s %s", a.Pair, a.Timeframe, a.Direction, a.Setup)
}

// Summary carries the numbers behind the headline.
func (a Alert) Summary() string {
	return fmt.Sprintf("score %.2f, %d factors at %.5f", a.Score, a.Factors, a.Price)
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log (useful for development
// and as the fallback when no channel is configured).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s (%s)", alert.Level, alert.Headline(), alert.Summary())
	return nil
}
