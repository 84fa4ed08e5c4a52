package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"smc-enginev1/internal/model"
)

// WatchEntry describes one scheduled analysis target.
type WatchEntry struct {
	Pair      string         `yaml:"pair"`
	Timeframe string         `yaml:"timeframe"`
	Count     int            `yaml:"count"`    // candles per run, default 300
	Ops       []string       `yaml:"ops"`      // empty = full suite
	Schedule  string         `yaml:"schedule"` // cron spec with seconds, default per timeframe
	Params    map[string]any `yaml:"params"`   // detector parameter overrides, json names
}

// Watchlist is the set of pairs the scheduler analyzes.
type Watchlist struct {
	Entries []WatchEntry `yaml:"watchlist"`
}

// defaultSchedules run a little after the candle close for each timeframe.
var defaultSchedules = map[string]string{
	"1m":  "5 * * * * *",
	"5m":  "10 */5 * * * *",
	"15m": "10 */15 * * * *",
	"30m": "10 */30 * * * *",
	"1h":  "15 0 * * * *",
	"4h":  "15 0 */4 * * *",
	"1d":  "30 0 0 * * *",
}

// LoadWatchlist parses and validates the YAML watchlist at path.
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	if len(wl.Entries) == 0 {
		return nil, fmt.Errorf("watchlist %s has no entries", path)
	}

	for i := range wl.Entries {
		e := &wl.Entries[i]
		if e.Pair == "" {
			return nil, fmt.Errorf("watchlist entry %d: missing pair", i)
		}
		if _, err := model.TimeframeDuration(e.Timeframe); err != nil {
			return nil, fmt.Errorf("watchlist entry %d (%s): %w", i, e.Pair, err)
		}
		if e.Count <= 0 {
			e.Count = 300
		}
		if e.Count > 1000 {
			return nil, fmt.Errorf("watchlist entry %d (%s): count %d exceeds 1000", i, e.Pair, e.Count)
		}
		if e.Schedule == "" {
			e.Schedule = defaultSchedules[e.Timeframe]
		}
	}
	return &wl, nil
}
