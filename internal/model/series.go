package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// CandleSeries is an immutable, chronologically ordered candle window for one
// (pair, timeframe). Every detector shares it read-only; none may modify it.
// Construct through NewCandleSeries so the ordering and shape invariants are
// checked exactly once, up front.
type CandleSeries struct {
	Pair      string   `json:"pair"`      // e.g. "EUR/USD"
	Timeframe string   `json:"timeframe"` // e.g. "15m"
	Candles   []Candle `json:"candles"`
}

// NewCandleSeries validates and copies candles into a fresh series.
// Violations surface as ErrEmptySeries, ErrUnorderedSeries or
// ErrMalformedCandle — never as a silently coerced series.
func NewCandleSeries(pair, timeframe string, candles []Candle) (*CandleSeries, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrEmptySeries, pair, timeframe)
	}
	for i := range candles {
		c := &candles[i]
		if c.High < c.Low {
			return nil, fmt.Errorf("%w: index %d high %.6f < low %.6f", ErrMalformedCandle, i, c.High, c.Low)
		}
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			return nil, fmt.Errorf("%w: index %d body outside high/low", ErrMalformedCandle, i)
		}
		if c.Open <= 0 || c.Volume < 0 {
			return nil, fmt.Errorf("%w: index %d non-positive price or negative volume", ErrMalformedCandle, i)
		}
		if i > 0 && !c.TS.After(candles[i-1].TS) {
			return nil, fmt.Errorf("%w: index %d ts %s <= %s", ErrUnorderedSeries, i,
				c.TS.Format(time.RFC3339), candles[i-1].TS.Format(time.RFC3339))
		}
	}
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	return &CandleSeries{Pair: pair, Timeframe: timeframe, Candles: cp}, nil
}

// Len returns the number of candles in the series.
func (s *CandleSeries) Len() int {
	return len(s.Candles)
}

// Last returns the most recent candle.
func (s *CandleSeries) Last() *Candle {
	return &s.Candles[len(s.Candles)-1]
}

// Key returns "pair:timeframe".
func (s *CandleSeries) Key() string {
	return s.Pair + ":" + s.Timeframe
}

// Highs returns a fresh slice of the high prices.
func (s *CandleSeries) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i := range s.Candles {
		out[i] = s.Candles[i].High
	}
	return out
}

// Lows returns a fresh slice of the low prices.
func (s *CandleSeries) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i := range s.Candles {
		out[i] = s.Candles[i].Low
	}
	return out
}

// Closes returns a fresh slice of the close prices.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i := range s.Candles {
		out[i] = s.Candles[i].Close
	}
	return out
}

// Volumes returns a fresh slice of the volumes.
func (s *CandleSeries) Volumes() []float64 {
	out := make([]float64, len(s.Candles))
	for i := range s.Candles {
		out[i] = s.Candles[i].Volume
	}
	return out
}

// JSON returns the JSON-encoded series.
func (s *CandleSeries) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Supported timeframe labels, smallest to largest.
var timeframeMinutes = map[string]int{
	"1m":  1,
	"5m":  5,
	"15m": 15,
	"30m": 30,
	"1h":  60,
	"4h":  240,
	"1d":  1440,
}

// TimeframeDuration resolves a timeframe label ("1m".."1d") to a duration.
func TimeframeDuration(label string) (time.Duration, error) {
	mins, ok := timeframeMinutes[label]
	if !ok {
		return 0, fmt.Errorf("%w: unknown timeframe %q", ErrBadParam, label)
	}
	return time.Duration(mins) * time.Minute, nil
}
