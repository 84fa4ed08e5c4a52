package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV candle for a currency pair.
// Prices are quoted in the pair's quote currency (e.g. 1.0845 for EUR/USD).
type Candle struct {
	TS     time.Time `json:"ts"` // bucket start time (UTC, timeframe-aligned)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // traded volume within the bucket
}

// Range returns the full high-low extent of the candle.
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c *Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool {
	return c.Close > c.Open
}

// UpperWick returns the distance from the body top to the high.
func (c *Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the low to the body bottom.
func (c *Candle) LowerWick() float64 {
	bot := c.Open
	if c.Close < bot {
		bot = c.Close
	}
	return bot - c.Low
}

// JSON returns the JSON-encoded candle.
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
