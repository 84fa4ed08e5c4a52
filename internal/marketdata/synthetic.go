// Package marketdata supplies candle series to the analysis service. The
// synthetic provider is the default source; the binance provider pulls real
// klines; the cached decorator fronts either with Redis.
package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"smc-enginev1/internal/model"
)

// pairBands gives each supported pair a realistic price band. Unknown pairs
// fall back to a generic 1.0000-1.2000 band.
var pairBands = map[string][2]float64{
	"EUR/USD": {1.0500, 1.1200},
	"GBP/USD": {1.2400, 1.3100},
	"USD/JPY": {140.00, 152.00},
	"AUD/USD": {0.6300, 0.6800},
	"USD/CHF": {0.8400, 0.9100},
	"GBP/JPY": {175.00, 195.00},
	"EUR/JPY": {150.00, 165.00},
	"AUD/JPY": {90.00, 102.00},
}

// syntheticAnchor pins generated series to a fixed end time so the same
// (pair, timeframe, count) request always yields the same candles.
var syntheticAnchor = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// Synthetic is a deterministic random-walk candle source. The walk is seeded
// from the request key, so repeated calls reproduce the identical series —
// useful for demos, tests, and offline development.
type Synthetic struct{}

// NewSynthetic returns the deterministic candle generator.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Candles implements model.CandleProvider.
func (g *Synthetic) Candles(_ context.Context, pair, timeframe string, count int) (*model.CandleSeries, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count %d", model.ErrBadParam, count)
	}
	step, err := model.TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}

	band, ok := pairBands[strings.ToUpper(pair)]
	if !ok {
		band = [2]float64{1.0000, 1.2000}
	}
	rng := rand.New(rand.NewSource(seedFor(pair, timeframe, count)))

	mid := (band[0] + band[1]) / 2
	price := band[0] + rng.Float64()*(band[1]-band[0])
	start := syntheticAnchor.Add(-time.Duration(count) * step)

	candles := make([]model.Candle, count)
	burst := 0 // remaining candles of the current volatility burst
	for i := 0; i < count; i++ {
		vol := 0.0012
		if burst > 0 {
			vol = 0.0035
			burst--
		} else if rng.Float64() < 0.03 {
			burst = 3 + rng.Intn(5)
		}
		// mild mean reversion keeps the walk inside the band
		pull := 0.02 * (mid - price) / mid

		open := price
		change := (rng.NormFloat64()*vol + pull) * price
		close := open + change
		high := math.Max(open, close) + rng.Float64()*vol*0.6*price
		low := math.Min(open, close) - rng.Float64()*vol*0.6*price

		volume := 50000 + rng.Float64()*450000
		if burst > 0 {
			volume *= 2.5
		}

		candles[i] = model.Candle{
			TS:     start.Add(time.Duration(i+1) * step),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: math.Round(volume),
		}
		price = close
	}
	return model.NewCandleSeries(pair, timeframe, candles)
}

func seedFor(pair, timeframe string, count int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", strings.ToUpper(pair), timeframe, count)
	return int64(h.Sum64())
}
