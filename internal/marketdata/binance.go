package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smc-enginev1/internal/model"
)

const binanceBaseURL = "https://api.binance.com"

// maxKlinesPerRequest is Binance's hard cap on a single klines call.
const maxKlinesPerRequest = 1000

// binanceIntervals maps our timeframe labels onto Binance kline intervals.
var binanceIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
}

// Binance pulls spot klines from the public REST API. Pairs are given in
// the engine's "BTC/USDT" form and flattened to Binance symbols.
type Binance struct {
	baseURL    string
	httpClient *http.Client
}

// NewBinance returns a provider against the public endpoint. An empty
// baseURL selects the production API; tests point it at a local server.
func NewBinance(baseURL string) *Binance {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &Binance{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Candles implements model.CandleProvider.
func (b *Binance) Candles(ctx context.Context, pair, timeframe string, count int) (*model.CandleSeries, error) {
	if count <= 0 || count > maxKlinesPerRequest {
		return nil, fmt.Errorf("%w: count %d outside 1..%d", model.ErrBadParam, count, maxKlinesPerRequest)
	}
	interval, ok := binanceIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: unknown timeframe %q", model.ErrBadParam, timeframe)
	}
	symbol := strings.ToUpper(strings.ReplaceAll(pair, "/", ""))

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(count))
	endpoint := b.baseURL + "/api/v3/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: %s %s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("binance: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: %s %s: status %d: %s", symbol, interval, resp.StatusCode, truncate(body, 200))
	}

	candles, err := parseKlines(body)
	if err != nil {
		return nil, fmt.Errorf("binance: %s %s: %w", symbol, interval, err)
	}
	return model.NewCandleSeries(pair, timeframe, candles)
}

// parseKlines decodes Binance's array-of-arrays kline payload:
// [ openTime, open, high, low, close, volume, closeTime, ... ].
// Prices and volume arrive as strings.
func parseKlines(body []byte) ([]model.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row %d has %d fields, need 6", i, len(row))
		}
		var openMS int64
		if err := json.Unmarshal(row[0], &openMS); err != nil {
			return nil, fmt.Errorf("kline row %d open time: %w", i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			var s string
			if err := json.Unmarshal(row[j], &s); err != nil {
				return nil, fmt.Errorf("kline row %d field %d: %w", i, j, err)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline row %d field %d: %w", i, j, err)
			}
			vals[j-1] = f
		}
		candles = append(candles, model.Candle{
			TS:     time.UnixMilli(openMS).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return candles, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
