package model

import (
	"errors"
	"testing"
	"time"
)

var seriesBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func mkCandle(i int, o, h, l, c, v float64) Candle {
	return Candle{
		TS:     seriesBase.Add(time.Duration(i) * 15 * time.Minute),
		Open:   o, High: h, Low: l, Close: c, Volume: v,
	}
}

func TestNewCandleSeriesValidation(t *testing.T) {
	valid := []Candle{
		mkCandle(0, 1.1000, 1.1010, 1.0990, 1.1005, 1000),
		mkCandle(1, 1.1005, 1.1020, 1.1000, 1.1015, 1200),
	}

	cases := []struct {
		name    string
		candles []Candle
		wantErr error
	}{
		{"valid", valid, nil},
		{"empty", nil, ErrEmptySeries},
		{"high below low", []Candle{mkCandle(0, 1.1, 1.09, 1.11, 1.1, 100)}, ErrMalformedCandle},
		{"close above high", []Candle{mkCandle(0, 1.10, 1.1010, 1.0990, 1.1050, 100)}, ErrMalformedCandle},
		{"negative volume", []Candle{mkCandle(0, 1.1, 1.11, 1.09, 1.1, -5)}, ErrMalformedCandle},
		{"duplicate timestamp", []Candle{
			mkCandle(0, 1.1, 1.11, 1.09, 1.1, 100),
			mkCandle(0, 1.1, 1.11, 1.09, 1.1, 100),
		}, ErrUnorderedSeries},
		{"decreasing timestamp", []Candle{
			mkCandle(1, 1.1, 1.11, 1.09, 1.1, 100),
			mkCandle(0, 1.1, 1.11, 1.09, 1.1, 100),
		}, ErrUnorderedSeries},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewCandleSeries("EUR/USD", "15m", tc.candles)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if s.Len() != len(tc.candles) {
					t.Errorf("Len = %d, want %d", s.Len(), len(tc.candles))
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if !IsInputError(err) {
				t.Errorf("IsInputError(%v) = false, want true", err)
			}
		})
	}
}

func TestNewCandleSeriesCopiesInput(t *testing.T) {
	candles := []Candle{
		mkCandle(0, 1.1000, 1.1010, 1.0990, 1.1005, 1000),
		mkCandle(1, 1.1005, 1.1020, 1.1000, 1.1015, 1200),
	}
	s, err := NewCandleSeries("EUR/USD", "15m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}

	candles[0].Close = 9.99
	if s.Candles[0].Close == 9.99 {
		t.Error("series aliases caller slice; want a defensive copy")
	}
}

func TestCandleGeometry(t *testing.T) {
	c := mkCandle(0, 1.1000, 1.1030, 1.0980, 1.1020, 500)

	if got := c.Range(); !approx(got, 0.0050) {
		t.Errorf("Range = %.6f, want 0.0050", got)
	}
	if got := c.Body(); !approx(got, 0.0020) {
		t.Errorf("Body = %.6f, want 0.0020", got)
	}
	if got := c.UpperWick(); !approx(got, 0.0010) {
		t.Errorf("UpperWick = %.6f, want 0.0010", got)
	}
	if got := c.LowerWick(); !approx(got, 0.0020) {
		t.Errorf("LowerWick = %.6f, want 0.0020", got)
	}
	if !c.Bullish() {
		t.Error("Bullish = false, want true")
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, err := TimeframeDuration("4h")
	if err != nil {
		t.Fatalf("TimeframeDuration(4h): %v", err)
	}
	if d != 4*time.Hour {
		t.Errorf("duration = %v, want 4h", d)
	}

	if _, err := TimeframeDuration("7m"); !errors.Is(err, ErrBadParam) {
		t.Errorf("unknown timeframe error = %v, want ErrBadParam", err)
	}
}

func approx(got, want float64) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
