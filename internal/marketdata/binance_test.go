package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const klinesPayload = `[
  [1709251200000,"1.1000","1.1020","1.0990","1.1010","125000.5",1709252099999,"0","0","0","0","0"],
  [1709252100000,"1.1010","1.1035","1.1005","1.1030","98000.0",1709252999999,"0","0","0","0","0"]
]`

func TestBinanceCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "EURUSD" || q.Get("interval") != "15m" || q.Get("limit") != "2" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(klinesPayload))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	s, err := b.Candles(context.Background(), "EUR/USD", "15m", 2)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	c := s.Candles[0]
	if c.Open != 1.1000 || c.High != 1.1020 || c.Low != 1.0990 || c.Close != 1.1010 || c.Volume != 125000.5 {
		t.Errorf("candle 0 = %+v", c)
	}
	if !s.Candles[1].TS.After(c.TS) {
		t.Error("timestamps not increasing")
	}
}

func TestBinanceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	if _, err := b.Candles(context.Background(), "NO/PE", "15m", 10); err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestBinanceMalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1709251200000,"1.1"]]`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL)
	if _, err := b.Candles(context.Background(), "EUR/USD", "15m", 10); err == nil {
		t.Fatal("expected error on short kline row")
	}
}
