package indicator

import (
	"math"
	"testing"
	"time"

	"smc-enginev1/internal/model"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestRSIWilderSequence(t *testing.T) {
	// Deltas: +1, +1, -1, +1 with period 3.
	// Seed: avgGain = 2/3, avgLoss = 1/3 -> RSI = 66.667 at index 3.
	// Next: avgGain = 7/9, avgLoss = 2/9 -> RSI = 77.778 at index 4.
	closes := []float64{10, 11, 12, 11, 12}
	rsi := RSI(closes, 3)

	if len(rsi) != len(closes) {
		t.Fatalf("len = %d, want %d", len(rsi), len(closes))
	}
	for i := 0; i < 3; i++ {
		if rsi[i] != 50.0 {
			t.Errorf("rsi[%d] = %.4f, want neutral 50 before warm-up", i, rsi[i])
		}
	}
	if !almostEqual(rsi[3], 66.6667, 0.001) {
		t.Errorf("rsi[3] = %.4f, want 66.6667", rsi[3])
	}
	if !almostEqual(rsi[4], 77.7778, 0.001) {
		t.Errorf("rsi[4] = %.4f, want 77.7778", rsi[4])
	}
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	rsi := RSI(up, 3)
	if rsi[len(rsi)-1] != 100.0 {
		t.Errorf("all-gain RSI = %.2f, want 100", rsi[len(rsi)-1])
	}

	down := []float64{6, 5, 4, 3, 2, 1}
	rsi = RSI(down, 3)
	if rsi[len(rsi)-1] != 0.0 {
		t.Errorf("all-loss RSI = %.2f, want 0", rsi[len(rsi)-1])
	}
}

func TestRSIShortSeries(t *testing.T) {
	rsi := RSI([]float64{1, 2}, 14)
	for i, v := range rsi {
		if v != 50.0 {
			t.Errorf("rsi[%d] = %.2f, want 50 when series shorter than period", i, v)
		}
	}
}

func TestTrueRangeUsesPrevClose(t *testing.T) {
	// Gap up: second candle's range is 1 but distance from prior close is 5.
	highs := []float64{11, 16}
	lows := []float64{9, 15}
	closes := []float64{10, 16}

	tr := TrueRange(highs, lows, closes)
	if !almostEqual(tr[0], 2, 1e-12) {
		t.Errorf("tr[0] = %.4f, want 2 (high-low fallback)", tr[0])
	}
	if !almostEqual(tr[1], 6, 1e-12) {
		t.Errorf("tr[1] = %.4f, want 6 (high - prev close)", tr[1])
	}
}

func TestATRWilderSmoothing(t *testing.T) {
	// Constant TR of 2 must produce constant ATR of 2 through both the
	// warm-up mean and the smoothed phase.
	highs := []float64{12, 13, 14, 15}
	lows := []float64{10, 11, 12, 13}
	closes := []float64{11, 12, 13, 14}

	atr := ATR(highs, lows, closes, 2)
	for i, v := range atr {
		if !almostEqual(v, 2, 1e-12) {
			t.Errorf("atr[%d] = %.4f, want 2", i, v)
		}
	}
}

func TestSMAWarmupAndWindow(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4}, 2)
	want := []float64{1, 1.5, 2.5, 3.5}
	for i := range want {
		if !almostEqual(out[i], want[i], 1e-12) {
			t.Errorf("sma[%d] = %.4f, want %.4f", i, out[i], want[i])
		}
	}
}

func TestSimpleReturns(t *testing.T) {
	out := SimpleReturns([]float64{100, 110, 99})
	if out[0] != 0 {
		t.Errorf("returns[0] = %.4f, want 0", out[0])
	}
	if !almostEqual(out[1], 0.10, 1e-12) {
		t.Errorf("returns[1] = %.4f, want 0.10", out[1])
	}
	if !almostEqual(out[2], -0.10, 1e-12) {
		t.Errorf("returns[2] = %.4f, want -0.10", out[2])
	}
}

func TestDeriveShapes(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 30)
	for i := range candles {
		px := 1.10 + float64(i)*0.001
		candles[i] = model.Candle{
			TS:     base.Add(time.Duration(i) * time.Minute),
			Open:   px, High: px + 0.002, Low: px - 0.002, Close: px + 0.001,
			Volume: 1000,
		}
	}
	s, err := model.NewCandleSeries("EUR/USD", "1m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}

	d := Derive(s, 14, 14)
	for name, got := range map[string]int{
		"Returns":   len(d.Returns),
		"TrueRange": len(d.TrueRange),
		"ATR":       len(d.ATR),
		"RSI":       len(d.RSI),
		"AvgVolume": len(d.AvgVolume),
	} {
		if got != s.Len() {
			t.Errorf("len(%s) = %d, want %d", name, got, s.Len())
		}
	}
	if d.ATRAt(5) <= 0 {
		t.Errorf("ATRAt(5) = %v, want > 0", d.ATRAt(5))
	}
	if d.ATRAt(-1) != d.ATRAt(0) || d.ATRAt(999) != d.ATRAt(s.Len()-1) {
		t.Error("ATRAt must clamp out-of-range indices to the nearest end")
	}
}
