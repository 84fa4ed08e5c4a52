package liquidity

import (
	"math"
	"testing"
	"time"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/swing"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func seriesFromHL(t *testing.T, highs, lows []float64) (*model.CandleSeries, *indicator.Derived) {
	t.Helper()
	candles := make([]model.Candle, len(highs))
	for i := range highs {
		mid := (highs[i] + lows[i]) / 2
		candles[i] = model.Candle{
			TS:     base.Add(time.Duration(i) * 15 * time.Minute),
			Open:   mid, High: highs[i], Low: lows[i], Close: mid,
			Volume: 1000,
		}
	}
	s, err := model.NewCandleSeries("EUR/USD", "15m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}
	return s, indicator.Derive(s, 14, 14)
}

func extract(t *testing.T, s *model.CandleSeries, d *indicator.Derived) []model.SwingPoint {
	t.Helper()
	points, err := swing.Extract(s, d, 2)
	if err != nil {
		t.Fatalf("swing.Extract: %v", err)
	}
	return points
}

func TestPoolsGroupEqualHighs(t *testing.T) {
	// Two swing highs at 1.1050, ten candles apart, well within 0.25 ATR.
	highs := []float64{
		1.1000, 1.1010, 1.1050, 1.1010, 1.1000,
		1.0990, 1.0995, 1.1000, 1.1005, 1.1000,
		1.1010, 1.1020, 1.1050, 1.1020, 1.1010,
	}
	lows := make([]float64, len(highs))
	for i := range highs {
		lows[i] = highs[i] - 0.0080
	}
	s, d := seriesFromHL(t, highs, lows)

	pools, err := Pools(s, d, extract(t, s, d), DefaultConfig())
	if err != nil {
		t.Fatalf("Pools: %v", err)
	}
	var buySide []model.LiquidityPool
	for _, p := range pools {
		if p.Side == model.BuySide {
			buySide = append(buySide, p)
		}
	}
	if len(buySide) != 1 {
		t.Fatalf("got %d buy-side pools, want 1: %+v", len(buySide), buySide)
	}
	p := buySide[0]
	if p.Density != 2 {
		t.Errorf("density = %d, want 2", p.Density)
	}
	if math.Abs(p.Level-1.1050) > 1e-9 {
		t.Errorf("level = %.5f, want 1.1050", p.Level)
	}
	if p.Magnetism < 0 || p.Magnetism > 1 {
		t.Errorf("magnetism %.4f outside [0,1]", p.Magnetism)
	}
	if p.SwingIndices[0] != 2 || p.SwingIndices[1] != 12 {
		t.Errorf("swing indices = %v, want [2 12]", p.SwingIndices)
	}
}

func TestSweepOfSwingHighClosesBack(t *testing.T) {
	// Swing high at index 2 (1.1050); candle 8 wicks to 1.1070 but closes at
	// 1.1000, back below the level, then sells off — a buy-side reversal raid.
	highs := []float64{1.1000, 1.1010, 1.1050, 1.1010, 1.1000, 1.1005, 1.1010, 1.1015, 1.1070, 1.1005, 1.0960, 1.0940}
	lows := []float64{1.0920, 1.0930, 1.0960, 1.0930, 1.0920, 1.0925, 1.0930, 1.0935, 1.0990, 1.0925, 1.0890, 1.0860}
	s, d := seriesFromHL(t, highs, lows)

	sweeps, err := Sweeps(s, d, extract(t, s, d), DefaultConfig())
	if err != nil {
		t.Fatalf("Sweeps: %v", err)
	}
	if len(sweeps) == 0 {
		t.Fatal("no sweeps detected")
	}
	sw := sweeps[0]
	if sw.Side != model.BuySide {
		t.Errorf("side = %s, want buy_side", sw.Side)
	}
	if sw.SweepIndex != 8 || sw.SwingRef != 2 {
		t.Errorf("sweep %d of swing %d, want 8 of 2", sw.SweepIndex, sw.SwingRef)
	}
	if math.Abs(sw.Level-1.1050) > 1e-9 {
		t.Errorf("level = %.5f, want 1.1050", sw.Level)
	}
	if sw.Classification != "reversal" {
		t.Errorf("classification = %q, want reversal", sw.Classification)
	}
	if sw.Excursion <= 0 {
		t.Errorf("excursion = %.5f, want > 0", sw.Excursion)
	}
}

func TestSweepWithoutCloseBackIsNotReported(t *testing.T) {
	// Candle 8 breaks the swing high and keeps closing above it: a genuine
	// breakout, not a raid.
	highs := []float64{1.1000, 1.1010, 1.1050, 1.1010, 1.1000, 1.1005, 1.1010, 1.1015, 1.1090, 1.1100, 1.1110, 1.1120}
	lows := []float64{1.0920, 1.0930, 1.0960, 1.0930, 1.0920, 1.0925, 1.0930, 1.0935, 1.1040, 1.1050, 1.1060, 1.1070}
	candles := make([]model.Candle, len(highs))
	for i := range highs {
		candles[i] = model.Candle{
			TS:   base.Add(time.Duration(i) * 15 * time.Minute),
			Open: lows[i] + 0.0005, High: highs[i], Low: lows[i], Close: highs[i] - 0.0005,
			Volume: 1000,
		}
	}
	s, err := model.NewCandleSeries("EUR/USD", "15m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}
	d := indicator.Derive(s, 14, 14)

	sweeps, err := Sweeps(s, d, extract(t, s, d), DefaultConfig())
	if err != nil {
		t.Fatalf("Sweeps: %v", err)
	}
	for _, sw := range sweeps {
		if sw.SwingRef == 2 && sw.Side == model.BuySide {
			t.Errorf("breakout of swing 2 reported as sweep: %+v", sw)
		}
	}
}

func TestVoidsDetectGapUp(t *testing.T) {
	highs := []float64{1.1000, 1.1010, 1.1005, 1.1120, 1.1130, 1.1125}
	lows := []float64{1.0950, 1.0960, 1.0955, 1.1080, 1.1090, 1.1085}
	s, d := seriesFromHL(t, highs, lows)

	voids, err := Voids(s, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Voids: %v", err)
	}
	if len(voids) != 1 {
		t.Fatalf("got %d voids, want 1: %+v", len(voids), voids)
	}
	v := voids[0]
	if math.Abs(v.PriceLow-1.1005) > 1e-9 || math.Abs(v.PriceHigh-1.1080) > 1e-9 {
		t.Errorf("void = [%.5f, %.5f], want [1.10050, 1.10800]", v.PriceLow, v.PriceHigh)
	}
	if v.Polarity != model.PolarityDemand {
		t.Errorf("polarity = %s, want demand", v.Polarity)
	}
	if v.FillPercent != 0 {
		t.Errorf("fill = %.4f, want 0 (nothing traded back in)", v.FillPercent)
	}
	if v.Validity != model.ValidityFresh {
		t.Errorf("validity = %s, want fresh", v.Validity)
	}
	if v.FillProbability < 0.05 || v.FillProbability > 0.95 {
		t.Errorf("fill probability %.4f outside [0.05, 0.95]", v.FillProbability)
	}
}

func TestVoidFillTracked(t *testing.T) {
	// Gap up at index 3, then candle 5 trades halfway back into it.
	highs := []float64{1.1000, 1.1010, 1.1005, 1.1120, 1.1130, 1.1090}
	lows := []float64{1.0950, 1.0960, 1.0955, 1.1080, 1.1090, 1.1040}
	s, d := seriesFromHL(t, highs, lows)

	voids, err := Voids(s, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Voids: %v", err)
	}
	if len(voids) != 1 {
		t.Fatalf("got %d voids, want 1", len(voids))
	}
	v := voids[0]
	if v.FillPercent <= 0 || v.FillPercent > 1 {
		t.Errorf("fill = %.4f, want in (0,1]", v.FillPercent)
	}
	if v.Validity == model.ValidityFresh {
		t.Error("validity still fresh after price traded back into the void")
	}
}

func TestShortSeriesDegradesToEmpty(t *testing.T) {
	highs := []float64{1.10, 1.11, 1.12}
	lows := []float64{1.09, 1.10, 1.11}
	s, d := seriesFromHL(t, highs, lows)

	sweeps, err := Sweeps(s, d, nil, DefaultConfig())
	if err != nil || len(sweeps) != 0 {
		t.Errorf("Sweeps = (%v, %v), want empty, nil", sweeps, err)
	}
	pools, err := Pools(s, d, nil, DefaultConfig())
	if err != nil || len(pools) != 0 {
		t.Errorf("Pools = (%v, %v), want empty, nil", pools, err)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolMinSize = 1
	if _, err := Pools(nil, nil, nil, cfg); err == nil {
		t.Error("PoolMinSize 1 accepted, want ErrBadParam")
	}
	cfg = DefaultConfig()
	cfg.VoidATRScale = 0
	if _, err := Voids(nil, nil, cfg); err == nil {
		t.Error("VoidATRScale 0 accepted, want ErrBadParam")
	}
}
