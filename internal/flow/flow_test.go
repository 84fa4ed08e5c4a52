package flow

import (
	"math"
	"testing"
	"time"

	"smc-enginev1/internal/model"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func series(t *testing.T, candles []model.Candle) *model.CandleSeries {
	t.Helper()
	for i := range candles {
		candles[i].TS = base.Add(time.Duration(i) * 15 * time.Minute)
	}
	s, err := model.NewCandleSeries("EUR/USD", "15m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}
	return s
}

func TestProfilePointOfControl(t *testing.T) {
	// Heavy volume concentrated in the 1.1000-1.1010 band; POC must land there.
	s := series(t, []model.Candle{
		{Open: 1.1005, High: 1.1010, Low: 1.1000, Close: 1.1008, Volume: 9000},
		{Open: 1.1008, High: 1.1010, Low: 1.1000, Close: 1.1002, Volume: 9000},
		{Open: 1.1002, High: 1.1050, Low: 1.1000, Close: 1.1045, Volume: 1000},
		{Open: 1.1045, High: 1.1060, Low: 1.1040, Close: 1.1055, Volume: 500},
	})

	prof, err := Profile(s, DefaultConfig())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if prof.PointOfControl < 1.1000 || prof.PointOfControl > 1.1012 {
		t.Errorf("POC = %.5f, want inside the heavy band around 1.1005", prof.PointOfControl)
	}
	if prof.ValueAreaShare < DefaultConfig().ValueAreaShare {
		t.Errorf("value area captured %.3f, want >= %.2f", prof.ValueAreaShare, DefaultConfig().ValueAreaShare)
	}
	if prof.ValueAreaLow > prof.PointOfControl || prof.ValueAreaHigh < prof.PointOfControl {
		t.Errorf("value area [%.5f, %.5f] does not contain POC %.5f",
			prof.ValueAreaLow, prof.ValueAreaHigh, prof.PointOfControl)
	}
	var sum float64
	for _, b := range prof.Buckets {
		sum += b.Volume
	}
	if math.Abs(sum-prof.TotalVolume) > prof.TotalVolume*1e-9 {
		t.Errorf("bucket volumes sum to %.2f, want %.2f", sum, prof.TotalVolume)
	}
}

func TestOrderFlowDominantSide(t *testing.T) {
	// Every candle closes at its high: pure buying.
	s := series(t, []model.Candle{
		{Open: 1.1000, High: 1.1020, Low: 1.0995, Close: 1.1020, Volume: 1000},
		{Open: 1.1020, High: 1.1040, Low: 1.1015, Close: 1.1040, Volume: 1200},
		{Open: 1.1040, High: 1.1060, Low: 1.1035, Close: 1.1060, Volume: 1400},
	})

	of, err := OrderFlow(s, DefaultConfig())
	if err != nil {
		t.Fatalf("OrderFlow: %v", err)
	}
	if of.DominantSide != "buying" || of.Bias != model.Bullish {
		t.Errorf("dominant side = %s / bias %s, want buying/bullish", of.DominantSide, of.Bias)
	}
	if of.Delta <= 0 {
		t.Errorf("delta = %.2f, want > 0", of.Delta)
	}
	if of.DeltaRatio < -1 || of.DeltaRatio > 1 {
		t.Errorf("delta ratio %.4f outside [-1,1]", of.DeltaRatio)
	}
	if math.Abs(of.BuyingPressure-1) > 1e-9 {
		t.Errorf("buying pressure = %.4f, want 1 (all closes at highs)", of.BuyingPressure)
	}
	if len(of.PerCandle) != s.Len() {
		t.Errorf("per-candle deltas = %d entries, want %d", len(of.PerCandle), s.Len())
	}
}

func TestOrderFlowBalancedDojis(t *testing.T) {
	s := series(t, []model.Candle{
		{Open: 1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000, Volume: 1000},
		{Open: 1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000, Volume: 1000},
	})
	of, err := OrderFlow(s, DefaultConfig())
	if err != nil {
		t.Fatalf("OrderFlow: %v", err)
	}
	if of.DominantSide != "balanced" || of.Bias != model.Neutral {
		t.Errorf("dominant side = %s / bias %s, want balanced/neutral", of.DominantSide, of.Bias)
	}
}

func TestSummaryMatchesParts(t *testing.T) {
	s := series(t, []model.Candle{
		{Open: 1.1000, High: 1.1020, Low: 1.0995, Close: 1.1018, Volume: 1000},
		{Open: 1.1018, High: 1.1040, Low: 1.1010, Close: 1.1035, Volume: 1200},
		{Open: 1.1035, High: 1.1050, Low: 1.1030, Close: 1.1032, Volume: 900},
	})
	sum, err := Summary(s, DefaultConfig())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	prof, _ := Profile(s, DefaultConfig())
	of, _ := OrderFlow(s, DefaultConfig())
	if sum.PointOfControl != prof.PointOfControl || sum.FlowDelta != of.Delta {
		t.Errorf("summary diverges from parts: %+v", sum)
	}
}

func TestProfileConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buckets = 1
	if _, err := Profile(nil, cfg); err == nil {
		t.Error("1 bucket accepted, want ErrBadParam")
	}
	cfg = DefaultConfig()
	cfg.ValueAreaShare = 1.2
	if _, err := OrderFlow(nil, cfg); err == nil {
		t.Error("value-area share 1.2 accepted, want ErrBadParam")
	}
}
