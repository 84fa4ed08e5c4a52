package confluence

import (
	"testing"
	"time"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

func derived(t *testing.T) *indicator.Derived {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 20)
	for i := range candles {
		candles[i] = model.Candle{
			TS:   base.Add(time.Duration(i) * 15 * time.Minute),
			Open: 1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000,
			Volume: 1000,
		}
	}
	s, err := model.NewCandleSeries("EUR/USD", "15m", candles)
	if err != nil {
		t.Fatalf("NewCandleSeries: %v", err)
	}
	return indicator.Derive(s, 14, 14)
}

func demandZone(kind model.ZoneKind, lo, hi float64) model.Zone {
	return model.Zone{
		Kind: kind, PriceHigh: hi, PriceLow: lo,
		Polarity: model.PolarityDemand, Strength: 0.8, Validity: model.ValidityFresh,
	}
}

func TestAggregateEmptyFindings(t *testing.T) {
	out, err := Aggregate(Findings{}, derived(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d confluences from empty findings, want 0", len(out))
	}
}

func TestAggregateGroupsOverlappingKinds(t *testing.T) {
	// Three distinct kinds stacked around 1.1000, plus a lone pool far away.
	f := Findings{
		Events: []model.StructureEvent{{
			Kind: model.EventBOS, Direction: model.Bullish,
			BrokenSwing: model.SwingPoint{Index: 5, Price: 1.1002, Kind: model.SwingHigh},
			BreakIndex:  8, Confidence: 0.7,
		}},
		Blocks: []model.OrderBlock{{Zone: demandZone(model.ZoneOrderBlock, 1.0995, 1.1005), Freshness: 1}},
		Gaps:   []model.FairValueGap{{Zone: demandZone(model.ZoneFairValueGap, 1.0998, 1.1008), Midpoint: 1.1003}},
		Pools: []model.LiquidityPool{{
			Zone: demandZone(model.ZoneLiquidityPool, 1.2000, 1.2004),
			Side: model.SellSide, Level: 1.2002, Density: 2, Magnetism: 0.5,
		}},
	}

	out, err := Aggregate(f, derived(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d confluences, want 1 (far pool alone misses min kinds): %+v", len(out), out)
	}
	c := out[0]
	if c.Kinds != 3 {
		t.Errorf("distinct kinds = %d, want 3", c.Kinds)
	}
	if len(c.Factors) != 3 {
		t.Errorf("factors = %d, want 3", len(c.Factors))
	}
	if c.Direction != model.Bullish || c.SetupType != "long_setup" {
		t.Errorf("direction/setup = %s/%s, want bullish/long_setup", c.Direction, c.SetupType)
	}
	if c.Score <= 0 || c.Score > 1 {
		t.Errorf("score %.4f outside (0,1]", c.Score)
	}
	if c.PriceLow > 1.0995 || c.PriceHigh < 1.1008 {
		t.Errorf("envelope [%.5f, %.5f] does not cover the stacked zones", c.PriceLow, c.PriceHigh)
	}
}

func TestAggregateRepeatKindsDiminish(t *testing.T) {
	// Four order blocks at one level are one kind, not four: below min kinds.
	f := Findings{
		Blocks: []model.OrderBlock{
			{Zone: demandZone(model.ZoneOrderBlock, 1.0995, 1.1005)},
			{Zone: demandZone(model.ZoneOrderBlock, 1.0996, 1.1006)},
			{Zone: demandZone(model.ZoneOrderBlock, 1.0997, 1.1007)},
			{Zone: demandZone(model.ZoneOrderBlock, 1.0994, 1.1004)},
		},
	}
	out, err := Aggregate(f, derived(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d confluences from a single repeated kind, want 0", len(out))
	}
}

func TestAggregateSkipsInvalidatedZones(t *testing.T) {
	dead := demandZone(model.ZoneOrderBlock, 1.0995, 1.1005)
	dead.Validity = model.ValidityInvalidated
	f := Findings{
		Events: []model.StructureEvent{{
			Kind: model.EventBOS, Direction: model.Bullish,
			BrokenSwing: model.SwingPoint{Index: 5, Price: 1.1002, Kind: model.SwingHigh},
		}},
		Blocks: []model.OrderBlock{{Zone: dead}},
		Gaps:   []model.FairValueGap{{Zone: demandZone(model.ZoneFairValueGap, 1.0998, 1.1008)}},
	}
	out, err := Aggregate(f, derived(t), DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	// Only structure + FVG survive: two kinds, below the minimum.
	if len(out) != 0 {
		t.Errorf("invalidated block still counted: %+v", out)
	}
}

func TestAggregateDeterministicOrder(t *testing.T) {
	f := Findings{
		Events: []model.StructureEvent{{
			Kind: model.EventBOS, Direction: model.Bullish,
			BrokenSwing: model.SwingPoint{Index: 5, Price: 1.1002, Kind: model.SwingHigh},
		}},
		Blocks: []model.OrderBlock{{Zone: demandZone(model.ZoneOrderBlock, 1.0995, 1.1005)}},
		Gaps:   []model.FairValueGap{{Zone: demandZone(model.ZoneFairValueGap, 1.0998, 1.1008)}},
		Flow:   &model.FlowMetric{PointOfControl: 1.1001, ValueAreaHigh: 1.1010, ValueAreaLow: 1.0992, DominantSide: "buying"},
	}
	d := derived(t)
	a, err := Aggregate(f, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	b, err := Aggregate(f, d, DefaultConfig())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("repeat run changed count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Score != b[i].Score || a[i].PriceLevel != b[i].PriceLevel || len(a[i].Factors) != len(b[i].Factors) {
			t.Errorf("confluence %d differs across identical runs", i)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinKinds = 0
	if _, err := Aggregate(Findings{}, nil, cfg); err == nil {
		t.Error("MinKinds 0 accepted, want ErrBadParam")
	}
	cfg = DefaultConfig()
	cfg.RepeatDecay = 2
	if _, err := Aggregate(Findings{}, nil, cfg); err == nil {
		t.Error("RepeatDecay 2 accepted, want ErrBadParam")
	}
}
