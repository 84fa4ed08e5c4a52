// Package confluence ranks price levels where independently produced
// findings stack. It only consumes already-materialized results — it never
// invokes a detector — and an empty findings set is a legitimate empty
// answer, not an error.
package confluence

import (
	"fmt"
	"sort"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Config tunes the grouping and scoring pass.
type Config struct {
	ToleranceATR float64 // extra reach, in ATR multiples, when merging factor ranges
	MinKinds     int     // distinct factor kinds required to report a confluence
	RepeatDecay  float64 // weight multiplier for each repeat of an already-present kind
	KindCap      int     // kind count at which the score saturates
}

// DefaultConfig returns the standard confluence parameters.
func DefaultConfig() Config {
	return Config{
		ToleranceATR: 0.5,
		MinKinds:     3,
		RepeatDecay:  0.5,
		KindCap:      5,
	}
}

func (c Config) validate() error {
	if c.ToleranceATR <= 0 || c.MinKinds < 1 || c.KindCap < c.MinKinds {
		return fmt.Errorf("%w: confluence tolerance or kind bounds out of range", model.ErrBadParam)
	}
	if c.RepeatDecay < 0 || c.RepeatDecay > 1 {
		return fmt.Errorf("%w: repeat decay %.2f outside [0,1]", model.ErrBadParam, c.RepeatDecay)
	}
	return nil
}

// Findings carries the materialized outputs the aggregator draws on. Any
// slice may be empty; Flow and Bands may be nil.
type Findings struct {
	Events   []model.StructureEvent
	Blocks   []model.OrderBlock
	Breakers []model.BreakerBlock
	Gaps     []model.FairValueGap
	Pools    []model.LiquidityPool
	Voids    []model.LiquidityVoid
	Flow     *model.FlowMetric
	Bands    *model.PremiumDiscount
}

// factor is one finding reduced to a price range plus provenance.
type factor struct {
	ref model.FactorRef
	lo  float64
	hi  float64
}

// Aggregate groups overlapping findings into scored confluences, strongest
// first. An empty findings set yields an empty list.
func Aggregate(f Findings, d *indicator.Derived, cfg Config) ([]model.Confluence, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	factors := collect(f)
	if len(factors) == 0 {
		return []model.Confluence{}, nil
	}

	// Sorting by level (ties by kind, then ref) makes grouping independent
	// of detector invocation order, which keeps repeat runs byte-identical.
	sort.Slice(factors, func(i, j int) bool {
		a, b := factors[i], factors[j]
		if a.ref.Level != b.ref.Level {
			return a.ref.Level < b.ref.Level
		}
		if a.ref.Kind != b.ref.Kind {
			return a.ref.Kind < b.ref.Kind
		}
		return a.ref.Ref < b.ref.Ref
	})

	tol := cfg.ToleranceATR * lastATR(d)
	var groups [][]factor
	cur := []factor{factors[0]}
	curHi := factors[0].hi
	for _, fc := range factors[1:] {
		if fc.lo <= curHi+tol {
			cur = append(cur, fc)
			if fc.hi > curHi {
				curHi = fc.hi
			}
			continue
		}
		groups = append(groups, cur)
		cur = []factor{fc}
		curHi = fc.hi
	}
	groups = append(groups, cur)

	out := []model.Confluence{}
	for _, g := range groups {
		if c, ok := score(g, cfg); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// score folds one group into a Confluence; ok is false below the distinct
// kind minimum.
func score(group []factor, cfg Config) (model.Confluence, bool) {
	seen := map[model.FactorKind]int{}
	weighted := 0.0
	lo, hi := group[0].lo, group[0].hi
	levelSum := 0.0
	bulls, bears := 0, 0
	refs := make([]model.FactorRef, 0, len(group))

	for _, fc := range group {
		w := 1.0
		for i := 0; i < seen[fc.ref.Kind]; i++ {
			w *= cfg.RepeatDecay // diminishing returns for stacked same-kind factors
		}
		weighted += w
		seen[fc.ref.Kind]++

		if fc.lo < lo {
			lo = fc.lo
		}
		if fc.hi > hi {
			hi = fc.hi
		}
		levelSum += fc.ref.Level
		switch fc.ref.Direction {
		case model.Bullish:
			bulls++
		case model.Bearish:
			bears++
		}
		refs = append(refs, fc.ref)
	}

	if len(seen) < cfg.MinKinds {
		return model.Confluence{}, false
	}

	dir := model.Neutral
	setup := "mixed"
	if bulls > bears {
		dir, setup = model.Bullish, "long_setup"
	} else if bears > bulls {
		dir, setup = model.Bearish, "short_setup"
	}

	return model.Confluence{
		PriceLevel: levelSum / float64(len(group)),
		PriceHigh:  hi,
		PriceLow:   lo,
		Factors:    refs,
		Kinds:      len(seen),
		Score:      clamp01(weighted / float64(cfg.KindCap)),
		Direction:  dir,
		SetupType:  setup,
	}, true
}

// collect flattens every finding family into factors in a fixed family
// order; within a family the detector's own output order is kept.
func collect(f Findings) []factor {
	var out []factor
	for i, ev := range f.Events {
		out = append(out, factor{
			ref: model.FactorRef{Kind: model.FactorStructure, Ref: i, Level: ev.BrokenSwing.Price, Direction: ev.Direction},
			lo:  ev.BrokenSwing.Price,
			hi:  ev.BrokenSwing.Price,
		})
	}
	for i, b := range f.Blocks {
		if b.Validity == model.ValidityInvalidated {
			continue
		}
		out = append(out, zoneFactor(model.FactorOrderBlock, i, b.Zone))
	}
	for i, br := range f.Breakers {
		out = append(out, zoneFactor(model.FactorBreaker, i, br.Zone))
	}
	for i, g := range f.Gaps {
		if g.Validity == model.ValidityInvalidated {
			continue
		}
		out = append(out, zoneFactor(model.FactorFVG, i, g.Zone))
	}
	for i, p := range f.Pools {
		out = append(out, zoneFactor(model.FactorPool, i, p.Zone))
	}
	for i, v := range f.Voids {
		if v.Validity == model.ValidityInvalidated {
			continue
		}
		out = append(out, zoneFactor(model.FactorVoid, i, v.Zone))
	}
	if f.Flow != nil {
		out = append(out, factor{
			ref: model.FactorRef{Kind: model.FactorPOC, Ref: 0, Level: f.Flow.PointOfControl, Direction: model.Neutral},
			lo:  f.Flow.ValueAreaLow,
			hi:  f.Flow.ValueAreaHigh,
		})
	}
	if f.Bands != nil {
		// The OTE pocket on the biased side is the actionable band.
		band := f.Bands.DiscountOTE
		dir := model.Bullish
		if f.Bands.Bias == model.Bearish {
			band = f.Bands.PremiumOTE
			dir = model.Bearish
		}
		out = append(out, factor{
			ref: model.FactorRef{Kind: model.FactorBand, Ref: 0, Level: (band.Upper + band.Lower) / 2, Direction: dir},
			lo:  band.Lower,
			hi:  band.Upper,
		})
	}
	return out
}

func zoneFactor(kind model.FactorKind, ref int, z model.Zone) factor {
	dir := model.Neutral
	switch z.Polarity {
	case model.PolarityDemand:
		dir = model.Bullish
	case model.PolaritySupply:
		dir = model.Bearish
	}
	return factor{
		ref: model.FactorRef{Kind: kind, Ref: ref, Level: z.Mid(), Direction: dir},
		lo:  z.PriceLow,
		hi:  z.PriceHigh,
	}
}

func lastATR(d *indicator.Derived) float64 {
	if d == nil || len(d.ATR) == 0 {
		return 1e-9
	}
	return d.ATRAt(len(d.ATR) - 1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
