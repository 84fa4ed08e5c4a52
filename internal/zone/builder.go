// Package zone constructs the geometric findings: order blocks around
// structure breaks, fair value gaps and size-filtered imbalances, breaker
// blocks flipped out of invalidated order blocks, and the premium/discount
// split of the active swing range. Zones move fresh → tested → invalidated
// in one chronological pass and never transition backwards.
package zone

import (
	"fmt"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/structure"
)

// Config tunes zone construction.
type Config struct {
	OBLookback         int     // candles scanned back from a break for the origin candle
	OBSetupRR          float64 // risk-reward ratio on order-block trade setups
	RevisitDecay       float64 // freshness lost per revisit of an order block
	ImbalanceMinGapATR float64 // minimum gap size, in ATR multiples, for detect_imbalances
	ImbalanceBodyShare float64 // minimum body/range share of the displacing candle
	EquilibriumBand    float64 // half-width of the "at equilibrium" band, as a range fraction
}

// DefaultConfig returns the standard zone parameters.
func DefaultConfig() Config {
	return Config{
		OBLookback:         10,
		OBSetupRR:          2.5,
		RevisitDecay:       0.25,
		ImbalanceMinGapATR: 0.5,
		ImbalanceBodyShare: 0.6,
		EquilibriumBand:    0.05,
	}
}

func (c Config) validate() error {
	if c.OBLookback < 1 || c.OBSetupRR <= 0 {
		return fmt.Errorf("%w: order-block lookback/RR out of range", model.ErrBadParam)
	}
	if c.RevisitDecay < 0 || c.RevisitDecay > 1 || c.EquilibriumBand < 0 || c.EquilibriumBand >= 0.5 {
		return fmt.Errorf("%w: decay or equilibrium band outside range", model.ErrBadParam)
	}
	if c.ImbalanceMinGapATR < 0 || c.ImbalanceBodyShare < 0 || c.ImbalanceBodyShare > 1 {
		return fmt.Errorf("%w: imbalance filter outside range", model.ErrBadParam)
	}
	return nil
}

// OrderBlocks derives one block per structure event: the last candle against
// the break direction within cfg.OBLookback of the break. Lifecycle and
// freshness are resolved against the candles after the origin; invalidated
// blocks lose their trade setup.
func OrderBlocks(s *model.CandleSeries, d *indicator.Derived, events []model.StructureEvent, cfg Config) ([]model.OrderBlock, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	blocks := []model.OrderBlock{}
	for evIdx, ev := range events {
		origin := originCandle(s, ev, cfg.OBLookback)
		if origin < 0 {
			continue
		}
		c := &s.Candles[origin]

		polarity := model.PolarityDemand
		if ev.Direction == model.Bearish {
			polarity = model.PolaritySupply
		}

		volScore := clamp01(c.Volume / (3 * d.AvgVolumeAt(origin)))
		b := model.OrderBlock{
			Zone: model.Zone{
				Kind:        model.ZoneOrderBlock,
				PriceHigh:   c.High,
				PriceLow:    c.Low,
				OriginIndex: origin,
				Polarity:    polarity,
				Strength:    clamp01(0.6*ev.Confidence + 0.4*volScore),
				Validity:    model.ValidityFresh,
			},
			Freshness: 1,
			BreakRef:  evIdx,
		}
		resolveLifecycle(s, &b, ev.BreakIndex, cfg)
		if b.Validity != model.ValidityInvalidated {
			b.Setup = blockSetup(&b, ev.Direction, cfg)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// originCandle walks back from the break for the last candle closed against
// the break direction. Returns -1 when the whole leg is one-directional.
func originCandle(s *model.CandleSeries, ev model.StructureEvent, lookback int) int {
	for i := ev.BreakIndex - 1; i >= 0 && i >= ev.BreakIndex-lookback; i-- {
		c := &s.Candles[i]
		if ev.Direction == model.Bullish && !c.Bullish() {
			return i
		}
		if ev.Direction == model.Bearish && c.Bullish() {
			return i
		}
	}
	return -1
}

// resolveLifecycle replays the candles after the breaking candle against the
// block: a range touch marks it tested and decays freshness; a close fully
// through the zone against its polarity invalidates it.
func resolveLifecycle(s *model.CandleSeries, b *model.OrderBlock, from int, cfg Config) {
	for k := from + 1; k < s.Len(); k++ {
		c := &s.Candles[k]
		if b.Polarity == model.PolarityDemand && c.Close < b.PriceLow {
			b.Validity = model.ValidityInvalidated
			b.Freshness = 0
			return
		}
		if b.Polarity == model.PolaritySupply && c.Close > b.PriceHigh {
			b.Validity = model.ValidityInvalidated
			b.Freshness = 0
			return
		}
		if c.Low <= b.PriceHigh && c.High >= b.PriceLow {
			b.Validity = model.ValidityTested
			b.Freshness = clamp01(b.Freshness - cfg.RevisitDecay)
		}
	}
}

func blockSetup(b *model.OrderBlock, dir model.Direction, cfg Config) *model.TradeSetup {
	if dir == model.Bullish {
		risk := b.PriceHigh - b.PriceLow
		return &model.TradeSetup{
			Direction:  model.Bullish,
			Entry:      b.PriceHigh,
			Stop:       b.PriceLow,
			Target:     b.PriceHigh + cfg.OBSetupRR*risk,
			RiskReward: cfg.OBSetupRR,
		}
	}
	risk := b.PriceHigh - b.PriceLow
	return &model.TradeSetup{
		Direction:  model.Bearish,
		Entry:      b.PriceLow,
		Stop:       b.PriceHigh,
		Target:     b.PriceLow - cfg.OBSetupRR*risk,
		RiskReward: cfg.OBSetupRR,
	}
}

// FairValueGaps scans every 3-candle window for an imbalance: candle 1's
// high below candle 3's low (bullish) or candle 1's low above candle 3's
// high (bearish). Fill is recomputed against the candles after the window,
// so a gap detected on the latest candles reports fillPercent 0.
func FairValueGaps(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.FairValueGap, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	gaps := []model.FairValueGap{}
	for i := 2; i < s.Len(); i++ {
		g := gapAt(s, d, i)
		if g == nil {
			continue
		}
		gaps = append(gaps, *g)
	}
	return gaps, nil
}

// gapAt builds the FVG ending at candle i, or nil when the window has no gap.
func gapAt(s *model.CandleSeries, d *indicator.Derived, i int) *model.FairValueGap {
	first, third := &s.Candles[i-2], &s.Candles[i]

	var lo, hi float64
	var polarity model.Polarity
	if first.High < third.Low { // bullish: untraded range below
		lo, hi = first.High, third.Low
		polarity = model.PolarityDemand
	} else if first.Low > third.High { // bearish: untraded range above
		lo, hi = third.High, first.Low
		polarity = model.PolaritySupply
	} else {
		return nil
	}

	fill := gapFill(s, i+1, lo, hi, polarity)
	return &model.FairValueGap{
		Zone: model.Zone{
			Kind:        model.ZoneFairValueGap,
			PriceHigh:   hi,
			PriceLow:    lo,
			OriginIndex: i - 1,
			Polarity:    polarity,
			Strength:    clamp01((hi - lo) / d.ATRAt(i)),
			Validity:    fillValidity(fill),
			FillPercent: fill,
		},
		Midpoint: (hi + lo) / 2,
	}
}

// Imbalances is the FVG scan with a displacement filter: the gap must span
// at least cfg.ImbalanceMinGapATR ATRs and the middle candle must be
// body-dominant (body/range ≥ cfg.ImbalanceBodyShare).
func Imbalances(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.Imbalance, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := []model.Imbalance{}
	for i := 2; i < s.Len(); i++ {
		g := gapAt(s, d, i)
		if g == nil {
			continue
		}
		middle := &s.Candles[i-1]
		bodyShare := 0.0
		if r := middle.Range(); r > 0 {
			bodyShare = middle.Body() / r
		}
		gapATR := (g.PriceHigh - g.PriceLow) / d.ATRAt(i)
		if gapATR < cfg.ImbalanceMinGapATR || bodyShare < cfg.ImbalanceBodyShare {
			continue
		}
		z := g.Zone
		z.Kind = model.ZoneImbalance
		out = append(out, model.Imbalance{
			Zone:      z,
			Midpoint:  g.Midpoint,
			GapATR:    gapATR,
			BodyShare: bodyShare,
		})
	}
	return out, nil
}

// BreakerBlocks flips every invalidated order block into a breaker: the zone
// geometry survives, polarity inverts, and the block is referenced by index
// rather than copied forward. Strength comes from how far the invalidating
// close displaced through the zone. events must be the slice the blocks were
// built from, so each block's BreakRef resolves to its structure break.
func BreakerBlocks(s *model.CandleSeries, d *indicator.Derived, events []model.StructureEvent, blocks []model.OrderBlock, cfg Config) ([]model.BreakerBlock, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	breakers := []model.BreakerBlock{}
	for bi, b := range blocks {
		if b.Validity != model.ValidityInvalidated {
			continue
		}
		if b.BreakRef < 0 || b.BreakRef >= len(events) {
			continue
		}
		// Scan from the structure break, the same window the lifecycle
		// pass replays; candles before it never count as invalidating.
		flip, displacement := invalidatingClose(s, &b, events[b.BreakRef].BreakIndex)
		if flip < 0 {
			continue
		}
		flipped := model.PolaritySupply
		if b.Polarity == model.PolaritySupply {
			flipped = model.PolarityDemand
		}
		breakers = append(breakers, model.BreakerBlock{
			Zone: model.Zone{
				Kind:        model.ZoneBreakerBlock,
				PriceHigh:   b.PriceHigh,
				PriceLow:    b.PriceLow,
				OriginIndex: b.OriginIndex,
				Polarity:    flipped,
				Strength:    clamp01(displacement / d.ATRAt(flip)),
				Validity:    model.ValidityFresh,
			},
			OriginBlock:      bi,
			OriginalPolarity: b.Polarity,
			FlipIndex:        flip,
		})
	}
	return breakers, nil
}

// invalidatingClose finds the first close fully through the block against
// its polarity and the distance it closed past the far edge, scanning from
// the candle after from.
func invalidatingClose(s *model.CandleSeries, b *model.OrderBlock, from int) (int, float64) {
	for k := from + 1; k < s.Len(); k++ {
		c := s.Candles[k].Close
		if b.Polarity == model.PolarityDemand && c < b.PriceLow {
			return k, b.PriceLow - c
		}
		if b.Polarity == model.PolaritySupply && c > b.PriceHigh {
			return k, c - b.PriceHigh
		}
	}
	return -1, 0
}

// PremiumDiscount splits the active swing range (the structure machine's
// last confirmed high/low) at equilibrium and reports where the current
// close sits. Without a confirmed range on both sides there is nothing to
// split and ok is false.
func PremiumDiscount(s *model.CandleSeries, st structure.State, cfg Config) (*model.PremiumDiscount, bool, error) {
	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	if st.LastHigh == nil || st.LastLow == nil || st.LastHigh.Price <= st.LastLow.Price {
		return nil, false, nil
	}
	hi, lo := st.LastHigh.Price, st.LastLow.Price
	rng := hi - lo
	eq := lo + rng/2

	last := s.Last().Close
	position := "equilibrium"
	bias := model.Neutral
	band := cfg.EquilibriumBand * rng
	switch {
	case last > eq+band:
		position = "premium"
		bias = model.Bearish // look for supply up here
	case last < eq-band:
		position = "discount"
		bias = model.Bullish
	}

	ratios := []float64{0.236, 0.382, 0.5, 0.618, 0.705, 0.786}
	fibs := make([]model.FibLevel, len(ratios))
	for i, r := range ratios {
		fibs[i] = model.FibLevel{Ratio: r, Price: lo + r*rng}
	}

	return &model.PremiumDiscount{
		SwingHigh:   hi,
		SwingLow:    lo,
		Equilibrium: eq,
		Premium:     model.Band{Upper: hi, Lower: eq},
		Discount:    model.Band{Upper: eq, Lower: lo},
		// OTE: the 0.618–0.79 retracement pocket measured from each extreme.
		PremiumOTE:      model.Band{Upper: lo + 0.79*rng, Lower: lo + 0.618*rng},
		DiscountOTE:     model.Band{Upper: hi - 0.618*rng, Lower: hi - 0.79*rng},
		Fibs:            fibs,
		CurrentPosition: position,
		Bias:            bias,
	}, true, nil
}

// gapFill mirrors the liquidity-void fill rule: demand gaps fill from above,
// supply gaps from below.
func gapFill(s *model.CandleSeries, from int, lo, hi float64, polarity model.Polarity) float64 {
	size := hi - lo
	if size <= 0 {
		return 0
	}
	depth := 0.0
	for k := from; k < s.Len(); k++ {
		var d float64
		if polarity == model.PolarityDemand {
			d = hi - s.Candles[k].Low
		} else {
			d = s.Candles[k].High - lo
		}
		if d > depth {
			depth = d
		}
	}
	return clamp01(depth / size)
}

func fillValidity(fill float64) model.Validity {
	switch {
	case fill >= 1:
		return model.ValidityInvalidated
	case fill > 0:
		return model.ValidityTested
	default:
		return model.ValidityFresh
	}
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
