// Package liquidity detects where resting orders pool and where price moved
// through untraded space: sweep raids through prior swings, equal-high/low
// pools, liquidity voids and thin one-directional traversals.
package liquidity

import (
	"fmt"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Config tunes the liquidity detectors. Zero values are invalid; use
// DefaultConfig and override.
type Config struct {
	SweepMinATR    float64 // minimum wick excursion past the swept level, in ATR multiples
	SweepCloseBack int     // candles allowed for the close back on the original side
	SweepHorizon   int     // candles scanned after a sweep to classify reversal vs continuation
	PoolTolATR     float64 // price tolerance band for clustering equal extremes, in ATR multiples
	PoolMinSize    int     // minimum cluster size to report a pool
	VoidATRScale   float64 // void size (in ATR) at which the fill-probability heuristic bottoms out
	ThinnessMin    float64 // minimum thinness for a traversal to count as an inefficiency
}

// DefaultConfig returns the standard liquidity parameters.
func DefaultConfig() Config {
	return Config{
		SweepMinATR:    0.05,
		SweepCloseBack: 2,
		SweepHorizon:   5,
		PoolTolATR:     0.25,
		PoolMinSize:    2,
		VoidATRScale:   3.0,
		ThinnessMin:    0.6,
	}
}

func (c Config) validate() error {
	if c.SweepMinATR < 0 || c.PoolTolATR <= 0 || c.VoidATRScale <= 0 {
		return fmt.Errorf("%w: non-positive liquidity threshold", model.ErrBadParam)
	}
	if c.SweepCloseBack < 1 || c.SweepHorizon < 1 || c.PoolMinSize < 2 {
		return fmt.Errorf("%w: liquidity window out of range", model.ErrBadParam)
	}
	if c.ThinnessMin < 0 || c.ThinnessMin > 1 {
		return fmt.Errorf("%w: thinness %.2f outside [0,1]", model.ErrBadParam, c.ThinnessMin)
	}
	return nil
}

// Sweeps finds wick raids through prior swing points that closed back on the
// original side within cfg.SweepCloseBack candles. Each swing is swept at
// most once — by the first candle that pierces it. Too few swings produce an
// empty result.
func Sweeps(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, cfg Config) ([]model.Sweep, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sweeps := []model.Sweep{}
	lastClose := s.Last().Close
	swept := make([]bool, len(swings))

	for j := 0; j < s.Len(); j++ {
		for k, sp := range swings {
			if swept[k] || sp.Index >= j {
				continue
			}
			threshold := cfg.SweepMinATR * d.ATRAt(j)
			var sw *model.Sweep
			if sp.Kind == model.SwingHigh && s.Candles[j].High > sp.Price+threshold {
				sw = buildSweep(s, d, j, sp, model.BuySide, cfg)
			} else if sp.Kind == model.SwingLow && s.Candles[j].Low < sp.Price-threshold {
				sw = buildSweep(s, d, j, sp, model.SellSide, cfg)
			}
			if sw == nil {
				continue
			}
			swept[k] = true // pierced; only a close-back makes it a sweep
			if sw.SweepIndex >= 0 {
				sw.Distance = abs(sw.Level - lastClose)
				sweeps = append(sweeps, *sw)
			}
		}
	}
	return sweeps, nil
}

// buildSweep confirms the close-back and classifies the raid. A sweep with
// SweepIndex -1 means the pierce never closed back and is discarded.
func buildSweep(s *model.CandleSeries, d *indicator.Derived, j int, sp model.SwingPoint, side model.Side, cfg Config) *model.Sweep {
	closeBack := -1
	for k := j; k < s.Len() && k <= j+cfg.SweepCloseBack; k++ {
		c := s.Candles[k].Close
		if (side == model.BuySide && c < sp.Price) || (side == model.SellSide && c > sp.Price) {
			closeBack = k
			break
		}
	}
	if closeBack < 0 {
		return &model.Sweep{SweepIndex: -1}
	}

	excursion := s.Candles[j].High - sp.Price
	reaction := (sp.Price - s.Candles[closeBack].Close) / d.ATRAt(j)
	if side == model.SellSide {
		excursion = sp.Price - s.Candles[j].Low
		reaction = (s.Candles[closeBack].Close - sp.Price) / d.ATRAt(j)
	}

	return &model.Sweep{
		Side:           side,
		Level:          sp.Price,
		SweepIndex:     j,
		SwingRef:       sp.Index,
		Excursion:      excursion,
		Reaction:       clamp01(reaction),
		Classification: classifySweep(s, j, closeBack, side, cfg),
	}
}

// classifySweep looks a short horizon past the close-back: if price pushes
// through the sweep candle's far extreme the raid reversed the move,
// otherwise the original direction continued.
func classifySweep(s *model.CandleSeries, j, closeBack int, side model.Side, cfg Config) string {
	for k := closeBack + 1; k < s.Len() && k <= closeBack+cfg.SweepHorizon; k++ {
		c := s.Candles[k].Close
		if side == model.BuySide && c < s.Candles[j].Low {
			return "reversal"
		}
		if side == model.SellSide && c > s.Candles[j].High {
			return "reversal"
		}
	}
	return "continuation"
}

// Pools clusters same-kind swing points whose prices sit within
// cfg.PoolTolATR of the running cluster mean. Density is the cluster size;
// magnetism weights density by how recent the members are.
func Pools(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, cfg Config) ([]model.LiquidityPool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pools := []model.LiquidityPool{}
	pools = append(pools, clusterKind(s, d, swings, model.SwingHigh, cfg)...)
	pools = append(pools, clusterKind(s, d, swings, model.SwingLow, cfg)...)
	return pools, nil
}

type cluster struct {
	indices []int
	prices  []float64
	sum     float64
}

func (c *cluster) mean() float64 { return c.sum / float64(len(c.prices)) }

func clusterKind(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, kind model.SwingKind, cfg Config) []model.LiquidityPool {
	var clusters []*cluster
	for _, sp := range swings {
		if sp.Kind != kind {
			continue
		}
		tol := cfg.PoolTolATR * d.ATRAt(sp.Index)
		placed := false
		for _, cl := range clusters {
			if abs(sp.Price-cl.mean()) <= tol {
				cl.indices = append(cl.indices, sp.Index)
				cl.prices = append(cl.prices, sp.Price)
				cl.sum += sp.Price
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{
				indices: []int{sp.Index},
				prices:  []float64{sp.Price},
				sum:     sp.Price,
			})
		}
	}

	side := model.BuySide
	polarity := model.PolaritySupply // buy stops above equal highs get raided by supply
	if kind == model.SwingLow {
		side = model.SellSide
		polarity = model.PolarityDemand
	}

	n := float64(s.Len())
	pools := []model.LiquidityPool{}
	for _, cl := range clusters {
		if len(cl.indices) < cfg.PoolMinSize {
			continue
		}
		lo, hi := cl.prices[0], cl.prices[0]
		recency := 0.0
		for i, p := range cl.prices {
			if p < lo {
				lo = p
			}
			if p > hi {
				hi = p
			}
			recency += float64(cl.indices[i]+1) / n
		}
		recency /= float64(len(cl.indices))
		density := len(cl.indices)

		// Magnetism: recency scaled by how crowded the level is, saturating
		// at four stacked extremes.
		magnetism := clamp01(recency * minF(1, float64(density)/4))

		pools = append(pools, model.LiquidityPool{
			Zone: model.Zone{
				Kind:        model.ZoneLiquidityPool,
				PriceHigh:   hi,
				PriceLow:    lo,
				OriginIndex: cl.indices[0],
				Polarity:    polarity,
				Strength:    magnetism,
				Validity:    model.ValidityFresh,
			},
			Side:         side,
			Level:        cl.mean(),
			Density:      density,
			Magnetism:    magnetism,
			SwingIndices: cl.indices,
		})
	}
	return pools
}

// Voids finds untraded gaps between consecutive candle ranges and tracks how
// far later candles have traded back into them. The fill-probability
// heuristic decreases with void size relative to ATR, clamped to
// [0.05, 0.95] — large displacements fill slowly.
func Voids(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.LiquidityVoid, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	voids := []model.LiquidityVoid{}
	for i := 1; i < s.Len(); i++ {
		prev, cur := &s.Candles[i-1], &s.Candles[i]

		var lo, hi float64
		var polarity model.Polarity
		if cur.Low > prev.High { // gap up
			lo, hi = prev.High, cur.Low
			polarity = model.PolarityDemand
		} else if cur.High < prev.Low { // gap down
			lo, hi = cur.High, prev.Low
			polarity = model.PolaritySupply
		} else {
			continue
		}

		fill := gapFill(s, i+1, lo, hi, polarity)
		v := model.LiquidityVoid{
			Zone: model.Zone{
				Kind:        model.ZoneLiquidityVoid,
				PriceHigh:   hi,
				PriceLow:    lo,
				OriginIndex: i,
				Polarity:    polarity,
				Strength:    clamp01((hi - lo) / d.ATRAt(i)),
				Validity:    fillValidity(fill),
				FillPercent: fill,
			},
			Midpoint:        (hi + lo) / 2,
			FillProbability: fillProbability(hi-lo, d.ATRAt(i), cfg.VoidATRScale),
		}
		voids = append(voids, v)
	}
	return voids, nil
}

// Inefficiencies reports thin one-directional traversals: a strongly
// directional candle whose body range gets little coverage from the
// neighboring candles. Reported with void-style fill tracking.
func Inefficiencies(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.Inefficiency, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := []model.Inefficiency{}
	for i := 1; i < s.Len()-1; i++ {
		c := &s.Candles[i]
		body := c.Body()
		if body <= 0 || body < d.ATRAt(i) { // only displacement candles qualify
			continue
		}
		lo, hi := c.Open, c.Close
		if lo > hi {
			lo, hi = hi, lo
		}

		covered := overlap(lo, hi, s.Candles[i-1].Low, s.Candles[i-1].High) +
			overlap(lo, hi, s.Candles[i+1].Low, s.Candles[i+1].High)
		thinness := clamp01(1 - covered/body)
		if thinness < cfg.ThinnessMin {
			continue
		}

		dir := model.Bullish
		polarity := model.PolarityDemand
		if !c.Bullish() {
			dir = model.Bearish
			polarity = model.PolaritySupply
		}
		fill := gapFill(s, i+1, lo, hi, polarity)
		out = append(out, model.Inefficiency{
			Zone: model.Zone{
				Kind:        model.ZoneInefficiency,
				PriceHigh:   hi,
				PriceLow:    lo,
				OriginIndex: i,
				Polarity:    polarity,
				Strength:    thinness,
				Validity:    fillValidity(fill),
				FillPercent: fill,
			},
			Direction: dir,
			Thinness:  thinness,
		})
	}
	return out, nil
}

// gapFill measures how much of [lo, hi] later candles traded back through,
// from the side price left it on. Demand gaps fill from above (price trading
// down into them), supply gaps from below.
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

// fillProbability is the documented pluggable heuristic: linear decay in
// void size over scale ATRs, clamped to [0.05, 0.95].
func fillProbability(size, atr, scale float64) float64 {
	p := 1 - size/(scale*atr)
	if p < 0.05 {
		return 0.05
	}
	if p > 0.95 {
		return 0.95
	}
	return p
}

func overlap(aLo, aHi, bLo, bHi float64) float64 {
	lo, hi := maxF(aLo, bLo), minF(aHi, bHi)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
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
