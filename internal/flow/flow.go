// Package flow derives volume-weighted structure from a candle window: the
// volume-by-price profile with its point of control and value area, the
// per-candle order-flow delta, and price/flow divergences.
package flow

import (
	"fmt"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Config tunes the flow analyzers.
type Config struct {
	Buckets        int     // volume profile resolution
	ValueAreaShare float64 // volume fraction the value area must capture
	DeltaWindow    int     // rolling window for the flow-momentum series
	BalancedBand   float64 // |delta ratio| below which flow counts as balanced
}

// DefaultConfig returns the standard flow parameters.
func DefaultConfig() Config {
	return Config{
		Buckets:        24,
		ValueAreaShare: 0.70,
		DeltaWindow:    5,
		BalancedBand:   0.05,
	}
}

func (c Config) validate() error {
	if c.Buckets < 2 {
		return fmt.Errorf("%w: profile needs >= 2 buckets", model.ErrBadParam)
	}
	if c.ValueAreaShare <= 0 || c.ValueAreaShare > 1 {
		return fmt.Errorf("%w: value-area share %.2f outside (0,1]", model.ErrBadParam, c.ValueAreaShare)
	}
	if c.DeltaWindow < 1 || c.BalancedBand < 0 || c.BalancedBand > 1 {
		return fmt.Errorf("%w: flow window or band out of range", model.ErrBadParam)
	}
	return nil
}

// Profile builds the volume-by-price histogram. Each candle's volume is
// spread across the buckets its range overlaps, proportional to the overlap.
// The value area grows outward from the point of control, always absorbing
// the heavier neighbor, until cfg.ValueAreaShare of the volume is inside.
func Profile(s *model.CandleSeries, cfg Config) (*model.VolumeProfile, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	lo, hi := s.Candles[0].Low, s.Candles[0].High
	total := 0.0
	for i := range s.Candles {
		c := &s.Candles[i]
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
		total += c.Volume
	}
	if hi <= lo || total <= 0 {
		// Flat window: everything traded at one price.
		return &model.VolumeProfile{
			PointOfControl: lo,
			ValueAreaHigh:  hi,
			ValueAreaLow:   lo,
			ValueAreaShare: 1,
			TotalVolume:    total,
			Buckets:        []model.VolumeBucket{{PriceLow: lo, PriceHigh: hi, Volume: total}},
		}, nil
	}

	width := (hi - lo) / float64(cfg.Buckets)
	buckets := make([]model.VolumeBucket, cfg.Buckets)
	for b := range buckets {
		buckets[b] = model.VolumeBucket{
			PriceLow:  lo + float64(b)*width,
			PriceHigh: lo + float64(b+1)*width,
		}
	}
	for i := range s.Candles {
		c := &s.Candles[i]
		span := c.Range()
		for b := range buckets {
			ov := overlap(c.Low, c.High, buckets[b].PriceLow, buckets[b].PriceHigh)
			if ov <= 0 {
				continue
			}
			if span > 0 {
				buckets[b].Volume += c.Volume * ov / span
			} else if c.Low >= buckets[b].PriceLow && c.Low < buckets[b].PriceHigh {
				buckets[b].Volume += c.Volume // doji: all volume at one price
			}
		}
	}

	poc := 0
	for b := range buckets {
		if buckets[b].Volume > buckets[poc].Volume {
			poc = b
		}
	}

	loB, hiB := poc, poc
	captured := buckets[poc].Volume
	for captured < cfg.ValueAreaShare*total && (loB > 0 || hiB < len(buckets)-1) {
		below, above := -1.0, -1.0
		if loB > 0 {
			below = buckets[loB-1].Volume
		}
		if hiB < len(buckets)-1 {
			above = buckets[hiB+1].Volume
		}
		if above > below {
			hiB++
			captured += buckets[hiB].Volume
		} else {
			loB--
			captured += buckets[loB].Volume
		}
	}

	return &model.VolumeProfile{
		PointOfControl: (buckets[poc].PriceLow + buckets[poc].PriceHigh) / 2,
		ValueAreaHigh:  buckets[hiB].PriceHigh,
		ValueAreaLow:   buckets[loB].PriceLow,
		ValueAreaShare: captured / total,
		TotalVolume:    total,
		Buckets:        buckets,
	}, nil
}

// OrderFlow approximates buying vs selling pressure per candle from the
// close's position within the range: volume splits into a buy share
// (close-low)/range and a sell share (high-close)/range.
func OrderFlow(s *model.CandleSeries, cfg Config) (*model.OrderFlowReport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	perCandle := deltas(s)
	var buy, sell, total float64
	for i := range s.Candles {
		c := &s.Candles[i]
		total += c.Volume
		if r := c.Range(); r > 0 {
			buy += c.Volume * (c.Close - c.Low) / r
			sell += c.Volume * (c.High - c.Close) / r
		} else {
			buy += c.Volume / 2
			sell += c.Volume / 2
		}
	}

	delta := buy - sell
	ratio := 0.0
	if total > 0 {
		ratio = delta / total
	}
	side, bias := "balanced", model.Neutral
	if ratio > cfg.BalancedBand {
		side, bias = "buying", model.Bullish
	} else if ratio < -cfg.BalancedBand {
		side, bias = "selling", model.Bearish
	}

	buyShare, sellShare := 0.5, 0.5
	if total > 0 {
		buyShare, sellShare = buy/total, sell/total
	}
	return &model.OrderFlowReport{
		BuyingPressure:  clamp01(buyShare),
		SellingPressure: clamp01(sellShare),
		Delta:           delta,
		DeltaRatio:      ratio,
		DominantSide:    side,
		Bias:            bias,
		PerCandle:       perCandle,
	}, nil
}

// Summary condenses profile and order flow into the FlowMetric the
// confluence stage consumes.
func Summary(s *model.CandleSeries, cfg Config) (*model.FlowMetric, error) {
	prof, err := Profile(s, cfg)
	if err != nil {
		return nil, err
	}
	of, err := OrderFlow(s, cfg)
	if err != nil {
		return nil, err
	}
	return &model.FlowMetric{
		PointOfControl: prof.PointOfControl,
		ValueAreaHigh:  prof.ValueAreaHigh,
		ValueAreaLow:   prof.ValueAreaLow,
		FlowDelta:      of.Delta,
		DominantSide:   of.DominantSide,
	}, nil
}

// Divergences compares consecutive same-kind swing extremes against flow
// momentum (the rolling delta sum at each extreme). A fresh price extreme
// the flow does not confirm is a regular divergence; a weaker price extreme
// on stronger flow is hidden.
func Divergences(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, cfg Config) ([]model.Divergence, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	momentum := rollingSum(deltas(s), cfg.DeltaWindow)
	out := []model.Divergence{}
	out = append(out, divergeKind(s, d, swings, momentum, model.SwingHigh)...)
	out = append(out, divergeKind(s, d, swings, momentum, model.SwingLow)...)
	return out, nil
}

func divergeKind(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, momentum []float64, kind model.SwingKind) []model.Divergence {
	var prev *model.SwingPoint
	out := []model.Divergence{}
	for i := range swings {
		sp := swings[i]
		if sp.Kind != kind {
			continue
		}
		if prev != nil {
			if dv := diverge(d, *prev, sp, momentum, kind); dv != nil {
				out = append(out, *dv)
			}
		}
		prev = &swings[i]
	}
	return out
}

func diverge(d *indicator.Derived, a, b model.SwingPoint, momentum []float64, kind model.SwingKind) *model.Divergence {
	flowA, flowB := momentum[a.Index], momentum[b.Index]
	priceUp := b.Price > a.Price
	flowUp := flowB > flowA

	var divKind string
	var dir model.Direction
	switch {
	case kind == model.SwingHigh && priceUp && !flowUp:
		divKind, dir = "regular", model.Bearish // higher high, fading flow
	case kind == model.SwingHigh && !priceUp && flowUp:
		divKind, dir = "hidden", model.Bearish // lower high on stronger flow
	case kind == model.SwingLow && !priceUp && flowUp:
		divKind, dir = "regular", model.Bullish // lower low, firming flow
	case kind == model.SwingLow && priceUp && !flowUp:
		divKind, dir = "hidden", model.Bullish
	default:
		return nil
	}

	priceGap := clamp01(abs(b.Price-a.Price) / d.ATRAt(b.Index))
	flowGap := clamp01(abs(flowB-flowA) / (abs(flowA) + abs(flowB) + 1e-9))
	return &model.Divergence{
		Kind:      divKind,
		Direction: dir,
		PriceIdxA: a.Index,
		PriceIdxB: b.Index,
		Strength:  clamp01(0.5*priceGap + 0.5*flowGap),
	}
}

// deltas is the signed per-candle volume series.
func deltas(s *model.CandleSeries) []float64 {
	out := make([]float64, s.Len())
	for i := range s.Candles {
		c := &s.Candles[i]
		if r := c.Range(); r > 0 {
			out[i] = c.Volume * (2*(c.Close-c.Low)/r - 1)
		}
	}
	return out
}

func rollingSum(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= window {
			sum -= vals[i-window]
		}
		out[i] = sum
	}
	return out
}

func overlap(aLo, aHi, bLo, bHi float64) float64 {
	lo, hi := aLo, aHi
	if bLo > lo {
		lo = bLo
	}
	if bHi < hi {
		hi = bHi
	}
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
