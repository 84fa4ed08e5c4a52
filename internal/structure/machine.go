// Package structure classifies market-structure breaks from confirmed swing
// points: BOS continuations, CHoCH reversals and momentum MSBs. One
// chronological pass threads an explicit State through the series — no
// package-level mutable state, no resets mid-series.
package structure

import (
	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Config tunes the break classification pass.
type Config struct {
	Window          int     // swing confirmation lag in candles (matches the extractor window)
	MSBThresholdATR float64 // close displacement, in ATR multiples, upgrading a BOS to MSB
	ExtensionRatio  float64 // MSB projection ratio applied to the breaking leg
	FreshnessSpan   int     // candles over which a broken swing's freshness decays to zero
}

// DefaultConfig returns the standard classification parameters.
func DefaultConfig() Config {
	return Config{
		Window:          3,
		MSBThresholdATR: 1.5,
		ExtensionRatio:  1.618,
		FreshnessSpan:   50,
	}
}

// State is the explicit structure state threaded through the scan. A swing
// becomes confirmed (visible) only once Window candles have closed after it;
// a broken swing is consumed, so a second same-direction break requires a
// newer confirmed swing or an intervening CHoCH.
type State struct {
	Trend    model.Trend
	LastHigh *model.SwingPoint
	LastLow  *model.SwingPoint
}

// Scan walks the series chronologically and emits every structure event in
// order, together with the final state (the active swing range for
// premium/discount work). Too few swings simply produce no events.
func Scan(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, cfg Config) ([]model.StructureEvent, State) {
	st := State{Trend: model.TrendUndefined}
	events := []model.StructureEvent{}

	si := 0
	for j := 0; j < s.Len(); j++ {
		// Absorb swings that became visible by candle j.
		for si < len(swings) && swings[si].Index+cfg.Window <= j {
			sp := swings[si]
			if sp.Kind == model.SwingHigh {
				st.LastHigh = &sp
			} else {
				st.LastLow = &sp
			}
			si++
		}

		close := s.Candles[j].Close
		if st.LastHigh != nil && close > st.LastHigh.Price {
			ev := classify(s, d, j, *st.LastHigh, model.Bullish, st, cfg)
			events = append(events, ev)
			st.Trend = model.TrendBullish
			st.LastHigh = nil // consumed: re-arm only via a newer confirmed swing
		} else if st.LastLow != nil && close < st.LastLow.Price {
			ev := classify(s, d, j, *st.LastLow, model.Bearish, st, cfg)
			events = append(events, ev)
			st.Trend = model.TrendBearish
			st.LastLow = nil
		}
	}
	return events, st
}

// classify builds the event for a confirmed break of swing sp at candle j.
func classify(s *model.CandleSeries, d *indicator.Derived, j int, sp model.SwingPoint, dir model.Direction, st State, cfg Config) model.StructureEvent {
	close := s.Candles[j].Close

	kind := model.EventBOS
	counter := (dir == model.Bullish && st.Trend == model.TrendBearish) ||
		(dir == model.Bearish && st.Trend == model.TrendBullish)
	if counter {
		kind = model.EventCHoCH
	}

	displacement := (close - sp.Price) / d.ATRAt(j)
	if dir == model.Bearish {
		displacement = (sp.Price - close) / d.ATRAt(j)
	}

	ev := model.StructureEvent{
		Kind:        kind,
		Direction:   dir,
		BrokenSwing: sp,
		BreakIndex:  j,
		Confidence:  confidence(s, d, j, sp, displacement, cfg),
	}

	// Only continuation breaks upgrade to MSB; a CHoCH keeps its reversal
	// meaning regardless of displacement.
	if kind == model.EventBOS && displacement >= cfg.MSBThresholdATR {
		ev.Kind = model.EventMSB
		ev.ExtensionTarget = extensionTarget(sp, dir, st, close, cfg)
	}
	return ev
}

// confidence combines break displacement, break-candle volume against the
// recent average, and the broken swing's freshness.
func confidence(s *model.CandleSeries, d *indicator.Derived, j int, sp model.SwingPoint, displacement float64, cfg Config) float64 {
	dispScore := clamp01(displacement / cfg.MSBThresholdATR)

	volRatio := s.Candles[j].Volume / d.AvgVolumeAt(j-1)
	volScore := clamp01(volRatio / 3.0)

	age := float64(j - sp.Index)
	freshScore := clamp01(1 - age/float64(cfg.FreshnessSpan))

	return clamp01(0.45*dispScore + 0.35*volScore + 0.20*freshScore)
}

// extensionTarget projects the breaking leg beyond the broken level. The leg
// runs from the opposite confirmed swing to the broken level; without an
// opposite swing it falls back to the break displacement itself.
func extensionTarget(sp model.SwingPoint, dir model.Direction, st State, close float64, cfg Config) float64 {
	if dir == model.Bullish {
		leg := close - sp.Price
		if st.LastLow != nil && st.LastLow.Price < sp.Price {
			leg = sp.Price - st.LastLow.Price
		}
		return sp.Price + cfg.ExtensionRatio*leg
	}
	leg := sp.Price - close
	if st.LastHigh != nil && st.LastHigh.Price > sp.Price {
		leg = st.LastHigh.Price - sp.Price
	}
	return sp.Price - cfg.ExtensionRatio*leg
}

// Filter returns only events of the given kind, preserving order.
func Filter(events []model.StructureEvent, kind model.EventKind) []model.StructureEvent {
	out := []model.StructureEvent{}
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
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
