// Package indicator computes the batch derived series every detector shares:
// true range / ATR, RSI, simple returns and rolling averages, produced in a
// single pass over a candle window. The math functions operate on plain
// float64 slices; Derive bundles them for one analysis.
package indicator

import "smc-enginev1/internal/model"

// Derived bundles the read-only series shared by all detectors. It is
// computed once per analysis from the immutable candle series and only read
// afterwards.
type Derived struct {
	Returns   []float64 // fractional close-to-close returns
	TrueRange []float64
	ATR       []float64 // Wilder ATR
	RSI       []float64 // Wilder RSI
	AvgVolume []float64 // rolling mean volume
}

// atrFloor keeps ATR-normalized scores finite on degenerate (flat) series.
const atrFloor = 1e-9

// Derive computes the shared derived series for s. Periods are validated by
// the caller; the volume average reuses atrPeriod.
func Derive(s *model.CandleSeries, atrPeriod, rsiPeriod int) *Derived {
	highs, lows, closes := s.Highs(), s.Lows(), s.Closes()
	return &Derived{
		Returns:   SimpleReturns(closes),
		TrueRange: TrueRange(highs, lows, closes),
		ATR:       ATR(highs, lows, closes, atrPeriod),
		RSI:       RSI(closes, rsiPeriod),
		AvgVolume: SMA(s.Volumes(), atrPeriod),
	}
}

// ATRAt returns the ATR at index i, floored so normalizations never divide
// by zero. Out-of-range indices clamp to the nearest end.
func (d *Derived) ATRAt(i int) float64 {
	if len(d.ATR) == 0 {
		return atrFloor
	}
	if i < 0 {
		i = 0
	}
	if i >= len(d.ATR) {
		i = len(d.ATR) - 1
	}
	if d.ATR[i] < atrFloor {
		return atrFloor
	}
	return d.ATR[i]
}

// AvgVolumeAt returns the rolling average volume at index i with the same
// clamping and floor behavior as ATRAt.
func (d *Derived) AvgVolumeAt(i int) float64 {
	if len(d.AvgVolume) == 0 {
		return atrFloor
	}
	if i < 0 {
		i = 0
	}
	if i >= len(d.AvgVolume) {
		i = len(d.AvgVolume) - 1
	}
	if d.AvgVolume[i] < atrFloor {
		return atrFloor
	}
	return d.AvgVolume[i]
}
