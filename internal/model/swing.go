package model

// SwingKind distinguishes pivot highs from pivot lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a confirmed local extreme of a candle series. Index points
// back into the series it was extracted from; downstream findings reference
// swings by that index rather than owning them.
type SwingPoint struct {
	Index    int       `json:"index"`
	Price    float64   `json:"price"`
	Kind     SwingKind `json:"kind"`
	Strength float64   `json:"strength"` // excursion past the window runner-up, ATR-normalized, in [0,1]
}
