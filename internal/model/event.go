package model

// EventKind classifies a structure break.
type EventKind string

const (
	EventBOS   EventKind = "BOS"   // continuation break
	EventCHoCH EventKind = "CHoCH" // counter-trend break, flips the trend
	EventMSB   EventKind = "MSB"   // aggressive break with momentum displacement
)

// Direction is the side a finding argues for.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Trend is the prevailing structural regime while scanning a series.
type Trend string

const (
	TrendBullish   Trend = "bullish"
	TrendBearish   Trend = "bearish"
	TrendUndefined Trend = "undefined"
)

// StructureEvent records one BOS/CHoCH/MSB break. Events are appended in
// chronological order and never mutated; a later event may supersede an
// earlier one's trend implication but both stay in the output.
type StructureEvent struct {
	Kind        EventKind  `json:"kind"`
	Direction   Direction  `json:"direction"`
	BrokenSwing SwingPoint `json:"broken_swing"`
	BreakIndex  int        `json:"break_index"` // candle whose close crossed the swing
	Confidence  float64    `json:"confidence"`  // displacement + volume + freshness, in [0,1]

	// ExtensionTarget is set for MSB only: the 1.618 projection of the
	// breaking leg beyond the broken level.
	ExtensionTarget float64 `json:"extension_target,omitempty"`
}
