package model

// FlowMetric is the condensed volume/flow summary handed to the confluence
// stage. Recomputed per analysis, never persisted across calls.
type FlowMetric struct {
	PointOfControl float64 `json:"point_of_control"`
	ValueAreaHigh  float64 `json:"value_area_high"`
	ValueAreaLow   float64 `json:"value_area_low"`
	FlowDelta      float64 `json:"flow_delta"`
	DominantSide   string  `json:"dominant_side"` // "buying" | "selling" | "balanced"
}

// VolumeBucket is one row of the volume-by-price histogram.
type VolumeBucket struct {
	PriceLow  float64 `json:"price_low"`
	PriceHigh float64 `json:"price_high"`
	Volume    float64 `json:"volume"`
}

// VolumeProfile is the full volume-by-price decomposition of a window.
// The value area is the minimal contiguous bucket range holding the
// configured volume share, grown outward from the point of control.
type VolumeProfile struct {
	PointOfControl float64        `json:"point_of_control"`
	ValueAreaHigh  float64        `json:"value_area_high"`
	ValueAreaLow   float64        `json:"value_area_low"`
	ValueAreaShare float64        `json:"value_area_share"` // volume fraction actually captured
	TotalVolume    float64        `json:"total_volume"`
	Buckets        []VolumeBucket `json:"buckets"`
}

// OrderFlowReport summarizes buying vs selling pressure across the window.
// Per-candle delta approximates signed volume from the close's position
// within the candle range.
type OrderFlowReport struct {
	BuyingPressure  float64   `json:"buying_pressure"`  // volume share, in [0,1]
	SellingPressure float64   `json:"selling_pressure"` // volume share, in [0,1]
	Delta           float64   `json:"delta"`            // net signed volume
	DeltaRatio      float64   `json:"delta_ratio"`      // delta / total volume, in [-1,1]
	DominantSide    string    `json:"dominant_side"`    // "buying" | "selling" | "balanced"
	Bias            Direction `json:"bias"`
	PerCandle       []float64 `json:"per_candle_delta"`
}

// Divergence flags a price extreme the flow did not confirm (regular), or a
// flow extreme the price did not confirm (hidden).
type Divergence struct {
	Kind      string    `json:"kind"` // "regular" | "hidden"
	Direction Direction `json:"direction"`
	PriceIdxA int       `json:"price_index_a"` // earlier extreme
	PriceIdxB int       `json:"price_index_b"` // later extreme
	Strength  float64   `json:"strength"`      // in [0,1]
}
