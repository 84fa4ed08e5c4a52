package model

// FactorKind names the finding families a confluence can draw on. Repeats of
// the same kind contribute with diminishing returns.
type FactorKind string

const (
	FactorStructure  FactorKind = "structure"
	FactorOrderBlock FactorKind = "order_block"
	FactorBreaker    FactorKind = "breaker_block"
	FactorFVG        FactorKind = "fair_value_gap"
	FactorPool       FactorKind = "liquidity_pool"
	FactorVoid       FactorKind = "liquidity_void"
	FactorPOC        FactorKind = "point_of_control"
	FactorBand       FactorKind = "premium_discount"
)

// FactorRef points at one already-materialized finding by kind and position
// within that kind's output slice — an arena reference, never ownership.
type FactorRef struct {
	Kind      FactorKind `json:"kind"`
	Ref       int        `json:"ref"`
	Level     float64    `json:"level"`
	Direction Direction  `json:"direction"`
}

// Confluence is a price level where several independently produced findings
// stack. Built only from materialized results; building one never re-runs a
// detector.
type Confluence struct {
	PriceLevel float64     `json:"price_level"`
	PriceHigh  float64     `json:"price_high"`
	PriceLow   float64     `json:"price_low"`
	Factors    []FactorRef `json:"factors"`
	Kinds      int         `json:"distinct_kinds"`
	Score      float64     `json:"score"` // in [0,1]
	Direction  Direction   `json:"direction"`
	SetupType  string      `json:"setup_type"`
}
