package model

// Side says which stop cluster a liquidity feature sits on: buy stops rest
// above equal highs, sell stops below equal lows.
type Side string

const (
	BuySide  Side = "buy_side"
	SellSide Side = "sell_side"
)

// Sweep records a wick raid through a prior swing that closed back on the
// original side within a couple of candles.
type Sweep struct {
	Side           Side    `json:"side"`
	Level          float64 `json:"liquidity_level"` // the raided swing price
	SweepIndex     int     `json:"sweep_index"`     // candle that pierced the level
	SwingRef       int     `json:"swing_ref"`       // candle index of the swept swing
	Excursion      float64 `json:"excursion"`       // wick distance beyond the level
	Reaction       float64 `json:"reaction"`        // close-back sharpness, in [0,1]
	Classification string  `json:"classification"`  // "reversal" | "continuation"
	Distance       float64 `json:"distance_from_close"`
}

// LiquidityPool is a cluster of near-equal swing extremes attracting stop
// orders. Level is the density-weighted mean price of the cluster.
type LiquidityPool struct {
	Zone
	Side         Side    `json:"side"`
	Level        float64 `json:"level"`
	Density      int     `json:"density"`       // number of swings in the cluster
	Magnetism    float64 `json:"magnetism"`     // density weighted by recency, in [0,1]
	SwingIndices []int   `json:"swing_indices"` // candle indices of the clustered swings
}

// LiquidityVoid is an untraded gap between consecutive candle ranges.
type LiquidityVoid struct {
	Zone
	Midpoint        float64 `json:"midpoint"`
	FillProbability float64 `json:"fill_probability"` // heuristic, in [0,1]
}

// Inefficiency is a thinly traded one-directional traversal: price crossed
// the zone once with little overlap from neighboring candles.
type Inefficiency struct {
	Zone
	Direction Direction `json:"direction"`
	Thinness  float64   `json:"thinness"` // 1 - overlap share, in [0,1]
}
