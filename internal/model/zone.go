package model

// ZoneKind enumerates the geometric finding families.
type ZoneKind string

const (
	ZoneOrderBlock      ZoneKind = "order_block"
	ZoneFairValueGap    ZoneKind = "fair_value_gap"
	ZoneBreakerBlock    ZoneKind = "breaker_block"
	ZoneLiquidityPool   ZoneKind = "liquidity_pool"
	ZoneLiquidityVoid   ZoneKind = "liquidity_void"
	ZoneImbalance       ZoneKind = "imbalance"
	ZoneInefficiency    ZoneKind = "inefficiency"
	ZonePremiumDiscount ZoneKind = "premium_discount"
	ZoneImpact          ZoneKind = "impact"
)

// Polarity is the order-flow side a zone is expected to attract.
type Polarity string

const (
	PolarityDemand  Polarity = "demand"
	PolaritySupply  Polarity = "supply"
	PolarityNeutral Polarity = "neutral"
)

// Validity tracks the zone lifecycle: fresh until price re-enters, tested
// after a revisit, invalidated once price closes fully through the zone
// against its polarity. Transitions only move forward.
type Validity string

const (
	ValidityFresh       Validity = "fresh"
	ValidityTested      Validity = "tested"
	ValidityInvalidated Validity = "invalidated"
)

// Zone is the shared geometry of all region findings.
// Invariant: PriceHigh >= PriceLow. FillPercent is meaningful for gap-like
// kinds and stays 0 elsewhere.
type Zone struct {
	Kind        ZoneKind `json:"kind"`
	PriceHigh   float64  `json:"price_high"`
	PriceLow    float64  `json:"price_low"`
	OriginIndex int      `json:"origin_index"` // candle index the zone was born at
	Polarity    Polarity `json:"polarity"`
	Strength    float64  `json:"strength"`     // in [0,1]
	Validity    Validity `json:"validity"`
	FillPercent float64  `json:"fill_percent"` // in [0,1]
}

// Mid returns the zone midpoint.
func (z *Zone) Mid() float64 {
	return (z.PriceHigh + z.PriceLow) / 2
}

// Contains reports whether price p falls inside the zone (inclusive).
func (z *Zone) Contains(p float64) bool {
	return p >= z.PriceLow && p <= z.PriceHigh
}

// TradeSetup carries ready-to-render trade parameters derived from a finding,
// so consumers never have to recompute entries or stops.
type TradeSetup struct {
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry_price"`
	Stop       float64   `json:"stop_loss"`
	Target     float64   `json:"take_profit"`
	RiskReward float64   `json:"risk_reward"`
}

// OrderBlock is the last opposing candle immediately before a structure
// break's leg. BreakRef indexes the structure-event list the block was
// derived from (back-reference, not a copy).
type OrderBlock struct {
	Zone
	Freshness float64     `json:"freshness"` // decays as price revisits, in [0,1]
	BreakRef  int         `json:"break_ref"`
	Setup     *TradeSetup `json:"trading_setup,omitempty"` // nil once invalidated
}

// FairValueGap is a three-candle imbalance leaving an untraded range.
type FairValueGap struct {
	Zone
	Midpoint float64 `json:"midpoint"`
}

// Imbalance is a displacement gap that additionally passes a minimum-size
// filter and a body-dominance check on the displacing candle.
type Imbalance struct {
	Zone
	Midpoint  float64 `json:"midpoint"`
	GapATR    float64 `json:"gap_atr"`    // gap size in ATR multiples
	BodyShare float64 `json:"body_share"` // displacing candle body / range
}

// BreakerBlock is an invalidated order block with flipped polarity.
// OriginBlock indexes the same analysis's order-block list.
type BreakerBlock struct {
	Zone
	OriginBlock      int      `json:"origin_block"`
	OriginalPolarity Polarity `json:"original_polarity"`
	FlipIndex        int      `json:"flip_index"` // candle index of the invalidating close
}

// Band is a horizontal price band.
type Band struct {
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// FibLevel is one Fibonacci subdivision of the active swing range.
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// PremiumDiscount splits the active swing range at equilibrium into a
// premium half and a discount half, with Fibonacci sub-bands for refined
// entries. Bias favors demand setups in discount and supply setups in
// premium.
type PremiumDiscount struct {
	SwingHigh       float64    `json:"swing_high"`
	SwingLow        float64    `json:"swing_low"`
	Equilibrium     float64    `json:"equilibrium"`
	Premium         Band       `json:"premium_zone"`
	Discount        Band       `json:"discount_zone"`
	PremiumOTE      Band       `json:"premium_ote"`  // 0.618–0.79 retracement of the range, upper half
	DiscountOTE     Band       `json:"discount_ote"` // mirror band in the lower half
	Fibs            []FibLevel `json:"fib_levels"`
	CurrentPosition string     `json:"current_position"` // "premium" | "discount" | "equilibrium"
	Bias            Direction  `json:"trading_bias"`
}
