package model

// TurtleSoup is a failed-breakout reversal setup: a raid through a multi-week
// extreme that snapped back inside, traded against the breakout direction.
type TurtleSoup struct {
	Direction  Direction  `json:"direction"`
	SweepIndex int        `json:"sweep_index"`
	Level      float64    `json:"breakout_level"` // the raided extreme
	Setup      TradeSetup `json:"trading_setup"`
	Confidence float64    `json:"confidence"`
}

// InstitutionalLevel is a round-number price magnet (00/50 handles).
type InstitutionalLevel struct {
	Level    float64 `json:"level"`
	Kind     string  `json:"kind"` // "round_00" | "round_50"
	Touches  int     `json:"touches"`
	Strength float64 `json:"strength"`
	Distance float64 `json:"distance_from_close"`
}

// Manipulation flags a candidate engineered move around a liquidity level.
type Manipulation struct {
	Kind       string    `json:"kind"` // "stop_hunt" | "bull_trap" | "bear_trap" | "spring" | "upthrust"
	Index      int       `json:"index"`
	Level      float64   `json:"level"`
	Direction  Direction `json:"direction"` // side the trap resolves toward
	Confidence float64   `json:"confidence"`
}

// PhaseReport classifies the window into a Wyckoff-style phase from trend
// slope, range position and volume behavior.
type PhaseReport struct {
	Phase         string  `json:"phase"` // "accumulation" | "markup" | "distribution" | "markdown"
	Confidence    float64 `json:"confidence"`
	TrendSlope    float64 `json:"trend_slope"`    // per-candle drift in ATR multiples
	VolumeTrend   float64 `json:"volume_trend"`   // second-half vs first-half volume ratio
	RangePosition float64 `json:"range_position"` // last close within window range, in [0,1]
}

// ImpactZone envelopes a volatility burst: consecutive candles with outsized
// range and volume, the way scheduled news lands on a chart.
type ImpactZone struct {
	Zone
	StartIndex  int     `json:"start_index"`
	EndIndex    int     `json:"end_index"`
	PeakRange   float64 `json:"peak_range_atr"` // largest candle range in ATR multiples
	VolumeRatio float64 `json:"volume_ratio"`   // burst volume vs window average
	PostDrift   float64 `json:"post_drift"`     // ATR-normalized drift after the burst
}

// HTFReport compares structure across the native and a higher timeframe.
type HTFReport struct {
	HTFTimeframe string    `json:"htf_timeframe"`
	HTFTrend     Trend     `json:"htf_trend"`
	LTFTrend     Trend     `json:"ltf_trend"`
	Aligned      bool      `json:"aligned"`
	Bias         Direction `json:"bias"`
	BiasScore    float64   `json:"bias_score"` // in [0,1]
	HTFEvents    int       `json:"htf_events"`
	HTFCandles   int       `json:"htf_candles"`
}
