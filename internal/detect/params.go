package detect

import (
	"fmt"

	"smc-enginev1/internal/confluence"
	"smc-enginev1/internal/flow"
	"smc-enginev1/internal/liquidity"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/patterns"
	"smc-enginev1/internal/structure"
	"smc-enginev1/internal/zone"
)

// Params is the single tunable surface callers can override per request.
// Zero values mean "use the default"; Normalize applies defaults and
// validates ranges before any computation starts, so an operation never
// observes a partially-applied parameter set.
type Params struct {
	SwingWindow int `json:"swing_window,omitempty"` // pivot confirmation window, 2..5
	ATRPeriod   int `json:"atr_period,omitempty"`
	RSIPeriod   int `json:"rsi_period,omitempty"`

	MSBThresholdATR float64 `json:"msb_threshold_atr,omitempty"`
	ExtensionRatio  float64 `json:"extension_ratio,omitempty"`
	FreshnessSpan   int     `json:"freshness_span,omitempty"`

	SweepMinATR    float64 `json:"sweep_min_atr,omitempty"`
	SweepCloseBack int     `json:"sweep_close_back,omitempty"`
	SweepHorizon   int     `json:"sweep_horizon,omitempty"`
	PoolTolATR     float64 `json:"pool_tolerance_atr,omitempty"`
	PoolMinSize    int     `json:"pool_min_size,omitempty"`
	VoidATRScale   float64 `json:"void_atr_scale,omitempty"`
	ThinnessMin    float64 `json:"thinness_min,omitempty"`

	OBLookback         int     `json:"ob_lookback,omitempty"`
	OBSetupRR          float64 `json:"ob_setup_rr,omitempty"`
	RevisitDecay       float64 `json:"revisit_decay,omitempty"`
	ImbalanceMinGapATR float64 `json:"imbalance_min_gap_atr,omitempty"`
	ImbalanceBodyShare float64 `json:"imbalance_body_share,omitempty"`

	ProfileBuckets int     `json:"profile_buckets,omitempty"`
	ValueAreaShare float64 `json:"value_area_share,omitempty"`
	DeltaWindow    int     `json:"delta_window,omitempty"`

	ConfluenceTolATR float64 `json:"confluence_tolerance_atr,omitempty"`
	MinKinds         int     `json:"min_confluence_kinds,omitempty"`

	ExtremeLookback int     `json:"extreme_lookback,omitempty"`
	SoupRR          float64 `json:"soup_rr,omitempty"`
	HuntReversalATR float64 `json:"hunt_reversal_atr,omitempty"`
	ImpactRangeATR  float64 `json:"impact_range_atr,omitempty"`
	ImpactVolRatio  float64 `json:"impact_volume_ratio,omitempty"`

	HTFTimeframe string `json:"htf_timeframe,omitempty"`

	MinStrength float64 `json:"min_strength,omitempty"` // findings below this score are dropped where a score exists
}

// Normalize fills defaults into zero fields and rejects out-of-range values
// with ErrBadParam. Negative values are always rejected — a negative window
// is a caller bug, not a request for the default.
func (p Params) Normalize() (Params, error) {
	if err := p.checkNonNegative(); err != nil {
		return Params{}, err
	}
	def := Defaults()
	fillInt(&p.SwingWindow, def.SwingWindow)
	fillInt(&p.ATRPeriod, def.ATRPeriod)
	fillInt(&p.RSIPeriod, def.RSIPeriod)
	fillFloat(&p.MSBThresholdATR, def.MSBThresholdATR)
	fillFloat(&p.ExtensionRatio, def.ExtensionRatio)
	fillInt(&p.FreshnessSpan, def.FreshnessSpan)
	fillFloat(&p.SweepMinATR, def.SweepMinATR)
	fillInt(&p.SweepCloseBack, def.SweepCloseBack)
	fillInt(&p.SweepHorizon, def.SweepHorizon)
	fillFloat(&p.PoolTolATR, def.PoolTolATR)
	fillInt(&p.PoolMinSize, def.PoolMinSize)
	fillFloat(&p.VoidATRScale, def.VoidATRScale)
	fillFloat(&p.ThinnessMin, def.ThinnessMin)
	fillInt(&p.OBLookback, def.OBLookback)
	fillFloat(&p.OBSetupRR, def.OBSetupRR)
	fillFloat(&p.RevisitDecay, def.RevisitDecay)
	fillFloat(&p.ImbalanceMinGapATR, def.ImbalanceMinGapATR)
	fillFloat(&p.ImbalanceBodyShare, def.ImbalanceBodyShare)
	fillInt(&p.ProfileBuckets, def.ProfileBuckets)
	fillFloat(&p.ValueAreaShare, def.ValueAreaShare)
	fillInt(&p.DeltaWindow, def.DeltaWindow)
	fillFloat(&p.ConfluenceTolATR, def.ConfluenceTolATR)
	fillInt(&p.MinKinds, def.MinKinds)
	fillInt(&p.ExtremeLookback, def.ExtremeLookback)
	fillFloat(&p.SoupRR, def.SoupRR)
	fillFloat(&p.HuntReversalATR, def.HuntReversalATR)
	fillFloat(&p.ImpactRangeATR, def.ImpactRangeATR)
	fillFloat(&p.ImpactVolRatio, def.ImpactVolRatio)

	if p.SwingWindow < 2 || p.SwingWindow > 5 {
		return Params{}, fmt.Errorf("%w: swing window %d outside 2..5", model.ErrBadParam, p.SwingWindow)
	}
	if p.MinStrength > 1 {
		return Params{}, fmt.Errorf("%w: min strength %.2f above 1", model.ErrBadParam, p.MinStrength)
	}
	if p.HTFTimeframe != "" {
		if _, err := model.TimeframeDuration(p.HTFTimeframe); err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

func (p Params) checkNonNegative() error {
	ints := map[string]int{
		"swing_window": p.SwingWindow, "atr_period": p.ATRPeriod, "rsi_period": p.RSIPeriod,
		"freshness_span": p.FreshnessSpan, "sweep_close_back": p.SweepCloseBack,
		"sweep_horizon": p.SweepHorizon, "pool_min_size": p.PoolMinSize,
		"ob_lookback": p.OBLookback, "profile_buckets": p.ProfileBuckets,
		"delta_window": p.DeltaWindow, "min_confluence_kinds": p.MinKinds,
		"extreme_lookback": p.ExtremeLookback,
	}
	for name, v := range ints {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", model.ErrBadParam, name)
		}
	}
	floats := map[string]float64{
		"msb_threshold_atr": p.MSBThresholdATR, "extension_ratio": p.ExtensionRatio,
		"sweep_min_atr": p.SweepMinATR, "pool_tolerance_atr": p.PoolTolATR,
		"void_atr_scale": p.VoidATRScale, "thinness_min": p.ThinnessMin,
		"ob_setup_rr": p.OBSetupRR, "revisit_decay": p.RevisitDecay,
		"imbalance_min_gap_atr": p.ImbalanceMinGapATR, "imbalance_body_share": p.ImbalanceBodyShare,
		"value_area_share": p.ValueAreaShare, "confluence_tolerance_atr": p.ConfluenceTolATR,
		"soup_rr": p.SoupRR, "hunt_reversal_atr": p.HuntReversalATR,
		"impact_range_atr": p.ImpactRangeATR, "impact_volume_ratio": p.ImpactVolRatio,
		"min_strength": p.MinStrength,
	}
	for name, v := range floats {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", model.ErrBadParam, name)
		}
	}
	return nil
}

// Defaults returns the fully-populated default parameter set.
func Defaults() Params {
	st := structure.DefaultConfig()
	lq := liquidity.DefaultConfig()
	zn := zone.DefaultConfig()
	fl := flow.DefaultConfig()
	cf := confluence.DefaultConfig()
	pt := patterns.DefaultConfig()
	return Params{
		SwingWindow:        st.Window,
		ATRPeriod:          14,
		RSIPeriod:          14,
		MSBThresholdATR:    st.MSBThresholdATR,
		ExtensionRatio:     st.ExtensionRatio,
		FreshnessSpan:      st.FreshnessSpan,
		SweepMinATR:        lq.SweepMinATR,
		SweepCloseBack:     lq.SweepCloseBack,
		SweepHorizon:       lq.SweepHorizon,
		PoolTolATR:         lq.PoolTolATR,
		PoolMinSize:        lq.PoolMinSize,
		VoidATRScale:       lq.VoidATRScale,
		ThinnessMin:        lq.ThinnessMin,
		OBLookback:         zn.OBLookback,
		OBSetupRR:          zn.OBSetupRR,
		RevisitDecay:       zn.RevisitDecay,
		ImbalanceMinGapATR: zn.ImbalanceMinGapATR,
		ImbalanceBodyShare: zn.ImbalanceBodyShare,
		ProfileBuckets:     fl.Buckets,
		ValueAreaShare:     fl.ValueAreaShare,
		DeltaWindow:        fl.DeltaWindow,
		ConfluenceTolATR:   cf.ToleranceATR,
		MinKinds:           cf.MinKinds,
		ExtremeLookback:    pt.ExtremeLookback,
		SoupRR:             pt.SoupRR,
		HuntReversalATR:    pt.HuntReversalATR,
		ImpactRangeATR:     pt.ImpactRangeATR,
		ImpactVolRatio:     pt.ImpactVolRatio,
	}
}

// Per-package views of the normalized parameter set.

func (p Params) structureConfig() structure.Config {
	return structure.Config{
		Window:          p.SwingWindow,
		MSBThresholdATR: p.MSBThresholdATR,
		ExtensionRatio:  p.ExtensionRatio,
		FreshnessSpan:   p.FreshnessSpan,
	}
}

func (p Params) liquidityConfig() liquidity.Config {
	return liquidity.Config{
		SweepMinATR:    p.SweepMinATR,
		SweepCloseBack: p.SweepCloseBack,
		SweepHorizon:   p.SweepHorizon,
		PoolTolATR:     p.PoolTolATR,
		PoolMinSize:    p.PoolMinSize,
		VoidATRScale:   p.VoidATRScale,
		ThinnessMin:    p.ThinnessMin,
	}
}

func (p Params) zoneConfig() zone.Config {
	cfg := zone.DefaultConfig()
	cfg.OBLookback = p.OBLookback
	cfg.OBSetupRR = p.OBSetupRR
	cfg.RevisitDecay = p.RevisitDecay
	cfg.ImbalanceMinGapATR = p.ImbalanceMinGapATR
	cfg.ImbalanceBodyShare = p.ImbalanceBodyShare
	return cfg
}

func (p Params) flowConfig() flow.Config {
	cfg := flow.DefaultConfig()
	cfg.Buckets = p.ProfileBuckets
	cfg.ValueAreaShare = p.ValueAreaShare
	cfg.DeltaWindow = p.DeltaWindow
	return cfg
}

func (p Params) confluenceConfig() confluence.Config {
	cfg := confluence.DefaultConfig()
	cfg.ToleranceATR = p.ConfluenceTolATR
	cfg.MinKinds = p.MinKinds
	return cfg
}

func (p Params) patternsConfig() patterns.Config {
	cfg := patterns.DefaultConfig()
	cfg.ExtremeLookback = p.ExtremeLookback
	cfg.SoupRR = p.SoupRR
	cfg.HuntReversalATR = p.HuntReversalATR
	cfg.ImpactRangeATR = p.ImpactRangeATR
	cfg.ImpactVolRatio = p.ImpactVolRatio
	return cfg
}

func fillInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func fillFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}
