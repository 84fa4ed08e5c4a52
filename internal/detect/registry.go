package detect

import (
	"fmt"
	"sort"
	"time"

	"smc-enginev1/internal/confluence"
	"smc-enginev1/internal/flow"
	"smc-enginev1/internal/htf"
	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/liquidity"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/patterns"
	"smc-enginev1/internal/structure"
	"smc-enginev1/internal/swing"
	"smc-enginev1/internal/zone"
)

// Op names are the wire vocabulary; they never change once published.
const (
	OpBOS              = "detect_bos"
	OpCHoCH            = "detect_choch"
	OpMSB              = "detect_market_structure_break"
	OpSweeps           = "detect_liquidity_sweep"
	OpPools            = "identify_liquidity_pools"
	OpVoids            = "detect_liquidity_void"
	OpOrderBlocks      = "identify_order_blocks"
	OpFVG              = "identify_fair_value_gaps"
	OpBreakers         = "identify_breaker_blocks"
	OpPremiumDiscount  = "calculate_premium_discount_zones"
	OpImbalances       = "detect_imbalances"
	OpInefficiencies   = "detect_inefficiencies"
	OpVolumeProfile    = "analyze_volume_profile"
	OpOrderFlow        = "analyze_order_flow"
	OpDivergence       = "detect_smart_money_divergence"
	OpConfluences      = "identify_confluences"
	OpTurtleSoup       = "identify_turtle_soup_setups"
	OpHTFStructure     = "analyze_higher_timeframe_structure"
	OpInstitutional    = "calculate_institutional_levels"
	OpManipulation     = "identify_manipulation_patterns"
	OpWyckoff          = "detect_wyckoff_phases"
	OpNewsImpactZones  = "detect_news_impact_zones"
)

// runCtx memoizes the intermediate products shared by operations within a
// single analysis, so RunMany computes swings, structure, and zones once.
type runCtx struct {
	series *model.CandleSeries
	params Params

	derived *indicator.Derived

	swings    []model.SwingPoint
	swingsSet bool

	events    []model.StructureEvent
	state     structure.State
	eventsSet bool

	blocks    []model.OrderBlock
	blocksSet bool
}

func newRunCtx(s *model.CandleSeries, p Params) *runCtx {
	return &runCtx{
		series:  s,
		params:  p,
		derived: indicator.Derive(s, p.ATRPeriod, p.RSIPeriod),
	}
}

func (rc *runCtx) swingPoints() ([]model.SwingPoint, error) {
	if !rc.swingsSet {
		pts, err := swing.Extract(rc.series, rc.derived, rc.params.SwingWindow)
		if err != nil {
			return nil, err
		}
		rc.swings = pts
		rc.swingsSet = true
	}
	return rc.swings, nil
}

func (rc *runCtx) structure() ([]model.StructureEvent, structure.State, error) {
	if !rc.eventsSet {
		pts, err := rc.swingPoints()
		if err != nil {
			return nil, structure.State{}, err
		}
		rc.events, rc.state = structure.Scan(rc.series, rc.derived, pts, rc.params.structureConfig())
		rc.eventsSet = true
	}
	return rc.events, rc.state, nil
}

func (rc *runCtx) orderBlocks() ([]model.OrderBlock, error) {
	if !rc.blocksSet {
		events, _, err := rc.structure()
		if err != nil {
			return nil, err
		}
		blocks, err := zone.OrderBlocks(rc.series, rc.derived, events, rc.params.zoneConfig())
		if err != nil {
			return nil, err
		}
		rc.blocks = blocks
		rc.blocksSet = true
	}
	return rc.blocks, nil
}

// opFunc computes one operation's findings from the shared analysis context.
type opFunc func(rc *runCtx) (any, error)

// ops is the fixed registry; order here is the order List and RunMany use.
var ops = []struct {
	Name string
	Fn   opFunc
}{
	{OpBOS, func(rc *runCtx) (any, error) {
		events, _, err := rc.structure()
		if err != nil {
			return nil, err
		}
		return structure.Filter(events, model.EventBOS), nil
	}},
	{OpCHoCH, func(rc *runCtx) (any, error) {
		events, _, err := rc.structure()
		if err != nil {
			return nil, err
		}
		return structure.Filter(events, model.EventCHoCH), nil
	}},
	{OpMSB, func(rc *runCtx) (any, error) {
		events, _, err := rc.structure()
		if err != nil {
			return nil, err
		}
		return structure.Filter(events, model.EventMSB), nil
	}},
	{OpSweeps, func(rc *runCtx) (any, error) {
		pts, err := rc.swingPoints()
		if err != nil {
			return nil, err
		}
		return liquidity.Sweeps(rc.series, rc.derived, pts, rc.params.liquidityConfig())
	}},
	{OpPools, func(rc *runCtx) (any, error) {
		pts, err := rc.swingPoints()
		if err != nil {
			return nil, err
		}
		return liquidity.Pools(rc.series, rc.derived, pts, rc.params.liquidityConfig())
	}},
	{OpVoids, func(rc *runCtx) (any, error) {
		return liquidity.Voids(rc.series, rc.derived, rc.params.liquidityConfig())
	}},
	{OpOrderBlocks, func(rc *runCtx) (any, error) {
		return rc.orderBlocks()
	}},
	{OpFVG, func(rc *runCtx) (any, error) {
		return zone.FairValueGaps(rc.series, rc.derived, rc.params.zoneConfig())
	}},
	{OpBreakers, func(rc *runCtx) (any, error) {
		events, _, err := rc.structure()
		if err != nil {
			return nil, err
		}
		blocks, err := rc.orderBlocks()
		if err != nil {
			return nil, err
		}
		return zone.BreakerBlocks(rc.series, rc.derived, events, blocks, rc.params.zoneConfig())
	}},
	{OpPremiumDiscount, func(rc *runCtx) (any, error) {
		_, st, err := rc.structure()
		if err != nil {
			return nil, err
		}
		bands, ok, err := zone.PremiumDiscount(rc.series, st, rc.params.zoneConfig())
		if err != nil {
			return nil, err
		}
		if !ok {
			return (*model.PremiumDiscount)(nil), nil
		}
		return bands, nil
	}},
	{OpImbalances, func(rc *runCtx) (any, error) {
		return zone.Imbalances(rc.series, rc.derived, rc.params.zoneConfig())
	}},
	{OpInefficiencies, func(rc *runCtx) (any, error) {
		return liquidity.Inefficiencies(rc.series, rc.derived, rc.params.liquidityConfig())
	}},
	{OpVolumeProfile, func(rc *runCtx) (any, error) {
		return flow.Profile(rc.series, rc.params.flowConfig())
	}},
	{OpOrderFlow, func(rc *runCtx) (any, error) {
		return flow.OrderFlow(rc.series, rc.params.flowConfig())
	}},
	{OpDivergence, func(rc *runCtx) (any, error) {
		pts, err := rc.swingPoints()
		if err != nil {
			return nil, err
		}
		return flow.Divergences(rc.series, rc.derived, pts, rc.params.flowConfig())
	}},
	{OpConfluences, func(rc *runCtx) (any, error) {
		return rc.confluences()
	}},
	{OpTurtleSoup, func(rc *runCtx) (any, error) {
		return patterns.TurtleSoup(rc.series, rc.derived, rc.params.patternsConfig())
	}},
	{OpHTFStructure, func(rc *runCtx) (any, error) {
		cfg := htf.DefaultConfig()
		cfg.Timeframe = rc.params.HTFTimeframe
		cfg.Structure = rc.params.structureConfig()
		cfg.ATRPeriod = rc.params.ATRPeriod
		cfg.RSIPeriod = rc.params.RSIPeriod
		return htf.Analyze(rc.series, rc.derived, cfg)
	}},
	{OpInstitutional, func(rc *runCtx) (any, error) {
		return patterns.InstitutionalLevels(rc.series, rc.params.patternsConfig())
	}},
	{OpManipulation, func(rc *runCtx) (any, error) {
		pts, err := rc.swingPoints()
		if err != nil {
			return nil, err
		}
		return patterns.Manipulation(rc.series, rc.derived, pts, rc.params.patternsConfig())
	}},
	{OpWyckoff, func(rc *runCtx) (any, error) {
		return patterns.WyckoffPhases(rc.series, rc.derived, rc.params.patternsConfig())
	}},
	{OpNewsImpactZones, func(rc *runCtx) (any, error) {
		return patterns.ImpactZones(rc.series, rc.derived, rc.params.patternsConfig())
	}},
}

// confluences composes the already-materialized findings rather than
// re-running each detector from scratch.
func (rc *runCtx) confluences() ([]model.Confluence, error) {
	events, st, err := rc.structure()
	if err != nil {
		return nil, err
	}
	blocks, err := rc.orderBlocks()
	if err != nil {
		return nil, err
	}
	zcfg := rc.params.zoneConfig()
	breakers, err := zone.BreakerBlocks(rc.series, rc.derived, events, blocks, zcfg)
	if err != nil {
		return nil, err
	}
	gaps, err := zone.FairValueGaps(rc.series, rc.derived, zcfg)
	if err != nil {
		return nil, err
	}
	pts, err := rc.swingPoints()
	if err != nil {
		return nil, err
	}
	lcfg := rc.params.liquidityConfig()
	pools, err := liquidity.Pools(rc.series, rc.derived, pts, lcfg)
	if err != nil {
		return nil, err
	}
	voids, err := liquidity.Voids(rc.series, rc.derived, lcfg)
	if err != nil {
		return nil, err
	}
	fm, err := flow.Summary(rc.series, rc.params.flowConfig())
	if err != nil {
		return nil, err
	}
	bands, ok, err := zone.PremiumDiscount(rc.series, st, zcfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		bands = nil
	}
	f := confluence.Findings{
		Events:   events,
		Blocks:   blocks,
		Breakers: breakers,
		Gaps:     gaps,
		Pools:    pools,
		Voids:    voids,
		Flow:     fm,
		Bands:    bands,
	}
	return confluence.Aggregate(f, rc.derived, rc.params.confluenceConfig())
}

var opIndex = buildIndex()

func buildIndex() map[string]opFunc {
	m := make(map[string]opFunc, len(ops))
	for _, op := range ops {
		m[op.Name] = op.Fn
	}
	return m
}

// List returns every registered operation name in registry order.
func List() []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	return names
}

// Known reports whether name is a registered operation.
func Known(name string) bool {
	_, ok := opIndex[name]
	return ok
}

// Run executes one operation against the series. Params are normalized
// first; unknown names fail with ErrUnknownOp before any computation.
func Run(name string, s *model.CandleSeries, p Params) (any, error) {
	fn, ok := opIndex[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownOp, name)
	}
	np, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrEmptySeries, name)
	}
	res, err := fn(newRunCtx(s, np))
	if err != nil {
		return nil, err
	}
	return filterMinStrength(res, np.MinStrength), nil
}

// RunMany executes the named operations (all of them when names is empty)
// over a shared analysis context and returns results keyed by op name.
// Any unknown name fails the whole batch up front.
func RunMany(names []string, s *model.CandleSeries, p Params) (map[string]any, error) {
	out, _, err := RunManyTimed(names, s, p)
	return out, err
}

// RunManyTimed is RunMany plus per-op wall time, for callers recording
// metrics. Note shared intermediates (swings, structure, order blocks) are
// charged to whichever op computes them first.
func RunManyTimed(names []string, s *model.CandleSeries, p Params) (map[string]any, map[string]time.Duration, error) {
	if len(names) == 0 {
		names = List()
	} else {
		for _, n := range names {
			if !Known(n) {
				return nil, nil, fmt.Errorf("%w: %q", model.ErrUnknownOp, n)
			}
		}
		names = dedupe(names)
	}
	np, err := p.Normalize()
	if err != nil {
		return nil, nil, err
	}
	if s == nil || s.Len() == 0 {
		return nil, nil, model.ErrEmptySeries
	}
	rc := newRunCtx(s, np)
	out := make(map[string]any, len(names))
	durs := make(map[string]time.Duration, len(names))
	for _, n := range names {
		start := time.Now()
		res, err := opIndex[n](rc)
		durs[n] = time.Since(start)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", n, err)
		}
		out[n] = filterMinStrength(res, np.MinStrength)
	}
	return out, durs, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
