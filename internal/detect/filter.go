package detect

import "smc-enginev1/internal/model"

// filterMinStrength drops scored findings below the threshold. The score
// read per kind matches the one Flatten persists (confidence, strength,
// magnetism, ...). Report-shaped results (profiles, flow and phase reports,
// premium/discount) are summaries, not finding lists, and pass through.
func filterMinStrength(result any, min float64) any {
	if min <= 0 {
		return result
	}
	switch v := result.(type) {
	case []model.StructureEvent:
		return keep(v, func(ev model.StructureEvent) float64 { return ev.Confidence }, min)
	case []model.Sweep:
		return keep(v, func(s model.Sweep) float64 { return s.Reaction }, min)
	case []model.LiquidityPool:
		return keep(v, func(p model.LiquidityPool) float64 { return p.Magnetism }, min)
	case []model.LiquidityVoid:
		return keep(v, func(lv model.LiquidityVoid) float64 { return lv.FillProbability }, min)
	case []model.Inefficiency:
		return keep(v, func(ie model.Inefficiency) float64 { return ie.Thinness }, min)
	case []model.OrderBlock:
		return keep(v, func(ob model.OrderBlock) float64 { return ob.Strength }, min)
	case []model.FairValueGap:
		return keep(v, func(g model.FairValueGap) float64 { return g.Strength }, min)
	case []model.Imbalance:
		return keep(v, func(im model.Imbalance) float64 { return im.Strength }, min)
	case []model.BreakerBlock:
		return keep(v, func(bb model.BreakerBlock) float64 { return bb.Strength }, min)
	case []model.Divergence:
		return keep(v, func(d model.Divergence) float64 { return d.Strength }, min)
	case []model.Confluence:
		return keep(v, func(c model.Confluence) float64 { return c.Score }, min)
	case []model.TurtleSoup:
		return keep(v, func(ts model.TurtleSoup) float64 { return ts.Confidence }, min)
	case []model.InstitutionalLevel:
		return keep(v, func(il model.InstitutionalLevel) float64 { return il.Strength }, min)
	case []model.Manipulation:
		return keep(v, func(mp model.Manipulation) float64 { return mp.Confidence }, min)
	case []model.ImpactZone:
		return keep(v, func(iz model.ImpactZone) float64 { return iz.Strength }, min)
	}
	return result
}

// keep returns the findings at or above min. The result is always non-nil
// so a fully filtered op still marshals as an empty list.
func keep[T any](v []T, score func(T) float64, min float64) []T {
	out := make([]T, 0, len(v))
	for _, f := range v {
		if score(f) >= min {
			out = append(out, f)
		}
	}
	return out
}
