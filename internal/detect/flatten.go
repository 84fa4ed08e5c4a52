package detect

import (
	"encoding/json"
	"math"

	"smc-enginev1/internal/model"
)

// Flatten reduces one operation's result to persistence rows. Every finding
// becomes a FindingRecord carrying its own JSON payload; report-shaped
// results (profiles, phase reports) flatten to a single row. Sequence
// numbers restart at 0 per call — the recorder keys rows by (run_id, seq),
// so callers running several ops under one run ID must offset them.
func Flatten(runID string, result any) []model.FindingRecord {
	switch v := result.(type) {
	case []model.StructureEvent:
		rows := make([]model.FindingRecord, len(v))
		for i, ev := range v {
			rows[i] = row(runID, i, string(ev.Kind), string(ev.Direction),
				ev.BrokenSwing.Price, ev.BrokenSwing.Price, ev.Confidence, ev)
		}
		return rows

	case []model.Sweep:
		rows := make([]model.FindingRecord, len(v))
		for i, s := range v {
			rows[i] = row(runID, i, "liquidity_sweep", string(s.Side), s.Level, s.Level, s.Reaction, s)
		}
		return rows

	case []model.LiquidityPool:
		rows := make([]model.FindingRecord, len(v))
		for i, p := range v {
			rows[i] = row(runID, i, string(p.Kind), string(p.Side), p.PriceHigh, p.PriceLow, p.Magnetism, p)
		}
		return rows

	case []model.LiquidityVoid:
		rows := make([]model.FindingRecord, len(v))
		for i, lv := range v {
			rows[i] = row(runID, i, string(lv.Kind), string(lv.Polarity), lv.PriceHigh, lv.PriceLow, lv.FillProbability, lv)
		}
		return rows

	case []model.Inefficiency:
		rows := make([]model.FindingRecord, len(v))
		for i, ie := range v {
			rows[i] = row(runID, i, string(ie.Kind), string(ie.Direction), ie.PriceHigh, ie.PriceLow, ie.Thinness, ie)
		}
		return rows

	case []model.OrderBlock:
		rows := make([]model.FindingRecord, len(v))
		for i, ob := range v {
			rows[i] = row(runID, i, string(ob.Kind), string(ob.Polarity), ob.PriceHigh, ob.PriceLow, ob.Strength, ob)
		}
		return rows

	case []model.FairValueGap:
		rows := make([]model.FindingRecord, len(v))
		for i, g := range v {
			rows[i] = row(runID, i, string(g.Kind), string(g.Polarity), g.PriceHigh, g.PriceLow, g.Strength, g)
		}
		return rows

	case []model.Imbalance:
		rows := make([]model.FindingRecord, len(v))
		for i, im := range v {
			rows[i] = row(runID, i, string(im.Kind), string(im.Polarity), im.PriceHigh, im.PriceLow, im.Strength, im)
		}
		return rows

	case []model.BreakerBlock:
		rows := make([]model.FindingRecord, len(v))
		for i, bb := range v {
			rows[i] = row(runID, i, string(bb.Kind), string(bb.Polarity), bb.PriceHigh, bb.PriceLow, bb.Strength, bb)
		}
		return rows

	case *model.PremiumDiscount:
		if v == nil {
			return nil
		}
		return []model.FindingRecord{
			row(runID, 0, string(model.ZonePremiumDiscount), string(v.Bias), v.SwingHigh, v.SwingLow, 0, v),
		}

	case *model.VolumeProfile:
		if v == nil {
			return nil
		}
		return []model.FindingRecord{
			row(runID, 0, "volume_profile", "", v.ValueAreaHigh, v.ValueAreaLow, v.ValueAreaShare, v),
		}

	case *model.OrderFlowReport:
		if v == nil {
			return nil
		}
		return []model.FindingRecord{
			row(runID, 0, "order_flow", string(v.Bias), 0, 0, math.Abs(v.DeltaRatio), v),
		}

	case []model.Divergence:
		rows := make([]model.FindingRecord, len(v))
		for i, d := range v {
			rows[i] = row(runID, i, "divergence_"+d.Kind, string(d.Direction), 0, 0, d.Strength, d)
		}
		return rows

	case []model.Confluence:
		rows := make([]model.FindingRecord, len(v))
		for i, c := range v {
			rows[i] = row(runID, i, "confluence", string(c.Direction), c.PriceHigh, c.PriceLow, c.Score, c)
		}
		return rows

	case []model.TurtleSoup:
		rows := make([]model.FindingRecord, len(v))
		for i, ts := range v {
			rows[i] = row(runID, i, "turtle_soup", string(ts.Direction), ts.Level, ts.Level, ts.Confidence, ts)
		}
		return rows

	case *model.HTFReport:
		if v == nil {
			return nil
		}
		return []model.FindingRecord{
			row(runID, 0, "htf_structure", string(v.Bias), 0, 0, v.BiasScore, v),
		}

	case []model.InstitutionalLevel:
		rows := make([]model.FindingRecord, len(v))
		for i, il := range v {
			rows[i] = row(runID, i, il.Kind, "", il.Level, il.Level, il.Strength, il)
		}
		return rows

	case []model.Manipulation:
		rows := make([]model.FindingRecord, len(v))
		for i, mp := range v {
			rows[i] = row(runID, i, mp.Kind, string(mp.Direction), mp.Level, mp.Level, mp.Confidence, mp)
		}
		return rows

	case *model.PhaseReport:
		if v == nil {
			return nil
		}
		return []model.FindingRecord{
			row(runID, 0, "wyckoff_phase", "", 0, 0, v.Confidence, v),
		}

	case []model.ImpactZone:
		rows := make([]model.FindingRecord, len(v))
		for i, iz := range v {
			rows[i] = row(runID, i, string(iz.Kind), string(iz.Polarity), iz.PriceHigh, iz.PriceLow, iz.Strength, iz)
		}
		return rows
	}
	return nil
}

// FindingCount reports how many rows a result flattens to.
func FindingCount(result any) int {
	return len(Flatten("", result))
}

func row(runID string, seq int, kind, direction string, high, low, score float64, payload any) model.FindingRecord {
	raw, _ := json.Marshal(payload)
	return model.FindingRecord{
		RunID:     runID,
		Seq:       seq,
		Kind:      kind,
		Direction: direction,
		PriceHigh: high,
		PriceLow:  low,
		Score:     score,
		Payload:   raw,
	}
}
