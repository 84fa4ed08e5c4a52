// Package htf resamples a candle series into a higher timeframe and compares
// market structure across the two. Buckets are aligned on the target
// timeframe (bucket start = ts - ts mod tf), merged as first-open, max-high,
// min-low, last-close, summed volume.
package htf

import (
	"fmt"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
	"smc-enginev1/internal/structure"
	"smc-enginev1/internal/swing"
)

// defaultStep maps each timeframe to the one structure is confirmed against.
var defaultStep = map[string]string{
	"1m":  "15m",
	"5m":  "1h",
	"15m": "4h",
	"30m": "4h",
	"1h":  "1d",
	"4h":  "1d",
}

// Config tunes the higher-timeframe comparison.
type Config struct {
	Timeframe   string // target timeframe; empty picks the default step up
	SwingWindow int
	Structure   structure.Config
	ATRPeriod   int
	RSIPeriod   int
}

// DefaultConfig returns the standard HTF parameters.
func DefaultConfig() Config {
	return Config{
		SwingWindow: 2, // resampling shrinks the window, so confirm faster
		Structure:   structure.DefaultConfig(),
		ATRPeriod:   14,
		RSIPeriod:   14,
	}
}

// Resample merges s into target-timeframe candles. The target must be a
// known label strictly larger than the source timeframe. Partial trailing
// buckets are kept: the caller is analyzing a window, not publishing closes.
func Resample(s *model.CandleSeries, target string) (*model.CandleSeries, error) {
	src, err := model.TimeframeDuration(s.Timeframe)
	if err != nil {
		return nil, err
	}
	dst, err := model.TimeframeDuration(target)
	if err != nil {
		return nil, err
	}
	if dst <= src {
		return nil, fmt.Errorf("%w: target %s not above source %s", model.ErrBadParam, target, s.Timeframe)
	}

	tf := int64(dst.Seconds())
	merged := []model.Candle{}
	var bucket int64 = -1
	for i := range s.Candles {
		c := &s.Candles[i]
		b := c.TS.Unix() - c.TS.Unix()%tf
		if b != bucket {
			merged = append(merged, model.Candle{
				TS:     c.TS.Truncate(dst), // bucket start
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			})
			bucket = b
			continue
		}
		m := &merged[len(merged)-1]
		if c.High > m.High {
			m.High = c.High
		}
		if c.Low < m.Low {
			m.Low = c.Low
		}
		m.Close = c.Close
		m.Volume += c.Volume
	}
	return model.NewCandleSeries(s.Pair, target, merged)
}

// Analyze runs the structure machine on both the native series and its
// higher-timeframe resample and reports trend alignment. A source already at
// the top of the ladder (or too short to resample into at least a few HTF
// candles) degrades to an unaligned undefined report, not an error.
func Analyze(s *model.CandleSeries, d *indicator.Derived, cfg Config) (*model.HTFReport, error) {
	if cfg.SwingWindow < 1 || cfg.ATRPeriod < 1 || cfg.RSIPeriod < 1 {
		return nil, fmt.Errorf("%w: htf periods out of range", model.ErrBadParam)
	}
	target := cfg.Timeframe
	if target == "" {
		target = defaultStep[s.Timeframe]
	}
	if target == "" { // 1d has nothing above it
		return undefinedReport(target, s), nil
	}

	ltfSwings, err := swing.Extract(s, d, cfg.SwingWindow)
	if err != nil {
		return nil, err
	}
	_, ltfState := structure.Scan(s, d, ltfSwings, cfg.Structure)

	hs, err := Resample(s, target)
	if err != nil {
		return nil, err
	}
	report := undefinedReport(target, s)
	report.LTFTrend = ltfState.Trend
	report.HTFCandles = hs.Len()
	if hs.Len() < 2*cfg.SwingWindow+1 {
		return report, nil
	}

	hd := indicator.Derive(hs, cfg.ATRPeriod, cfg.RSIPeriod)
	htfSwings, err := swing.Extract(hs, hd, cfg.SwingWindow)
	if err != nil {
		return nil, err
	}
	htfCfg := cfg.Structure
	htfCfg.Window = cfg.SwingWindow
	htfEvents, htfState := structure.Scan(hs, hd, htfSwings, htfCfg)

	report.HTFTrend = htfState.Trend
	report.HTFEvents = len(htfEvents)
	report.Aligned = report.HTFTrend != model.TrendUndefined && report.HTFTrend == report.LTFTrend

	switch {
	case report.Aligned && report.HTFTrend == model.TrendBullish:
		report.Bias = model.Bullish
	case report.Aligned && report.HTFTrend == model.TrendBearish:
		report.Bias = model.Bearish
	case report.HTFTrend != model.TrendUndefined:
		// HTF outranks LTF when they disagree.
		if report.HTFTrend == model.TrendBullish {
			report.Bias = model.Bullish
		} else {
			report.Bias = model.Bearish
		}
	}
	report.BiasScore = biasScore(report, htfEvents)
	return report, nil
}

func undefinedReport(target string, s *model.CandleSeries) *model.HTFReport {
	return &model.HTFReport{
		HTFTimeframe: target,
		HTFTrend:     model.TrendUndefined,
		LTFTrend:     model.TrendUndefined,
		Bias:         model.Neutral,
	}
}

// biasScore blends alignment with the mean confidence of the HTF events.
func biasScore(r *model.HTFReport, events []model.StructureEvent) float64 {
	if r.HTFTrend == model.TrendUndefined {
		return 0
	}
	conf := 0.0
	if len(events) > 0 {
		for _, ev := range events {
			conf += ev.Confidence
		}
		conf /= float64(len(events))
	}
	score := 0.4 + 0.4*conf
	if !r.Aligned {
		score *= 0.5
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
