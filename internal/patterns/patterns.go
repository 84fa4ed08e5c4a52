// Package patterns holds the composite detectors built on raw candles and
// swing points: turtle-soup false breakouts, round-number institutional
// levels, engineered stop-hunt moves, Wyckoff phase classification and
// volatility impact zones.
package patterns

import (
	"fmt"
	"math"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Config tunes the composite detectors.
type Config struct {
	ExtremeLookback  int     // candles defining the breakout extreme for turtle soup
	SoupCloseBack    int     // candles allowed for the failed breakout to close back inside
	SoupRR           float64 // turtle-soup risk-reward ratio
	StopBufferATR    float64 // stop placed this far beyond the sweep wick, in ATR multiples
	HuntReversalATR  float64 // reversal displacement, in ATR multiples, confirming a stop hunt
	WickDominance    float64 // wick/range share flagging a spring or upthrust
	WickVolumeRatio  float64 // volume vs average required at a dominant wick
	SlopeTrendingATR float64 // per-candle drift, in ATR multiples, separating trend from range
	ImpactRangeATR   float64 // candle range, in ATR multiples, qualifying for an impact burst
	ImpactVolRatio   float64 // candle volume vs average qualifying for an impact burst
	ImpactDriftSpan  int     // candles measured after a burst for post drift
}

// DefaultConfig returns the standard pattern parameters.
func DefaultConfig() Config {
	return Config{
		ExtremeLookback:  20,
		SoupCloseBack:    2,
		SoupRR:           3.0,
		StopBufferATR:    0.1,
		HuntReversalATR:  1.0,
		WickDominance:    0.7,
		WickVolumeRatio:  1.5,
		SlopeTrendingATR: 0.08,
		ImpactRangeATR:   2.0,
		ImpactVolRatio:   2.0,
		ImpactDriftSpan:  5,
	}
}

func (c Config) validate() error {
	if c.ExtremeLookback < 5 || c.SoupCloseBack < 1 || c.SoupRR <= 0 || c.StopBufferATR < 0 {
		return fmt.Errorf("%w: turtle-soup parameters out of range", model.ErrBadParam)
	}
	if c.WickDominance <= 0 || c.WickDominance > 1 || c.WickVolumeRatio <= 0 || c.HuntReversalATR <= 0 {
		return fmt.Errorf("%w: manipulation thresholds out of range", model.ErrBadParam)
	}
	if c.SlopeTrendingATR <= 0 || c.ImpactRangeATR <= 0 || c.ImpactVolRatio <= 0 || c.ImpactDriftSpan < 1 {
		return fmt.Errorf("%w: phase or impact thresholds out of range", model.ErrBadParam)
	}
	return nil
}

// TurtleSoup finds failed breakouts of a multi-day extreme: a candle trades
// beyond the highest high (or lowest low) of the previous
// cfg.ExtremeLookback candles and price closes back inside within
// cfg.SoupCloseBack candles. The setup trades the failure: entry at the
// raided level, stop beyond the wick, target at cfg.SoupRR times the risk.
func TurtleSoup(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.TurtleSoup, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	setups := []model.TurtleSoup{}
	for j := cfg.ExtremeLookback; j < s.Len(); j++ {
		hi, lo := windowExtremes(s, j-cfg.ExtremeLookback, j)
		c := &s.Candles[j]

		if c.High > hi {
			if back, ok := closesBack(s, j, hi, true, cfg.SoupCloseBack); ok {
				setups = append(setups, soupSetup(s, d, j, back, hi, model.Bearish, cfg))
				j = back // consume the raid; scan on from the close-back
			}
		} else if c.Low < lo {
			if back, ok := closesBack(s, j, lo, false, cfg.SoupCloseBack); ok {
				setups = append(setups, soupSetup(s, d, j, back, lo, model.Bullish, cfg))
				j = back
			}
		}
	}
	return setups, nil
}

func windowExtremes(s *model.CandleSeries, from, to int) (hi, lo float64) {
	hi, lo = s.Candles[from].High, s.Candles[from].Low
	for i := from + 1; i < to; i++ {
		if s.Candles[i].High > hi {
			hi = s.Candles[i].High
		}
		if s.Candles[i].Low < lo {
			lo = s.Candles[i].Low
		}
	}
	return hi, lo
}

// closesBack reports the first candle in [j, j+span] closing back inside the
// raided level.
func closesBack(s *model.CandleSeries, j int, level float64, above bool, span int) (int, bool) {
	for k := j; k < s.Len() && k <= j+span; k++ {
		c := s.Candles[k].Close
		if (above && c < level) || (!above && c > level) {
			return k, true
		}
	}
	return 0, false
}

func soupSetup(s *model.CandleSeries, d *indicator.Derived, j, back int, level float64, dir model.Direction, cfg Config) model.TurtleSoup {
	buffer := cfg.StopBufferATR * d.ATRAt(j)
	var stop, excursion float64
	if dir == model.Bearish { // failed upside breakout, trade back down
		stop = s.Candles[j].High + buffer
		excursion = s.Candles[j].High - level
	} else {
		stop = s.Candles[j].Low - buffer
		excursion = level - s.Candles[j].Low
	}
	risk := math.Abs(stop - level)
	target := level - cfg.SoupRR*risk
	if dir == model.Bullish {
		target = level + cfg.SoupRR*risk
	}

	// Deeper raids that snap back faster are more convincing.
	speed := 1 - float64(back-j)/float64(cfg.SoupCloseBack+1)
	depth := clamp01(excursion / d.ATRAt(j))
	return model.TurtleSoup{
		Direction:  dir,
		SweepIndex: j,
		Level:      level,
		Setup: model.TradeSetup{
			Direction:  dir,
			Entry:      level,
			Stop:       stop,
			Target:     target,
			RiskReward: cfg.SoupRR,
		},
		Confidence: clamp01(0.5*depth + 0.5*speed),
	}
}

// InstitutionalLevels enumerates the 00 and 50 round-number handles inside
// the observed range. The handle step adapts to the pair's price scale: one
// big figure for JPY-style quotes, one hundred pips otherwise.
func InstitutionalLevels(s *model.CandleSeries, cfg Config) ([]model.InstitutionalLevel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	lo, hi := windowExtremes(s, 0, s.Len())
	if last := s.Last(); last.High > hi {
		hi = last.High
	}
	step := 0.0100 // 00 handle for sub-20 quotes (EUR/USD style)
	if s.Last().Close >= 20 {
		step = 1.0 // JPY-style quotes
	}
	half := step / 2

	lastClose := s.Last().Close
	levels := []model.InstitutionalLevel{}
	for level := math.Ceil(lo/half) * half; level <= hi+1e-12; level += half {
		kind := "round_50"
		if math.Mod(math.Round(level/half), 2) == 0 {
			kind = "round_00"
		}
		touches := 0
		for i := range s.Candles {
			if s.Candles[i].Low <= level && s.Candles[i].High >= level {
				touches++
			}
		}
		if touches == 0 {
			continue
		}
		strength := clamp01(float64(touches) / 10)
		if kind == "round_00" {
			strength = clamp01(strength * 1.25) // big figures attract more orders
		}
		levels = append(levels, model.InstitutionalLevel{
			Level:    roundTo(level, 5),
			Kind:     kind,
			Touches:  touches,
			Strength: strength,
			Distance: math.Abs(level - lastClose),
		})
	}
	return levels, nil
}

// Manipulation flags engineered moves: stop hunts (a swing raid followed by
// an immediate displacement the other way) and dominant-wick springs and
// upthrusts at swing extremes on elevated volume.
func Manipulation(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, cfg Config) ([]model.Manipulation, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := []model.Manipulation{}
	for j := 1; j < s.Len(); j++ {
		if m := stopHuntAt(s, d, swings, j, cfg); m != nil {
			out = append(out, *m)
		}
		if m := dominantWickAt(s, d, swings, j, cfg); m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// stopHuntAt checks whether candle j raided a prior swing and the move
// reversed by at least cfg.HuntReversalATR within the next two candles.
func stopHuntAt(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, j int, cfg Config) *model.Manipulation {
	for _, sp := range swings {
		if sp.Index >= j {
			break
		}
		raidHigh := sp.Kind == model.SwingHigh && s.Candles[j].High > sp.Price && s.Candles[j].Close < sp.Price
		raidLow := sp.Kind == model.SwingLow && s.Candles[j].Low < sp.Price && s.Candles[j].Close > sp.Price
		if !raidHigh && !raidLow {
			continue
		}
		for k := j + 1; k < s.Len() && k <= j+2; k++ {
			var displacement float64
			var dir model.Direction
			if raidHigh {
				displacement = s.Candles[j].High - s.Candles[k].Close
				dir = model.Bearish
			} else {
				displacement = s.Candles[k].Close - s.Candles[j].Low
				dir = model.Bullish
			}
			if displacement/d.ATRAt(k) >= cfg.HuntReversalATR {
				return &model.Manipulation{
					Kind:       "stop_hunt",
					Index:      j,
					Level:      sp.Price,
					Direction:  dir,
					Confidence: clamp01(displacement / (2 * cfg.HuntReversalATR * d.ATRAt(k))),
				}
			}
		}
	}
	return nil
}

// dominantWickAt flags a spring (long lower wick at a swing low) or
// upthrust (long upper wick at a swing high) on elevated volume.
func dominantWickAt(s *model.CandleSeries, d *indicator.Derived, swings []model.SwingPoint, j int, cfg Config) *model.Manipulation {
	c := &s.Candles[j]
	r := c.Range()
	if r <= 0 || c.Volume < cfg.WickVolumeRatio*d.AvgVolumeAt(j-1) {
		return nil
	}
	atSwing := func(kind model.SwingKind) bool {
		for _, sp := range swings {
			if sp.Index == j && sp.Kind == kind {
				return true
			}
		}
		return false
	}
	if c.LowerWick()/r >= cfg.WickDominance && atSwing(model.SwingLow) {
		return &model.Manipulation{
			Kind:       "spring",
			Index:      j,
			Level:      c.Low,
			Direction:  model.Bullish,
			Confidence: clamp01(c.LowerWick() / r),
		}
	}
	if c.UpperWick()/r >= cfg.WickDominance && atSwing(model.SwingHigh) {
		return &model.Manipulation{
			Kind:       "upthrust",
			Index:      j,
			Level:      c.High,
			Direction:  model.Bearish,
			Confidence: clamp01(c.UpperWick() / r),
		}
	}
	return nil
}

// WyckoffPhases classifies the whole window into one phase from trend
// slope, where price sits in the window range, and the volume trend between
// the two halves. Strong drift is markup or markdown; a flat drift resolves
// by range position — quiet accumulation near the lows, distribution near
// the highs.
func WyckoffPhases(s *model.CandleSeries, d *indicator.Derived, cfg Config) (*model.PhaseReport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	last := n - 1
	slope := (s.Candles[last].Close - s.Candles[0].Close) / float64(n) / d.ATRAt(last)

	hi, lo := windowExtremes(s, 0, n)
	if s.Candles[last].High > hi {
		hi = s.Candles[last].High
	}
	if s.Candles[last].Low < lo {
		lo = s.Candles[last].Low
	}
	rangePos := 0.5
	if hi > lo {
		rangePos = (s.Candles[last].Close - lo) / (hi - lo)
	}

	volTrend := 1.0
	if n >= 2 {
		firstHalf, secondHalf := 0.0, 0.0
		half := n / 2
		for i := 0; i < half; i++ {
			firstHalf += s.Candles[i].Volume
		}
		for i := half; i < n; i++ {
			secondHalf += s.Candles[i].Volume
		}
		if firstHalf > 0 {
			volTrend = (secondHalf / float64(n-half)) / (firstHalf / float64(half))
		}
	}

	phase := "accumulation"
	confidence := 0.0
	switch {
	case slope >= cfg.SlopeTrendingATR:
		phase = "markup"
		confidence = clamp01(slope / (2 * cfg.SlopeTrendingATR))
	case slope <= -cfg.SlopeTrendingATR:
		phase = "markdown"
		confidence = clamp01(-slope / (2 * cfg.SlopeTrendingATR))
	case rangePos >= 0.5:
		phase = "distribution"
		confidence = clamp01(rangePos*0.6 + minF(volTrend, 2)/2*0.4)
	default:
		confidence = clamp01((1-rangePos)*0.6 + minF(volTrend, 2)/2*0.4)
	}

	return &model.PhaseReport{
		Phase:         phase,
		Confidence:    confidence,
		TrendSlope:    slope,
		VolumeTrend:   volTrend,
		RangePosition: clamp01(rangePos),
	}, nil
}

// ImpactZones envelopes bursts of outsized range and volume — the footprint
// scheduled news leaves on a chart, detected from the data alone.
func ImpactZones(s *model.CandleSeries, d *indicator.Derived, cfg Config) ([]model.ImpactZone, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	zones := []model.ImpactZone{}
	i := 0
	for i < s.Len() {
		if !impactCandle(s, d, i, cfg) {
			i++
			continue
		}
		start := i
		for i+1 < s.Len() && impactCandle(s, d, i+1, cfg) {
			i++
		}
		end := i
		zones = append(zones, buildImpactZone(s, d, start, end, cfg))
		i++
	}
	return zones, nil
}

func impactCandle(s *model.CandleSeries, d *indicator.Derived, i int, cfg Config) bool {
	c := &s.Candles[i]
	return c.Range() >= cfg.ImpactRangeATR*d.ATRAt(i) &&
		c.Volume >= cfg.ImpactVolRatio*d.AvgVolumeAt(i-1)
}

func buildImpactZone(s *model.CandleSeries, d *indicator.Derived, start, end int, cfg Config) model.ImpactZone {
	hi, lo := s.Candles[start].High, s.Candles[start].Low
	peak, vol := 0.0, 0.0
	for i := start; i <= end; i++ {
		c := &s.Candles[i]
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
		if r := c.Range() / d.ATRAt(i); r > peak {
			peak = r
		}
		vol += c.Volume
	}
	volRatio := vol / float64(end-start+1) / d.AvgVolumeAt(maxI(start-1, 0))

	driftEnd := minI(end+cfg.ImpactDriftSpan, s.Len()-1)
	drift := 0.0
	if driftEnd > end {
		drift = (s.Candles[driftEnd].Close - s.Candles[end].Close) / d.ATRAt(driftEnd)
	}

	dir := model.PolarityNeutral
	if s.Candles[end].Close > s.Candles[start].Open {
		dir = model.PolarityDemand
	} else if s.Candles[end].Close < s.Candles[start].Open {
		dir = model.PolaritySupply
	}

	return model.ImpactZone{
		Zone: model.Zone{
			Kind:        model.ZoneImpact,
			PriceHigh:   hi,
			PriceLow:    lo,
			OriginIndex: start,
			Polarity:    dir,
			Strength:    clamp01(peak / (2 * cfg.ImpactRangeATR)),
			Validity:    model.ValidityFresh,
		},
		StartIndex:  start,
		EndIndex:    end,
		PeakRange:   peak,
		VolumeRatio: volRatio,
		PostDrift:   drift,
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minI(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxI(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
