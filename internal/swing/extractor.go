// Package swing extracts confirmed pivot highs and lows from a candle
// window. Every structural detector builds on these points, referencing them
// by candle index.
package swing

import (
	"fmt"

	"smc-enginev1/internal/indicator"
	"smc-enginev1/internal/model"
)

// Extract returns the swing points of s using a symmetric window: a candle is
// a swing high when its high is not exceeded anywhere in [i-window, i+window],
// and a swing low by the mirror rule. Exact ties share the extreme and are all
// recorded — equal highs/lows are what liquidity pools cluster later.
//
// Candles within window of either boundary cannot be confirmed and are
// skipped. A series shorter than 2*window+1 yields an empty result, not an
// error. Strength is the excursion past the window runner-up in ATR units,
// clamped to [0,1]; a tied extreme has zero excursion and zero strength.
func Extract(s *model.CandleSeries, d *indicator.Derived, window int) ([]model.SwingPoint, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: swing window %d, need >= 1", model.ErrBadParam, window)
	}
	n := s.Len()
	if n < 2*window+1 {
		return []model.SwingPoint{}, nil
	}

	points := make([]model.SwingPoint, 0, n/4)
	for i := window; i <= n-1-window; i++ {
		hi := s.Candles[i].High
		lo := s.Candles[i].Low

		isHigh, isLow := true, true
		// Runner-up extremes for the strength score.
		secondHigh := -1.0
		secondLow := -1.0
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if s.Candles[j].High > hi {
				isHigh = false
			}
			if secondHigh < 0 || s.Candles[j].High > secondHigh {
				secondHigh = s.Candles[j].High
			}
			if s.Candles[j].Low < lo {
				isLow = false
			}
			if secondLow < 0 || s.Candles[j].Low < secondLow {
				secondLow = s.Candles[j].Low
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			points = append(points, model.SwingPoint{
				Index:    i,
				Price:    hi,
				Kind:     model.SwingHigh,
				Strength: clamp01((hi - secondHigh) / d.ATRAt(i)),
			})
		}
		if isLow {
			points = append(points, model.SwingPoint{
				Index:    i,
				Price:    lo,
				Kind:     model.SwingLow,
				Strength: clamp01((secondLow - lo) / d.ATRAt(i)),
			})
		}
	}
	return points, nil
}

// Highs filters swing highs, preserving order.
func Highs(points []model.SwingPoint) []model.SwingPoint {
	out := make([]model.SwingPoint, 0, len(points))
	for _, p := range points {
		if p.Kind == model.SwingHigh {
			out = append(out, p)
		}
	}
	return out
}

// Lows filters swing lows, preserving order.
func Lows(points []model.SwingPoint) []model.SwingPoint {
	out := make([]model.SwingPoint, 0, len(points))
	for _, p := range points {
		if p.Kind == model.SwingLow {
			out = append(out, p)
		}
	}
	return out
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
