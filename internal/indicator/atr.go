package indicator

// TrueRange returns the per-candle true range: the greatest of high-low,
// |high-prevClose| and |low-prevClose|. The first entry falls back to
// high-low since there is no prior close.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(highs))
	for i := range highs {
		tr := highs[i] - lows[i]
		if i > 0 {
			if d := highs[i] - closes[i-1]; d < 0 {
				d = -d
				if d > tr {
					tr = d
				}
			} else if d > tr {
				tr = d
			}
			if d := lows[i] - closes[i-1]; d < 0 {
				d = -d
				if d > tr {
					tr = d
				}
			} else if d > tr {
				tr = d
			}
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Average True Range with Wilder's smoothing. Entries before
// the first complete period hold the running mean of the true ranges seen so
// far, so every index carries a usable volatility scale.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	if n == 0 || period <= 0 {
		return out
	}
	tr := TrueRange(highs, lows, closes)
	p := float64(period)
	sum := 0.0
	for i := 0; i < n; i++ {
		if i < period {
			sum += tr[i]
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}
