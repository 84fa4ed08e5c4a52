package indicator

// SMA returns the rolling simple moving average over values. Entries before
// a full window average what has been seen so far — the running sum keeps the
// whole pass O(n) with no inner window scans.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			// Subtract the value falling out of the window.
			sum -= values[i-period]
			out[i] = sum / float64(period)
			continue
		}
		out[i] = sum / float64(i+1)
	}
	return out
}
