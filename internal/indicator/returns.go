package indicator

// SimpleReturns returns the per-candle fractional close-to-close returns.
// The first entry is 0 — there is no prior close to compare against.
func SimpleReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			out[i] = (closes[i] - closes[i-1]) / closes[i-1]
		}
	}
	return out
}
