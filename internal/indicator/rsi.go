package indicator

// RSI computes the Relative Strength Index over closes using Wilder's
// smoothing. One entry per input close; entries before the first complete
// period hold the neutral value 50 so downstream math never reads garbage.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 50.0
	}
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	// Accumulation phase: SMA seed over the first period deltas.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder's smoothing: avg = (prevAvg*(period-1) + x) / period.
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
