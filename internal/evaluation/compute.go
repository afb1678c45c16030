package evaluation

import "math"

// computeMean calculates the arithmetic mean of a profit series.
func computeMean(profits []float64) float64 {
	if len(profits) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range profits {
		sum += p
	}
	return sum / float64(len(profits))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(profits []float64, mean float64) float64 {
	n := len(profits)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, p := range profits {
		diff := p - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be
// pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough fall on the
// cumulative profit curve. Profits must be in replay order.
func computeMaxDrawdown(profits []float64) float64 {
	if len(profits) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest run of profit <= 0.
// Profits must be in replay order.
func computeMaxConsecutiveLosses(profits []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, p := range profits {
		if p <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
