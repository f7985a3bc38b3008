package metrics

import "math"

// Round4 rounds v to 4 decimal places, half away from zero.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanOrOne is Mean rounded to 4 decimals, with an empty subset scoring 1.0.
func MeanOrOne(values []float64) float64 {
	if len(values) == 0 {
		return 1.0
	}
	return Round4(Mean(values))
}

// Ratio returns numerator/denominator rounded to 4 decimals. An empty
// denominator scores 1.0: nothing to check means nothing failed.
func Ratio(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 1.0
	}
	return Round4(float64(numerator) / float64(denominator))
}
