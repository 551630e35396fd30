package analytics

import "math"

// Fixed-precision storage bounds. Rate-like fields persist into NUMERIC(5,2)
// columns and rating-like fields into NUMERIC(3,2) columns, so values are
// clamped before every write.
const (
	RateBound  = 999.99
	ScoreBound = 9.99
)

// safeDiv divides a by b, defining division by zero as zero. This rule is
// applied uniformly across aggregation and trend computation.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// percentChange returns the percent change from previous to current, defined
// as zero when the previous value is zero.
func percentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// mean returns the arithmetic mean of vals, or zero for an empty slice.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev returns the population standard deviation of vals.
func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}

// sanitize coerces NaN and infinities to zero, then clamps to [-bound, bound].
// NaN coercion must run before clamping; clamp(NaN) is undefined otherwise.
func sanitize(v, bound float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}

// round2 rounds to two decimal places, the precision used for all persisted
// and reported rate fields.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
