// Package money holds the pure arithmetic shared by the cost ledger and the
// profit calculator: zero-safe percentages, trend ratios and proration of
// recurring costs.
package money

import "math"

// DefaultProrationBasisDays is the billing-period length recurring fixed
// costs are prorated against.
const DefaultProrationBasisDays = 30

// Trend returns the period-over-period change of current vs previous as a
// percentage. A previous of zero yields 0 ("no signal"), not a fault.
func Trend(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return Round2((current - previous) / previous * 100)
}

// Prorate linearly scales amount to rangeDays out of basisDays. A
// non-positive basis falls back to DefaultProrationBasisDays.
func Prorate(amount float64, rangeDays, basisDays int) float64 {
	if basisDays <= 0 {
		basisDays = DefaultProrationBasisDays
	}
	if rangeDays < 0 {
		rangeDays = 0
	}
	return amount * float64(rangeDays) / float64(basisDays)
}

// SafeMargin returns numerator/denominator as a percentage, or 0 whenever
// the denominator is zero or non-finite.
func SafeMargin(numerator, denominator float64) float64 {
	if denominator == 0 || math.IsNaN(denominator) || math.IsInf(denominator, 0) {
		return 0
	}
	v := numerator / denominator * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Round2(v)
}

// SafeDiv returns a/b, or 0 when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func Round2(f float64) float64 {
	if f < 0 {
		return -Round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}
