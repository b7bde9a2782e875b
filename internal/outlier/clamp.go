// Package outlier is the single place where data-quality defense lives.
// It validates normalized positions against configured bounds and either
// clamps offending values or discards the position; every downstream stage
// may assume finite, non-negative, well-ordered inputs.
package outlier

import (
	"math"

	"univ3-liquidity-lab/internal/domain"
)

// Stats counts what the clamp did to one position set.
type Stats struct {
	Discarded  int // non-finite or inverted price ranges
	Degenerate int // ranges that collapsed to a point after clamping
	Clamped    int // positions with at least one value clamped
}

// Clamp applies the outlier policy to each position, in order:
//
//  1. a non-finite or non-positive price bound discards the position;
//  2. lower > upper discards it (malformed range);
//  3. a bound outside [MinPrice, MaxPrice] is clamped to the nearest limit,
//     and the position is discarded only if the clamped range is degenerate
//     (lower == upper) — a partial overlap with the domain is still valid;
//  4. non-finite or over-maximum amounts are clamped to the configured
//     maximum, negative ones to zero; a non-finite or negative liquidity is
//     zeroed, reading as an emptied position. The position is kept since
//     its existence is still informative.
//
// Input positions are never mutated; survivors are copies. Clamping an
// already-clamped set is a no-op.
func Clamp(positions []*domain.Position, bounds domain.Bounds) ([]*domain.Position, Stats) {
	var stats Stats
	out := make([]*domain.Position, 0, len(positions))

	for _, src := range positions {
		if !finitePositive(src.PriceLower) || !finitePositive(src.PriceUpper) {
			stats.Discarded++
			continue
		}
		if src.PriceLower > src.PriceUpper {
			stats.Discarded++
			continue
		}

		p := *src
		clamped := false

		if p.PriceLower < bounds.MinPrice {
			p.PriceLower = bounds.MinPrice
			clamped = true
		}
		if p.PriceLower > bounds.MaxPrice {
			p.PriceLower = bounds.MaxPrice
			clamped = true
		}
		if p.PriceUpper > bounds.MaxPrice {
			p.PriceUpper = bounds.MaxPrice
			clamped = true
		}
		if p.PriceUpper < bounds.MinPrice {
			p.PriceUpper = bounds.MinPrice
			clamped = true
		}
		if p.PriceLower == p.PriceUpper {
			stats.Degenerate++
			continue
		}

		if clampLiquidity(&p.Liquidity) {
			clamped = true
		}
		if clampAmount(&p.AmountBase, bounds.MaxAmountBase) {
			clamped = true
		}
		if clampAmount(&p.AmountQuote, bounds.MaxAmountQuote) {
			clamped = true
		}

		if clamped {
			stats.Clamped++
		}
		out = append(out, &p)
	}

	return out, stats
}

// clampLiquidity zeroes a non-finite or negative liquidity. There is no
// meaningful cap to clamp it to; an unparseable liquidity reads as an
// emptied position. Reports whether a change was made.
func clampLiquidity(v *float64) bool {
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		*v = 0
		return true
	}
	return false
}

// clampAmount forces v into [0, max], treating NaN and infinities as over
// the maximum. Reports whether a change was made.
func clampAmount(v *float64, max float64) bool {
	switch {
	case math.IsNaN(*v) || math.IsInf(*v, 0) || *v > max:
		*v = max
		return true
	case *v < 0:
		*v = 0
		return true
	}
	return false
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
