// Package normalization converts raw mint and adjustment records into
// Positions: ticks become prices, raw integer amounts become human-unit
// amounts, and the adjustment event stream is folded into a single current
// liquidity value per position.
package normalization

import (
	"math"

	"univ3-liquidity-lab/internal/domain"
)

// TickBase is the fixed basis of the Uniswap v3 price grid: price = 1.0001^tick.
const TickBase = 1.0001

// PriceFromTick converts a raw tick to a human-unit price of token1 per
// token0: (1.0001^tick) / 10^(decimals1 - decimals0).
func PriceFromTick(tick, decimals0, decimals1 int) float64 {
	base := math.Pow(TickBase, float64(tick))
	return base / math.Pow(10, float64(decimals1-decimals0))
}

// ScaleAmount converts a raw integer token amount to human units.
func ScaleAmount(raw float64, decimals int) float64 {
	return raw / math.Pow(10, float64(decimals))
}

// Result is the normalizer's output: one Position per well-formed mint plus
// a count of records dropped for missing required fields. Dropping is a
// data-quality signal, never a failure.
type Result struct {
	Positions []*domain.Position
	Dropped   int
}

// Normalize produces exactly one Position per unique well-formed mint
// record, merging any adjustment events that reference it.
//
// Adjustment events are grouped by position ID and applied in (timestamp,
// event index) order. The liquidity fold clamps a negative running total to
// zero: that signals a data-quality issue in the source, not a fatal error.
// Amount deltas are summed into the mint amounts before decimal scaling.
// Adjustments referencing an unknown position are ignored.
//
// The price orientation is fixed for the whole run by pool.BaseIsToken0;
// when the base asset is token1 the reciprocal price is used, which swaps
// the roles of the lower and upper ticks.
func Normalize(mints []*domain.MintRecord, adjustments []*domain.AdjustmentEvent, pool domain.PoolMeta) Result {
	byPosition := make(map[string][]*domain.AdjustmentEvent, len(adjustments))
	for _, e := range adjustments {
		if e.PositionID == "" {
			continue
		}
		byPosition[e.PositionID] = append(byPosition[e.PositionID], e)
	}
	for _, events := range byPosition {
		SortAdjustments(events)
	}

	res := Result{Positions: make([]*domain.Position, 0, len(mints))}
	seen := make(map[string]bool, len(mints))

	for _, m := range mints {
		if m.ID == "" || m.Timestamp == 0 || seen[m.ID] {
			res.Dropped++
			continue
		}
		seen[m.ID] = true

		events := byPosition[m.ID]

		liquidity := m.RawLiquidity
		amount0 := m.RawAmount0
		amount1 := m.RawAmount1
		for _, e := range events {
			liquidity += e.LiquidityDelta
			if liquidity < 0 {
				liquidity = 0
			}
			amount0 += e.Amount0Delta
			amount1 += e.Amount1Delta
		}

		lower := PriceFromTick(m.TickLower, pool.Decimals0, pool.Decimals1)
		upper := PriceFromTick(m.TickUpper, pool.Decimals0, pool.Decimals1)
		base := ScaleAmount(amount0, pool.Decimals0)
		quote := ScaleAmount(amount1, pool.Decimals1)
		if !pool.BaseIsToken0 {
			// Reciprocal price reverses the tick ordering.
			lower, upper = 1/upper, 1/lower
			base, quote = quote, base
		}

		res.Positions = append(res.Positions, &domain.Position{
			ID:          m.ID,
			TickLower:   m.TickLower,
			TickUpper:   m.TickUpper,
			PriceLower:  lower,
			PriceUpper:  upper,
			Liquidity:   liquidity,
			AmountBase:  base,
			AmountQuote: quote,
			Owner:       m.Owner,
			Timestamp:   m.Timestamp,
			Events:      len(events),
		})
	}

	return res
}
