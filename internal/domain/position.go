package domain

// Position is one liquidity-providing position after normalization: prices
// derived from ticks, amounts scaled to human units, adjustment events
// merged into a single current liquidity value.
//
// Invariants (enforced by the outlier clamp, assumed downstream):
// PriceLower < PriceUpper, Liquidity >= 0, amounts finite and non-negative.
// Positions are immutable once they leave the normalizer; the clamp stage
// returns copies rather than mutating its input.
type Position struct {
	ID          string
	TickLower   int
	TickUpper   int
	PriceLower  float64
	PriceUpper  float64
	Liquidity   float64 // current liquidity after merging adjustments, unscaled
	AmountBase  float64 // base-asset amount in human units
	AmountQuote float64 // quote-asset amount in human units
	Owner       string
	Timestamp   int64 // mint time, Unix milliseconds
	Events      int   // number of adjustment events merged (mint excluded)
}

// Width returns the price range covered by the position.
func (p *Position) Width() float64 {
	return p.PriceUpper - p.PriceLower
}

// MidPrice returns the midpoint of the position's price range.
func (p *Position) MidPrice() float64 {
	return (p.PriceLower + p.PriceUpper) / 2
}

// Value returns the position's capitalization in quote-asset terms, valuing
// the base amount at the position's mid price. A position whose liquidity
// was emptied (clamped to zero) is worth zero regardless of residual
// amounts: its existence is informative but it backs no capital.
func (p *Position) Value() float64 {
	if p.Liquidity == 0 {
		return 0
	}
	return p.AmountQuote + p.AmountBase*p.MidPrice()
}
