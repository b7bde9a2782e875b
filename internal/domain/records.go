package domain

// MintRecord is a raw Uniswap v3 position-manager mint call as delivered by
// the source. Quantities are unscaled on-chain integers; ticks are the raw
// pool grid indexes. Amounts larger than 2^53 lose precision in float64,
// which is acceptable for this analytical pipeline.
type MintRecord struct {
	ID           string // NFT token ID, unique per position
	TickLower    int
	TickUpper    int
	RawLiquidity float64 // liquidity minted, unscaled
	RawAmount0   float64 // token0 amount, unscaled
	RawAmount1   float64 // token1 amount, unscaled
	Owner        string
	Timestamp    int64 // Unix timestamp in milliseconds
}

// AdjustmentEvent is a signed liquidity change (increaseLiquidity or
// decreaseLiquidity) applied to exactly one position. Events are ephemeral:
// the normalizer consumes them entirely and never retains them after merge.
type AdjustmentEvent struct {
	PositionID     string
	LiquidityDelta float64 // signed, unscaled
	Amount0Delta   float64 // signed, unscaled
	Amount1Delta   float64 // signed, unscaled
	Timestamp      int64   // Unix timestamp in milliseconds, primary ordering key
	EventIndex     int     // tiebreaker within the same timestamp
}

// PoolMeta carries the per-token metadata needed to turn raw records into
// prices and human-unit amounts.
type PoolMeta struct {
	Token0    string // token0 contract address, lowercase
	Token1    string // token1 contract address, lowercase
	Decimals0 int
	Decimals1 int
	// BaseIsToken0 selects the price orientation for the whole run: when
	// true, prices are quoted as token1 per token0 and token0 is the base
	// asset; when false the reciprocal is used.
	BaseIsToken0 bool
}

// BaseToken returns the base-asset contract address under the pool's
// orientation.
func (p PoolMeta) BaseToken() string {
	if p.BaseIsToken0 {
		return p.Token0
	}
	return p.Token1
}

// QuoteToken returns the quote-asset contract address under the pool's
// orientation.
func (p PoolMeta) QuoteToken() string {
	if p.BaseIsToken0 {
		return p.Token1
	}
	return p.Token0
}

// VolumeSample is the volume collaborator's response for one price band.
type VolumeSample struct {
	Base  float64 // base-asset volume over the window
	Quote float64 // quote-asset volume over the window
}
