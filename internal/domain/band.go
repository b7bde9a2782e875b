package domain

// Band is one contiguous price sub-range of the analyzed domain. Bands are
// created fresh per analysis run, mutated only during distribution, and
// read-only afterwards.
//
// Positions counts every position overlapping the band, so counts are not
// summable across bands: one position spanning three bands increments all
// three.
type Band struct {
	Index          int     `json:"bin_index"`
	PriceLower     float64 `json:"price_lower"`
	PriceUpper     float64 `json:"price_upper"`
	Capitalization float64 `json:"capitalization"`
	AmountBase     float64 `json:"amount_base"`
	AmountQuote    float64 `json:"amount_quote"`
	Positions      int     `json:"positions"`
}

// MidPrice returns the midpoint of the band's price range.
func (b *Band) MidPrice() float64 {
	return (b.PriceLower + b.PriceUpper) / 2
}

// Recommendation is a ranked view of a Band. Volume24h is nil when the
// volume lookup failed or timed out for that band; a nil volume degrades
// the single entry, never the whole result.
type Recommendation struct {
	Rank      int      `json:"rank"`
	Band      *Band    `json:"band"`
	Volume24h *float64 `json:"volume_24h,omitempty"`
}

// Diagnostics summarizes data quality over one pipeline run so a caller can
// judge a degraded result. All counters are per-run; nothing persists.
type Diagnostics struct {
	MintsSeen       int `json:"mints_seen"`
	AdjustmentsSeen int `json:"adjustments_seen"`
	Dropped         int `json:"dropped"`    // malformed records at the normalizer boundary
	Discarded       int `json:"discarded"`  // positions rejected by the outlier clamp
	Degenerate      int `json:"degenerate"` // ranges that collapsed after clamping
	Clamped         int `json:"clamped"`    // positions with at least one value clamped
	CleanPositions  int `json:"clean_positions"`
	VolumeFailures  int `json:"volume_failures"`
}
