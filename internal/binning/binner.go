// Package binning partitions a price domain into contiguous bands and
// distributes each cleaned position's value across the bands it overlaps,
// proportional to the overlap width.
package binning

import (
	"errors"
	"fmt"
	"sort"

	"univ3-liquidity-lab/internal/domain"
)

// Errors returned by the binner.
var (
	ErrEmptyDomain = errors.New("no price data to derive a domain from")
	ErrBadDomain   = errors.New("domain low must be less than domain high")
)

// Partition divides [low, high) into n equal-width contiguous bands.
// The last band's upper bound is set to high exactly, so the partition
// covers the domain with no gaps regardless of rounding.
func Partition(low, high float64, n int) ([]*domain.Band, error) {
	if low >= high {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrBadDomain, low, high)
	}
	width := (high - low) / float64(n)
	bands := make([]*domain.Band, n)
	for i := 0; i < n; i++ {
		bands[i] = &domain.Band{
			Index:      i,
			PriceLower: low + float64(i)*width,
			PriceUpper: low + float64(i+1)*width,
		}
	}
	bands[n-1].PriceUpper = high
	return bands, nil
}

// ObservedDomain derives the default analysis domain from the cleaned
// positions: the min observed lower bound and max observed upper bound.
// A non-zero trimPct instead takes the trimPct / 1-trimPct quantiles of the
// lower/upper distributions, ignoring extreme edges the clamp let through.
func ObservedDomain(positions []*domain.Position, trimPct float64) (float64, float64, error) {
	if len(positions) == 0 {
		return 0, 0, ErrEmptyDomain
	}
	lowers := make([]float64, 0, len(positions))
	uppers := make([]float64, 0, len(positions))
	for _, p := range positions {
		lowers = append(lowers, p.PriceLower)
		uppers = append(uppers, p.PriceUpper)
	}
	sort.Float64s(lowers)
	sort.Float64s(uppers)

	lowIdx := int(float64(len(lowers)) * trimPct)
	highIdx := int(float64(len(uppers)) * (1 - trimPct))
	if highIdx > len(uppers)-1 {
		highIdx = len(uppers) - 1
	}
	if highIdx < lowIdx {
		highIdx = lowIdx
	}
	low, high := lowers[lowIdx], uppers[highIdx]
	if low >= high {
		return 0, 0, fmt.Errorf("%w: observed [%g, %g]", ErrBadDomain, low, high)
	}
	return low, high, nil
}

// Distribute spreads each position's value across the bands it overlaps.
//
// The position is valued once (quote amount + base amount at the position's
// mid price) and each overlapping band receives value * overlap/width, so
// the sum of a position's contributions over a covering domain equals its
// value up to float tolerance. Token amounts are distributed with the same
// fraction. Every overlapped band's position count is incremented.
//
// A zero-width position is assigned entirely to the single band whose
// half-open range [lower, upper) contains its price (the last band also
// accepts the domain's upper edge). Positions entirely outside the domain
// contribute nothing; that is expected, not an error.
func Distribute(positions []*domain.Position, bands []*domain.Band) {
	if len(bands) == 0 {
		return
	}
	for _, p := range positions {
		value := p.Value()
		width := p.Width()

		if width == 0 {
			if b := containing(bands, p.PriceLower); b != nil {
				b.Capitalization += value
				b.AmountBase += p.AmountBase
				b.AmountQuote += p.AmountQuote
				b.Positions++
			}
			continue
		}

		for _, b := range bands {
			overlap := overlapWidth(p.PriceLower, p.PriceUpper, b.PriceLower, b.PriceUpper)
			if overlap <= 0 {
				continue
			}
			frac := overlap / width
			b.Capitalization += value * frac
			b.AmountBase += p.AmountBase * frac
			b.AmountQuote += p.AmountQuote * frac
			b.Positions++
		}
	}
}

// overlapWidth returns the length of the intersection of [aLow, aHigh] and
// [bLow, bHigh], or 0 when they do not intersect.
func overlapWidth(aLow, aHigh, bLow, bHigh float64) float64 {
	low := aLow
	if bLow > low {
		low = bLow
	}
	high := aHigh
	if bHigh < high {
		high = bHigh
	}
	if low >= high {
		return 0
	}
	return high - low
}

// containing returns the band whose [lower, upper) range holds price; the
// final band also accepts its upper edge. Returns nil when price is outside
// the domain.
func containing(bands []*domain.Band, price float64) *domain.Band {
	n := len(bands)
	if price < bands[0].PriceLower || price > bands[n-1].PriceUpper {
		return nil
	}
	if price == bands[n-1].PriceUpper {
		return bands[n-1]
	}
	i := sort.Search(n, func(i int) bool { return bands[i].PriceUpper > price })
	if i == n {
		return nil
	}
	return bands[i]
}
