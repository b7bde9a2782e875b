// Package recommend ranks price bands by capitalization and enriches the
// top bands with trailing trading volume.
package recommend

import (
	"sort"

	"univ3-liquidity-lab/internal/domain"
)

// Rank orders bands descending by capitalization, breaking ties by lower
// price bound ascending so identical inputs always produce identical
// output. TopK limits the result; 0 keeps all bands. The input slice is not
// reordered.
func Rank(bands []*domain.Band, topK int) []*domain.Recommendation {
	ranked := make([]*domain.Band, len(bands))
	copy(ranked, bands)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Capitalization != ranked[j].Capitalization {
			return ranked[i].Capitalization > ranked[j].Capitalization
		}
		return ranked[i].PriceLower < ranked[j].PriceLower
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	recs := make([]*domain.Recommendation, len(ranked))
	for i, b := range ranked {
		recs[i] = &domain.Recommendation{Rank: i + 1, Band: b}
	}
	return recs
}
