package normalization

import (
	"sort"

	"univ3-liquidity-lab/internal/domain"
)

// SortAdjustments orders adjustment events by (timestamp ASC, event index
// ASC). Sources may deliver events unordered; the merge depends only on this
// sorted order, so applying events out of input order yields the same final
// liquidity.
func SortAdjustments(events []*domain.AdjustmentEvent) {
	sort.Slice(events, func(i, j int) bool {
		return compareAdjustments(events[i], events[j]) < 0
	})
}

// compareAdjustments returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareAdjustments(a, b *domain.AdjustmentEvent) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.EventIndex != b.EventIndex {
		if a.EventIndex < b.EventIndex {
			return -1
		}
		return 1
	}
	return 0
}
