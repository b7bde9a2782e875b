// Package source defines the collaborator interfaces that feed the
// pipeline. Implementations live in subpackages; the core depends only on
// these contracts.
package source

import (
	"context"
	"time"

	"univ3-liquidity-lab/internal/domain"
)

// MintSource provides raw mint records for the configured pool.
type MintSource interface {
	// FetchMints returns mint records created within [from, to]. Records
	// may be unordered and may contain malformed entries; the normalizer
	// drops and counts those.
	FetchMints(ctx context.Context, from, to time.Time) ([]*domain.MintRecord, error)
}

// AdjustmentSource provides liquidity adjustment events for a set of
// position identifiers.
type AdjustmentSource interface {
	// FetchAdjustments returns increase/decrease events for the given
	// position IDs within [from, to]. Events may be unordered; the
	// normalizer enforces deterministic ordering before merging.
	FetchAdjustments(ctx context.Context, ids []string, from, to time.Time) ([]*domain.AdjustmentEvent, error)
}

// VolumeSource provides trading volume for one price band.
type VolumeSource interface {
	// FetchVolume returns traded volume between priceLow and priceHigh over
	// the trailing window. An error means the figure is unavailable for
	// that band; callers must degrade, not abort.
	FetchVolume(ctx context.Context, priceLow, priceHigh float64, window time.Duration) (domain.VolumeSample, error)
}
