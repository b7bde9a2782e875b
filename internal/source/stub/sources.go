// Package stub provides fixed in-memory source implementations for tests
// and fixture runs.
package stub

import (
	"context"
	"sync"
	"time"

	"univ3-liquidity-lab/internal/domain"
)

// MintSource returns fixed mint records. Records can be intentionally
// malformed or unordered to exercise the normalizer.
type MintSource struct {
	Mints []*domain.MintRecord
	Err   error
}

// NewMintSource creates a stub mint source with the given records.
func NewMintSource(mints []*domain.MintRecord) *MintSource {
	return &MintSource{Mints: mints}
}

// FetchMints returns copies of records minted within [from, to].
func (s *MintSource) FetchMints(_ context.Context, from, to time.Time) ([]*domain.MintRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var result []*domain.MintRecord
	for _, m := range s.Mints {
		ts := time.UnixMilli(m.Timestamp)
		if !ts.Before(from) && !ts.After(to) {
			c := *m
			result = append(result, &c)
		}
	}
	return result, nil
}

// AdjustmentSource returns fixed adjustment events.
type AdjustmentSource struct {
	Events []*domain.AdjustmentEvent
	Err    error
}

// NewAdjustmentSource creates a stub adjustment source with the given events.
func NewAdjustmentSource(events []*domain.AdjustmentEvent) *AdjustmentSource {
	return &AdjustmentSource{Events: events}
}

// FetchAdjustments returns copies of events matching the IDs and time range.
func (s *AdjustmentSource) FetchAdjustments(_ context.Context, ids []string, from, to time.Time) ([]*domain.AdjustmentEvent, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var result []*domain.AdjustmentEvent
	for _, e := range s.Events {
		ts := time.UnixMilli(e.Timestamp)
		if wanted[e.PositionID] && !ts.Before(from) && !ts.After(to) {
			c := *e
			result = append(result, &c)
		}
	}
	return result, nil
}

// VolumeSource returns a fixed sample, optionally delayed or failing, and
// records how many lookups were made. Delay makes per-lookup timeout
// behavior testable.
type VolumeSource struct {
	Sample domain.VolumeSample
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	calls int
}

// FetchVolume returns the configured sample after the configured delay,
// honoring context cancellation.
func (s *VolumeSource) FetchVolume(ctx context.Context, _, _ float64, _ time.Duration) (domain.VolumeSample, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return domain.VolumeSample{}, ctx.Err()
		}
	}
	if s.Err != nil {
		return domain.VolumeSample{}, s.Err
	}
	return s.Sample, nil
}

// Calls reports how many lookups were issued.
func (s *VolumeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
