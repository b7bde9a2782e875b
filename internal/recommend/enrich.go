package recommend

import (
	"context"
	"time"

	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/source"
)

// Enricher attaches trailing volume figures to ranked bands using a bounded
// worker pool. The ranking is fixed before enrichment starts; lookups are
// independent and a failure or timeout degrades exactly one entry.
type Enricher struct {
	volumes source.VolumeSource
	window  time.Duration
	workers int
	timeout time.Duration
}

// NewEnricher creates an enricher. workers must be positive; timeout bounds
// each individual lookup.
func NewEnricher(volumes source.VolumeSource, window time.Duration, workers int, timeout time.Duration) *Enricher {
	if workers < 1 {
		workers = 1
	}
	return &Enricher{volumes: volumes, window: window, workers: workers, timeout: timeout}
}

// Enrich fans lookups out over the worker pool and collects results keyed
// by recommendation index; no counters are shared across lookups. Each
// band's volume is expressed in quote-asset terms (quote volume + base
// volume at the band's mid price). Returns the number of failed lookups;
// those entries keep a nil volume and render as unavailable.
func (e *Enricher) Enrich(ctx context.Context, recs []*domain.Recommendation) int {
	if len(recs) == 0 {
		return 0
	}

	results := make([]*float64, len(recs))
	jobs := make(chan int)
	done := make(chan struct{}, e.workers)

	for w := 0; w < e.workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range jobs {
				results[i] = e.lookup(ctx, recs[i].Band)
			}
		}()
	}

	for i := range recs {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < e.workers; w++ {
		<-done
	}

	failures := 0
	for i, v := range results {
		if v == nil {
			failures++
			continue
		}
		recs[i].Volume24h = v
	}
	return failures
}

// lookup fetches one band's volume under the per-lookup timeout. A nil
// return means the figure is unavailable.
func (e *Enricher) lookup(ctx context.Context, band *domain.Band) *float64 {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	sample, err := e.volumes.FetchVolume(ctx, band.PriceLower, band.PriceUpper, e.window)
	if err != nil {
		return nil
	}
	v := sample.Quote + sample.Base*band.MidPrice()
	return &v
}
