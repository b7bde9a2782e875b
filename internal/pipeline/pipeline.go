// Package pipeline orchestrates one analysis run: fetch raw records,
// normalize, clamp outliers, bin, rank, enrich. The pipeline is stateless
// and run-to-completion; each invocation owns its data exclusively and
// nothing persists across runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"univ3-liquidity-lab/internal/binning"
	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/normalization"
	"univ3-liquidity-lab/internal/observability"
	"univ3-liquidity-lab/internal/outlier"
	"univ3-liquidity-lab/internal/recommend"
	"univ3-liquidity-lab/internal/source"
)

// ErrSourceFailure wraps a fatal failure of the record source: with no mint
// data there is nothing to analyze.
var ErrSourceFailure = errors.New("record source failure")

// Options configures a Runner. Mints is required; Adjustments and Volume
// are optional collaborators (a missing adjustment source leaves positions
// at their mint liquidity, a missing volume source skips enrichment).
type Options struct {
	Mints       source.MintSource
	Adjustments source.AdjustmentSource
	Volume      source.VolumeSource
	Pool        domain.PoolMeta
	Config      domain.Config
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
	Clock       func() time.Time
}

// Runner executes the analysis pipeline.
type Runner struct {
	opts Options
}

// Result is one run's output: the ranked recommendations, the full band
// set they were drawn from, and a diagnostics summary so callers can judge
// data quality even on a degraded run.
type Result struct {
	Recommendations []*domain.Recommendation `json:"recommendations"`
	Bands           []*domain.Band           `json:"bands"`
	Diagnostics     domain.Diagnostics       `json:"diagnostics"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// New creates a pipeline runner. The configuration is validated on every
// run, not here, so a Runner can outlive config changes in its Options.
func New(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{opts: opts}
}

// Run executes the pipeline once.
//
// A configuration error or a mint-source failure is fatal. An adjustment
// fetch failure degrades the run (positions keep their mint liquidity) and
// a volume lookup failure degrades single entries; both are reported in
// Diagnostics, never as errors. Zero mint records is a valid empty result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	start := r.opts.Clock()
	result, err := r.run(ctx, cfg, start)

	if r.opts.Metrics != nil {
		r.opts.Metrics.PipelineDuration.Observe(r.opts.Clock().Sub(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.opts.Metrics.PipelineRuns.WithLabelValues(status).Inc()
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, cfg domain.Config, now time.Time) (*Result, error) {
	log := r.opts.Logger
	from := now.Add(-cfg.Lookback)

	mints, err := r.opts.Mints.FetchMints(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching mints: %v", ErrSourceFailure, err)
	}

	diags := domain.Diagnostics{MintsSeen: len(mints)}
	if len(mints) == 0 {
		log.Info().Msg("no mint records in lookback window")
		return &Result{Diagnostics: diags, GeneratedAt: now}, nil
	}

	adjustments := r.fetchAdjustments(ctx, mints, from, now)
	diags.AdjustmentsSeen = len(adjustments)

	normalized := normalization.Normalize(mints, adjustments, r.opts.Pool)
	diags.Dropped = normalized.Dropped

	cleaned, stats := outlier.Clamp(normalized.Positions, cfg.Bounds)
	diags.Discarded = stats.Discarded
	diags.Degenerate = stats.Degenerate
	diags.Clamped = stats.Clamped
	diags.CleanPositions = len(cleaned)

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordsDropped.Add(float64(diags.Dropped))
		r.opts.Metrics.PositionsClamped.Add(float64(diags.Clamped))
		r.opts.Metrics.PositionsDiscarded.Add(float64(diags.Discarded + diags.Degenerate))
	}
	log.Info().
		Int("mints", diags.MintsSeen).
		Int("adjustments", diags.AdjustmentsSeen).
		Int("dropped", diags.Dropped).
		Int("discarded", diags.Discarded+diags.Degenerate).
		Int("clamped", diags.Clamped).
		Int("clean", diags.CleanPositions).
		Msg("normalized and cleaned positions")

	if len(cleaned) == 0 {
		return &Result{Diagnostics: diags, GeneratedAt: now}, nil
	}

	low, high := cfg.DomainLow, cfg.DomainHigh
	if low == 0 && high == 0 {
		low, high, err = binning.ObservedDomain(cleaned, cfg.DomainTrimPct)
		if err != nil {
			return nil, fmt.Errorf("deriving price domain: %w", err)
		}
	}
	bands, err := binning.Partition(low, high, cfg.NumBins)
	if err != nil {
		return nil, fmt.Errorf("partitioning domain: %w", err)
	}
	binning.Distribute(cleaned, bands)

	recs := recommend.Rank(bands, cfg.TopK)

	if r.opts.Volume != nil {
		enricher := recommend.NewEnricher(r.opts.Volume, cfg.VolumeWindow, cfg.VolumeWorkers, cfg.VolumeTimeout)
		diags.VolumeFailures = enricher.Enrich(ctx, recs)
		if diags.VolumeFailures > 0 {
			log.Warn().Int("failures", diags.VolumeFailures).Msg("some volume lookups unavailable")
			if r.opts.Metrics != nil {
				r.opts.Metrics.VolumeLookupFailures.Add(float64(diags.VolumeFailures))
			}
		}
	}

	return &Result{
		Recommendations: recs,
		Bands:           bands,
		Diagnostics:     diags,
		GeneratedAt:     now,
	}, nil
}

// fetchAdjustments collects adjustment events for the minted positions. A
// failure here is logged and degrades the run to mint-only liquidity; the
// mint data alone still yields a usable analysis.
func (r *Runner) fetchAdjustments(ctx context.Context, mints []*domain.MintRecord, from, to time.Time) []*domain.AdjustmentEvent {
	if r.opts.Adjustments == nil {
		return nil
	}
	ids := make([]string, 0, len(mints))
	for _, m := range mints {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	events, err := r.opts.Adjustments.FetchAdjustments(ctx, ids, from, to)
	if err != nil {
		r.opts.Logger.Warn().Err(err).Msg("adjustment fetch failed, using mint liquidity only")
		return nil
	}
	return events
}
