package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/source/stub"
)

func bands(caps ...float64) []*domain.Band {
	out := make([]*domain.Band, len(caps))
	for i, c := range caps {
		out[i] = &domain.Band{
			Index:          i,
			PriceLower:     1000 + float64(i)*100,
			PriceUpper:     1100 + float64(i)*100,
			Capitalization: c,
		}
	}
	return out
}

func TestRank_DescendingByCapitalization(t *testing.T) {
	recs := Rank(bands(10, 50, 30), 0)

	require.Len(t, recs, 3)
	assert.Equal(t, 1, recs[0].Band.Index)
	assert.Equal(t, 2, recs[1].Band.Index)
	assert.Equal(t, 0, recs[2].Band.Index)
	for i, r := range recs {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRank_TiesBrokenByLowerPrice(t *testing.T) {
	recs := Rank(bands(50, 50, 50), 0)

	assert.Equal(t, 0, recs[0].Band.Index)
	assert.Equal(t, 1, recs[1].Band.Index)
	assert.Equal(t, 2, recs[2].Band.Index)
}

func TestRank_Deterministic(t *testing.T) {
	in := bands(5, 9, 9, 1, 5)
	a := Rank(in, 0)
	for run := 0; run < 10; run++ {
		b := Rank(in, 0)
		for i := range a {
			require.Equal(t, a[i].Band.Index, b[i].Band.Index, "run %d position %d", run, i)
		}
	}
}

func TestRank_TopKLimitsAndZeroMeansAll(t *testing.T) {
	assert.Len(t, Rank(bands(1, 2, 3, 4), 2), 2)
	assert.Len(t, Rank(bands(1, 2, 3, 4), 0), 4)
	assert.Len(t, Rank(bands(1, 2), 10), 2)
}

func TestRank_DoesNotReorderInput(t *testing.T) {
	in := bands(10, 50, 30)
	Rank(in, 0)
	for i, b := range in {
		assert.Equal(t, i, b.Index)
	}
}

func TestEnrich_AttachesVolumeInQuoteTerms(t *testing.T) {
	vs := &stub.VolumeSource{Sample: domain.VolumeSample{Base: 2, Quote: 100}}
	recs := Rank(bands(10), 0)

	e := NewEnricher(vs, 24*time.Hour, 2, time.Second)
	failures := e.Enrich(context.Background(), recs)

	assert.Zero(t, failures)
	require.NotNil(t, recs[0].Volume24h)
	// quote + base * mid(1000, 1100)
	assert.InDelta(t, 100+2*1050, *recs[0].Volume24h, 1e-9)
}

func TestEnrich_FailureIsolatedPerBand(t *testing.T) {
	// All lookups fail, every entry degrades, none panics or aborts.
	vs := &stub.VolumeSource{Err: errors.New("upstream down")}
	recs := Rank(bands(10, 20, 30), 0)

	e := NewEnricher(vs, 24*time.Hour, 2, time.Second)
	failures := e.Enrich(context.Background(), recs)

	assert.Equal(t, 3, failures)
	for _, r := range recs {
		assert.Nil(t, r.Volume24h)
	}
	assert.Equal(t, 3, vs.Calls())
}

func TestEnrich_TimeoutRendersUnavailable(t *testing.T) {
	vs := &stub.VolumeSource{
		Sample: domain.VolumeSample{Quote: 100},
		Delay:  200 * time.Millisecond,
	}
	recs := Rank(bands(10), 0)

	e := NewEnricher(vs, 24*time.Hour, 1, 10*time.Millisecond)

	start := time.Now()
	failures := e.Enrich(context.Background(), recs)

	assert.Equal(t, 1, failures)
	assert.Nil(t, recs[0].Volume24h)
	// The pipeline must not block on a stalled lookup.
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestEnrich_RankingFixedBeforeEnrichment(t *testing.T) {
	vs := &stub.VolumeSource{Sample: domain.VolumeSample{Quote: 1}}
	recs := Rank(bands(10, 50, 30), 0)
	ranksBefore := []int{recs[0].Band.Index, recs[1].Band.Index, recs[2].Band.Index}

	NewEnricher(vs, 24*time.Hour, 3, time.Second).Enrich(context.Background(), recs)

	assert.Equal(t, ranksBefore, []int{recs[0].Band.Index, recs[1].Band.Index, recs[2].Band.Index})
}

func TestEnrich_EmptyInput(t *testing.T) {
	vs := &stub.VolumeSource{}
	e := NewEnricher(vs, 24*time.Hour, 2, time.Second)
	assert.Zero(t, e.Enrich(context.Background(), nil))
	assert.Zero(t, vs.Calls())
}
