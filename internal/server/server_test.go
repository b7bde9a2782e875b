package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"univ3-liquidity-lab/internal/cache"
	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/pipeline"
	"univ3-liquidity-lab/internal/recommend"
)

// fixedAnalyzer returns a canned result and counts runs. A non-zero delay
// makes cache-miss coalescing observable.
type fixedAnalyzer struct {
	result *pipeline.Result
	err    error
	delay  time.Duration
	runs   atomic.Int32
}

func (a *fixedAnalyzer) Run(_ context.Context) (*pipeline.Result, error) {
	a.runs.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func sampleResult() *pipeline.Result {
	bands := []*domain.Band{
		{Index: 0, PriceLower: 1000, PriceUpper: 1500, Capitalization: 10},
		{Index: 1, PriceLower: 1500, PriceUpper: 2000, Capitalization: 50},
		{Index: 2, PriceLower: 2000, PriceUpper: 2500, Capitalization: 30},
	}
	recs := recommend.Rank(bands, 0)
	v := 12345.0
	recs[0].Volume24h = &v
	return &pipeline.Result{
		Recommendations: recs,
		Bands:           bands,
		Diagnostics:     domain.Diagnostics{MintsSeen: 7, CleanPositions: 7},
		GeneratedAt:     time.Unix(1_700_000_000, 0).UTC(),
	}
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, recommendationsResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	var body recommendationsResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRecommendations_FullList(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	rec, body := get(t, s, "/api/recommendations")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Recommendations, 3)
	assert.Equal(t, 1, body.Recommendations[0].Band.Index)
	assert.Equal(t, 7, body.Diagnostics.MintsSeen)
	require.NotNil(t, body.Recommendations[0].Volume24h)
	assert.Equal(t, 12345.0, *body.Recommendations[0].Volume24h)
}

func TestRecommendations_CachedBetweenRequests(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	for i := 0; i < 3; i++ {
		rec, _ := get(t, s, "/api/recommendations")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, int32(1), analyzer.runs.Load())
}

func TestRecommendations_ConcurrentMissesCoalesced(t *testing.T) {
	// A burst of requests against a cold cache must trigger one pipeline
	// run, not one per request.
	analyzer := &fixedAnalyzer{result: sampleResult(), delay: 50 * time.Millisecond}
	s := New(analyzer, cache.New(time.Minute))

	const requests = 5
	codes := make([]int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
			rec := httptest.NewRecorder()
			s.Echo().ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Equal(t, int32(1), analyzer.runs.Load())
}

func TestRecommendations_PriceFilterReranks(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	rec, body := get(t, s, "/api/recommendations?price_lower=1600&price_upper=2400")

	require.Equal(t, http.StatusOK, rec.Code)
	// Bands 1 and 2 overlap; band 0 ends at 1500 and is excluded.
	require.Len(t, body.Recommendations, 2)
	assert.Equal(t, 1, body.Recommendations[0].Band.Index)
	assert.Equal(t, 2, body.Recommendations[1].Band.Index)
	assert.Equal(t, 1, body.Recommendations[0].Rank)

	// Volume attached during the full run carries over to the filtered view.
	require.NotNil(t, body.Recommendations[0].Volume24h)
	assert.Equal(t, 12345.0, *body.Recommendations[0].Volume24h)
	// The filter is served from cache, not a fresh analysis.
	assert.Equal(t, int32(1), analyzer.runs.Load())
}

func TestRecommendations_FilterWithNoOverlapIsEmpty(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	rec, body := get(t, s, "/api/recommendations?price_lower=9000&price_upper=9999")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body.Recommendations)
}

func TestRecommendations_TopLimitsList(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	rec, body := get(t, s, "/api/recommendations?top=1")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, 1, body.Recommendations[0].Band.Index)
}

func TestRecommendations_BadParamsRejected(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	for _, target := range []string{
		"/api/recommendations?price_lower=abc",
		"/api/recommendations?price_upper=NaN",
		"/api/recommendations?price_lower=2000&price_upper=1000",
		"/api/recommendations?top=-1",
	} {
		rec, _ := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, analyzer.runs.Load())
}

func TestRecommendations_AnalyzerFailure(t *testing.T) {
	analyzer := &fixedAnalyzer{err: errors.New("upstream down")}
	s := New(analyzer, cache.New(time.Minute))

	rec, _ := get(t, s, "/api/recommendations")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRecommendations_FailureNotCached(t *testing.T) {
	analyzer := &fixedAnalyzer{err: errors.New("upstream down")}
	s := New(analyzer, cache.New(time.Minute))

	get(t, s, "/api/recommendations")
	analyzer.err = nil
	analyzer.result = sampleResult()

	rec, body := get(t, s, "/api/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Recommendations, 3)
	assert.Equal(t, int32(2), analyzer.runs.Load())
}

func TestHealth(t *testing.T) {
	analyzer := &fixedAnalyzer{result: sampleResult()}
	s := New(analyzer, cache.New(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["cache_warm"])
}
