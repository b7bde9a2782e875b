package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/pipeline"
	"univ3-liquidity-lab/internal/recommend"
)

// recommendationsResponse is the JSON body of the recommendations endpoint.
type recommendationsResponse struct {
	Recommendations []*domain.Recommendation `json:"recommendations"`
	Diagnostics     domain.Diagnostics       `json:"diagnostics"`
	GeneratedAt     time.Time                `json:"generated_at"`
	CacheAgeSeconds float64                  `json:"cache_age_seconds"`
	PriceLower      *float64                 `json:"price_lower,omitempty"`
	PriceUpper      *float64                 `json:"price_upper,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRecommendations serves ranked bands, recomputing the analysis only
// on cache miss. With price_lower/price_upper the cached band set is
// filtered to overlapping bands and re-ranked; volumes attached during the
// full run carry over, so the filter never triggers new lookups.
func (s *Server) handleRecommendations(c echo.Context) error {
	priceLower, priceUpper, topK, err := parseQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	result, err := s.analysis(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("analysis failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "analysis unavailable: " + err.Error()})
	}

	resp := recommendationsResponse{
		Recommendations: result.Recommendations,
		Diagnostics:     result.Diagnostics,
		GeneratedAt:     result.GeneratedAt,
		CacheAgeSeconds: s.cache.Age().Seconds(),
	}
	if priceLower != nil || priceUpper != nil {
		resp.Recommendations = filterAndRerank(result, priceLower, priceUpper, topK)
		resp.PriceLower = priceLower
		resp.PriceUpper = priceUpper
	} else if topK > 0 && topK < len(resp.Recommendations) {
		resp.Recommendations = resp.Recommendations[:topK]
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []*domain.Recommendation{}
	}

	return c.JSON(http.StatusOK, resp)
}

// analysis returns the cached result or runs the pipeline and caches it.
// Concurrent misses are coalesced: the first request through runMu runs the
// pipeline, the rest find the freshly cached result on the re-check.
func (s *Server) analysis(c echo.Context) (*pipeline.Result, error) {
	if result, ok := s.cache.Get(); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return result, nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if result, ok := s.cache.Get(); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	result, err := s.analyzer.Run(c.Request().Context())
	if err != nil {
		return nil, err
	}
	s.cache.Set(result)
	return result, nil
}

// parseQuery reads the optional price_lower, price_upper, and top
// parameters.
func parseQuery(c echo.Context) (lower, upper *float64, topK int, err error) {
	if raw := c.QueryParam("price_lower"); raw != "" {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || math.IsNaN(v) {
			return nil, nil, 0, errors.New("invalid price_lower")
		}
		lower = &v
	}
	if raw := c.QueryParam("price_upper"); raw != "" {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || math.IsNaN(v) {
			return nil, nil, 0, errors.New("invalid price_upper")
		}
		upper = &v
	}
	if lower != nil && upper != nil && *lower >= *upper {
		return nil, nil, 0, errors.New("price_lower must be less than price_upper")
	}
	if raw := c.QueryParam("top"); raw != "" {
		v, perr := strconv.Atoi(raw)
		if perr != nil || v < 0 {
			return nil, nil, 0, errors.New("invalid top")
		}
		topK = v
	}
	return lower, upper, topK, nil
}

// filterAndRerank restricts the full band set to bands overlapping the
// requested range and re-ranks them. Volumes already attached to the full
// recommendation list are carried over by band index.
func filterAndRerank(result *pipeline.Result, lower, upper *float64, topK int) []*domain.Recommendation {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	if lower != nil {
		lo = *lower
	}
	if upper != nil {
		hi = *upper
	}

	var bands []*domain.Band
	for _, b := range result.Bands {
		if b.PriceUpper > lo && b.PriceLower < hi {
			bands = append(bands, b)
		}
	}

	volumes := make(map[int]*float64, len(result.Recommendations))
	for _, r := range result.Recommendations {
		if r.Volume24h != nil {
			volumes[r.Band.Index] = r.Volume24h
		}
	}

	recs := recommend.Rank(bands, topK)
	for _, r := range recs {
		r.Volume24h = volumes[r.Band.Index]
	}
	return recs
}

// handleHealth reports liveness and whether a cached analysis is warm.
func (s *Server) handleHealth(c echo.Context) error {
	_, warm := s.cache.Get()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"cache_warm":   warm,
		"cache_age_ms": s.cache.Age().Milliseconds(),
	})
}
