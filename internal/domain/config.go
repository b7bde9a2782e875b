package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Default outlier bounds for a WETH/USDT pool. MinPrice/MaxPrice bracket the
// plausible USDT-per-WETH range; the amount caps reject positions claiming
// more than the circulating supply could back.
const (
	DefaultMinPrice       = 100.0
	DefaultMaxPrice       = 100000.0
	DefaultMaxAmountBase  = 1e6  // 1M WETH
	DefaultMaxAmountQuote = 1e12 // 1T USDT
)

// Bounds are the outlier-clamp limits applied to every normalized position.
type Bounds struct {
	MinPrice       float64
	MaxPrice       float64
	MaxAmountBase  float64
	MaxAmountQuote float64
}

// DefaultBounds returns the WETH/USDT defaults.
func DefaultBounds() Bounds {
	return Bounds{
		MinPrice:       DefaultMinPrice,
		MaxPrice:       DefaultMaxPrice,
		MaxAmountBase:  DefaultMaxAmountBase,
		MaxAmountQuote: DefaultMaxAmountQuote,
	}
}

// Ethereum mainnet contract addresses for the default pool.
const (
	WETHAddress = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	USDTAddress = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

// DefaultPool returns the WETH/USDT pool metadata: WETH is token0 and the
// base asset, so prices read as USDT per WETH.
func DefaultPool() PoolMeta {
	return PoolMeta{
		Token0:       WETHAddress,
		Token1:       USDTAddress,
		Decimals0:    18,
		Decimals1:    6,
		BaseIsToken0: true,
	}
}

// Config is the explicit per-run configuration handed to the pipeline. The
// core never reads process or global state; cmd binaries translate flags and
// environment into one of these.
type Config struct {
	// Lookback is the time span over which mint and adjustment records are
	// considered.
	Lookback time.Duration
	// NumBins is the number of equal-width price bands.
	NumBins int
	// DomainLow/DomainHigh bound the analyzed price domain. When both are
	// zero the domain defaults to the observed price range across cleaned
	// positions.
	DomainLow  float64
	DomainHigh float64
	// DomainTrimPct trims that fraction off each end of the observed price
	// distribution when deriving the default domain (0 disables trimming,
	// 0.05 reproduces a 5th/95th-percentile domain).
	DomainTrimPct float64
	// TopK limits the recommendation list; 0 means all bands.
	TopK int
	// Bounds configure the outlier clamp.
	Bounds Bounds
	// VolumeWindow is the window for per-band volume enrichment.
	VolumeWindow time.Duration
	// VolumeWorkers bounds enrichment concurrency.
	VolumeWorkers int
	// VolumeTimeout is the per-lookup timeout; a lookup exceeding it is
	// abandoned and the band's volume reported unavailable.
	VolumeTimeout time.Duration
}

// DefaultConfig mirrors the defaults of the original analysis: 10-day
// lookback, 50 bins, top 5 bands, 24h volume window.
func DefaultConfig() Config {
	return Config{
		Lookback:      240 * time.Hour,
		NumBins:       50,
		TopK:          5,
		Bounds:        DefaultBounds(),
		VolumeWindow:  24 * time.Hour,
		VolumeWorkers: 4,
		VolumeTimeout: 15 * time.Second,
	}
}

// Configuration validation errors.
var (
	ErrInvalidNumBins  = errors.New("num bins must be positive")
	ErrInvalidDomain   = errors.New("domain low must be less than domain high")
	ErrInvalidTopK     = errors.New("top K must not be negative")
	ErrInvalidLookback = errors.New("lookback must be positive")
	ErrInvalidBounds   = errors.New("outlier bounds are invalid")
	ErrInvalidTrim     = errors.New("domain trim must be in [0, 0.5)")
)

// Validate rejects a configuration before the pipeline runs. A failure here
// is fatal: nothing is fetched and no stage executes.
func (c Config) Validate() error {
	if c.NumBins <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidNumBins, c.NumBins)
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidLookback, c.Lookback)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, c.TopK)
	}
	if (c.DomainLow != 0 || c.DomainHigh != 0) && c.DomainLow >= c.DomainHigh {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidDomain, c.DomainLow, c.DomainHigh)
	}
	if c.DomainTrimPct < 0 || c.DomainTrimPct >= 0.5 {
		return fmt.Errorf("%w: got %g", ErrInvalidTrim, c.DomainTrimPct)
	}
	b := c.Bounds
	if b.MinPrice <= 0 || b.MaxPrice <= b.MinPrice ||
		math.IsNaN(b.MinPrice) || math.IsNaN(b.MaxPrice) {
		return fmt.Errorf("%w: price bounds [%g, %g]", ErrInvalidBounds, b.MinPrice, b.MaxPrice)
	}
	if b.MaxAmountBase <= 0 || b.MaxAmountQuote <= 0 {
		return fmt.Errorf("%w: amount caps (%g, %g)", ErrInvalidBounds, b.MaxAmountBase, b.MaxAmountQuote)
	}
	return nil
}
