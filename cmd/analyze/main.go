// Package main runs one liquidity analysis and prints the recommended
// price bands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/logging"
	"univ3-liquidity-lab/internal/pipeline"
	"univ3-liquidity-lab/internal/source"
	"univ3-liquidity-lab/internal/source/bitquery"
	"univ3-liquidity-lab/internal/source/stub"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	apiKey := flag.String("api-key", os.Getenv("BITQUERY_API_KEY"), "Bitquery API key")
	endpoint := flag.String("endpoint", envOr("BITQUERY_ENDPOINT", bitquery.DefaultEndpoint), "Bitquery GraphQL endpoint")
	lookback := flag.Duration("lookback", 240*time.Hour, "Analysis lookback window")
	numBins := flag.Int("bins", 50, "Number of price bands")
	topK := flag.Int("top", 5, "Number of recommendations to print")
	trimPct := flag.Float64("trim", 0, "Fraction trimmed off each end of the observed price range")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level")
	useFixtures := flag.Bool("use-fixtures", false, "Analyze built-in fixture data instead of live records")
	flag.Parse()

	logger := logging.New(*logLevel, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("cancelling analysis")
		cancel()
	}()

	pool := domain.DefaultPool()
	cfg := domain.DefaultConfig()
	cfg.Lookback = *lookback
	cfg.NumBins = *numBins
	cfg.TopK = *topK
	cfg.DomainTrimPct = *trimPct

	var (
		mints       source.MintSource
		adjustments source.AdjustmentSource
		volume      source.VolumeSource
	)
	if *useFixtures {
		mints = stub.NewMintSource(fixtureMints())
		adjustments = stub.NewAdjustmentSource(fixtureAdjustments())
		volume = &stub.VolumeSource{Sample: domain.VolumeSample{Base: 3200, Quote: 11_800_000}}
	} else {
		if *apiKey == "" {
			fmt.Fprintln(os.Stderr, "BITQUERY_API_KEY is required (or pass -use-fixtures)")
			os.Exit(1)
		}
		client := bitquery.NewClient(*apiKey, pool, bitquery.WithEndpoint(*endpoint))
		mints = client
		adjustments = client
		volume = client
	}

	runner := pipeline.New(pipeline.Options{
		Mints:       mints,
		Adjustments: adjustments,
		Volume:      volume,
		Pool:        pool,
		Config:      cfg,
		Logger:      logger,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		os.Exit(1)
	}

	printRecommendations(result)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printRecommendations(result *pipeline.Result) {
	d := result.Diagnostics
	fmt.Printf("Analyzed %d mints (%d adjustments): %d clean positions, %d dropped, %d discarded, %d clamped\n\n",
		d.MintsSeen, d.AdjustmentsSeen, d.CleanPositions, d.Dropped, d.Discarded+d.Degenerate, d.Clamped)

	if len(result.Recommendations) == 0 {
		fmt.Println("No recommendations: no usable positions in the lookback window.")
		return
	}

	fmt.Println("Recommended price bands (USDT per WETH):")
	for _, rec := range result.Recommendations {
		volume := "n/a"
		if rec.Volume24h != nil {
			volume = strconv.FormatFloat(*rec.Volume24h, 'f', 0, 64)
		}
		fmt.Printf("  #%d  %9.2f - %9.2f  capitalization %14.2f  24h volume %s\n",
			rec.Rank, rec.Band.PriceLower, rec.Band.PriceUpper, rec.Band.Capitalization, volume)
	}
}

// Fixture data: a small cluster of positions around a 3000-4300 USDT/WETH
// market, one deliberately absurd outlier, and a burn that drains one
// position.
func fixtureMints() []*domain.MintRecord {
	now := time.Now().UTC()
	ts := func(hoursAgo int) int64 { return now.Add(-time.Duration(hoursAgo) * time.Hour).UnixMilli() }

	return []*domain.MintRecord{
		{ID: "900001", TickLower: -196800, TickUpper: -194400, RawLiquidity: 8.1e15, RawAmount0: 3e18, RawAmount1: 9.6e9, Owner: "0xaaa1", Timestamp: ts(220)},
		{ID: "900002", TickLower: -196000, TickUpper: -193900, RawLiquidity: 2.4e16, RawAmount0: 8e18, RawAmount1: 2.75e10, Owner: "0xaaa2", Timestamp: ts(190)},
		{ID: "900003", TickLower: -195400, TickUpper: -194100, RawLiquidity: 1.2e16, RawAmount0: 4e18, RawAmount1: 1.5e10, Owner: "0xaaa3", Timestamp: ts(140)},
		{ID: "900004", TickLower: -195000, TickUpper: -193200, RawLiquidity: 5.5e15, RawAmount0: 2e18, RawAmount1: 7.4e9, Owner: "0xaaa4", Timestamp: ts(96)},
		{ID: "900005", TickLower: -194800, TickUpper: -194200, RawLiquidity: 4.4e16, RawAmount0: 1.2e19, RawAmount1: 4.6e10, Owner: "0xaaa5", Timestamp: ts(70)},
		{ID: "900006", TickLower: -196200, TickUpper: -195600, RawLiquidity: 3.1e15, RawAmount0: 1e18, RawAmount1: 3.2e9, Owner: "0xaaa6", Timestamp: ts(48)},
		// Fat-fingered range far outside any plausible price.
		{ID: "900007", TickLower: -300000, TickUpper: -299000, RawLiquidity: 9e15, RawAmount0: 3e18, RawAmount1: 1e10, Owner: "0xbad1", Timestamp: ts(30)},
		{ID: "900008", TickLower: -195800, TickUpper: -193600, RawLiquidity: 1.8e16, RawAmount0: 6e18, RawAmount1: 2.1e10, Owner: "0xaaa7", Timestamp: ts(12)},
	}
}

func fixtureAdjustments() []*domain.AdjustmentEvent {
	now := time.Now().UTC()
	ts := func(hoursAgo int) int64 { return now.Add(-time.Duration(hoursAgo) * time.Hour).UnixMilli() }

	return []*domain.AdjustmentEvent{
		{PositionID: "900002", LiquidityDelta: 6e15, Amount0Delta: 2e18, Amount1Delta: 6.9e9, Timestamp: ts(150), EventIndex: 0},
		{PositionID: "900003", LiquidityDelta: -1.2e16, Amount0Delta: -4e18, Amount1Delta: -1.5e10, Timestamp: ts(80), EventIndex: 1},
		{PositionID: "900005", LiquidityDelta: -2e16, Amount0Delta: -5e18, Amount1Delta: -2e10, Timestamp: ts(40), EventIndex: 2},
	}
}
