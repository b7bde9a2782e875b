// Package main serves liquidity-band recommendations over HTTP, with a
// result cache and an optional live mint subscription that invalidates it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"univ3-liquidity-lab/internal/cache"
	"univ3-liquidity-lab/internal/domain"
	"univ3-liquidity-lab/internal/logging"
	"univ3-liquidity-lab/internal/observability"
	"univ3-liquidity-lab/internal/pipeline"
	"univ3-liquidity-lab/internal/server"
	"univ3-liquidity-lab/internal/source/bitquery"
)

func main() {
	godotenv.Load()

	apiKey := flag.String("api-key", os.Getenv("BITQUERY_API_KEY"), "Bitquery API key")
	endpoint := flag.String("endpoint", envOr("BITQUERY_ENDPOINT", bitquery.DefaultEndpoint), "Bitquery GraphQL endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("BITQUERY_WS_ENDPOINT"), "Bitquery GraphQL subscription endpoint (empty disables the live feed)")
	host := flag.String("host", envOr("HTTP_HOST", "0.0.0.0"), "HTTP listen host")
	port := flag.Int("port", envIntOr("HTTP_PORT", 8080), "HTTP listen port")
	cacheTTL := flag.Duration("cache-ttl", cache.DefaultTTL, "Result cache TTL")
	refresh := flag.Duration("refresh", 0, "Periodic background refresh interval (0 disables, analysis then runs on demand)")
	lookback := flag.Duration("lookback", 240*time.Hour, "Analysis lookback window")
	numBins := flag.Int("bins", 50, "Number of price bands")
	topK := flag.Int("top", 5, "Default number of recommendations")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	logger := logging.New(*logLevel, false)

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "BITQUERY_API_KEY is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := domain.DefaultPool()
	cfg := domain.DefaultConfig()
	cfg.Lookback = *lookback
	cfg.NumBins = *numBins
	cfg.TopK = *topK

	metrics := observability.NewMetrics("")
	client := bitquery.NewClient(*apiKey, pool, bitquery.WithEndpoint(*endpoint))

	runner := pipeline.New(pipeline.Options{
		Mints:       client,
		Adjustments: client,
		Volume:      client,
		Pool:        pool,
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
	})

	resultCache := cache.New(*cacheTTL)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = *host
	srvCfg.Port = *port
	srv := server.New(runner, resultCache,
		server.WithConfig(srvCfg),
		server.WithMetrics(metrics),
		server.WithLogger(logger),
	)

	if *refresh > 0 {
		go func() {
			ticker := time.NewTicker(*refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					result, err := runner.Run(ctx)
					if err != nil {
						logger.Warn().Err(err).Msg("background refresh failed, keeping previous result")
						continue
					}
					resultCache.Set(result)
				}
			}
		}()
	}

	if *wsEndpoint != "" {
		stream, err := bitquery.NewMintStream(ctx, *wsEndpoint, *apiKey, pool, nil)
		if err != nil {
			logger.Error().Err(err).Msg("live mint stream unavailable, continuing without it")
		} else {
			defer stream.Close()
			go func() {
				for rec := range stream.Records() {
					metrics.LiveMintsReceived.Inc()
					resultCache.Invalidate()
					logger.Debug().Str("position", rec.ID).Msg("live mint, cache invalidated")
				}
			}()
		}
	}

	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("server start failed")
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
