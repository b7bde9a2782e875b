// Package bitquery implements the record sources against the Bitquery EVM
// GraphQL API. Mint and liquidity-adjustment records come from position
// manager call traces, volume figures from aggregated DEX trades.
package bitquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"univ3-liquidity-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// DefaultEndpoint is the Bitquery EVM streaming API.
	DefaultEndpoint = "https://streaming.bitquery.io/graphql"
)

// Client queries the Bitquery GraphQL API over HTTP.
type Client struct {
	endpoint    string
	apiKey      string
	pool        domain.PoolMeta
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Bitquery client for the given pool.
func NewClient(apiKey string, pool domain.PoolMeta, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    DefaultEndpoint,
		apiKey:      apiKey,
		pool:        pool,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphqlRequest is the POST body of a GraphQL query.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphqlResponse is the generic GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

// graphqlError is a single GraphQL execution error.
type graphqlError struct {
	Message string `json:"message"`
}

func (e *graphqlError) Error() string {
	return fmt.Sprintf("graphql error: %s", e.Message)
}

// query performs a GraphQL POST with retries and exponential backoff.
// Server-side and transport failures are retried; client errors and GraphQL
// execution errors are not.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, result interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// Client errors will not improve on retry
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var gqlResp graphqlResponse
		if err := json.Unmarshal(respBody, &gqlResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if len(gqlResp.Errors) > 0 {
			msgs := make([]string, len(gqlResp.Errors))
			for i, e := range gqlResp.Errors {
				msgs[i] = e.Message
			}
			return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
		}

		if result != nil && gqlResp.Data != nil {
			if err := json.Unmarshal(gqlResp.Data, result); err != nil {
				return fmt.Errorf("unmarshal data: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// FetchMints returns mint records for the pool's token pair within the
// time range.
func (c *Client) FetchMints(ctx context.Context, from, to time.Time) ([]*domain.MintRecord, error) {
	variables := map[string]interface{}{
		"token0": c.pool.Token0,
		"token1": c.pool.Token1,
		"from":   from.UTC().Format(time.RFC3339),
		"till":   to.UTC().Format(time.RFC3339),
	}

	var result callsData
	if err := c.query(ctx, mintCallsQuery, variables, &result); err != nil {
		return nil, fmt.Errorf("fetch mints: %w", err)
	}

	return parseMints(result.EVM.Calls), nil
}

// FetchAdjustments returns liquidity increase and decrease events for the
// given position IDs within the time range.
func (c *Client) FetchAdjustments(ctx context.Context, ids []string, from, to time.Time) ([]*domain.AdjustmentEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	variables := map[string]interface{}{
		"tokenIds": ids,
		"from":     from.UTC().Format(time.RFC3339),
		"till":     to.UTC().Format(time.RFC3339),
	}

	var result callsData
	if err := c.query(ctx, adjustmentCallsQuery, variables, &result); err != nil {
		return nil, fmt.Errorf("fetch adjustments: %w", err)
	}

	return parseAdjustments(result.EVM.Calls), nil
}

// FetchVolume returns aggregated trade volume for the token pair over the
// trailing window. The price band arguments are accepted for interface
// compatibility; Bitquery aggregates pair-wide, not per band.
func (c *Client) FetchVolume(ctx context.Context, _, _ float64, window time.Duration) (domain.VolumeSample, error) {
	since := time.Now().UTC().Add(-window)
	variables := map[string]interface{}{
		"base":  c.pool.BaseToken(),
		"quote": c.pool.QuoteToken(),
		"since": since.Format(time.RFC3339),
	}

	var result tradesData
	if err := c.query(ctx, volumeQuery, variables, &result); err != nil {
		return domain.VolumeSample{}, fmt.Errorf("fetch volume: %w", err)
	}

	return parseVolume(result.EVM.DEXTradeByTokens)
}
