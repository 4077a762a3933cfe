package imagesearch

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// retryableStatuses are the HTTP statuses worth another attempt.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client is an HTTP client that retries transient failures with
// exponential backoff. A 429 gets a longer fixed-plus-random wait
// instead of the generic backoff.
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a resilient HTTP client from config
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   config.HTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config: config,
	}
}

// Fetch performs a GET with retries. It returns a non-nil response only
// on HTTP 200; the caller owns the body. A nil response with an error
// means the target is unavailable this call, which callers treat as a
// soft failure, not a fatal one. Non-200 statuses outside the retryable
// set fail immediately without burning the retry budget.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string, params url.Values) (*http.Response, error) {
	target := rawURL
	if len(params) > 0 {
		sep := "?"
		if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target = rawURL + sep + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt-1, lastErr)
			log.Printf("Retrying %s in %v (attempt %d/%d): %v", rawURL, wait, attempt, c.config.MaxRetries, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Connection and timeout errors are always retryable
			httpRetries.Inc()
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		resp.Body.Close()
		if !retryableStatuses[resp.StatusCode] {
			return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}

		httpRetries.Inc()
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited: %d %s", resp.StatusCode, resp.Status)
		} else {
			lastErr = fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}
	}

	return nil, fmt.Errorf("all attempts exhausted for %s: %w", rawURL, lastErr)
}

// FetchOnce performs a single GET attempt with no retries. Callers that
// iterate over interchangeable targets (metasearch instances) skip a
// failing target instead of retrying it.
func (c *Client) FetchOnce(ctx context.Context, rawURL string, headers map[string]string, params url.Values) (*http.Response, error) {
	target := rawURL
	if len(params) > 0 {
		sep := "?"
		if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

// backoff computes the wait before the next attempt. attempt is
// zero-based over the retries already failed.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if lastErr != nil && isRateLimited(lastErr) {
		return c.config.RateLimitWait + randomDelay(c.config.RateLimitJitterMax)
	}
	return c.config.RetryBackoffBase*time.Duration(1<<attempt) + randomDelay(c.config.RetryJitterMax)
}

func randomDelay(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// isRateLimited reports whether an error carries a 429 signal.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "rate limited") || strings.Contains(msg, "429")
}
