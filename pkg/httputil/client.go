package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/factorlab/pkg/logger"
)

const (
	userAgent      = "Mozilla/5.0 (compatible; factorlab/1.0)"
	defaultTimeout = 30 * time.Second
	maxBackoff     = 10 * time.Second
)

// Client sends GET requests to the quote sites, paced by an optional limiter
// and retried with exponential backoff on 5xx/429.
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	hc      *http.Client
	log     *logger.Logger
	retry   retryPolicy
	limiter *rate.Limiter
}

// retryPolicy: retries=0 means a single attempt
type retryPolicy struct {
	retries int
	base    time.Duration
}

// backoff is the wait before retry n (0-based), doubling up to maxBackoff
func (p retryPolicy) backoff(n int) time.Duration {
	d := p.base
	for i := 0; i < n && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// StatusError is returned by GetBody for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// New returns a client with a 30s timeout and 3 retries starting at 1s
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger) *Client {
	return &Client{
		hc:    &http.Client{Timeout: defaultTimeout},
		log:   log,
		retry: retryPolicy{retries: 3, base: time.Second},
	}
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.hc.Timeout = timeout
	return c
}

// WithRetry retries up to n times, the first wait being base
func (c *Client) WithRetry(n int, base time.Duration) *Client {
	c.retry = retryPolicy{retries: max(0, n), base: base}
	return c
}

// DisableRetry makes every request a single attempt
func (c *Client) DisableRetry() *Client {
	c.retry.retries = 0
	return c
}

// WithRateLimit limits outgoing requests to rps per second (burst 1 when burst <= 0).
// rps <= 0 removes the limit.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
	return c
}

// Get returns the last response once it is not retryable or the retries run out.
// The caller closes the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.getWithRetry(ctx, url)
	entry := c.log.WithFields(map[string]interface{}{
		"url":      url,
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Error("HTTP GET failed")
		return nil, err
	}
	entry.WithField("status_code", resp.StatusCode).Debug("HTTP GET done")
	return resp, nil
}

func (c *Client) getWithRetry(ctx context.Context, url string) (*http.Response, error) {
	for n := 0; ; n++ {
		resp, err := c.send(ctx, url)
		last := n == c.retry.retries
		if last || (err == nil && !IsRetryableError(resp.StatusCode)) {
			return resp, err
		}

		if resp != nil {
			// 연결 재사용을 위해 바디를 비우고 닫음
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		wait := c.retry.backoff(n)
		c.log.WithFields(map[string]interface{}{
			"url":     url,
			"attempt": n + 1,
			"wait":    wait,
		}).Warn("Retrying HTTP GET")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) send(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return c.hc.Do(req)
}

// GetBody reads the body of a 2xx response; any other status is a *StatusError
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// IsRetryableError reports whether a response status is worth another attempt (5xx, 429)
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
