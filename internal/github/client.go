package github

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/errors"
	"github.com/talentgraph/talentgraph-go/internal/logging"
)

// Client is the single chokepoint for all outbound GitHub calls. It
// serializes requests through a rate limiter, tracks the remaining budget
// from response headers, blocks until reset when the budget runs low, and
// retries transient failures with exponential backoff.
//
// 404 is a normal result: fetchers return (zero value, false, nil).
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	logger  *logging.Logger
	cfg     config.GitHubConfig

	// sleep is swapped out in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
}

// NewClient builds the client. httpClient may be nil outside of tests.
func NewClient(cfg config.GitHubConfig, logger *logging.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	api := gh.NewClient(httpClient)
	if cfg.Token != "" {
		api = api.WithAuthToken(cfg.Token)
	}

	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 720 * time.Millisecond
	}

	return &Client{
		gh:        api,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		logger:    logger,
		cfg:       cfg,
		sleep:     sleepCtx,
		remaining: -1, // unknown until the first response
	}
}

// WithBaseURL points the client at a fake API server. Test helper.
func (c *Client) WithBaseURL(raw string) *Client {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := c.gh.BaseURL.Parse(raw)
	if err == nil {
		c.gh.BaseURL = u
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateBudget returns the last observed remaining budget and its reset time.
// remaining is -1 before the first response.
func (c *Client) RateBudget() (remaining int, resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.resetAt
}

func (c *Client) updateBudget(resp *gh.Response) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	c.remaining = resp.Rate.Remaining
	c.resetAt = resp.Rate.Reset.Time
	c.mu.Unlock()
}

// waitForBudget blocks until resetAt+1s when the remaining budget has
// dropped under the configured buffer.
func (c *Client) waitForBudget(ctx context.Context) error {
	c.mu.Lock()
	remaining, resetAt := c.remaining, c.resetAt
	c.mu.Unlock()

	if remaining < 0 || remaining >= c.cfg.RateLimitBuffer {
		return nil
	}
	wait := time.Until(resetAt) + time.Second
	if wait <= 0 {
		return nil
	}
	c.logger.Warn("rate limit budget low, waiting for reset",
		"remaining", remaining, "reset_at", resetAt, "wait", wait.String())
	return c.sleep(ctx, wait)
}

// do runs one API call with the full behavioral contract: inter-request
// delay, budget guard, header tracking, retries, and a structured event per
// attempt. fn performs the call and returns the raw response for header
// inspection. Returns absent=true on 404.
func (c *Client) do(ctx context.Context, endpoint string, fn func() (*gh.Response, error)) (absent bool, err error) {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2
	}

	attempt := 0
	for {
		if err := c.waitForBudget(ctx); err != nil {
			return false, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("rate limiter: %w", err)
		}

		start := time.Now()
		resp, callErr := fn()
		elapsed := time.Since(start)
		c.updateBudget(resp)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.logger.Debug("github request",
			"endpoint", endpoint,
			"attempt", attempt,
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"remaining", c.rateRemaining(),
		)

		if callErr == nil {
			return false, nil
		}

		switch {
		case isNotFound(callErr):
			return true, nil

		case isRateLimited(callErr):
			// Wait until the advertised reset, then a single immediate
			// retry; rate-limit waits do not consume retry attempts.
			wait := c.rateLimitWait(callErr)
			c.logger.Warn("rate limit exceeded, sleeping until reset",
				"endpoint", endpoint, "wait", wait.String())
			if err := c.sleep(ctx, wait); err != nil {
				return false, err
			}
			continue

		case isAuthError(callErr):
			return false, errors.AuthError(callErr, fmt.Sprintf("github auth failure on %s", endpoint))

		case isTransient(callErr, status):
			if attempt >= maxRetries {
				return false, errors.ExternalError(callErr,
					fmt.Sprintf("%s failed after %d attempts", endpoint, attempt+1))
			}
			delay := time.Duration(float64(time.Second) * math.Pow(backoff, float64(attempt)))
			if delay > 2*time.Minute {
				delay = 2 * time.Minute
			}
			c.logger.Warn("transient github error, retrying",
				"endpoint", endpoint, "attempt", attempt, "delay", delay.String(), "error", callErr)
			if err := c.sleep(ctx, delay); err != nil {
				return false, err
			}
			attempt++
			continue

		default:
			return false, errors.ExternalError(callErr, fmt.Sprintf("%s failed", endpoint))
		}
	}
}

func (c *Client) rateRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// rateLimitWait extracts the wait duration from a rate-limit error,
// defaulting to one minute when the reset time is unusable.
func (c *Client) rateLimitWait(err error) time.Duration {
	if rle, ok := err.(*gh.RateLimitError); ok {
		if wait := time.Until(rle.Rate.Reset.Time) + time.Second; wait > 0 {
			return wait
		}
	}
	if are, ok := err.(*gh.AbuseRateLimitError); ok && are.RetryAfter != nil {
		return *are.RetryAfter
	}
	c.mu.Lock()
	resetAt := c.resetAt
	c.mu.Unlock()
	if wait := time.Until(resetAt) + time.Second; wait > 0 {
		return wait
	}
	return time.Minute
}

func isNotFound(err error) bool {
	if er, ok := err.(*gh.ErrorResponse); ok && er.Response != nil {
		return er.Response.StatusCode == http.StatusNotFound
	}
	return false
}

func isRateLimited(err error) bool {
	switch e := err.(type) {
	case *gh.RateLimitError, *gh.AbuseRateLimitError:
		return true
	case *gh.ErrorResponse:
		return e.Response != nil && e.Response.StatusCode == http.StatusForbidden &&
			strings.Contains(strings.ToLower(e.Message), "rate limit")
	}
	return false
}

func isAuthError(err error) bool {
	if er, ok := err.(*gh.ErrorResponse); ok && er.Response != nil {
		return er.Response.StatusCode == http.StatusUnauthorized
	}
	return false
}

func isTransient(err error, status int) bool {
	if status >= 500 {
		return true
	}
	if _, ok := err.(*gh.ErrorResponse); ok {
		return false
	}
	// Network-level failures (timeouts, connection resets) surface as plain
	// url.Error values.
	return true
}
