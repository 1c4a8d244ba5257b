package build

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// RetryConfig configures retries of GitHub API calls.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first call. Default: 3
	MaxRetries int

	// InitialBackoff is the first wait. Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps every wait. Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait between retries. Default: 2
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// retryGitHubOperation retries operation with exponential backoff. Rate limit
// responses wait for the reset time, capped at MaxBackoff.
func retryGitHubOperation(ctx context.Context, cfg *RetryConfig, log *logging.Logger, operation func() (*github.Response, error)) (*github.Response, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logging.Nop()
	}

	var lastErr error
	var lastResp *github.Response
	backoff := cfg.InitialBackoff
	start := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := operation()
		if err == nil {
			if attempt > 0 {
				log.Info(ctx, "github call recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			return resp, nil
		}
		lastErr = err
		lastResp = resp

		if !isGitHubRetryableError(err, resp) {
			log.Debug(ctx, "github error is not retryable",
				zap.Error(err),
				zap.Int("status_code", statusCode(resp)),
			)
			return resp, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		if isRateLimitError(resp) {
			backoff = rateLimitBackoff(resp, cfg.MaxBackoff)
			log.Info(ctx, "github rate limit hit",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
		} else {
			log.Info(ctx, "retrying github call",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", cfg.MaxRetries+1),
				zap.Error(err),
				zap.Int("status_code", statusCode(resp)),
				zap.Duration("backoff", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			next := time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if next > cfg.MaxBackoff {
				next = cfg.MaxBackoff
			}
			backoff = next
		}
	}

	log.Warn(ctx, "github call failed after all retries",
		zap.Int("total_attempts", cfg.MaxRetries+1),
		zap.Duration("total_time", time.Since(start)),
		zap.Error(lastErr),
	)
	return lastResp, fmt.Errorf("github call failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

func isGitHubRetryableError(err error, resp *github.Response) bool {
	if err == nil {
		return false
	}
	if resp == nil || resp.Response == nil {
		// Network errors and timeouts.
		return true
	}
	switch code := resp.Response.StatusCode; code {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		// Secondary rate limits arrive as 403 with rate headers.
		return resp.Rate.Limit > 0
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity:
		return false
	default:
		return code >= 500 && code < 600
	}
}

func isRateLimitError(resp *github.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	switch resp.Response.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return resp.Rate.Limit > 0
	}
	return false
}

func rateLimitBackoff(resp *github.Response, maxBackoff time.Duration) time.Duration {
	if resp == nil || (resp.Rate.Limit == 0 && resp.Rate.Remaining == 0) {
		return min(time.Minute, maxBackoff)
	}
	backoff := time.Until(resp.Rate.Reset.Time) + time.Second
	if backoff < 0 {
		backoff = time.Second
	}
	return min(backoff, maxBackoff)
}

func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.Response.StatusCode
	}
	return 0
}
