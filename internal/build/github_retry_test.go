package build

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func response(code int) *github.Response {
	return &github.Response{Response: &http.Response{StatusCode: code}}
}

func TestRetryConfig_ApplyDefaults(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5}
	cfg.ApplyDefaults()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
}

func TestRetryGitHubOperation_SuccessAfterRetries(t *testing.T) {
	calls := 0
	resp, err := retryGitHubOperation(context.Background(), testRetryConfig(), nil, func() (*github.Response, error) {
		calls++
		if calls < 3 {
			return response(http.StatusServiceUnavailable), errors.New("service unavailable")
		}
		return response(http.StatusOK), nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestRetryGitHubOperation_NonRetryable(t *testing.T) {
	calls := 0
	_, err := retryGitHubOperation(context.Background(), testRetryConfig(), nil, func() (*github.Response, error) {
		calls++
		return response(http.StatusNotFound), errors.New("not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGitHubOperation_Exhausted(t *testing.T) {
	calls := 0
	_, err := retryGitHubOperation(context.Background(), testRetryConfig(), nil, func() (*github.Response, error) {
		calls++
		return response(http.StatusBadGateway), errors.New("bad gateway")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 4, calls)
}

func TestRetryGitHubOperation_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testRetryConfig()
	cfg.InitialBackoff = time.Second

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := retryGitHubOperation(ctx, cfg, nil, func() (*github.Response, error) {
		calls++
		return response(http.StatusServiceUnavailable), errors.New("unavailable")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsGitHubRetryableError(t *testing.T) {
	tests := []struct {
		name string
		resp *github.Response
		want bool
	}{
		{"network error", nil, true},
		{"429", response(http.StatusTooManyRequests), true},
		{"500", response(http.StatusInternalServerError), true},
		{"504", response(http.StatusGatewayTimeout), true},
		{"400", response(http.StatusBadRequest), false},
		{"401", response(http.StatusUnauthorized), false},
		{"403 without rate info", response(http.StatusForbidden), false},
		{"403 secondary rate limit", &github.Response{Response: &http.Response{StatusCode: http.StatusForbidden}, Rate: github.Rate{Limit: 5000}}, true},
		{"422", response(http.StatusUnprocessableEntity), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGitHubRetryableError(errors.New("x"), tt.resp))
		})
	}
	assert.False(t, isGitHubRetryableError(nil, response(http.StatusInternalServerError)))
}

func TestRateLimitBackoff(t *testing.T) {
	assert.Equal(t, 30*time.Second, rateLimitBackoff(nil, 30*time.Second))

	resp := &github.Response{Rate: github.Rate{Limit: 60, Reset: github.Timestamp{Time: time.Now().Add(time.Hour)}}}
	assert.Equal(t, 10*time.Second, rateLimitBackoff(resp, 10*time.Second))

	past := &github.Response{Rate: github.Rate{Limit: 60, Reset: github.Timestamp{Time: time.Now().Add(-time.Hour)}}}
	assert.Equal(t, time.Second, rateLimitBackoff(past, 10*time.Second))
}
