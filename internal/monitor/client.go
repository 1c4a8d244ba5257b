package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	statusapi "github.com/fyrsmithlabs/pkgforge/internal/http"
)

// StatusClient polls the pkgforge status server.
type StatusClient struct {
	baseURL string
	client  *http.Client
}

// NewStatusClient creates a client for the server at baseURL.
func NewStatusClient(baseURL string) *StatusClient {
	return &StatusClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// BaseURL returns the server address.
func (c *StatusClient) BaseURL() string { return c.baseURL }

// Status fetches the current run status.
func (c *StatusClient) Status(ctx context.Context) (statusapi.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return statusapi.StatusResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return statusapi.StatusResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusapi.StatusResponse{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var status statusapi.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return statusapi.StatusResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return status, nil
}
