package http

import "time"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status: the latest
// phase of the current run and the state of every package seen so far.
type StatusResponse struct {
	RunID      string                   `json:"run_id,omitempty"`
	Phase      string                   `json:"phase,omitempty"`
	Status     string                   `json:"status,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Percentage int                      `json:"percentage"`
	Packages   map[string]PackageStatus `json:"packages"`
	Totals     map[string]int           `json:"totals"`
	UpdatedAt  time.Time                `json:"updated_at,omitempty"`
}

// PackageStatus is the last reported state of one package.
type PackageStatus struct {
	State     string    `json:"state"`
	Cause     string    `json:"cause,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
