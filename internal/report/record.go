// Package report persists per-package and per-suite build records.
//
// Records are JSON documents keyed by run ID. A Sink writes them to a local
// directory or an S3-compatible bucket; Markdown renders a suite record for
// people.
package report

import (
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/generation"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/sanitize"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

// PackageRecord is the persisted result of one package build.
type PackageRecord struct {
	RunID      string                          `json:"run_id"`
	Package    graph.Package                   `json:"package"`
	State      scheduler.State                 `json:"state"`
	Attempts   int                             `json:"attempts"`
	Score      *quality.ComplianceScore        `json:"score,omitempty"`
	Quality    *quality.Report                 `json:"quality,omitempty"`
	Generation generation.Status               `json:"generation,omitempty"`
	Iterations int                             `json:"iterations"`
	History    []generation.ActionHistoryEntry `json:"history,omitempty"`
	Version    string                          `json:"version,omitempty"`
	URL        string                          `json:"url,omitempty"`
	Cause      string                          `json:"cause,omitempty"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
}

// SuiteRecord is the persisted result of one suite run.
type SuiteRecord struct {
	RunID      string                  `json:"run_id"`
	Roots      []string                `json:"roots"`
	Phase      string                  `json:"phase"`
	Cause      string                  `json:"cause,omitempty"`
	Layers     [][]string              `json:"layers,omitempty"`
	Tasks      []scheduler.Task        `json:"tasks,omitempty"`
	Totals     map[scheduler.State]int `json:"totals,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Duration returns how long the run took.
func (r SuiteRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PackageKey is the storage key of a package record.
func PackageKey(runID, name string) string {
	return sanitize.Identifier(runID) + "/packages/" + sanitize.Identifier(name) + ".json"
}

// SuiteKey is the storage key of a suite record.
func SuiteKey(runID string) string {
	return sanitize.Identifier(runID) + "/suite.json"
}

// SummaryKey is the storage key of the rendered suite summary.
func SummaryKey(runID string) string {
	return sanitize.Identifier(runID) + "/SUMMARY.md"
}
