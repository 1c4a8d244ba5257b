package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "run-1/packages/acme_http-client.json", PackageKey("run-1", "@acme/http-client"))
	assert.Equal(t, "run-1/suite.json", SuiteKey("run-1"))
	assert.Equal(t, "run-1/SUMMARY.md", SummaryKey("run-1"))
}

func TestFileSink_WritePackage(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	score := quality.ComplianceScore{Value: 90, Level: quality.LevelGood}
	rec := PackageRecord{
		RunID:    "run-1",
		Package:  graph.Package{Name: "@acme/core", Category: graph.CategoryCore},
		State:    scheduler.StatePublished,
		Attempts: 1,
		Score:    &score,
		Version:  "1.2.0",
	}
	require.NoError(t, sink.WritePackage(context.Background(), rec))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "packages", "acme_core.json"))
	require.NoError(t, err)
	var got PackageRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, scheduler.StatePublished, got.State)
	assert.Equal(t, 90, got.Score.Value)
	assert.Equal(t, "1.2.0", got.Version)

	entries, err := os.ReadDir(filepath.Join(dir, "run-1", "packages"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSink_WriteSuiteWritesSummary(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tasks := []scheduler.Task{
		{Package: graph.Package{Name: "a"}, State: scheduler.StatePublished, Version: "1.0.0"},
		{Package: graph.Package{Name: "b"}, State: scheduler.StateFailed, Cause: "lint | broken"},
		{Package: graph.Package{Name: "c"}, State: scheduler.StateSkipped, Cause: "dependency b ended FAILED"},
	}
	rec := SuiteRecord{
		RunID:      "run-2",
		Roots:      []string{"c"},
		Phase:      "FAILED",
		Tasks:      tasks,
		Totals:     scheduler.Totals(tasks),
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
	require.NoError(t, sink.WriteSuite(context.Background(), rec))

	_, err = os.Stat(filepath.Join(dir, "run-2", "suite.json"))
	require.NoError(t, err)
	md, err := os.ReadFile(filepath.Join(dir, "run-2", "SUMMARY.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Suite run run-2")
	assert.Contains(t, string(md), "| PUBLISHED | 1 |")
	assert.Contains(t, string(md), `lint \| broken`)
	assert.Contains(t, string(md), "Duration: 1m30s")
}

func TestFileSink_RequiresRunID(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, sink.WritePackage(context.Background(), PackageRecord{}))
	assert.Error(t, sink.WriteSuite(context.Background(), SuiteRecord{}))
}

type failingSink struct{ err error }

func (f failingSink) WritePackage(context.Context, PackageRecord) error { return f.err }
func (f failingSink) WriteSuite(context.Context, SuiteRecord) error     { return f.err }

func TestMulti_WritesEverySink(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileSink(dir)
	require.NoError(t, err)
	boom := errors.New("bucket unavailable")

	err = Multi{failingSink{err: boom}, file}.WritePackage(context.Background(), PackageRecord{RunID: "r", Package: graph.Package{Name: "x"}})
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(filepath.Join(dir, "r", "packages", "x.json"))
	assert.NoError(t, statErr, "later sinks still receive the record")
}

func TestNewS3Sink_Validation(t *testing.T) {
	_, err := NewS3Sink(config.S3Config{Bucket: "reports"})
	assert.ErrorContains(t, err, "endpoint")

	_, err = NewS3Sink(config.S3Config{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "bucket")

	_, err = NewS3Sink(config.S3Config{Endpoint: "localhost:9000", Bucket: "reports", AccessKey: "k"})
	assert.ErrorContains(t, err, "secret key")

	sink, err := NewS3Sink(config.S3Config{
		Endpoint:  "localhost:9000",
		Bucket:    "reports",
		AccessKey: "k",
		SecretKey: config.Secret("s"),
		Prefix:    "/builds/",
	})
	require.NoError(t, err)
	assert.Equal(t, "builds/run-1/suite.json", sink.objectKey(SuiteKey("run-1")))
}
