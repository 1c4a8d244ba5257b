package workflows

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/pkgforge/internal/workflows"

// Metrics are recorded from activities and the client-side builder only.
// Workflow code replays, so it records nothing.
var (
	suiteRunCounter       metric.Int64Counter
	suiteRunDuration      metric.Float64Histogram
	packageOutcomeCounter metric.Int64Counter
	activityDuration      metric.Float64Histogram
	activityErrorCounter  metric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error

	suiteRunCounter, err = meter.Int64Counter(
		"pkgforge.workflows.suite.executions",
		metric.WithDescription("Total number of suite build workflow executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create suite run counter: %v", err))
	}

	suiteRunDuration, err = meter.Float64Histogram(
		"pkgforge.workflows.suite.duration",
		metric.WithDescription("Duration of suite build workflow executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create suite run duration: %v", err))
	}

	packageOutcomeCounter, err = meter.Int64Counter(
		"pkgforge.workflows.package.outcomes",
		metric.WithDescription("Package build activity outcomes by final state"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create package outcome counter: %v", err))
	}

	activityDuration, err = meter.Float64Histogram(
		"pkgforge.workflows.activity.duration",
		metric.WithDescription("Duration of workflow activity executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity duration: %v", err))
	}

	activityErrorCounter, err = meter.Int64Counter(
		"pkgforge.workflows.activity.errors",
		metric.WithDescription("Number of activity execution errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create activity error counter: %v", err))
	}
}

func init() {
	initMetrics()
}
