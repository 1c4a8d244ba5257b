// Package telemetry wires OpenTelemetry tracing and metrics for pkgforge.
//
// Telemetry is disabled by default. When enabled, spans and metrics are
// exported over OTLP (gRPC or HTTP). Build workflows, quality probes and the
// scheduler obtain meters through Telemetry.Meter so tests can swap in
// NewTestTelemetry.
package telemetry
