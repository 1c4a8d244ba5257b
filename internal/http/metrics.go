package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/pkgforge/internal/http"

// requestMetrics records status API traffic. The dashboard polls
// /api/v1/status on a fixed interval, so request counts track how many
// watchers are attached.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &requestMetrics{}
	var err error
	m.requests, err = meter.Int64Counter("pkgforge.status_api.requests",
		metric.WithDescription("Status API requests by route and status code"),
		metric.WithUnit("{request}"))
	warn("requests", err)
	m.duration, err = meter.Float64Histogram("pkgforge.status_api.duration",
		metric.WithDescription("Status API request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1))
	warn("duration", err)
	m.inFlight, err = meter.Int64UpDownCounter("pkgforge.status_api.in_flight",
		metric.WithDescription("Status API requests being served"),
		metric.WithUnit("{request}"))
	warn("in_flight", err)
	return m
}

// middleware records one sample per request, labelled by route pattern.
func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("route", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return nil
		}
	}
}

// routeLabel keeps label cardinality bounded: routed requests carry their
// pattern (/api/v1/packages/:name), anything else is "unmatched".
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
