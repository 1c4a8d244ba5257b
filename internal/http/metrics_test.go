package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestRequestMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newRequestMetrics(mp.Meter(httpInstrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/api/v1/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, StatusResponse{})
	})
	e.GET("/api/v1/packages/:name", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "package not found")
	})

	for _, target := range []string{"/api/v1/status", "/api/v1/status", "/api/v1/packages/core"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byRoute := map[string]int64{}
	statuses := map[int64]int64{}
	var latencySamples uint64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch md.Name {
			case "pkgforge.status_api.requests":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					route, _ := dp.Attributes.Value("route")
					status, _ := dp.Attributes.Value("status")
					byRoute[route.AsString()] += dp.Value
					statuses[status.AsInt64()] += dp.Value
				}
			case "pkgforge.status_api.duration":
				hist, ok := md.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					latencySamples += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(2), byRoute["/api/v1/status"])
	assert.Equal(t, int64(1), byRoute["/api/v1/packages/:name"])
	assert.Equal(t, int64(2), statuses[http.StatusOK])
	assert.Equal(t, int64(1), statuses[http.StatusNotFound])
	assert.Equal(t, uint64(3), latencySamples)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/api/v1/packages/:name", routeLabel("/api/v1/packages/:name"))
}
