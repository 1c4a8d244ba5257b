package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	degraded, _ := tel.Degraded()
	assert.False(t, degraded)
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	require.NoError(t, cfg.Validate())

	remote := *cfg
	remote.Endpoint = "otel.example.com:4317"
	assert.Error(t, remote.Validate(), "insecure remote export is rejected")

	badRate := *cfg
	badRate.SampleRate = 2
	assert.Error(t, badRate.Validate())

	badProto := *cfg
	badProto.Protocol = "udp"
	assert.Error(t, badProto.Validate())
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "https://otel.example.com:4318",
		Protocol: "http/protobuf",
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "pkgforge", cfg.ServiceName)
	require.NoError(t, cfg.Validate())

	local := FromAppConfig(config.TelemetryConfig{Endpoint: "localhost:4317"}, "")
	assert.True(t, local.Insecure)
}

func TestTestTelemetry(t *testing.T) {
	tel := NewTestTelemetry()

	_, span := tel.Tracer("test").Start(context.Background(), "build")
	span.End()
	assert.Equal(t, []string{"build"}, tel.SpanNames())

	counter, err := tel.Meter("test").Int64Counter("builds_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)
	counter.Add(context.Background(), 3)
	assert.Equal(t, int64(5), tel.Sum(t, "builds_total"))
}
