package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled         bool
	Endpoint        string
	Protocol        string // grpc | http/protobuf
	Insecure        bool
	ServiceName     string
	ServiceVersion  string
	SampleRate      float64
	MetricsInterval time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns defaults. Telemetry is off unless enabled.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        "grpc",
		Insecure:        true,
		ServiceName:     "pkgforge",
		ServiceVersion:  "0.1.0",
		SampleRate:      1.0,
		MetricsInterval: 15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromAppConfig builds a telemetry config from the file-level settings.
func FromAppConfig(c config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = c.Enabled
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.Protocol != "" {
		cfg.Protocol = c.Protocol
	}
	if c.ServiceName != "" {
		cfg.ServiceName = c.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Insecure = c.Insecure || isLocal(cfg.Endpoint)
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
		return fmt.Errorf("protocol must be grpc or http/protobuf, got %q", c.Protocol)
	}
	if c.Insecure && !isLocal(c.Endpoint) {
		return fmt.Errorf("insecure export to remote endpoint %q is not allowed", c.Endpoint)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %f", c.SampleRate)
	}
	if c.MetricsInterval <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("metrics interval and shutdown timeout must be positive")
	}
	return nil
}

func isLocal(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
