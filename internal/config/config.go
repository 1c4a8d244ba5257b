// Package config provides configuration loading for pkgforge.
//
// Configuration is read from a YAML file and overridden by PKGFORGE_*
// environment variables. Values that form the quality contract (check
// weights, the 85 point threshold, the remediation cap and the per-file
// escalation ladder) are fixed in code and are not configurable.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete pkgforge configuration.
type Config struct {
	Build     BuildConfig     `koanf:"build"`
	Quality   QualityConfig   `koanf:"quality"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Temporal  TemporalConfig  `koanf:"temporal"`
	Registry  RegistryConfig  `koanf:"registry"`
	Agent     AgentConfig     `koanf:"agent"`
	Reports   ReportsConfig   `koanf:"reports"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
}

// BuildConfig bounds scheduling and the generation loop.
type BuildConfig struct {
	MaxConcurrentBuilds int `koanf:"max_concurrent_builds"`
	MaxLoopIterations   int `koanf:"max_loop_iterations"`
	// WaitForHuman keeps a package workflow open for a human decision signal
	// when the generation loop asks for intervention.
	WaitForHuman bool `koanf:"wait_for_human"`
}

// QualityConfig configures the command-backed quality probes.
type QualityConfig struct {
	TypecheckCommand   string   `koanf:"typecheck_command"`
	LintCommand        string   `koanf:"lint_command"`
	TestCommand        string   `koanf:"test_command"`
	IntegrationCommand string   `koanf:"integration_command"`
	LicenseHeader      string   `koanf:"license_header"`
	LicenseExtensions  []string `koanf:"license_extensions"`
	RequiredFiles      []string `koanf:"required_files"`
	SecretAllowlist    []string `koanf:"secret_allowlist"`
	// MinCoverage, when positive, makes the tests check also require this
	// statement coverage percentage.
	MinCoverage float64 `koanf:"min_coverage"`
}

// WorkspaceConfig locates packages and plans.
type WorkspaceConfig struct {
	Root          string `koanf:"root"`
	ManifestName  string `koanf:"manifest_name"`
	PlanFile      string `koanf:"plan_file"`
	CommitChanges bool   `koanf:"commit_changes"`
	AuthorName    string `koanf:"author_name"`
	AuthorEmail   string `koanf:"author_email"`
}

// TemporalConfig holds durable runner connection settings.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`
}

// RegistryConfig selects and configures the publisher.
type RegistryConfig struct {
	Kind    string `koanf:"kind"` // command | github
	URL     string `koanf:"url"`
	Token   Secret `koanf:"token"`
	Command string `koanf:"command"`
	Owner   string `koanf:"owner"`
	Repo    string `koanf:"repo"`
}

// AgentConfig configures the LLM-backed code generation agent.
type AgentConfig struct {
	Provider          string  `koanf:"provider"` // anthropic | openai
	Model             string  `koanf:"model"`
	APIKey            Secret  `koanf:"api_key"`
	BaseURL           string  `koanf:"base_url"`
	RequestsPerMinute int     `koanf:"requests_per_minute"`
	MaxTokens         int     `koanf:"max_tokens"`
	Temperature       float64 `koanf:"temperature"`
}

// ReportsConfig selects where build reports are written.
type ReportsConfig struct {
	Dir string   `koanf:"dir"`
	S3  S3Config `koanf:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	AccessKey string `koanf:"access_key"`
	SecretKey Secret `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Enabled reports whether an S3 sink is configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LoggingConfig is the subset of logging settings exposed in the file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed in the file.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
	Insecure    bool   `koanf:"insecure"`
	Protocol    string `koanf:"protocol"` // grpc | http/protobuf
}

// ServerConfig holds status server settings.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Build.MaxConcurrentBuilds == 0 {
		cfg.Build.MaxConcurrentBuilds = 4
	}
	if cfg.Build.MaxLoopIterations == 0 {
		cfg.Build.MaxLoopIterations = 50
	}

	if cfg.Quality.TypecheckCommand == "" {
		cfg.Quality.TypecheckCommand = "npx tsc --noEmit"
	}
	if cfg.Quality.LintCommand == "" {
		cfg.Quality.LintCommand = "npx eslint ."
	}
	if cfg.Quality.TestCommand == "" {
		cfg.Quality.TestCommand = "npm test --silent"
	}
	if cfg.Quality.IntegrationCommand == "" {
		cfg.Quality.IntegrationCommand = "npm run integration --if-present"
	}
	if cfg.Quality.LicenseHeader == "" {
		cfg.Quality.LicenseHeader = "SPDX-License-Identifier:"
	}
	if len(cfg.Quality.LicenseExtensions) == 0 {
		cfg.Quality.LicenseExtensions = []string{".ts", ".tsx", ".js"}
	}
	if len(cfg.Quality.RequiredFiles) == 0 {
		cfg.Quality.RequiredFiles = []string{"package.json", "README.md", "src"}
	}

	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}
	if cfg.Workspace.ManifestName == "" {
		cfg.Workspace.ManifestName = "package.json"
	}
	if cfg.Workspace.AuthorName == "" {
		cfg.Workspace.AuthorName = "pkgforge"
	}
	if cfg.Workspace.AuthorEmail == "" {
		cfg.Workspace.AuthorEmail = "pkgforge@localhost"
	}

	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "pkgforge-builds"
	}

	if cfg.Registry.Kind == "" {
		cfg.Registry.Kind = "command"
	}
	if cfg.Registry.Command == "" {
		cfg.Registry.Command = "npm publish --access public"
	}

	if cfg.Agent.Provider == "" {
		cfg.Agent.Provider = "anthropic"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "claude-sonnet-4-5"
	}
	if cfg.Agent.RequestsPerMinute == 0 {
		cfg.Agent.RequestsPerMinute = 30
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 8192
	}

	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = ".pkgforge/reports"
	}
	if cfg.Reports.S3.Region == "" {
		cfg.Reports.S3.Region = "us-east-1"
	}
	if cfg.Reports.S3.Prefix == "" {
		cfg.Reports.S3.Prefix = "reports/"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "pkgforge"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Build.MaxConcurrentBuilds <= 0 {
		return fmt.Errorf("build.max_concurrent_builds must be positive, got %d", c.Build.MaxConcurrentBuilds)
	}
	if c.Build.MaxLoopIterations <= 0 {
		return fmt.Errorf("build.max_loop_iterations must be positive, got %d", c.Build.MaxLoopIterations)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}

	switch c.Registry.Kind {
	case "command":
		if strings.TrimSpace(c.Registry.Command) == "" {
			return errors.New("registry.command is required for the command publisher")
		}
	case "github":
		if c.Registry.Owner == "" || c.Registry.Repo == "" {
			return errors.New("registry.owner and registry.repo are required for the github publisher")
		}
	default:
		return fmt.Errorf("unknown registry.kind %q (want command or github)", c.Registry.Kind)
	}

	switch c.Agent.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown agent.provider %q (want anthropic or openai)", c.Agent.Provider)
	}
	if c.Quality.MinCoverage < 0 || c.Quality.MinCoverage > 100 {
		return fmt.Errorf("quality.min_coverage must be within 0-100, got %v", c.Quality.MinCoverage)
	}
	if c.Agent.RequestsPerMinute < 0 {
		return errors.New("agent.requests_per_minute must not be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Reports.S3.Endpoint != "" && c.Reports.S3.Bucket == "" {
		return errors.New("reports.s3.bucket is required when reports.s3.endpoint is set")
	}
	return nil
}
