package main

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/agent"
	"github.com/fyrsmithlabs/pkgforge/internal/build"
	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/generation"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/report"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
	"github.com/fyrsmithlabs/pkgforge/internal/telemetry"
	"github.com/fyrsmithlabs/pkgforge/internal/toolchain"
	"github.com/fyrsmithlabs/pkgforge/pkg/secrets"
)

const instrumentationName = "github.com/fyrsmithlabs/pkgforge/cmd/pkgforge"

// app holds the process-wide dependencies every command shares.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

// newApp loads configuration and initializes logging and telemetry.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if workspaceRoot != "" {
		cfg.Workspace.Root = workspaceRoot
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	// stdout carries command output.
	logCfg.Output.Stdout = false
	logCfg.Output.Stderr = true
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if degraded, cause := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(cause))
	}
	logger.Debug(ctx, "configuration loaded", configFields(cfg)...)
	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// configFields summarizes cfg for the startup log. Credentials appear only as
// their length.
func configFields(cfg *config.Config) []zap.Field {
	return []zap.Field{
		zap.String("workspace", cfg.Workspace.Root),
		zap.Int("max_concurrent_builds", cfg.Build.MaxConcurrentBuilds),
		zap.String("registry_kind", cfg.Registry.Kind),
		logging.Secret("registry_token", cfg.Registry.Token),
		zap.String("agent_provider", cfg.Agent.Provider),
		logging.Secret("agent_api_key", cfg.Agent.APIKey),
		zap.Bool("s3_reports", cfg.Reports.S3.Enabled()),
	}
}

// Close flushes logs and telemetry.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// suite is a discovered workspace with its plans.
type suite struct {
	workspace *manifest.Workspace
	lookup    graph.Lookup
	// plans are declared in the package manifests.
	plans manifest.Plans
	// filePlans come from planFile and override manifest plans.
	filePlans manifest.Plans
	planFile  string
}

// loadSuite discovers the workspace and reads planFile, falling back to
// workspace.plan_file.
func (a *app) loadSuite(planFile string) (*suite, error) {
	ws, err := manifest.Discover(a.cfg.Workspace.Root, a.cfg.Workspace.ManifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to discover workspace: %w", err)
	}
	lookup, err := manifest.NewCachedLookup(ws, manifest.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	s := &suite{
		workspace: ws,
		lookup:    lookup,
		plans:     manifest.FromText(ws.Plans()),
	}

	if planFile == "" {
		planFile = a.cfg.Workspace.PlanFile
	}
	if planFile != "" {
		pf, err := manifest.LoadPlanFile(planFile)
		if err != nil {
			return nil, err
		}
		s.filePlans = pf.Plans()
		s.planFile = planFile
	}
	return s, nil
}

// roots returns args, or every buildable workspace package when none are
// given.
func (s *suite) roots(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return s.workspace.Buildable()
}

// buildDeps are the collaborators of a package Runner.
type buildDeps struct {
	gate      *quality.Gate
	publisher build.Publisher
	reports   report.Sink
	agent     generation.Agent
	scanner   *secrets.Scanner
}

// newBuildDeps wires the quality gate, publisher, report sinks and agent
// from configuration.
func (a *app) newBuildDeps(ctx context.Context) (*buildDeps, error) {
	scanner, err := secrets.NewScanner()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret scanner: %w", err)
	}

	meter := a.telemetry.Meter(instrumentationName)
	gate, err := quality.NewGate(
		quality.NewProbes(a.cfg.Quality, toolchain.ExecRunner{}, scanner),
		quality.WithLogger(a.logger),
		quality.WithMeter(meter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create quality gate: %w", err)
	}

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		return nil, err
	}
	sink, err := a.newReportSink()
	if err != nil {
		return nil, err
	}

	ag, err := agent.NewFromConfig(a.cfg.Agent,
		agent.WithLogger(a.logger),
		agent.WithRedactor(scanner, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &buildDeps{
		gate:      gate,
		publisher: publisher,
		reports:   sink,
		agent:     ag,
		scanner:   scanner,
	}, nil
}

// newPublisher selects the publisher named by registry.kind.
func (a *app) newPublisher(ctx context.Context) (build.Publisher, error) {
	reg := a.cfg.Registry
	switch reg.Kind {
	case "github":
		gh, err := build.NewGitHubClient(ctx, reg.Token)
		if err != nil {
			return nil, err
		}
		if reg.URL != "" {
			if gh, err = gh.WithEnterpriseURLs(reg.URL, reg.URL); err != nil {
				return nil, fmt.Errorf("invalid registry.url: %w", err)
			}
		}
		return &build.GitHubReleasePublisher{
			Client:       gh,
			Owner:        reg.Owner,
			Repo:         reg.Repo,
			ManifestName: a.cfg.Workspace.ManifestName,
			Retry:        build.DefaultRetryConfig(),
			Logger:       a.logger,
		}, nil
	default:
		var env []string
		if reg.URL != "" {
			env = append(env, "NPM_CONFIG_REGISTRY="+reg.URL)
		}
		if reg.Token.IsSet() {
			env = append(env, "NODE_AUTH_TOKEN="+reg.Token.Value())
		}
		return &build.CommandPublisher{
			Command:      reg.Command,
			Runner:       toolchain.ExecRunner{Env: env},
			ManifestName: a.cfg.Workspace.ManifestName,
		}, nil
	}
}

// newReportSink returns the file sink, fanned out to S3 when configured.
func (a *app) newReportSink() (report.Sink, error) {
	files, err := report.NewFileSink(a.cfg.Reports.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sink: %w", err)
	}
	if !a.cfg.Reports.S3.Enabled() {
		return files, nil
	}
	s3, err := report.NewS3Sink(a.cfg.Reports.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 report sink: %w", err)
	}
	return report.Multi{files, s3}, nil
}

// runnerFactory returns the per-run package Runner constructor shared by the
// in-process builder and the durable worker.
func (a *app) runnerFactory(deps *buildDeps) func(runID string, plans manifest.Plans) scheduler.Runner {
	meter := a.telemetry.Meter(instrumentationName)
	cfg := a.cfg

	loops := func(pkg graph.Package) build.Generator {
		tools := &generation.WorkspaceTools{
			Package:      pkg,
			Quality:      cfg.Quality,
			ManifestName: cfg.Workspace.ManifestName,
			Runner:       toolchain.ExecRunner{},
			Scanner:      deps.scanner,
			Logger:       a.logger,
		}
		if cfg.Workspace.CommitChanges {
			tools.Recorder = &build.GitRecorder{
				Dir:         pkg.Path,
				AuthorName:  cfg.Workspace.AuthorName,
				AuthorEmail: cfg.Workspace.AuthorEmail,
			}
		}
		return generation.NewLoop(deps.agent, tools,
			generation.WithMaxIterations(cfg.Build.MaxLoopIterations),
			generation.WithLoopLogger(a.logger),
			generation.WithLoopMeter(meter),
		)
	}

	return func(runID string, plans manifest.Plans) scheduler.Runner {
		return build.NewRunner(loops, deps.gate, deps.publisher, plans,
			build.WithLogger(a.logger),
			build.WithReports(deps.reports, runID),
		)
	}
}

// watchSuite watches the manifests and plan file of s.
func (a *app) watchSuite(s *suite) (*manifest.Watcher, error) {
	var extra []string
	if s.planFile != "" {
		extra = append(extra, s.planFile)
	}
	w, err := manifest.NewWatcher(s.workspace, a.cfg.Workspace.ManifestName, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to watch workspace: %w", err)
	}
	return w, nil
}

// dialTemporal connects to the configured Temporal frontend.
func (a *app) dialTemporal(ctx context.Context) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  a.cfg.Temporal.HostPort,
		Namespace: a.cfg.Temporal.Namespace,
		Logger:    newTemporalLogger(a.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	a.logger.Info(ctx, "temporal client connected",
		zap.String("host", a.cfg.Temporal.HostPort),
		zap.String("namespace", a.cfg.Temporal.Namespace))
	return c, nil
}
