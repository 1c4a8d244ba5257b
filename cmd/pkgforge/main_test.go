package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/config"
	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/logging"
	"github.com/fyrsmithlabs/pkgforge/internal/orchestrator"
	"github.com/fyrsmithlabs/pkgforge/internal/quality"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testWorkspace creates @acme/app -> @acme/core plus a config file and
// returns both paths.
func testWorkspace(t *testing.T) (root, cfgPath string) {
	t.Helper()
	root = t.TempDir()
	writeFile(t, filepath.Join(root, "packages/core/package.json"),
		`{"name": "@acme/core", "version": "1.0.0", "pkgforge": {"category": "core", "plan": "Money type"}}`)
	writeFile(t, filepath.Join(root, "packages/app/package.json"),
		`{"name": "@acme/app", "dependencies": {"@acme/core": "1.0.0", "react": "18"}}`)

	cfgPath = filepath.Join(t.TempDir(), "pkgforge.yaml")
	writeFile(t, cfgPath, "logging:\n  level: error\n")
	return root, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath, workspaceRoot = "", ""
		graphPlanFile, graphJSON = "", false
		decideGuidance = ""
		serveWatch = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	want := []string{"run", "graph", "worker", "start", "decide", "serve", "watch"}
	var got []string
	for _, cmd := range rootCmd.Commands() {
		got = append(got, cmd.Name())
		assert.NotEmpty(t, cmd.Short, cmd.Name())
		assert.NotEmpty(t, cmd.Long, cmd.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestRunFlags(t *testing.T) {
	for _, name := range []string{"plan", "run-id", "durable", "wait-for-human", "human-timeout"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run --%s", name)
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "serve --%s", name)
		assert.NotNil(t, startCmd.Flags().Lookup(name), "start --%s", name)
	}
	assert.NotNil(t, runCmd.Flags().Lookup("serve"))
	assert.NotNil(t, serveCmd.Flags().Lookup("watch"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("workspace"))
}

func TestGraphCmd(t *testing.T) {
	root, cfgPath := testWorkspace(t)

	out, err := execute(t, "graph", "--config", cfgPath, "--workspace", root, "@acme/app")
	require.NoError(t, err)
	assert.Contains(t, out, "Layer 0:\n  @acme/core\n")
	assert.Contains(t, out, "Layer 1:\n  @acme/app <- @acme/core\n")
	assert.Contains(t, out, "2 package(s), 2 layer(s)")
}

func TestGraphCmd_JSONWithPlanEdges(t *testing.T) {
	root, cfgPath := testWorkspace(t)
	writeFile(t, filepath.Join(root, "packages/docs/package.json"), `{"name": "@acme/docs"}`)
	planPath := filepath.Join(root, "suite.yaml")
	writeFile(t, planPath, `packages:
  "@acme/docs":
    plan: Document the suite
    depends: ["@acme/app"]
`)

	out, err := execute(t, "graph", "--config", cfgPath, "--workspace", root, "--plan", planPath, "--json", "@acme/docs")
	require.NoError(t, err)

	var got struct {
		Roots  []string   `json:"roots"`
		Layers [][]string `json:"layers"`
		Order  []string   `json:"order"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"@acme/docs"}, got.Roots)
	assert.Equal(t, [][]string{{"@acme/core"}, {"@acme/app"}, {"@acme/docs"}}, got.Layers)
	assert.Equal(t, []string{"@acme/core", "@acme/app", "@acme/docs"}, got.Order)
}

func TestGraphCmd_UnknownPackage(t *testing.T) {
	root, cfgPath := testWorkspace(t)

	_, err := execute(t, "graph", "--config", cfgPath, "--workspace", root, "@acme/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrPackageNotFound)
}

func TestDecideCmd_RejectsUnknownAction(t *testing.T) {
	_, err := execute(t, "decide", "run-1", "@acme/core", "maybe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown decision "maybe"`)
}

func TestWatchCmd_RejectsNonPositiveInterval(t *testing.T) {
	t.Cleanup(func() { watchInterval = 2 * time.Second })
	_, err := execute(t, "watch", "--interval", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must be positive")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &orchestrator.SuiteState{
		RunID: "run-1",
		Phase: orchestrator.PhaseFailed,
		Cause: "suite incomplete: not published: @acme/app (FAILED)",
		Tasks: []scheduler.Task{
			{
				Package:  graph.Package{Name: "@acme/core"},
				State:    scheduler.StatePublished,
				Score:    &quality.ComplianceScore{Value: 97, Level: quality.LevelExcellent},
				Version:  "1.0.0",
				Attempts: 0,
			},
			{Package: graph.Package{Name: "@acme/app"}, State: scheduler.StateFailed, Cause: "quality gate blocked"},
		},
	})

	s := out.String()
	assert.Contains(t, s, "@acme/core")
	assert.Contains(t, s, "97 (excellent)")
	assert.Contains(t, s, "quality gate blocked")
	assert.Contains(t, s, "Run run-1 finished in phase FAILED: suite incomplete")
}

func TestPrintSummary_NoTasks(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &orchestrator.SuiteState{RunID: "run-2", Phase: orchestrator.PhaseFailed, Cause: "no plan found for @acme/app"})
	assert.Equal(t, "Run run-2 finished in phase FAILED: no plan found for @acme/app\n", out.String())
}

func TestTemporalLogger(t *testing.T) {
	log := logging.NewTestLogger()
	l := newTemporalLogger(log.Logger)
	l.Info("worker started", "TaskQueue", "pkgforge-builds")
	l.Warn("slow poll")

	entries := log.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "worker started", entries[0].Message)
	assert.Equal(t, "pkgforge-builds", entries[0].ContextMap()["TaskQueue"])
	assert.Equal(t, "temporal", entries[0].LoggerName)
}

func TestWatchSuite_PlanFileChange(t *testing.T) {
	root, _ := testWorkspace(t)
	planFile := filepath.Join(t.TempDir(), "suite.yaml")
	writeFile(t, planFile, "packages:\n  \"@acme/app\":\n    plan: Storefront\n")

	cfg := config.Default()
	cfg.Workspace.Root = root
	a := &app{cfg: cfg, logger: logging.Nop()}
	s, err := a.loadSuite(planFile)
	require.NoError(t, err)
	assert.Equal(t, planFile, s.planFile)

	w, err := a.watchSuite(s)
	require.NoError(t, err)
	defer w.Close()
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(planFile, []byte("packages:\n  \"@acme/app\":\n    plan: Storefront v2\n"), 0o644)
	}()
	changed, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, planFile, changed)
}

func TestConfigFields_RedactsCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.Token = "npm_abcdef123456"
	cfg.Agent.APIKey = "sk-live-42"

	log := logging.NewTestLogger()
	log.Info(context.Background(), "configuration loaded", configFields(cfg)...)

	entries := log.FilterMessage("configuration loaded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED:16]", fields["registry_token"])
	assert.Equal(t, "[REDACTED:10]", fields["agent_api_key"])
	for _, v := range fields {
		assert.NotContains(t, fmt.Sprint(v), "npm_abcdef")
		assert.NotContains(t, fmt.Sprint(v), "sk-live")
	}
}
