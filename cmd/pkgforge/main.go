// Package main implements the pkgforge CLI.
//
// pkgforge builds a suite of interdependent packages: it resolves the
// dependency graph, builds packages layer by layer through the generation
// loop and quality gate, and publishes the ones that pass.
//
// Usage:
//
//	# Build every package in the workspace
//	pkgforge run
//
//	# Build one package and its dependencies with a plan file
//	pkgforge run --plan suite.yaml @acme/app
//
//	# Durable execution: start a worker, then a run
//	pkgforge worker
//	pkgforge start @acme/app
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath is an explicit config file; default paths are tried when empty.
	configPath string
	// workspaceRoot overrides workspace.root from the config.
	workspaceRoot string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pkgforge",
	Short: "Autonomous build orchestration for package suites",
	Long: `pkgforge resolves a suite of interdependent packages into build layers,
generates each package with a code-generation agent, scores it against the
quality gate, remediates what falls short and publishes what passes.

Configuration is read from pkgforge.yaml (or --config) and PKGFORGE_*
environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pkgforge %s (commit %s, built %s)\n", version, gitCommit, buildDate))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: pkgforge.yaml, ~/.config/pkgforge/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", "", "workspace root (overrides workspace.root)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}
