package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

var (
	graphPlanFile string
	graphJSON     bool
)

func init() {
	graphCmd.Flags().StringVarP(&graphPlanFile, "plan", "p", "", "YAML plan file whose depends entries add edges")
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "print layers as JSON")
}

// graphCmd prints build layers without building.
var graphCmd = &cobra.Command{
	Use:   "graph [package...]",
	Short: "Print the build layers of a suite",
	Long: `Resolve the dependency graph of the named packages (or the whole
workspace) and print its build layers. Packages in the same layer can be
built in parallel. Cycles and unresolved dependencies are reported as
errors.

Examples:
  pkgforge graph @acme/app
  pkgforge graph --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.loadSuite(graphPlanFile)
		if err != nil {
			return err
		}
		lookup := s.plans.Merge(s.filePlans).Augment(s.lookup)
		g, err := graph.Resolve(lookup, s.roots(args)...)
		if err != nil {
			return err
		}
		if graphJSON {
			return writeLayersJSON(cmd.OutOrStdout(), g)
		}
		writeLayers(cmd.OutOrStdout(), g)
		return nil
	},
}

func writeLayers(out io.Writer, g *graph.Graph) {
	for i, layer := range g.Layers() {
		fmt.Fprintf(out, "Layer %d:\n", i)
		for _, name := range layer {
			if deps := g.Dependencies(name); len(deps) > 0 {
				fmt.Fprintf(out, "  %s <- %s\n", name, strings.Join(deps, ", "))
			} else {
				fmt.Fprintf(out, "  %s\n", name)
			}
		}
	}
	fmt.Fprintf(out, "%d package(s), %d layer(s)\n", g.Len(), len(g.Layers()))
}

func writeLayersJSON(out io.Writer, g *graph.Graph) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Roots  []string   `json:"roots"`
		Layers [][]string `json:"layers"`
		Order  []string   `json:"order"`
	}{g.Roots(), g.Layers(), g.TopologicalOrder()})
}
