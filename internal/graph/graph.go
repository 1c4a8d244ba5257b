package graph

import "sort"

// Category classifies a package within a suite.
type Category string

const (
	CategoryCore    Category = "core"
	CategoryService Category = "service"
	CategorySuite   Category = "suite"
	CategoryUI      Category = "ui"
	CategoryTool    Category = "tool"
	CategoryOther   Category = "other"
)

// ParseCategory maps a manifest value onto a Category, defaulting to other.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryCore, CategoryService, CategorySuite, CategoryUI, CategoryTool:
		return Category(s)
	default:
		return CategoryOther
	}
}

// Package is an independently buildable, versioned unit. Identity is the
// scoped Name (for example "@acme/http-client") and never changes after
// discovery.
type Package struct {
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Category     Category `json:"category"`
	Path         string   `json:"path"`
}

// Node is a package plus the facts the resolver derived for it.
type Node struct {
	Package    Package
	Layer      int
	Dependents []string
}

// Graph is an acyclic dependency graph. It is immutable once returned by
// Resolve.
type Graph struct {
	roots []string
	nodes map[string]*Node
	order []string // discovery order
	topo  []string // dependencies before dependents
}

// Len returns the number of packages.
func (g *Graph) Len() int {
	return len(g.order)
}

// Roots returns the packages resolution started from.
func (g *Graph) Roots() []string {
	return append([]string(nil), g.roots...)
}

// Has reports whether name is in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Package returns the package for name.
func (g *Graph) Package(name string) (Package, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return Package{}, false
	}
	return n.Package, true
}

// Layer returns the BuildLayer of name, or -1 when unknown.
func (g *Graph) Layer(name string) int {
	n, ok := g.nodes[name]
	if !ok {
		return -1
	}
	return n.Layer
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.Package.Dependencies...)
}

// Dependents returns the packages that directly depend on name, in discovery
// order.
func (g *Graph) Dependents(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.Dependents...)
}

// TransitiveDependents returns every package that depends on name directly or
// indirectly, in discovery order.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := map[string]bool{}
	queue := g.Dependents(name)
	for i := 0; i < len(queue); i++ {
		id := queue[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, g.nodes[id].Dependents...)
	}
	out := make([]string, 0, len(seen))
	for _, id := range g.order {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Order returns package names in stable discovery order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// TopologicalOrder returns package names with every dependency ahead of its
// dependents.
func (g *Graph) TopologicalOrder() []string {
	return append([]string(nil), g.topo...)
}

// Packages returns all packages in discovery order.
func (g *Graph) Packages() []Package {
	out := make([]Package, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Package)
	}
	return out
}

// Layers groups package names by BuildLayer. Names within a layer are sorted.
func (g *Graph) Layers() [][]string {
	max := -1
	for _, n := range g.nodes {
		if n.Layer > max {
			max = n.Layer
		}
	}
	layers := make([][]string, max+1)
	for _, id := range g.order {
		l := g.nodes[id].Layer
		layers[l] = append(layers[l], id)
	}
	for _, l := range layers {
		sort.Strings(l)
	}
	return layers
}
