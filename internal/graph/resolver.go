package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup returns the declared metadata for a package name. Implementations
// return an error wrapping ErrPackageNotFound when the name is unknown.
type Lookup interface {
	Lookup(name string) (Package, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(name string) (Package, error)

// Lookup calls f.
func (f LookupFunc) Lookup(name string) (Package, error) {
	return f(name)
}

// MapLookup is an in-memory Lookup keyed by package name.
type MapLookup map[string]Package

// Lookup returns the package stored under name.
func (m MapLookup) Lookup(name string) (Package, error) {
	p, ok := m[name]
	if !ok {
		return Package{}, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}

// Resolve expands the dependency closure of roots and returns the resulting
// graph with BuildLayers assigned.
func Resolve(lookup Lookup, roots ...string) (*Graph, error) {
	if lookup == nil {
		return nil, errors.New("graph: lookup is required")
	}
	if len(roots) == 0 {
		return nil, errors.New("graph: at least one root package is required")
	}
	r := &resolver{
		lookup:  lookup,
		nodes:   make(map[string]*Node),
		onStack: make(map[string]int),
	}
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			return nil, errors.New("graph: root package name is empty")
		}
		if err := r.visit(root, ""); err != nil {
			return nil, err
		}
	}
	for _, id := range r.order {
		for _, dep := range r.nodes[id].Package.Dependencies {
			depNode := r.nodes[dep]
			depNode.Dependents = append(depNode.Dependents, id)
		}
	}
	seenRoot := make(map[string]bool, len(roots))
	uniqueRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if !seenRoot[root] {
			seenRoot[root] = true
			uniqueRoots = append(uniqueRoots, root)
		}
	}
	return &Graph{
		roots: uniqueRoots,
		nodes: r.nodes,
		order: r.order,
		topo:  r.topo,
	}, nil
}

type resolver struct {
	lookup  Lookup
	nodes   map[string]*Node
	order   []string
	topo    []string
	stack   []string
	onStack map[string]int // name -> index in stack
}

func (r *resolver) visit(name, requiredBy string) error {
	if idx, ok := r.onStack[name]; ok {
		path := append(append([]string(nil), r.stack[idx:]...), name)
		return &CycleError{Path: path}
	}
	if _, done := r.nodes[name]; done {
		return nil
	}

	pkg, err := r.lookup.Lookup(name)
	if err != nil {
		return &UnresolvedDependencyError{ID: name, RequiredBy: requiredBy, Err: err}
	}
	pkg.Name = name
	pkg.Dependencies = dedupe(pkg.Dependencies)
	if pkg.Category == "" {
		pkg.Category = CategoryOther
	}

	r.onStack[name] = len(r.stack)
	r.stack = append(r.stack, name)
	r.order = append(r.order, name)
	for _, dep := range pkg.Dependencies {
		if err := r.visit(dep, name); err != nil {
			return err
		}
	}

	layer := 0
	for _, dep := range pkg.Dependencies {
		if l := r.nodes[dep].Layer + 1; l > layer {
			layer = l
		}
	}
	r.nodes[name] = &Node{Package: pkg, Layer: layer}
	r.topo = append(r.topo, name)

	r.stack = r.stack[:len(r.stack)-1]
	delete(r.onStack, name)
	return nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
