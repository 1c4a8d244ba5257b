// Package graph builds the package dependency graph for a suite build.
//
// The resolver expands declared dependencies from a metadata lookup starting at
// one or more root packages. Expansion is memoized, so shared dependencies are
// read once. A package revisited while it is still on the expansion stack is a
// cycle and resolution fails with a *CycleError naming every member. A
// dependency the lookup cannot find fails with *UnresolvedDependencyError; the
// resolver never drops an edge silently.
//
// The returned Graph is read-only and safe to share across goroutines. Each
// node carries its BuildLayer: 0 for leaves, otherwise one more than the
// highest layer among its dependencies. Packages in the same layer have no
// dependency relationship between them.
package graph
