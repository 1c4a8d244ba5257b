package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPackageNotFound is returned by a Lookup when it has no metadata for a name.
var ErrPackageNotFound = errors.New("package not found")

// CycleError reports a dependency cycle. Path starts and ends with the same
// package, e.g. [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// Members returns the distinct packages on the cycle in traversal order.
func (e *CycleError) Members() []string {
	if len(e.Path) <= 1 {
		return append([]string(nil), e.Path...)
	}
	return append([]string(nil), e.Path[:len(e.Path)-1]...)
}

// UnresolvedDependencyError reports a dependency that has no metadata.
type UnresolvedDependencyError struct {
	ID         string // the missing package
	RequiredBy string // the package declaring it, empty for a root
	Err        error  // underlying lookup error
}

func (e *UnresolvedDependencyError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("unresolved package %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("unresolved dependency %q required by %q: %v", e.ID, e.RequiredBy, e.Err)
}

func (e *UnresolvedDependencyError) Unwrap() error {
	return e.Err
}
