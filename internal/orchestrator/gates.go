package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/sanitize"
)

// DefaultGates returns the MECE_VALIDATION gates.
func DefaultGates() []PhaseGate {
	return []PhaseGate{NewUniqueNameGate(), NewCategoryGate()}
}

// UniqueNameGate rejects packages whose names collide once turned into
// identifiers. Colliding packages would share workflow IDs and report keys.
type UniqueNameGate struct{}

// NewUniqueNameGate creates the gate.
func NewUniqueNameGate() *UniqueNameGate { return &UniqueNameGate{} }

// Name returns the gate identifier.
func (g *UniqueNameGate) Name() string { return "unique-names" }

// Check implements PhaseGate.
func (g *UniqueNameGate) Check(_ context.Context, state *SuiteState) ([]Violation, error) {
	if state.Graph == nil {
		return nil, fmt.Errorf("no graph to validate")
	}
	byID := map[string][]string{}
	for _, name := range state.Graph.Order() {
		id := sanitize.Identifier(name)
		byID[id] = append(byID[id], name)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var violations []Violation
	for _, id := range ids {
		names := byID[id]
		if len(names) < 2 {
			continue
		}
		violations = append(violations, Violation{
			Type:        ViolationDuplicateName,
			Package:     names[1],
			Description: fmt.Sprintf("packages %s share the identifier %q", strings.Join(names, ", "), id),
			Severity:    SeverityError,
		})
	}
	return violations, nil
}

// CategoryGate requires every package to declare a category. Packages that
// fell back to "other" are reported as warnings.
type CategoryGate struct{}

// NewCategoryGate creates the gate.
func NewCategoryGate() *CategoryGate { return &CategoryGate{} }

// Name returns the gate identifier.
func (g *CategoryGate) Name() string { return "categories" }

// Check implements PhaseGate.
func (g *CategoryGate) Check(_ context.Context, state *SuiteState) ([]Violation, error) {
	if state.Graph == nil {
		return nil, fmt.Errorf("no graph to validate")
	}
	var violations []Violation
	for _, pkg := range state.Graph.Packages() {
		switch strings.TrimSpace(string(pkg.Category)) {
		case "":
			violations = append(violations, Violation{
				Type:        ViolationMissingCategory,
				Package:     pkg.Name,
				Description: "package has no category",
				Severity:    SeverityError,
			})
		case string(graph.CategoryOther):
			violations = append(violations, Violation{
				Type:        ViolationUncategorized,
				Package:     pkg.Name,
				Description: "package category defaulted to other",
				Severity:    SeverityWarning,
			})
		}
	}
	return violations, nil
}

func hasBlockingViolation(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

func describeViolations(violations []Violation) string {
	var parts []string
	for _, v := range violations {
		if v.Severity != SeverityError {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", v.Type, v.Package, v.Description))
	}
	return strings.Join(parts, "; ")
}
