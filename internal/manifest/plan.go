package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

// ErrNoPlan is returned when no plan text exists for a package.
var ErrNoPlan = errors.New("no plan found")

// PlanFile is the on-disk shape of a suite plan.
//
//	suite: payments
//	packages:
//	  "@acme/core":
//	    plan: |
//	      Implement the money type...
type PlanFile struct {
	Suite    string                 `yaml:"suite"`
	Packages map[string]PackagePlan `yaml:"packages"`
}

// PackagePlan is the plan entry for one package.
type PackagePlan struct {
	Plan         string   `yaml:"plan"`
	Instructions string   `yaml:"instructions,omitempty"`
	Depends      []string `yaml:"depends,omitempty"`
}

// Plans maps package names to plan entries.
type Plans map[string]PackagePlan

// LoadPlanFile reads a YAML plan file.
func LoadPlanFile(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ParsePlanFile(data)
}

// ParsePlanFile decodes a YAML plan file.
func ParsePlanFile(data []byte) (*PlanFile, error) {
	var pf PlanFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("invalid plan file: %w", err)
	}
	for name := range pf.Packages {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("plan file: %w", err)
		}
	}
	return &pf, nil
}

// Plans returns the file's entries as Plans.
func (pf *PlanFile) Plans() Plans {
	out := make(Plans, len(pf.Packages))
	for name, p := range pf.Packages {
		out[name] = p
	}
	return out
}

// Merge returns a copy of p with entries from higher overriding p's. Entries
// with blank plan text in higher do not override.
func (p Plans) Merge(higher Plans) Plans {
	out := make(Plans, len(p)+len(higher))
	for name, e := range p {
		out[name] = e
	}
	for name, e := range higher {
		if strings.TrimSpace(e.Plan) == "" {
			continue
		}
		out[name] = e
	}
	return out
}

// FromText builds Plans from bare plan text keyed by name.
func FromText(texts map[string]string) Plans {
	out := make(Plans, len(texts))
	for name, text := range texts {
		out[name] = PackagePlan{Plan: text}
	}
	return out
}

// Resolve returns the plan for name, or ErrNoPlan.
func (p Plans) Resolve(name string) (PackagePlan, error) {
	e, ok := p[name]
	if !ok || strings.TrimSpace(e.Plan) == "" {
		return PackagePlan{}, fmt.Errorf("%s: %w", name, ErrNoPlan)
	}
	return e, nil
}

// Missing returns the names in want that have no plan, preserving order.
func (p Plans) Missing(want []string) []string {
	var out []string
	for _, name := range want {
		if _, err := p.Resolve(name); err != nil {
			out = append(out, name)
		}
	}
	return out
}

// Augment returns a lookup that adds plan-declared dependency edges to the
// packages served by base.
func (p Plans) Augment(base graph.Lookup) graph.Lookup {
	return graph.LookupFunc(func(name string) (graph.Package, error) {
		pkg, err := base.Lookup(name)
		if err != nil {
			return pkg, err
		}
		if e, ok := p[name]; ok && len(e.Depends) > 0 {
			pkg.Dependencies = append(append([]string(nil), pkg.Dependencies...), e.Depends...)
		}
		return pkg, nil
	})
}
