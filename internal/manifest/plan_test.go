package manifest

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
)

const samplePlan = `
suite: payments
packages:
  "@acme/core":
    plan: |
      Money and currency types.
  "@acme/api":
    plan: HTTP handlers
    depends: ["@acme/core"]
  "@acme/empty":
    plan: "   "
`

func TestParsePlanFile(t *testing.T) {
	pf, err := ParsePlanFile([]byte(samplePlan))
	require.NoError(t, err)
	assert.Equal(t, "payments", pf.Suite)

	plans := pf.Plans()
	core, err := plans.Resolve("@acme/core")
	require.NoError(t, err)
	assert.Equal(t, "Money and currency types.\n", core.Plan)

	_, err = plans.Resolve("@acme/empty")
	assert.True(t, errors.Is(err, ErrNoPlan))
	_, err = plans.Resolve("@acme/unknown")
	assert.True(t, errors.Is(err, ErrNoPlan))

	assert.Equal(t, []string{"@acme/empty", "@acme/x"}, plans.Missing([]string{"@acme/core", "@acme/empty", "@acme/x"}))
}

func TestParsePlanFile_Invalid(t *testing.T) {
	_, err := ParsePlanFile([]byte("packages: [unterminated"))
	assert.Error(t, err)

	_, err = ParsePlanFile([]byte("packages:\n  \"bad/name\":\n    plan: x\n"))
	assert.Error(t, err)
}

func TestLoadPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	writeFile(t, path, samplePlan)

	pf, err := LoadPlanFile(path)
	require.NoError(t, err)
	assert.Len(t, pf.Packages, 3)

	_, err = LoadPlanFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPlans_Merge(t *testing.T) {
	low := FromText(map[string]string{"a": "from manifest", "b": "from manifest"})
	high := Plans{"a": {Plan: "from request"}, "b": {Plan: ""}}

	merged := low.Merge(high)
	assert.Equal(t, "from request", merged["a"].Plan)
	assert.Equal(t, "from manifest", merged["b"].Plan, "blank entries do not override")
	assert.Equal(t, "from manifest", low["a"].Plan, "receiver is not modified")
}

func TestPlans_Augment(t *testing.T) {
	base := graph.MapLookup{
		"api":  {Dependencies: nil},
		"core": {},
	}
	plans := Plans{"api": {Plan: "x", Depends: []string{"core"}}}

	g, err := graph.Resolve(plans.Augment(base), "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, g.Dependencies("api"))
	assert.Equal(t, 1, g.Layer("api"))
}
