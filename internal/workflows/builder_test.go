package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/fyrsmithlabs/pkgforge/internal/graph"
	"github.com/fyrsmithlabs/pkgforge/internal/manifest"
	"github.com/fyrsmithlabs/pkgforge/internal/scheduler"
)

func builderGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Resolve(graph.MapLookup{
		"core": {Name: "core"},
		"app":  {Name: "app", Dependencies: []string{"core"}},
	}, "app")
	require.NoError(t, err)
	return g
}

func TestBuilder_Build(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetRunID").Return("temporal-run")
	run.On("Get", mock.Anything, mock.AnythingOfType("*workflows.SuiteBuildResult")).
		Run(func(args mock.Arguments) {
			res := args.Get(1).(*SuiteBuildResult)
			res.Tasks = []scheduler.Task{
				{Package: graph.Package{Name: "core"}, State: scheduler.StatePublished},
				{Package: graph.Package{Name: "app"}, State: scheduler.StatePublished},
			}
			res.Errors = []string{"app: transient"}
		}).
		Return(nil)

	var started SuiteBuildInput
	c.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == SuiteWorkflowID("run-1") && o.TaskQueue == "builds"
		}),
		mock.Anything, mock.AnythingOfType("workflows.SuiteBuildInput"),
	).Run(func(args mock.Arguments) {
		started = args.Get(3).(SuiteBuildInput)
	}).Return(run, nil)

	b := &Builder{Client: c, TaskQueue: "builds", MaxConcurrent: 2, WaitForHuman: true}
	plans := manifest.Plans{
		"core":  {Plan: "core plan"},
		"app":   {Plan: "app plan"},
		"other": {Plan: "not in the graph"},
	}
	tasks, err := b.Build(context.Background(), "run-1", builderGraph(t), plans)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	assert.Equal(t, "run-1", started.RunID)
	assert.Equal(t, []string{"app"}, started.Roots)
	assert.Len(t, started.Packages, 2)
	assert.Equal(t, 2, started.MaxConcurrent)
	assert.True(t, started.WaitForHuman)
	assert.NotContains(t, started.Plans, "other")
	assert.Equal(t, "app plan", started.Plans["app"].Plan)
	c.AssertExpectations(t)
	run.AssertExpectations(t)
}

func TestBuilder_Build_StartFails(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("namespace not found"))

	b := &Builder{Client: c, TaskQueue: "builds"}
	_, err := b.Build(context.Background(), "run-2", builderGraph(t), manifest.Plans{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start suite workflow")
}

func TestBuilder_Build_WorkflowFails(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(SuiteWorkflowID("run-3"))
	run.On("GetRunID").Return("temporal-run")
	run.On("Get", mock.Anything, mock.Anything).Return(errors.New("resolve_graph failed"))
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(run, nil)

	b := &Builder{Client: c, TaskQueue: "builds"}
	_, err := b.Build(context.Background(), "run-3", builderGraph(t), manifest.Plans{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), SuiteWorkflowID("run-3"))
	assert.Contains(t, err.Error(), "resolve_graph failed")
	run.AssertExpectations(t)
}
