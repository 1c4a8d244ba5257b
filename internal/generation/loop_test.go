package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// scriptedAgent replays commands, repeating the last one when the script
// runs out.
type scriptedAgent struct {
	script   []Command
	errs     map[int]error
	requests []Request
}

func (a *scriptedAgent) NextCommand(_ context.Context, req Request) (Command, error) {
	a.requests = append(a.requests, req)
	i := len(a.requests) - 1
	if err, ok := a.errs[i]; ok {
		return nil, err
	}
	if i >= len(a.script) {
		i = len(a.script) - 1
	}
	return a.script[i], nil
}

func (a *scriptedAgent) metaTurns() []int {
	var turns []int
	for _, r := range a.requests {
		if r.MetaCorrection {
			turns = append(turns, r.Turn)
		}
	}
	return turns
}

// fakeTools returns queued outcomes per command; the last one repeats.
type fakeTools struct {
	outcomes map[CommandKind][]Outcome
	calls    map[CommandKind]int
}

func newFakeTools() *fakeTools {
	return &fakeTools{outcomes: map[CommandKind][]Outcome{}, calls: map[CommandKind]int{}}
}

func (f *fakeTools) on(kind CommandKind, outs ...Outcome) *fakeTools {
	f.outcomes[kind] = outs
	return f
}

func (f *fakeTools) next(kind CommandKind) Outcome {
	outs := f.outcomes[kind]
	n := f.calls[kind]
	f.calls[kind]++
	if len(outs) == 0 {
		return Succeeded(string(kind))
	}
	if n >= len(outs) {
		n = len(outs) - 1
	}
	return outs[n]
}

func (f *fakeTools) ApplyFileChanges(context.Context, []FileChange) Outcome {
	return f.next(KindApplyFileChanges)
}
func (f *fakeTools) ValidateManifest(context.Context) Outcome { return f.next(KindValidateManifest) }
func (f *fakeTools) CheckLicenseHeaders(context.Context) Outcome {
	return f.next(KindCheckLicenseHeaders)
}
func (f *fakeTools) RunLint(context.Context) Outcome  { return f.next(KindRunLint) }
func (f *fakeTools) RunTests(context.Context) Outcome { return f.next(KindRunTests) }
func (f *fakeTools) Publish(context.Context) Outcome  { return f.next(KindPublish) }
func (f *fakeTools) Summary(context.Context) (string, error) {
	return "Files:\n  package.json\n", nil
}

var writeManifest = ApplyFileChanges{Files: []FileChange{{Path: "package.json", Content: "```json\n{\n```"}}}

func ready() Outcome {
	out := Succeeded("ready to publish")
	out.Completed = true
	return out
}

func TestLoop_Completes(t *testing.T) {
	agent := &scriptedAgent{script: []Command{writeManifest, RunTests{}, Publish{}}}
	tools := newFakeTools().on(KindPublish, ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{Package: "@acme/core", Plan: "a core lib"})
	assert.Equal(t, StatusCompleted, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Iterations)
	require.Len(t, res.History, 3)
	assert.Equal(t, KindPublish, res.History[2].Command)

	require.Len(t, agent.requests, 3)
	assert.Equal(t, "a core lib", agent.requests[0].Plan)
	assert.Len(t, agent.requests[2].History, 2, "history folds into the next turn")
	assert.Contains(t, agent.requests[0].Context, "package.json")
}

func TestLoop_PublishNotReadyContinues(t *testing.T) {
	agent := &scriptedAgent{script: []Command{Publish{}, Publish{}}}
	tools := newFakeTools().on(KindPublish, Failed("typecheck failed", nil), ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Iterations)
}

func TestLoop_MetaCorrectionThenTermination(t *testing.T) {
	logger := logging.NewTestLogger()
	agent := &scriptedAgent{script: []Command{writeManifest}}
	bad := Failed("1 of 1 file(s) failed", map[string]string{"package.json": "package.json is not valid JSON: unexpected end of JSON input"})
	tools := newFakeTools().on(KindApplyFileChanges, bad)

	res := NewLoop(agent, tools, WithLoopLogger(logger.Logger)).Run(context.Background(), Input{Package: "@acme/core"})

	assert.Equal(t, StatusFileLoopTerminated, res.Status)
	assert.Equal(t, 6, res.Iterations)
	var term *FileLoopTerminatedError
	require.ErrorAs(t, res.Err, &term)
	assert.Equal(t, "package.json", term.Path)

	assert.Equal(t, []int{4}, agent.metaTurns(), "exactly one directive, right after the third failure")
	directive := agent.requests[3].Context
	assert.Contains(t, directive, "package.json")
	assert.Contains(t, directive, "3 times")
	assert.Contains(t, directive, "unexpected end of JSON input")
	assert.True(t, res.History[3].MetaCorrection)

	logger.AssertLogged(t, zapcore.WarnLevel, "sending meta-correction directive")
	logger.AssertLogged(t, zapcore.ErrorLevel, "file loop terminated")
}

func TestLoop_DifferingErrorDelaysMetaCorrection(t *testing.T) {
	agent := &scriptedAgent{script: []Command{writeManifest}}
	errA := Failed("failed", map[string]string{"package.json": "error A"})
	errB := Failed("failed", map[string]string{"package.json": "error B"})
	tools := newFakeTools().on(KindApplyFileChanges, errA, errA, errB, errB, errB, Succeeded("ok", "package.json"))
	agent.script = []Command{writeManifest, writeManifest, writeManifest, writeManifest, writeManifest, writeManifest, Publish{}}
	tools.on(KindPublish, ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []int{6}, agent.metaTurns())
}

func TestLoop_SuccessClearsTracking(t *testing.T) {
	lintFail := Failed("lint failed", map[string]string{"src/a.ts": "12: no-unused-vars"})
	agent := &scriptedAgent{script: []Command{RunLint{}, RunLint{}, RunLint{}, RunLint{}, RunLint{}, Publish{}}}
	tools := newFakeTools().
		on(KindRunLint, lintFail, lintFail, Succeeded("lint passed"), lintFail, lintFail).
		on(KindPublish, ready())
	tracker := NewFileFailureTracker()

	res := NewLoop(agent, tools).Run(context.Background(), Input{Tracker: tracker})
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, agent.metaTurns(), "the lint success reset the count")
	e, ok := tracker.Entry("src/a.ts")
	require.True(t, ok)
	assert.Equal(t, 2, e.Count)
}

func TestLoop_IterationsExhausted(t *testing.T) {
	agent := &scriptedAgent{script: []Command{RunTests{}}}
	tools := newFakeTools().on(KindRunTests, Failed("2 failing", nil))

	res := NewLoop(agent, tools, WithMaxIterations(4)).Run(context.Background(), Input{})
	assert.Equal(t, StatusIterationsExhausted, res.Status)
	assert.ErrorIs(t, res.Err, ErrIterationsExhausted)
	assert.Equal(t, 4, res.Iterations)
	assert.Len(t, res.History, 4)
}

func TestLoop_HumanInterventionAfterThreeLintFailures(t *testing.T) {
	agent := &scriptedAgent{script: []Command{RunLint{}}}
	tools := newFakeTools().on(KindRunLint, Failed("lint failed", nil))

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusHumanIntervention, res.Status)
	assert.ErrorIs(t, res.Err, ErrHumanInterventionRequested)
	assert.Equal(t, 3, res.Iterations)
}

func TestLoop_AnySuccessResetsLintStreak(t *testing.T) {
	agent := &scriptedAgent{script: []Command{RunLint{}, RunLint{}, ValidateManifest{}, RunLint{}, RunLint{}, Publish{}}}
	tools := newFakeTools().
		on(KindRunLint, Failed("lint failed", nil)).
		on(KindPublish, ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestLoop_OtherFailuresDoNotResetLintStreak(t *testing.T) {
	agent := &scriptedAgent{script: []Command{RunLint{}, RunTests{}, RunLint{}, RunLint{}}}
	tools := newFakeTools().
		on(KindRunLint, Failed("lint failed", nil)).
		on(KindRunTests, Failed("tests failed", nil))

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusHumanIntervention, res.Status)
	assert.Equal(t, 4, res.Iterations)
}

func TestLoop_IterationLimitWinsOverHumanIntervention(t *testing.T) {
	agent := &scriptedAgent{script: []Command{RunLint{}}}
	tools := newFakeTools().on(KindRunLint, Failed("lint failed", nil))

	res := NewLoop(agent, tools, WithMaxIterations(3)).Run(context.Background(), Input{})
	assert.Equal(t, StatusIterationsExhausted, res.Status)
}

func TestLoop_InvalidCommandIsFailedTurn(t *testing.T) {
	agent := &scriptedAgent{
		script: []Command{Publish{}},
		errs:   map[int]error{0: ErrUnknownCommand},
	}
	tools := newFakeTools().on(KindPublish, ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{})
	assert.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.History, 2)
	assert.Equal(t, KindInvalid, res.History[0].Command)
	assert.False(t, res.History[0].Outcome.Success)
	assert.Contains(t, res.History[0].Outcome.Error, "unknown command")
}

func TestLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agent := &scriptedAgent{script: []Command{Publish{}}}

	res := NewLoop(agent, newFakeTools()).Run(ctx, Input{})
	assert.Equal(t, StatusCancelled, res.Status)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Empty(t, agent.requests)
}

func TestLoop_SeededHistory(t *testing.T) {
	prior := []ActionHistoryEntry{{Turn: 1, Command: KindRunTests, Outcome: Failed("x", nil)}}
	agent := &scriptedAgent{script: []Command{Publish{}}}
	tools := newFakeTools().on(KindPublish, ready())

	res := NewLoop(agent, tools).Run(context.Background(), Input{History: prior})
	assert.Len(t, agent.requests[0].History, 1)
	assert.Len(t, res.History, 2)
	assert.Equal(t, 1, res.Iterations)
}
