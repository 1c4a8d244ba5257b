// Package orchestrator runs a package suite through its phases.
//
// # Phases
//
//	DISCOVERY -> PLANNING -> MECE_VALIDATION -> BUILD -> QUALITY -> PUBLISH -> COMPLETE
//
// Each phase runs only after the previous one completed. Any phase may end
// the run in FAILED, and the failing phase and its cause are kept on the
// SuiteState.
//
//   - DISCOVERY resolves the dependency graph of the requested roots. Cycles
//     and unresolved dependencies abort the whole suite.
//   - PLANNING requires a plan for every package in the graph. There is no
//     fallback: a package without a plan fails the phase with ErrNoPlan.
//   - MECE_VALIDATION runs the registered PhaseGates. The default gates reject
//     packages whose names collide once sanitized and packages without a
//     category.
//   - BUILD hands the graph to a Builder, either the in-process scheduler or
//     the durable workflow runner.
//   - QUALITY and PUBLISH only inspect the build results: every package that
//     was not skipped must have cleared the quality gate and been published.
//
// # Progress
//
// Register a ProgressCallback with WithProgress to follow phase transitions.
// When a report sink is configured the suite record is written once the run
// reaches a terminal phase.
package orchestrator
