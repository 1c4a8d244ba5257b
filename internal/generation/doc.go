// Package generation drives the code-generation agent through a package
// build, one command per turn.
//
// Each turn the agent receives the plan, the action history and either a
// codebase summary or, after repeated identical failures on one file, a
// meta-correction directive. It answers with exactly one Command, which the
// loop executes through Tools. Failures attributed to files are tracked per
// path:
//
//	failure #1..#2 on P with the same error   continue
//	failure #3                                send one meta-correction directive
//	failure #4..#5                            continue
//	failure #6                                terminate, naming P
//
// A different error on P restarts the count; a later success for P deletes
// its entry. The loop ends when the agent's publish readiness check passes,
// a file is terminated, MaxIterations turns have run, or lint has failed
// three times with no success in between.
package generation
