// Package quality scores a built package against eight independent checks.
//
// Each check is run by a Probe. Results are combined by Compute into a
// ComplianceScore using a fixed weight table that sums to 100:
//
//	structure      10
//	typecheck      20
//	lint           15
//	tests          20
//	security       10
//	documentation  10
//	license         5
//	integration    10
//
// Scores of 95 and above are excellent, 90 good, 85 acceptable; anything
// lower is blocked and goes to remediation. A probe that errors (a missing
// binary, an unreadable directory) counts as a failed check and is reported as
// a CheckExecutionFault; it never aborts the gate.
package quality
