// Package remediation retries code generation for packages the quality gate
// blocked.
//
// Each attempt hands the failing checks and their details back to the
// generation loop as instructions, then re-runs the gate. The first attempt
// that scores acceptable or better ends remediation. After MaxAttempts
// blocked attempts the package fails with a RemediationExhaustedError that
// carries the last score.
package remediation
