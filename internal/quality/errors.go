package quality

import "fmt"

// CheckExecutionFault reports that a probe could not run. The gate scores
// the check as failed and logs the fault separately from ordinary failures.
type CheckExecutionFault struct {
	Check Check
	Err   error
}

func (e *CheckExecutionFault) Error() string {
	return fmt.Sprintf("quality check %s could not run: %v", e.Check, e.Err)
}

func (e *CheckExecutionFault) Unwrap() error { return e.Err }
