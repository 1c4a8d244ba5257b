package workflows

import (
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorSeverity grades a workflow error.
type ErrorSeverity string

const (
	// ErrorSeverityCritical fails the workflow.
	ErrorSeverityCritical ErrorSeverity = "critical"
	// ErrorSeverityHigh is recorded in the result; the workflow continues.
	ErrorSeverityHigh ErrorSeverity = "high"
	// ErrorSeverityLow is logged only.
	ErrorSeverityLow ErrorSeverity = "low"
)

// WorkflowError is a structured workflow failure.
type WorkflowError struct {
	Operation string        // e.g. "build_package", "resolve_plan"
	Severity  ErrorSeverity
	Err       error
	Context   string // package name or other identifier
}

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Operation, e.Err.Error(), e.Context)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Err.Error())
}

// Unwrap allows errors.Is and errors.As to see the cause.
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a workflow error.
func NewWorkflowError(operation string, severity ErrorSeverity, err error, context string) *WorkflowError {
	return &WorkflowError{
		Operation: operation,
		Severity:  severity,
		Err:       err,
		Context:   context,
	}
}

// Application converts e into the error a workflow returns to Temporal.
// Critical errors are non-retryable; the build state machine already retries
// what is worth retrying.
func (e *WorkflowError) Application() error {
	if e.Severity == ErrorSeverityCritical {
		return temporal.NewNonRetryableApplicationError(e.Error(), e.Operation, e.Err)
	}
	return temporal.NewApplicationError(e.Error(), e.Operation, e.Err)
}

// WrapActivityError wraps an activity error with operation context.
func WrapActivityError(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, err)
}

// FormatErrorForResult formats an error for a result's Errors slice.
func FormatErrorForResult(operation string, err error) string {
	return fmt.Sprintf("%s: %v", operation, err)
}
