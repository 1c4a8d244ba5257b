package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrIterationsExhausted means the loop ran MaxIterations turns without the
	// agent completing the package.
	ErrIterationsExhausted = errors.New("generation loop exhausted its iterations")

	// ErrHumanInterventionRequested means the loop paused for a human. It is
	// not a failure.
	ErrHumanInterventionRequested = errors.New("human intervention requested")
)

// FileLoopTerminatedError ends a package build when the agent keeps producing
// the same error on one file after a meta-correction directive. It is not
// retryable.
type FileLoopTerminatedError struct {
	Path      string
	Attempts  int
	LastError string
}

func (e *FileLoopTerminatedError) Error() string {
	return fmt.Sprintf("file %s failed %d times with the same error after meta-correction: %s",
		e.Path, e.Attempts, e.LastError)
}
