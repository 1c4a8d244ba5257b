package remediation

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/pkgforge/internal/quality"
)

// ErrQualityBlocked means a package scored below the acceptable threshold.
// It is recoverable through remediation.
var ErrQualityBlocked = errors.New("quality score below acceptable threshold")

// RemediationExhaustedError is terminal: every remediation attempt left the
// package blocked.
type RemediationExhaustedError struct {
	Attempts int
	Score    quality.ComplianceScore
}

func (e *RemediationExhaustedError) Error() string {
	return fmt.Sprintf("remediation exhausted after %d attempts, last score %s", e.Attempts, e.Score)
}

// Unwrap lets errors.Is(err, ErrQualityBlocked) match.
func (e *RemediationExhaustedError) Unwrap() error { return ErrQualityBlocked }
