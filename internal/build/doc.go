// Package build runs the per-package build state machine.
//
//	BUILDING -> QUALITY_CHECK -> PUBLISHED
//	                 |
//	                 +-> REMEDIATING -> QUALITY_CHECK -> ... -> FAILED
//
// A generation run that terminates on a looping file or exhausts its
// iterations fails the package without remediation. A run that asks for a
// human ends in AWAITING_HUMAN. Publishing happens only after the quality
// gate passes, and a publish that reports published=false is retried once.
package build
