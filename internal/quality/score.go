package quality

import "fmt"

// Check names one of the eight quality checks.
type Check string

const (
	CheckStructure     Check = "structure"
	CheckTypecheck     Check = "typecheck"
	CheckLint          Check = "lint"
	CheckTests         Check = "tests"
	CheckSecurity      Check = "security"
	CheckDocumentation Check = "documentation"
	CheckLicense       Check = "license"
	CheckIntegration   Check = "integration"
)

// Checks lists every check in reporting order.
var Checks = []Check{
	CheckStructure,
	CheckTypecheck,
	CheckLint,
	CheckTests,
	CheckSecurity,
	CheckDocumentation,
	CheckLicense,
	CheckIntegration,
}

var weights = map[Check]int{
	CheckStructure:     10,
	CheckTypecheck:     20,
	CheckLint:          15,
	CheckTests:         20,
	CheckSecurity:      10,
	CheckDocumentation: 10,
	CheckLicense:       5,
	CheckIntegration:   10,
}

// Weight returns the points a passing check contributes.
func Weight(c Check) int { return weights[c] }

// Valid reports whether c is one of the eight checks.
func (c Check) Valid() bool {
	_, ok := weights[c]
	return ok
}

// Level is the compliance band derived from a score.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelBlocked    Level = "blocked"
)

// Thresholds (inclusive lower bounds).
const (
	ExcellentThreshold  = 95
	GoodThreshold       = 90
	AcceptableThreshold = 85
)

// LevelFor maps a score onto its level.
func LevelFor(score int) Level {
	switch {
	case score >= ExcellentThreshold:
		return LevelExcellent
	case score >= GoodThreshold:
		return LevelGood
	case score >= AcceptableThreshold:
		return LevelAcceptable
	default:
		return LevelBlocked
	}
}

// ComplianceScore is the weighted result of one quality pass.
type ComplianceScore struct {
	Value  int     `json:"value"`
	Level  Level   `json:"level"`
	Failed []Check `json:"failed,omitempty"`
}

// Blocked reports whether the score is below the acceptable threshold.
func (s ComplianceScore) Blocked() bool { return s.Level == LevelBlocked }

func (s ComplianceScore) String() string {
	return fmt.Sprintf("%d (%s)", s.Value, s.Level)
}

// Compute scores a set of pass/fail outcomes. Checks absent from passed count
// as failed. The result depends only on the input.
func Compute(passed map[Check]bool) ComplianceScore {
	var s ComplianceScore
	for _, c := range Checks {
		if passed[c] {
			s.Value += weights[c]
		} else {
			s.Failed = append(s.Failed, c)
		}
	}
	s.Level = LevelFor(s.Value)
	return s
}
