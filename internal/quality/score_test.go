package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allPassed() map[Check]bool {
	m := make(map[Check]bool, len(Checks))
	for _, c := range Checks {
		m[c] = true
	}
	return m
}

func TestWeightsSumToHundred(t *testing.T) {
	total := 0
	for _, c := range Checks {
		total += Weight(c)
	}
	assert.Equal(t, 100, total)
	assert.Len(t, Checks, 8)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		failed []Check
		want   int
		level  Level
	}{
		{"all pass", nil, 100, LevelExcellent},
		{"license only", []Check{CheckLicense}, 95, LevelExcellent},
		{"structure only", []Check{CheckStructure}, 90, LevelGood},
		{"lint only", []Check{CheckLint}, 85, LevelAcceptable},
		{"typecheck only", []Check{CheckTypecheck}, 80, LevelBlocked},
		{"license and structure", []Check{CheckLicense, CheckStructure}, 85, LevelAcceptable},
		{"all fail", Checks, 0, LevelBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed := allPassed()
			for _, c := range tt.failed {
				passed[c] = false
			}
			got := Compute(passed)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.level, got.Level)
			assert.ElementsMatch(t, tt.failed, got.Failed)
		})
	}
}

func TestCompute_MissingChecksCountAsFailed(t *testing.T) {
	got := Compute(map[Check]bool{CheckTypecheck: true, CheckTests: true})
	assert.Equal(t, 40, got.Value)
	assert.True(t, got.Blocked())
	assert.Len(t, got.Failed, 6)
}

func TestCompute_Deterministic(t *testing.T) {
	in := allPassed()
	in[CheckLint] = false
	first := Compute(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compute(in))
	}
}

func TestLevelFor_Boundaries(t *testing.T) {
	assert.Equal(t, LevelExcellent, LevelFor(95))
	assert.Equal(t, LevelGood, LevelFor(94))
	assert.Equal(t, LevelGood, LevelFor(90))
	assert.Equal(t, LevelAcceptable, LevelFor(89))
	assert.Equal(t, LevelAcceptable, LevelFor(85))
	assert.Equal(t, LevelBlocked, LevelFor(84))
	assert.Equal(t, LevelBlocked, LevelFor(0))
}

func TestComplianceScore_String(t *testing.T) {
	assert.Equal(t, "85 (acceptable)", ComplianceScore{Value: 85, Level: LevelAcceptable}.String())
}
