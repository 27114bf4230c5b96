package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/castellan/castellan"
)

func TestControlAuthorizer_Authorize(t *testing.T) {
	auth := newControlAuthorizer(DefaultConfig())

	blocking := []castellan.Concern{{Kind: ConcernToolBudget, Severity: castellan.SeverityBlocking}}
	fatal := []castellan.Concern{{Kind: ConcernSnapshotInvalid, Severity: castellan.SeverityFatal}}
	warnings := []castellan.Concern{{Kind: ConcernRiskScore, Severity: castellan.SeverityWarning}}

	tests := []struct {
		name     string
		level    castellan.SafetyLevel
		pressure float64
		concerns []castellan.Concern
		want     bool
	}{
		{name: "nominal and quiet", level: castellan.LevelNominal, pressure: 0.2, want: true},
		{name: "warnings alone do not revoke", level: castellan.LevelElevated, pressure: 0.5, concerns: warnings, want: true},
		{name: "blocking concern revokes", level: castellan.LevelNominal, pressure: 0.2, concerns: blocking, want: false},
		{name: "fatal concern revokes", level: castellan.LevelNominal, pressure: 0.2, concerns: fatal, want: false},
		{name: "pressure at the ceiling passes", level: castellan.LevelNominal, pressure: 0.85, want: true},
		{name: "pressure above the ceiling revokes", level: castellan.LevelNominal, pressure: 0.86, want: false},
		{name: "critical level revokes", level: castellan.LevelCritical, pressure: 0.2, want: false},
		{name: "emergency level revokes", level: castellan.LevelEmergency, pressure: 0.2, want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			allowed, reason := auth.Authorize(test.level, test.pressure, test.concerns)
			assert.Equal(t, test.want, allowed)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestControlAuthorizer_Configure(t *testing.T) {
	auth := newControlAuthorizer(DefaultConfig())

	auth.Configure(map[string]any{"denial_ceiling": 0.3})
	allowed, _ := auth.Authorize(castellan.LevelNominal, 0.4, nil)
	assert.False(t, allowed)

	// Out-of-range override is ignored.
	auth.Configure(map[string]any{"denial_ceiling": 1.5})
	allowed, _ = auth.Authorize(castellan.LevelNominal, 0.4, nil)
	assert.False(t, allowed)

	// Raising the blocking severity lets blocking concerns through.
	auth.Configure(map[string]any{"denial_ceiling": 0.85, "blocking_severity": 3})
	allowed, _ = auth.Authorize(castellan.LevelNominal, 0.2,
		[]castellan.Concern{{Kind: ConcernToolBudget, Severity: castellan.SeverityBlocking}})
	assert.True(t, allowed)
}

func TestTerminationChecker_Check(t *testing.T) {
	checker := newTerminationChecker()

	fatal := []castellan.Concern{{Kind: ConcernConsecutiveErrors, Severity: castellan.SeverityFatal}}
	blocking := []castellan.Concern{{Kind: ConcernToolBudget, Severity: castellan.SeverityBlocking}}

	tests := []struct {
		name     string
		level    castellan.SafetyLevel
		pressure float64
		concerns []castellan.Concern
		want     bool
	}{
		{name: "nominal and quiet", level: castellan.LevelNominal, pressure: 0.2, want: false},
		{name: "blocking concern does not terminate", level: castellan.LevelCritical, pressure: 0.9, concerns: blocking, want: false},
		{name: "fatal concern terminates", level: castellan.LevelNominal, pressure: 0.2, concerns: fatal, want: true},
		{name: "full exhaustion terminates", level: castellan.LevelNominal, pressure: 1.0, want: true},
		{name: "near exhaustion does not", level: castellan.LevelNominal, pressure: 0.999, want: false},
		{name: "emergency level terminates", level: castellan.LevelEmergency, pressure: 0.2, want: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			terminate, reason := checker.Check(test.level, test.pressure, test.concerns)
			assert.Equal(t, test.want, terminate)
			assert.NotEmpty(t, reason)
		})
	}
}
