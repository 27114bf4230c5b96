package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/tt"
)

// detect runs the default detector with dimensions derived the way the
// manager derives them.
func detect(t *testing.T, state *castellan.InvestigationState) []castellan.Concern {
	t.Helper()
	cfg := DefaultConfig()
	limits := cfg.baseLimits()
	dims := newPressureCalculator().Dimensions(state, limits)
	return newConcernDetector(cfg).Detect(state, castellan.LevelNominal, limits, dims)
}

func TestConcernDetector_Detect(t *testing.T) {
	t.Run("healthy snapshot has no concerns", func(t *testing.T) {
		assert.Empty(t, detect(t, tt.HealthyState()))
	})

	t.Run("budget ladder", func(t *testing.T) {
		tests := []struct {
			name     string
			mut      func(*castellan.InvestigationState)
			kind     string
			severity castellan.ConcernSeverity
		}{
			{
				name:     "loops at warn fraction",
				mut:      func(s *castellan.InvestigationState) { s.LoopCount = 24 },
				kind:     ConcernLoopBudget,
				severity: castellan.SeverityWarning,
			},
			{
				name:     "loops exhausted",
				mut:      func(s *castellan.InvestigationState) { s.LoopCount = 30 },
				kind:     ConcernLoopBudget,
				severity: castellan.SeverityBlocking,
			},
			{
				name:     "tools at warn fraction",
				mut:      func(s *castellan.InvestigationState) { s.ToolExecutions = 48 },
				kind:     ConcernToolBudget,
				severity: castellan.SeverityWarning,
			},
			{
				name:     "domain hammering",
				mut:      func(s *castellan.InvestigationState) { s.DomainAttempts["devices"] = 8 },
				kind:     ConcernDomainHammering,
				severity: castellan.SeverityBlocking,
			},
			{
				name:     "runtime near the ceiling",
				mut:      func(s *castellan.InvestigationState) { s.Elapsed = 13 * time.Minute },
				kind:     ConcernRuntime,
				severity: castellan.SeverityWarning,
			},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				concerns := detect(t, tt.State(test.mut))
				require.Len(t, concerns, 1)
				assert.Equal(t, test.kind, concerns[0].Kind)
				assert.Equal(t, test.severity, concerns[0].Severity)
				assert.NotEmpty(t, concerns[0].SuggestedAction)
			})
		}
	})

	t.Run("exhausted budgets say so", func(t *testing.T) {
		concerns := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.LoopCount = 30
		}))
		require.Len(t, concerns, 1)
		assert.Contains(t, concerns[0].Message, "(exhausted)")
	})

	t.Run("risk score ladder", func(t *testing.T) {
		warning := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.RiskScore = 0.8
		}))
		require.Len(t, warning, 1)
		assert.Equal(t, ConcernRiskScore, warning[0].Kind)
		assert.Equal(t, castellan.SeverityWarning, warning[0].Severity)

		blocking := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.RiskScore = 0.95
		}))
		require.Len(t, blocking, 1)
		assert.Equal(t, castellan.SeverityBlocking, blocking[0].Severity)
	})

	t.Run("consecutive error ladder", func(t *testing.T) {
		warning := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.ConsecutiveErrors = 3
		}))
		require.Len(t, warning, 1)
		assert.Equal(t, ConcernConsecutiveErrors, warning[0].Kind)
		assert.Equal(t, castellan.SeverityWarning, warning[0].Severity)

		fatal := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.ConsecutiveErrors = 5
		}))
		require.Len(t, fatal, 1)
		assert.Equal(t, castellan.SeverityFatal, fatal[0].Severity)
	})

	t.Run("emission order is stable", func(t *testing.T) {
		concerns := detect(t, tt.State(func(s *castellan.InvestigationState) {
			s.LoopCount = 30
			s.ToolExecutions = 60
			s.RiskScore = 0.95
			s.ConsecutiveErrors = 5
		}))
		kinds := make([]string, len(concerns))
		for i, concern := range concerns {
			kinds[i] = concern.Kind
		}
		assert.Equal(t, []string{
			ConcernLoopBudget,
			ConcernToolBudget,
			ConcernRiskScore,
			ConcernConsecutiveErrors,
		}, kinds)
	})

	t.Run("invalid snapshot is a single fatal concern", func(t *testing.T) {
		tests := []struct {
			name  string
			state *castellan.InvestigationState
		}{
			{name: "nil", state: nil},
			{name: "wrong version", state: tt.State(func(s *castellan.InvestigationState) { s.SchemaVersion = 99 })},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				concerns := detect(t, test.state)
				require.Len(t, concerns, 1)
				assert.Equal(t, ConcernSnapshotInvalid, concerns[0].Kind)
				assert.Equal(t, castellan.SeverityFatal, concerns[0].Severity)
			})
		}
	})
}
