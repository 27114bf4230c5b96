package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/tt"
)

func newTestManager(opts ...Option) *Manager {
	base := []Option{
		WithClock(tt.Clock()),
		WithLogger(tt.DiscardLogger()),
	}
	return NewManager(append(base, opts...)...)
}

// Panicking strategies for the fail-closed tests.

type panicLevelDetector struct{}

func (panicLevelDetector) Detect(*castellan.InvestigationState) castellan.SafetyLevel {
	panic("boom")
}

type panicPressureCalculator struct{}

func (panicPressureCalculator) Pressure(*castellan.InvestigationState, castellan.Limits) float64 {
	panic("boom")
}

func (panicPressureCalculator) Dimensions(*castellan.InvestigationState, castellan.Limits) map[string]float64 {
	panic("boom")
}

func TestManager_ValidateCurrentState_Healthy(t *testing.T) {
	m := newTestManager()
	status := m.ValidateCurrentState(tt.HealthyState())

	require.NotNil(t, status)
	assert.True(t, status.AllowsAIControl)
	assert.False(t, status.RequiresImmediateTermination)
	assert.Equal(t, castellan.LevelNominal, status.Level)
	assert.Equal(t, DefaultConfig().baseLimits(), status.CurrentLimits)
	assert.Empty(t, status.Concerns)
	assert.NotEmpty(t, status.OverrideReasoning, "audit trace is always populated")
	assert.InDelta(t, 0.25, status.ResourcePressure, 1e-9)
	assert.Len(t, status.RemainingResources, 4)
	assert.Equal(t, []string{"continue the investigation normally"}, status.RecommendedActions)
	assert.Equal(t, tt.BaseTime, status.EvaluatedAt)
}

func TestManager_RevokesControlWithoutTerminating(t *testing.T) {
	m := newTestManager()

	// Critical risk revokes control, but with consumption well inside the
	// shrunk budgets nothing is fatal and nothing is exhausted.
	status := m.ValidateCurrentState(tt.State(func(s *castellan.InvestigationState) {
		s.RiskScore = 0.8
		s.DomainAttempts = map[string]int{"transactions": 1}
	}))

	assert.False(t, status.AllowsAIControl)
	assert.False(t, status.RequiresImmediateTermination,
		"revocation and termination are independent gates")
	assert.Equal(t, castellan.LevelCritical, status.Level)
}

func TestManager_TerminatesOnExhaustion(t *testing.T) {
	m := newTestManager()

	status := m.ValidateCurrentState(tt.State(func(s *castellan.InvestigationState) {
		s.ConsecutiveErrors = 5
	}))

	assert.False(t, status.AllowsAIControl)
	assert.True(t, status.RequiresImmediateTermination)
	assert.Equal(t, castellan.LevelEmergency, status.Level)
	assert.Equal(t, castellan.Limits{}, status.CurrentLimits, "emergency grants nothing")
	assert.Equal(t, "terminate the investigation and persist partial findings",
		status.RecommendedActions[0])
}

func TestManager_NilSnapshotFailsClosed(t *testing.T) {
	m := newTestManager()
	status := m.ValidateCurrentState(nil)

	assert.False(t, status.AllowsAIControl)
	assert.True(t, status.RequiresImmediateTermination)
	assert.Equal(t, castellan.LevelEmergency, status.Level)
	require.NotEmpty(t, status.Concerns)
	assert.Equal(t, ConcernSnapshotInvalid, status.Concerns[0].Kind)
}

func TestManager_PanickingLevelDetectorFailsClosed(t *testing.T) {
	m := newTestManager(WithLevelDetector(panicLevelDetector{}))
	status := m.ValidateCurrentState(tt.HealthyState())

	assert.Equal(t, castellan.LevelEmergency, status.Level)
	assert.False(t, status.AllowsAIControl)
	assert.True(t, status.RequiresImmediateTermination)

	kinds := make([]string, 0, len(status.Concerns))
	for _, concern := range status.Concerns {
		kinds = append(kinds, concern.Kind)
	}
	assert.Contains(t, kinds, ConcernStrategyDegraded)
}

func TestManager_PanickingPressureCalculatorFailsClosed(t *testing.T) {
	m := newTestManager(WithPressureCalculator(panicPressureCalculator{}))
	status := m.ValidateCurrentState(tt.HealthyState())

	// The healthy snapshot still classifies nominal; only the pressure
	// stages degrade, and their fallback reads fully exhausted.
	assert.Equal(t, castellan.LevelNominal, status.Level)
	assert.Equal(t, 1.0, status.ResourcePressure)
	assert.False(t, status.AllowsAIControl)
	assert.True(t, status.RequiresImmediateTermination)

	degraded := 0
	for _, concern := range status.Concerns {
		if concern.Kind == ConcernStrategyDegraded {
			degraded++
		}
	}
	assert.Equal(t, 2, degraded, "both pressure stages degraded")
}

func TestManager_DetailedReportAgreesWithVerdict(t *testing.T) {
	m := newTestManager()
	state := tt.State(func(s *castellan.InvestigationState) {
		s.LoopCount = 27
	})

	status := m.ValidateCurrentState(state)
	report := m.GetDetailedSafetyReport(state)

	require.NotNil(t, report.Status)
	assert.Equal(t, status.Level, report.Status.Level)
	assert.Equal(t, status.AllowsAIControl, report.Status.AllowsAIControl)
	assert.Equal(t, status.RequiresImmediateTermination, report.Status.RequiresImmediateTermination)
	assert.InDelta(t, status.ResourcePressure, report.Status.ResourcePressure, 1e-9)
}

func TestManager_DetailedReportBreakdowns(t *testing.T) {
	m := newTestManager()
	report := m.GetDetailedSafetyReport(tt.HealthyState())

	assert.InDelta(t, 0.25, report.PressureByDimension[DimDomainAttempts], 1e-9)
	assert.InDelta(t, 25.0, report.UtilizationPercent[DimDomainAttempts], 1e-9)

	// 3 loops and 5 tools over 2 minutes.
	assert.InDelta(t, 1.5, report.ConsumptionRates["loops_per_minute"], 1e-9)
	assert.InDelta(t, 2.5, report.ConsumptionRates["tools_per_minute"], 1e-9)

	assert.Equal(t, "classified level nominal", report.StrategyNotes["level_detector"])
	assert.Equal(t, "pressure 0.25, peak dimension domain_attempts", report.StrategyNotes["pressure_calculator"])
	assert.Equal(t, "all gates passed", report.StrategyNotes["control_authorizer"])
	assert.Equal(t, "no termination condition met", report.StrategyNotes["termination_checker"])
	assert.NotContains(t, report.StrategyNotes, "degraded")
	assert.Equal(t, tt.BaseTime, report.GeneratedAt)
}

func TestManager_PerformanceMetrics(t *testing.T) {
	m := newTestManager()

	assert.Zero(t, m.GetPerformanceMetrics().Validations)

	m.ValidateCurrentState(tt.HealthyState())
	m.ValidateCurrentState(nil)
	m.GetDetailedSafetyReport(tt.HealthyState())

	pm := m.GetPerformanceMetrics()
	assert.Equal(t, uint64(3), pm.Validations, "detailed reports count too")
	assert.Equal(t, tt.BaseTime, pm.LastValidationAt)
	assert.GreaterOrEqual(t, pm.MaxLatency, pm.AverageLatency)
	assert.Less(t, pm.MaxLatency, time.Second)

	m.ResetPerformanceMetrics()
	pm = m.GetPerformanceMetrics()
	assert.Zero(t, pm.Validations)
	assert.True(t, pm.LastValidationAt.IsZero())
	assert.Zero(t, pm.AverageLatency)
	assert.Zero(t, pm.MaxLatency)
}

func TestManager_ConfigureComponents(t *testing.T) {
	m := newTestManager()

	// Healthy pressure is 0.25; dropping the ceiling below it flips the
	// control verdict.
	require.True(t, m.ValidateCurrentState(tt.HealthyState()).AllowsAIControl)

	m.ConfigureComponents(map[string]any{
		"control_authorizer":  map[string]any{"denial_ceiling": 0.2},
		"unknown_component":   map[string]any{"x": 1},
		"termination_checker": "not a document",
	})

	assert.False(t, m.ValidateCurrentState(tt.HealthyState()).AllowsAIControl)
}

func TestManager_SnapshotNotMutated(t *testing.T) {
	m := newTestManager()
	state := tt.HealthyState()
	original := *state
	originalDomains := map[string]int{"transactions": 2, "devices": 1}

	m.ValidateCurrentState(state)
	m.GetDetailedSafetyReport(state)

	assert.Equal(t, original.LoopCount, state.LoopCount)
	assert.Equal(t, original.RiskScore, state.RiskScore)
	assert.Equal(t, originalDomains, state.DomainAttempts)
}
