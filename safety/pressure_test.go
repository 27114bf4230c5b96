package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/tt"
)

func baseLimitsForTest() castellan.Limits {
	return DefaultConfig().baseLimits()
}

func TestPressureCalculator_Dimensions(t *testing.T) {
	calc := newPressureCalculator()

	t.Run("healthy snapshot", func(t *testing.T) {
		dims := calc.Dimensions(tt.HealthyState(), baseLimitsForTest())

		assert.InDelta(t, 0.1, dims[DimLoops], 1e-9)
		assert.InDelta(t, 5.0/60.0, dims[DimToolExecutions], 1e-9)
		assert.InDelta(t, 0.25, dims[DimDomainAttempts], 1e-9)
		assert.InDelta(t, 2.0/15.0, dims[DimDuration], 1e-9)
	})

	t.Run("nil snapshot reads exhausted", func(t *testing.T) {
		dims := calc.Dimensions(nil, baseLimitsForTest())
		for dim, util := range dims {
			assert.Equal(t, 1.0, util, dim)
		}
	})

	t.Run("zero limit reads exhausted", func(t *testing.T) {
		dims := calc.Dimensions(tt.HealthyState(), castellan.Limits{})
		for dim, util := range dims {
			assert.Equal(t, 1.0, util, dim)
		}
	})

	t.Run("overshoot clamps to one", func(t *testing.T) {
		state := tt.State(func(s *castellan.InvestigationState) {
			s.LoopCount = 45
		})
		dims := calc.Dimensions(state, baseLimitsForTest())
		assert.Equal(t, 1.0, dims[DimLoops])
	})
}

func TestPressureCalculator_Pressure(t *testing.T) {
	calc := newPressureCalculator()

	// The hammered-domain dimension dominates the healthy snapshot.
	pressure := calc.Pressure(tt.HealthyState(), baseLimitsForTest())
	assert.InDelta(t, 0.25, pressure, 1e-9)

	state := tt.State(func(s *castellan.InvestigationState) {
		s.Elapsed = 12 * time.Minute
	})
	assert.InDelta(t, 0.8, calc.Pressure(state, baseLimitsForTest()), 1e-9)

	assert.Equal(t, 1.0, calc.Pressure(nil, baseLimitsForTest()))
}

func TestResourceTracker_Remaining(t *testing.T) {
	tracker := newResourceTracker()

	t.Run("healthy snapshot", func(t *testing.T) {
		remaining := tracker.Remaining(tt.HealthyState(), baseLimitsForTest())

		assert.Equal(t, 27.0, remaining[DimLoops])
		assert.Equal(t, 55.0, remaining[DimToolExecutions])
		assert.Equal(t, 6.0, remaining[DimDomainAttempts])
		assert.Equal(t, 780.0, remaining["duration_seconds"])
	})

	t.Run("overshoot clamps at zero", func(t *testing.T) {
		state := tt.State(func(s *castellan.InvestigationState) {
			s.LoopCount = 45
		})
		remaining := tracker.Remaining(state, baseLimitsForTest())
		assert.Equal(t, 0.0, remaining[DimLoops])
	})

	t.Run("nil snapshot leaves nothing", func(t *testing.T) {
		remaining := tracker.Remaining(nil, baseLimitsForTest())
		for dim, left := range remaining {
			assert.Equal(t, 0.0, left, dim)
		}
	})
}
