package safety

import (
	"math"

	"github.com/castellan/castellan"
)

// Dimension keys reported by the default pressure calculator and resource
// tracker.
const (
	DimLoops          = "loops"
	DimToolExecutions = "tool_executions"
	DimDomainAttempts = "domain_attempts"
	DimDuration       = "duration"
)

// defaultPressureCalculator reports the worst per-dimension utilization as
// the overall pressure. Taking the maximum rather than an average is
// deliberate: one exhausted dimension is enough to endanger the run, no
// matter how idle the others are.
type defaultPressureCalculator struct{}

func newPressureCalculator() *defaultPressureCalculator {
	return &defaultPressureCalculator{}
}

// Pressure returns the maximum dimension utilization, clamped to [0,1].
func (p *defaultPressureCalculator) Pressure(state *castellan.InvestigationState, limits castellan.Limits) float64 {
	peak := 0.0
	for _, u := range p.Dimensions(state, limits) {
		if u > peak {
			peak = u
		}
	}
	return clamp01(peak)
}

// Dimensions returns utilization per budget dimension, each in [0,1].
// A dimension whose limit is zero counts as exhausted.
func (p *defaultPressureCalculator) Dimensions(state *castellan.InvestigationState, limits castellan.Limits) map[string]float64 {
	if state == nil {
		// No snapshot, no confidence: every dimension reads exhausted.
		return map[string]float64{
			DimLoops:          1,
			DimToolExecutions: 1,
			DimDomainAttempts: 1,
			DimDuration:       1,
		}
	}

	_, maxDomain := state.MaxDomainAttempts()

	dims := map[string]float64{
		DimLoops:          utilization(float64(state.LoopCount), float64(limits.MaxLoops)),
		DimToolExecutions: utilization(float64(state.ToolExecutions), float64(limits.MaxToolExecutions)),
		DimDomainAttempts: utilization(float64(maxDomain), float64(limits.MaxDomainAttempts)),
		DimDuration:       utilization(float64(state.Elapsed), float64(limits.MaxDuration)),
	}
	return dims
}

// utilization returns used/limit clamped to [0,1], failing closed to 1 on
// a non-positive limit or a non-finite ratio.
func utilization(used, limit float64) float64 {
	if limit <= 0 {
		return 1
	}
	return clamp01(used / limit)
}

// clamp01 clamps to [0,1], mapping NaN and +Inf to 1 and -Inf to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// defaultResourceTracker reports per-dimension remainder, clamped at zero.
type defaultResourceTracker struct{}

func newResourceTracker() *defaultResourceTracker {
	return &defaultResourceTracker{}
}

// Remaining returns how much of each budget is left. The duration
// dimension is reported in seconds under "duration_seconds".
func (t *defaultResourceTracker) Remaining(state *castellan.InvestigationState, limits castellan.Limits) map[string]float64 {
	if state == nil {
		return map[string]float64{
			DimLoops:           0,
			DimToolExecutions:  0,
			DimDomainAttempts:  0,
			"duration_seconds": 0,
		}
	}

	_, maxDomain := state.MaxDomainAttempts()

	return map[string]float64{
		DimLoops:           remainder(float64(limits.MaxLoops), float64(state.LoopCount)),
		DimToolExecutions:  remainder(float64(limits.MaxToolExecutions), float64(state.ToolExecutions)),
		DimDomainAttempts:  remainder(float64(limits.MaxDomainAttempts), float64(maxDomain)),
		"duration_seconds": remainder(limits.MaxDuration.Seconds(), state.Elapsed.Seconds()),
	}
}

func remainder(limit, used float64) float64 {
	r := limit - used
	if r < 0 {
		return 0
	}
	return r
}
