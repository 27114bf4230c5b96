package safety

import "github.com/castellan/castellan"

// LevelDetector classifies the severity tier a snapshot belongs to.
// Implementations must be pure and read-only over the snapshot.
type LevelDetector interface {
	// Detect returns the safety level for the snapshot. Implementations
	// unable to classify confidently must return the worst applicable
	// level rather than fail.
	Detect(state *castellan.InvestigationState) castellan.SafetyLevel
}

// LimitsCalculator computes the budgets in force for a safety level.
// This is the only place planner budgets are computed; the guard's
// per-context ceilings are an independent lower-level line of defense.
type LimitsCalculator interface {
	// Calculate returns the budgets for the level. Budgets must shrink
	// (never grow) as the level worsens.
	Calculate(level castellan.SafetyLevel) castellan.Limits
}

// PressureCalculator summarizes utilization across budget dimensions.
type PressureCalculator interface {
	// Pressure returns a scalar in [0,1] summarizing utilization relative
	// to limits. 1.0 means at least one dimension is exhausted.
	Pressure(state *castellan.InvestigationState, limits castellan.Limits) float64

	// Dimensions returns per-dimension utilization in [0,1]. Keys:
	// "loops", "tool_executions", "domain_attempts", "duration".
	Dimensions(state *castellan.InvestigationState, limits castellan.Limits) map[string]float64
}

// ConcernDetector produces the ordered, typed findings for a snapshot.
// The finding set is additive: new kinds may appear without breaking
// consumers.
type ConcernDetector interface {
	Detect(state *castellan.InvestigationState, level castellan.SafetyLevel, limits castellan.Limits, dimensions map[string]float64) []castellan.Concern
}

// ControlAuthorizer decides whether the planner keeps decision authority.
type ControlAuthorizer interface {
	// Authorize returns the decision plus a short reason for the audit
	// trace. Any concern at or above the blocking severity, or pressure
	// above the configured ceiling, must deny.
	Authorize(level castellan.SafetyLevel, pressure float64, concerns []castellan.Concern) (allowed bool, reason string)
}

// TerminationChecker decides whether the run must abort, independently of
// and strictly stricter than control authorization, so callers can
// distinguish "fall back to scripted behavior" from "abort".
type TerminationChecker interface {
	Check(level castellan.SafetyLevel, pressure float64, concerns []castellan.Concern) (terminate bool, reason string)
}

// OverrideReasoner renders the human-readable audit trace of the pipeline.
type OverrideReasoner interface {
	Trace(state *castellan.InvestigationState, level castellan.SafetyLevel, limits castellan.Limits, pressure float64, concerns []castellan.Concern, controlReason, terminationReason string) []string
}

// ResourceTracker estimates per-dimension remaining budget, clamped at
// zero. Keys match PressureCalculator dimensions, durations reported as
// "duration_seconds".
type ResourceTracker interface {
	Remaining(state *castellan.InvestigationState, limits castellan.Limits) map[string]float64
}

// ActionRecommender produces ordered, deduplicated next-step suggestions.
type ActionRecommender interface {
	Recommend(level castellan.SafetyLevel, concerns []castellan.Concern, terminate bool) []string
}

// Configurable is implemented by strategies that accept named runtime
// overrides via [Manager.ConfigureComponents]. Overrides are forwarded
// verbatim; implementations ignore keys they do not recognize.
type Configurable interface {
	Configure(overrides map[string]any)
}
