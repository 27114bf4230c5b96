package castellan

import "time"

// SafetyStatus is the immutable point-in-time verdict produced by one run
// of the safety pipeline. A fresh value is built per evaluation and never
// mutated afterwards; slices and maps it carries are owned by the status
// and must not be modified by callers.
//
// All fields are always populated, regardless of findings: an empty
// Concerns slice means "no findings", never "not evaluated".
type SafetyStatus struct {
	// AllowsAIControl reports whether the autonomous planner keeps
	// decision authority. When false the caller falls back to scripted
	// behavior but may keep the run alive.
	AllowsAIControl bool

	// RequiresImmediateTermination reports whether the run must be
	// aborted. Strictly independent of AllowsAIControl so callers can
	// distinguish "fall back" from "abort".
	RequiresImmediateTermination bool

	// Level is the safety tier the run was classified into.
	Level SafetyLevel

	// CurrentLimits are the budgets in force for this tier.
	CurrentLimits Limits

	// Concerns are the ordered typed findings, most severe first within
	// each detection pass.
	Concerns []Concern

	// OverrideReasoning is the human-readable audit trace of the pipeline
	// stages that led to this verdict.
	OverrideReasoning []string

	// ResourcePressure summarizes utilization across all budget
	// dimensions relative to CurrentLimits, in [0,1]. 1.0 means at least
	// one dimension is exhausted (or could not be computed confidently).
	ResourcePressure float64

	// RemainingResources holds the per-dimension remainder, clamped at
	// zero. Keys: "loops", "tool_executions", "domain_attempts",
	// "duration_seconds".
	RemainingResources map[string]float64

	// RecommendedActions are ordered, deduplicated next-step suggestions.
	RecommendedActions []string

	// EvaluatedAt is the clock reading at the start of the evaluation.
	EvaluatedAt time.Time
}
