package safety

import (
	"fmt"

	"github.com/castellan/castellan"
)

// Concern kinds emitted by the default detector. The set is additive —
// consumers must tolerate kinds they do not recognize.
const (
	ConcernLoopBudget        = "loop_budget"
	ConcernToolBudget        = "tool_budget"
	ConcernDomainHammering   = "domain_hammering"
	ConcernRuntime           = "runtime"
	ConcernRiskScore         = "risk_score"
	ConcernConsecutiveErrors = "consecutive_errors"
	ConcernSnapshotInvalid   = "snapshot_invalid"
	ConcernStrategyDegraded  = "strategy_degraded"
)

// warnFraction is the utilization at which a budget dimension starts
// producing warnings. Exhaustion (>= 1.0) escalates to blocking.
const warnFraction = 0.8

// defaultConcernDetector derives ordered findings from the snapshot,
// the current limits, and the per-dimension utilization. The emission
// order is fixed (budgets, domains, runtime, risk, errors) so audit
// traces are stable across runs.
type defaultConcernDetector struct {
	cfg Config
}

func newConcernDetector(cfg Config) *defaultConcernDetector {
	return &defaultConcernDetector{cfg: cfg}
}

// Detect returns the findings for the snapshot. A nil snapshot produces a
// single fatal snapshot_invalid concern.
func (d *defaultConcernDetector) Detect(state *castellan.InvestigationState, level castellan.SafetyLevel, limits castellan.Limits, dims map[string]float64) []castellan.Concern {
	if state == nil || state.SchemaVersion != castellan.StateSchemaVersion {
		return []castellan.Concern{{
			Kind:            ConcernSnapshotInvalid,
			Severity:        castellan.SeverityFatal,
			Message:         "investigation snapshot is missing or has an unrecognized schema version",
			SuggestedAction: "terminate the investigation and report a runtime defect",
		}}
	}

	var concerns []castellan.Concern

	concerns = appendBudgetConcern(concerns, ConcernLoopBudget, dims[DimLoops],
		fmt.Sprintf("planner loops at %d of %d", state.LoopCount, limits.MaxLoops),
		"conclude the investigation with findings gathered so far")

	concerns = appendBudgetConcern(concerns, ConcernToolBudget, dims[DimToolExecutions],
		fmt.Sprintf("tool executions at %d of %d", state.ToolExecutions, limits.MaxToolExecutions),
		"stop issuing tool calls and synthesize existing evidence")

	if domain, max := state.MaxDomainAttempts(); max > 0 {
		concerns = appendBudgetConcern(concerns, ConcernDomainHammering, dims[DimDomainAttempts],
			fmt.Sprintf("domain %q queried %d of %d times", domain, max, limits.MaxDomainAttempts),
			"rotate to a different evidence domain")
	}

	concerns = appendBudgetConcern(concerns, ConcernRuntime, dims[DimDuration],
		fmt.Sprintf("elapsed %s of %s", state.Elapsed, limits.MaxDuration),
		"wrap up before the time budget lapses")

	if state.RiskScore >= d.cfg.Levels.Emergency.RiskScore {
		concerns = append(concerns, castellan.Concern{
			Kind:            ConcernRiskScore,
			Severity:        castellan.SeverityBlocking,
			Message:         fmt.Sprintf("risk score %.2f at emergency threshold", state.RiskScore),
			SuggestedAction: "escalate to a human analyst",
		})
	} else if state.RiskScore >= d.cfg.Levels.Critical.RiskScore {
		concerns = append(concerns, castellan.Concern{
			Kind:            ConcernRiskScore,
			Severity:        castellan.SeverityWarning,
			Message:         fmt.Sprintf("risk score %.2f above critical threshold", state.RiskScore),
			SuggestedAction: "prioritize corroborating the risk signal",
		})
	}

	if state.ConsecutiveErrors >= d.cfg.Levels.Emergency.ConsecutiveErrors {
		concerns = append(concerns, castellan.Concern{
			Kind:            ConcernConsecutiveErrors,
			Severity:        castellan.SeverityFatal,
			Message:         fmt.Sprintf("%d consecutive failed steps", state.ConsecutiveErrors),
			SuggestedAction: "terminate the investigation and persist partial findings",
		})
	} else if state.ConsecutiveErrors >= d.cfg.Levels.Critical.ConsecutiveErrors {
		concerns = append(concerns, castellan.Concern{
			Kind:            ConcernConsecutiveErrors,
			Severity:        castellan.SeverityWarning,
			Message:         fmt.Sprintf("%d consecutive failed steps", state.ConsecutiveErrors),
			SuggestedAction: "switch to a previously successful tool or domain",
		})
	}

	return concerns
}

// appendBudgetConcern maps a dimension's utilization onto the standard
// budget severity ladder: >= 1.0 blocking, >= warnFraction warning,
// otherwise no concern.
func appendBudgetConcern(concerns []castellan.Concern, kind string, util float64, message, action string) []castellan.Concern {
	switch {
	case util >= 1:
		return append(concerns, castellan.Concern{
			Kind:            kind,
			Severity:        castellan.SeverityBlocking,
			Message:         message + " (exhausted)",
			SuggestedAction: action,
		})
	case util >= warnFraction:
		return append(concerns, castellan.Concern{
			Kind:            kind,
			Severity:        castellan.SeverityWarning,
			Message:         message,
			SuggestedAction: action,
		})
	default:
		return concerns
	}
}
