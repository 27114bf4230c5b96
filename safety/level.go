package safety

import (
	"github.com/castellan/castellan"
)

// defaultLevelDetector classifies snapshots into tiers by comparing budget
// consumption, the risk signal, and the consecutive-error run against the
// configured triggers, worst tier first.
type defaultLevelDetector struct {
	cfg Config
}

// newLevelDetector creates the default detector for the given thresholds.
func newLevelDetector(cfg Config) *defaultLevelDetector {
	return &defaultLevelDetector{cfg: cfg}
}

// Detect classifies the snapshot. A nil snapshot or an unrecognized schema
// version cannot be assessed confidently and fails closed to
// LevelEmergency.
func (d *defaultLevelDetector) Detect(state *castellan.InvestigationState) castellan.SafetyLevel {
	if state == nil || state.SchemaVersion != castellan.StateSchemaVersion {
		return castellan.LevelEmergency
	}

	switch {
	case d.triggered(state, d.cfg.Levels.Emergency):
		return castellan.LevelEmergency
	case d.triggered(state, d.cfg.Levels.Critical):
		return castellan.LevelCritical
	case d.triggered(state, d.cfg.Levels.Elevated):
		return castellan.LevelElevated
	default:
		return castellan.LevelNominal
	}
}

// triggered reports whether any dimension of the trigger fires.
func (d *defaultLevelDetector) triggered(state *castellan.InvestigationState, trig TriggerConfig) bool {
	base := d.cfg.BaseLimits

	if trig.BudgetFraction > 0 {
		if fraction(state.LoopCount, base.MaxLoops) >= trig.BudgetFraction {
			return true
		}
		if fraction(state.ToolExecutions, base.MaxToolExecutions) >= trig.BudgetFraction {
			return true
		}
		if _, max := state.MaxDomainAttempts(); fraction(max, base.MaxDomainAttempts) >= trig.BudgetFraction {
			return true
		}
		if base.MaxDuration() > 0 &&
			float64(state.Elapsed)/float64(base.MaxDuration()) >= trig.BudgetFraction {
			return true
		}
	}
	if trig.RiskScore > 0 && state.RiskScore >= trig.RiskScore {
		return true
	}
	if trig.ConsecutiveErrors > 0 && state.ConsecutiveErrors >= trig.ConsecutiveErrors {
		return true
	}
	return false
}

// fraction returns used/limit, treating a non-positive limit as exhausted.
func fraction(used, limit int) float64 {
	if limit <= 0 {
		return 1
	}
	return float64(used) / float64(limit)
}

// Configure applies recognized overrides: "risk_score_critical",
// "risk_score_emergency". Unknown keys are ignored.
func (d *defaultLevelDetector) Configure(overrides map[string]any) {
	if v, ok := toFloat(overrides["risk_score_critical"]); ok {
		d.cfg.Levels.Critical.RiskScore = v
	}
	if v, ok := toFloat(overrides["risk_score_emergency"]); ok {
		d.cfg.Levels.Emergency.RiskScore = v
	}
}

// toFloat accepts the numeric types a decoded override document may carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
