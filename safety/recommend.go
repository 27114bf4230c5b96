package safety

import (
	"fmt"

	"github.com/castellan/castellan"
)

// defaultOverrideReasoner renders the audit trace for one pipeline run.
// One line per stage, in pipeline order, so an auditor can replay the
// verdict without the snapshot.
type defaultOverrideReasoner struct{}

func newOverrideReasoner() *defaultOverrideReasoner {
	return &defaultOverrideReasoner{}
}

func (r *defaultOverrideReasoner) Trace(state *castellan.InvestigationState, level castellan.SafetyLevel, limits castellan.Limits, pressure float64, concerns []castellan.Concern, controlReason, terminationReason string) []string {
	trace := make([]string, 0, 6+len(concerns))

	if state != nil {
		trace = append(trace, fmt.Sprintf(
			"classified level %s: loops=%d tools=%d domains=%d elapsed=%s risk=%.2f errors=%d",
			level, state.LoopCount, state.ToolExecutions, state.TotalDomainAttempts(),
			state.Elapsed, state.RiskScore, state.ConsecutiveErrors))
	} else {
		trace = append(trace, fmt.Sprintf("classified level %s: snapshot unavailable", level))
	}

	trace = append(trace, fmt.Sprintf(
		"budgets for %s: loops=%d tools=%d domain=%d duration=%s",
		level, limits.MaxLoops, limits.MaxToolExecutions, limits.MaxDomainAttempts, limits.MaxDuration))

	trace = append(trace, fmt.Sprintf("resource pressure %.2f", pressure))

	if len(concerns) == 0 {
		trace = append(trace, "no concerns detected")
	} else {
		trace = append(trace, fmt.Sprintf("%d concerns detected:", len(concerns)))
		for _, concern := range concerns {
			trace = append(trace, fmt.Sprintf("  [%s] %s: %s", concern.Severity, concern.Kind, concern.Message))
		}
	}

	trace = append(trace, "control decision: "+controlReason)
	trace = append(trace, "termination decision: "+terminationReason)

	return trace
}

// defaultActionRecommender folds the concerns' suggested actions with
// level-driven guidance into an ordered, deduplicated action list.
type defaultActionRecommender struct{}

func newActionRecommender() *defaultActionRecommender {
	return &defaultActionRecommender{}
}

func (r *defaultActionRecommender) Recommend(level castellan.SafetyLevel, concerns []castellan.Concern, terminate bool) []string {
	var actions []string
	seen := make(map[string]bool)

	add := func(action string) {
		if action == "" || seen[action] {
			return
		}
		seen[action] = true
		actions = append(actions, action)
	}

	if terminate {
		add("terminate the investigation and persist partial findings")
	}
	for _, concern := range concerns {
		add(concern.SuggestedAction)
	}

	switch level {
	case castellan.LevelElevated:
		add("reduce exploration breadth and focus on the strongest leads")
	case castellan.LevelCritical:
		add("checkpoint findings and prepare a scripted fallback")
	case castellan.LevelEmergency:
		add("terminate the investigation and persist partial findings")
	}

	if len(actions) == 0 {
		actions = append(actions, "continue the investigation normally")
	}
	return actions
}
