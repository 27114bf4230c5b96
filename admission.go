package castellan

// Admission is the tagged result of an admission check. Callers branch on
// the precise denial cause instead of string-matching log output.
//
// Denials are normal control flow, not errors: a denied step means the
// planner must pick another action or stop, never that the guard failed.
type Admission int

const (
	// AdmissionAllowed indicates the step may proceed.
	AdmissionAllowed Admission = iota

	// AdmissionDeniedDepth indicates the call stack is at MaxDepth.
	AdmissionDeniedDepth

	// AdmissionDeniedLoop indicates the two most recent stack entries both
	// equal the requested node: an immediate self-loop.
	AdmissionDeniedLoop

	// AdmissionDeniedDuration indicates elapsed time exceeds MaxDuration.
	AdmissionDeniedDuration

	// AdmissionDeniedToolBudget indicates the total tool-call budget is spent.
	AdmissionDeniedToolBudget

	// AdmissionDeniedToolRepeat indicates this specific tool hit its
	// per-tool repeat ceiling.
	AdmissionDeniedToolRepeat

	// AdmissionNoContext indicates no ExecutionContext is registered for the
	// requested (investigation, thread) key. Recoverable by re-creating.
	AdmissionNoContext
)

// Allowed reports whether the step may proceed.
func (a Admission) Allowed() bool {
	return a == AdmissionAllowed
}

// String returns a stable lowercase label, used in logs and metrics.
func (a Admission) String() string {
	switch a {
	case AdmissionAllowed:
		return "allowed"
	case AdmissionDeniedDepth:
		return "denied_depth"
	case AdmissionDeniedLoop:
		return "denied_loop"
	case AdmissionDeniedDuration:
		return "denied_duration"
	case AdmissionDeniedToolBudget:
		return "denied_tool_budget"
	case AdmissionDeniedToolRepeat:
		return "denied_tool_repeat"
	case AdmissionNoContext:
		return "no_context"
	default:
		return "unknown"
	}
}
