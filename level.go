package castellan

// SafetyLevel is an ordered classification of how much caution the current
// run requires. Higher values are worse; comparisons with >= are meaningful.
type SafetyLevel int

const (
	// LevelNominal indicates the run is well inside all budgets.
	LevelNominal SafetyLevel = iota

	// LevelElevated indicates the run is consuming budgets faster than
	// expected or showing early warning signals.
	LevelElevated

	// LevelCritical indicates at least one budget dimension is close to
	// exhaustion or the risk signal is high. Autonomous control is
	// typically revoked at this tier.
	LevelCritical

	// LevelEmergency indicates budgets are exhausted or the snapshot could
	// not be assessed confidently. The run should be terminated.
	LevelEmergency
)

// String returns a stable lowercase label, used in logs and audit traces.
func (l SafetyLevel) String() string {
	switch l {
	case LevelNominal:
		return "nominal"
	case LevelElevated:
		return "elevated"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}
