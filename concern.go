package castellan

// ConcernSeverity is an ordered severity scale for safety concerns.
type ConcernSeverity int

const (
	// SeverityInfo is an observation with no effect on control.
	SeverityInfo ConcernSeverity = iota

	// SeverityWarning indicates budgets are being consumed abnormally but
	// autonomous control may continue.
	SeverityWarning

	// SeverityBlocking indicates autonomous control must be revoked; the
	// caller falls back to scripted behavior.
	SeverityBlocking

	// SeverityFatal indicates the run must terminate immediately.
	SeverityFatal
)

// String returns a stable lowercase label.
func (s ConcernSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityBlocking:
		return "blocking"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Concern is a single typed finding produced by the concern detector.
// The set of kinds is additive: detectors may emit kinds this package does
// not know about, and consumers must tolerate unknown kinds.
type Concern struct {
	// Kind is a stable machine-readable identifier, e.g. "loop_budget",
	// "tool_budget", "domain_hammering", "runtime", "risk_score",
	// "strategy_degraded".
	Kind string

	// Severity orders the concern on the [ConcernSeverity] scale.
	Severity ConcernSeverity

	// Message is a human-readable description for audit traces.
	Message string

	// SuggestedAction is a short next-step suggestion fed to the action
	// recommender, e.g. "narrow the investigation scope".
	SuggestedAction string
}
