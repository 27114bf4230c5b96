package safety

import (
	"fmt"

	"github.com/castellan/castellan"
)

// defaultControlAuthorizer is the conservative gate over autonomous
// control. Denial conditions are ORed: any one of them revokes authority.
type defaultControlAuthorizer struct {
	cfg Config
}

func newControlAuthorizer(cfg Config) *defaultControlAuthorizer {
	return &defaultControlAuthorizer{cfg: cfg}
}

// Authorize revokes control when any concern reaches the blocking
// severity, when pressure exceeds the denial ceiling, or when the run is
// at LevelCritical or worse.
func (a *defaultControlAuthorizer) Authorize(level castellan.SafetyLevel, pressure float64, concerns []castellan.Concern) (bool, string) {
	blocking := castellan.ConcernSeverity(a.cfg.BlockingSeverity)
	for _, concern := range concerns {
		if concern.Severity >= blocking {
			return false, fmt.Sprintf("%s concern %q", concern.Severity, concern.Kind)
		}
	}
	if pressure > a.cfg.DenialCeiling {
		return false, fmt.Sprintf("resource pressure %.2f above ceiling %.2f", pressure, a.cfg.DenialCeiling)
	}
	if level >= castellan.LevelCritical {
		return false, fmt.Sprintf("safety level %s", level)
	}
	return true, "all gates passed"
}

// Configure applies recognized overrides: "denial_ceiling",
// "blocking_severity". Unknown keys are ignored.
func (a *defaultControlAuthorizer) Configure(overrides map[string]any) {
	if v, ok := toFloat(overrides["denial_ceiling"]); ok && v >= 0 && v <= 1 {
		a.cfg.DenialCeiling = v
	}
	if v, ok := toFloat(overrides["blocking_severity"]); ok {
		a.cfg.BlockingSeverity = int(v)
	}
}

// defaultTerminationChecker decides whether the run must abort. Strictly
// stricter than the authorizer: everything that terminates also revokes
// control, but most revocations leave the run alive under scripted
// behavior.
type defaultTerminationChecker struct{}

func newTerminationChecker() *defaultTerminationChecker {
	return &defaultTerminationChecker{}
}

// Check requires termination on any fatal concern, full resource
// exhaustion, or LevelEmergency.
func (t *defaultTerminationChecker) Check(level castellan.SafetyLevel, pressure float64, concerns []castellan.Concern) (bool, string) {
	for _, concern := range concerns {
		if concern.Severity >= castellan.SeverityFatal {
			return true, fmt.Sprintf("fatal concern %q", concern.Kind)
		}
	}
	if pressure >= 1 {
		return true, "resources exhausted"
	}
	if level >= castellan.LevelEmergency {
		return true, fmt.Sprintf("safety level %s", level)
	}
	return false, "no termination condition met"
}
