package castellan

import "time"

// StateSchemaVersion is the current InvestigationState schema version.
// Assessors fail closed when handed a snapshot with a version they do not
// recognize.
const StateSchemaVersion = 1

// InvestigationState is a read-only snapshot of one autonomous run, taken
// by the graph runtime at the moment of evaluation. The control plane never
// mutates it.
//
// Every counter an assessor consumes is a named field, so the nine-stage
// safety pipeline is checked at compile time instead of duck-typing its way
// through a dynamic state bag.
type InvestigationState struct {
	// SchemaVersion identifies the snapshot layout. Current version is
	// [StateSchemaVersion].
	SchemaVersion int

	// InvestigationID identifies the run this snapshot describes.
	InvestigationID string

	// LoopCount is the number of planner decision loops completed so far.
	LoopCount int

	// ToolExecutions is the total number of external tool calls issued.
	ToolExecutions int

	// DomainAttempts counts lookup attempts per external domain
	// (e.g. "transactions", "devices", "merchant_history").
	DomainAttempts map[string]int

	// Elapsed is wall-clock time since the run started.
	Elapsed time.Duration

	// RiskScore is the rolling risk score in [0,1] maintained by the
	// scoring subsystem. The control plane treats it as an opaque signal.
	RiskScore float64

	// ConsecutiveErrors is the current run of back-to-back failed steps.
	ConsecutiveErrors int

	// ActiveThreads is the number of threads currently executing under
	// this investigation.
	ActiveThreads int
}

// TotalDomainAttempts returns the sum of attempts across all domains.
func (s *InvestigationState) TotalDomainAttempts() int {
	total := 0
	for _, n := range s.DomainAttempts {
		total += n
	}
	return total
}

// MaxDomainAttempts returns the highest attempt count for any single domain
// and that domain's name. Returns ("", 0) when no attempts were recorded.
func (s *InvestigationState) MaxDomainAttempts() (string, int) {
	name, max := "", 0
	for d, n := range s.DomainAttempts {
		if n > max || (n == max && max > 0 && d < name) {
			name, max = d, n
		}
	}
	return name, max
}
