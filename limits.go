package castellan

import "time"

// Limits is the budget record the safety pipeline computes for the current
// safety level. These are the planner-facing budgets; the guard's per-context
// ceilings ([ContextConfig]) are an independent, lower-level line of defense
// and are never derived from Limits.
type Limits struct {
	// MaxLoops is the maximum number of planner decision loops.
	MaxLoops int

	// MaxToolExecutions is the maximum total number of tool calls.
	MaxToolExecutions int

	// MaxDomainAttempts is the maximum lookup attempts against any single
	// external domain.
	MaxDomainAttempts int

	// MaxDuration is the maximum wall-clock time for the run.
	MaxDuration time.Duration
}

// ContextConfig holds the hard per-context ceilings enforced by the
// recursion guard. Zero values are replaced with defaults at context
// creation.
type ContextConfig struct {
	// MaxDepth is the maximum call-stack depth.
	MaxDepth int

	// MaxToolCalls is the maximum total number of recorded tool calls.
	MaxToolCalls int

	// MaxDuration is the maximum elapsed time before all node entries are
	// denied. Compared against a stored start time, never a timer.
	MaxDuration time.Duration

	// ToolRepeatCeiling is the maximum number of calls to any single tool.
	ToolRepeatCeiling int
}

// DefaultContextConfig returns the standard per-context ceilings:
// depth 10, 20 tool calls, 5 minutes, 5 calls per individual tool.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxDepth:          10,
		MaxToolCalls:      20,
		MaxDuration:       300 * time.Second,
		ToolRepeatCeiling: 5,
	}
}

// withDefaults fills zero fields from DefaultContextConfig.
func (c ContextConfig) withDefaults() ContextConfig {
	def := DefaultContextConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.MaxToolCalls <= 0 {
		c.MaxToolCalls = def.MaxToolCalls
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = def.MaxDuration
	}
	if c.ToolRepeatCeiling <= 0 {
		c.ToolRepeatCeiling = def.ToolRepeatCeiling
	}
	return c
}
