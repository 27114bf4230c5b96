package castellan

import (
	"log/slog"
	"sync"
	"time"
)

// ExecutionContext is the per-(investigation, thread) execution ledger.
// It tracks the node call stack, the full tool-call history, and the
// elapsed time of one investigation thread against hard ceilings.
//
// Contexts are created and owned by the recursion guard; the graph runtime
// normally goes through the guard's registry-aware wrappers rather than
// holding a context directly.
//
// # Atomicity
//
// Every admission operation is a single indivisible update under one
// per-context mutex: EnterNode checks and pushes in the same critical
// section, RecordToolCall checks and appends in the same critical section.
// Two concurrent callers can therefore never both observe "allowed" and
// overshoot a ceiling. No operation blocks or leaves the ledger partially
// updated.
//
// # Invariant
//
// Depth() == len(node stack) after every operation, for all call
// sequences, including unbalanced ExitNode calls.
type ExecutionContext struct {
	mu sync.Mutex

	investigationID string
	threadID        string

	config ContextConfig
	clock  Clock
	logger *slog.Logger

	startTime time.Time

	// Ordered call stack of entered nodes. Depth is derived from its
	// length, never tracked separately.
	nodeStack []string

	// Ordered, unbounded tool-call history.
	toolCalls []ToolCall

	// Per-name tally, kept in lockstep with toolCalls so admission checks
	// stay O(1) as the history grows.
	toolCallsByName map[string]int
}

// ToolCall is one recorded external tool invocation.
type ToolCall struct {
	// Name identifies the tool.
	Name string

	// At is the clock reading when the call was recorded.
	At time.Time
}

// NewExecutionContext creates a ledger for the given investigation thread.
// Zero config fields are replaced with [DefaultContextConfig] values; a nil
// clock falls back to the system clock and a nil logger to slog.Default().
func NewExecutionContext(investigationID, threadID string, config ContextConfig, clock Clock, logger *slog.Logger) *ExecutionContext {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionContext{
		investigationID: investigationID,
		threadID:        threadID,
		config:          config.withDefaults(),
		clock:           clock,
		logger:          logger,
		startTime:       clock.Now(),
		nodeStack:       make([]string, 0),
		toolCalls:       make([]ToolCall, 0),
		toolCallsByName: make(map[string]int),
	}
}

// InvestigationID returns the investigation this ledger belongs to.
func (c *ExecutionContext) InvestigationID() string {
	return c.investigationID
}

// ThreadID returns the thread this ledger belongs to.
func (c *ExecutionContext) ThreadID() string {
	return c.threadID
}

// StartTime returns when the ledger was created.
func (c *ExecutionContext) StartTime() time.Time {
	return c.startTime
}

// Config returns the ceilings in force for this context.
func (c *ExecutionContext) Config() ContextConfig {
	return c.config
}

// Depth returns the current call-stack depth.
func (c *ExecutionContext) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodeStack)
}

// Elapsed returns the time since the ledger was created.
func (c *ExecutionContext) Elapsed() time.Duration {
	return c.clock.Now().Sub(c.startTime)
}

// -----------------------------------------------------------------------------
// Node Admission
// -----------------------------------------------------------------------------

// CanEnterNode reports whether entering the named node would be admitted
// right now. Advisory only: the stack is not modified, and a concurrent
// EnterNode may change the answer. Use EnterNode for the atomic
// check-and-push.
func (c *ExecutionContext) CanEnterNode(name string) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkEnterLocked(name)
}

// EnterNode admits and pushes the named node as one atomic unit. On any
// denial the stack is untouched.
func (c *ExecutionContext) EnterNode(name string) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()

	if adm := c.checkEnterLocked(name); !adm.Allowed() {
		c.logger.Warn("node entry denied",
			slog.String("investigation_id", c.investigationID),
			slog.String("thread_id", c.threadID),
			slog.String("node", name),
			slog.String("cause", adm.String()),
			slog.Int("depth", len(c.nodeStack)))
		return adm
	}
	c.nodeStack = append(c.nodeStack, name)
	return AdmissionAllowed
}

// ExitNode pops the named node from the stack. If the top of the stack is
// not name (an unbalanced exit, usually the wake of an upstream panic or
// error path), the mismatch is logged and absorbed: the stack is left
// unchanged and no error is raised.
func (c *ExecutionContext) ExitNode(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.nodeStack)
	if n == 0 || c.nodeStack[n-1] != name {
		top := ""
		if n > 0 {
			top = c.nodeStack[n-1]
		}
		c.logger.Warn("unbalanced node exit ignored",
			slog.String("investigation_id", c.investigationID),
			slog.String("thread_id", c.threadID),
			slog.String("node", name),
			slog.String("stack_top", top))
		return
	}
	c.nodeStack = c.nodeStack[:n-1]
}

// checkEnterLocked applies the node admission rules in order: depth
// ceiling, duration ceiling, immediate-loop heuristic. Caller holds mu.
func (c *ExecutionContext) checkEnterLocked(name string) Admission {
	if len(c.nodeStack) >= c.config.MaxDepth {
		return AdmissionDeniedDepth
	}
	if c.clock.Now().Sub(c.startTime) > c.config.MaxDuration {
		return AdmissionDeniedDuration
	}
	// Immediate-loop heuristic: deny only when the two most recent stack
	// entries both equal name. Longer oscillations (A,B,A,B,...) are left
	// to the count ceilings; widening this check would silently change
	// admission behavior.
	if n := len(c.nodeStack); n >= 2 && c.nodeStack[n-1] == name && c.nodeStack[n-2] == name {
		return AdmissionDeniedLoop
	}
	return AdmissionAllowed
}

// -----------------------------------------------------------------------------
// Tool Admission
// -----------------------------------------------------------------------------

// CanCallTool reports whether a call to the named tool would be admitted
// right now. Advisory only; use RecordToolCall for the atomic
// check-and-record.
func (c *ExecutionContext) CanCallTool(name string) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkToolLocked(name)
}

// RecordToolCall admits and records a call to the named tool as one atomic
// unit. On denial the history is untouched.
func (c *ExecutionContext) RecordToolCall(name string) Admission {
	c.mu.Lock()
	defer c.mu.Unlock()

	if adm := c.checkToolLocked(name); !adm.Allowed() {
		c.logger.Warn("tool call denied",
			slog.String("investigation_id", c.investigationID),
			slog.String("thread_id", c.threadID),
			slog.String("tool", name),
			slog.String("cause", adm.String()),
			slog.Int("total_calls", len(c.toolCalls)))
		return adm
	}
	c.toolCalls = append(c.toolCalls, ToolCall{Name: name, At: c.clock.Now()})
	c.toolCallsByName[name]++
	return AdmissionAllowed
}

// checkToolLocked applies the tool admission rules: global budget first,
// then the per-tool repeat ceiling. Caller holds mu.
func (c *ExecutionContext) checkToolLocked(name string) Admission {
	if len(c.toolCalls) >= c.config.MaxToolCalls {
		return AdmissionDeniedToolBudget
	}
	if c.toolCallsByName[name] >= c.config.ToolRepeatCeiling {
		return AdmissionDeniedToolRepeat
	}
	return AdmissionAllowed
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// ExecutionSummary is a read-only diagnostic rollup of one ledger.
type ExecutionSummary struct {
	InvestigationID string
	ThreadID        string

	// Depth and NodeStack describe the call stack at summary time.
	Depth     int
	NodeStack []string

	// ToolCallTotal and ToolCallsByName describe the recorded history.
	ToolCallTotal   int
	ToolCallsByName map[string]int

	// Elapsed and Remaining* describe budget consumption.
	Elapsed            time.Duration
	RemainingDepth     int
	RemainingToolCalls int
	RemainingDuration  time.Duration
}

// Summary returns a point-in-time diagnostic rollup. The returned slices
// and maps are copies; mutating them does not affect the ledger.
func (c *ExecutionContext) Summary() ExecutionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	stack := make([]string, len(c.nodeStack))
	copy(stack, c.nodeStack)

	byName := make(map[string]int, len(c.toolCallsByName))
	for k, v := range c.toolCallsByName {
		byName[k] = v
	}

	elapsed := c.clock.Now().Sub(c.startTime)
	remaining := c.config.MaxDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return ExecutionSummary{
		InvestigationID:    c.investigationID,
		ThreadID:           c.threadID,
		Depth:              len(c.nodeStack),
		NodeStack:          stack,
		ToolCallTotal:      len(c.toolCalls),
		ToolCallsByName:    byName,
		Elapsed:            elapsed,
		RemainingDepth:     c.config.MaxDepth - len(c.nodeStack),
		RemainingToolCalls: c.config.MaxToolCalls - len(c.toolCalls),
		RemainingDuration:  remaining,
	}
}

// ToolCalls returns a copy of the ordered tool-call history.
func (c *ExecutionContext) ToolCalls() []ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([]ToolCall, len(c.toolCalls))
	copy(calls, c.toolCalls)
	return calls
}
