// Package guard implements the per-run admission control plane: a bounded,
// thread-safe registry of execution ledgers plus atomic admission operations
// over them.
//
// The graph runtime calls the guard before entering each node and before
// each tool call. The guard answers "can this step happen now"; whether the
// autonomous planner should keep decision authority at all is the safety
// package's question.
package guard

import (
	"log/slog"
	"sync"
	"time"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/metrics"
)

// DefaultMaxConcurrent is the default registry bound.
const DefaultMaxConcurrent = 10

// Key identifies one execution ledger in the registry.
type Key struct {
	InvestigationID string
	ThreadID        string
}

// Config holds configuration options for the RecursionGuard.
type Config struct {
	// MaxConcurrent bounds the registry. Context creation beyond this
	// bound fails with [castellan.ErrRegistryFull]. Zero means
	// DefaultMaxConcurrent.
	MaxConcurrent int

	// ContextConfig supplies default ceilings for newly created contexts.
	// Zero fields fall back to [castellan.DefaultContextConfig].
	ContextConfig castellan.ContextConfig

	// Clock supplies time to the guard and its contexts. Nil means the
	// system clock.
	Clock castellan.Clock

	// Logger receives admission warnings and lifecycle info. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a config with the standard bounds: 10 concurrent
// investigations and [castellan.DefaultContextConfig] ceilings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		ContextConfig: castellan.DefaultContextConfig(),
	}
}

// RecursionGuard owns the registry of execution ledgers and exposes
// registry-aware admission operations. All registry mutations (create,
// remove, sweep) happen behind one coarse mutex; per-step admission
// atomicity is provided by the per-context mutex inside
// [castellan.ExecutionContext].
//
// Construct one guard at bootstrap and inject it into the graph runtime;
// there is deliberately no package-level instance.
type RecursionGuard struct {
	mu       sync.Mutex
	contexts map[Key]*castellan.ExecutionContext

	config Config

	// Lifetime counters, reported by Stats.
	created uint64
	removed uint64
	reaped  uint64
	denials map[string]uint64
}

// New creates a RecursionGuard with the given configuration.
func New(config Config) *RecursionGuard {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if config.Clock == nil {
		config.Clock = castellan.NewSystemClock()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecursionGuard{
		contexts: make(map[Key]*castellan.ExecutionContext),
		config:   config,
		denials:  make(map[string]uint64),
	}
}

// -----------------------------------------------------------------------------
// Context Lifecycle
// -----------------------------------------------------------------------------

// CreateContext registers a new execution ledger for the given key, using
// the guard's default ceilings overridden by any non-zero field of cfg.
//
// Idempotent: if a ledger already exists for the key it is returned
// unchanged, with no counter reset, so retried setup is harmless. Returns
// [castellan.ErrRegistryFull] only when the registry already holds
// MaxConcurrent keys.
func (g *RecursionGuard) CreateContext(investigationID, threadID string, cfg castellan.ContextConfig) (*castellan.ExecutionContext, error) {
	key := Key{InvestigationID: investigationID, ThreadID: threadID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.contexts[key]; ok {
		return existing, nil
	}
	if len(g.contexts) >= g.config.MaxConcurrent {
		g.config.Logger.Warn("context registry full",
			slog.String("investigation_id", investigationID),
			slog.String("thread_id", threadID),
			slog.Int("max_concurrent", g.config.MaxConcurrent))
		return nil, castellan.ErrRegistryFull
	}

	execCtx := castellan.NewExecutionContext(
		investigationID, threadID,
		g.mergeConfig(cfg), g.config.Clock, g.config.Logger)
	g.contexts[key] = execCtx
	g.created++

	metrics.ContextsCreatedTotal.Inc()
	metrics.ActiveContexts.Set(float64(len(g.contexts)))

	g.config.Logger.Info("execution context created",
		slog.String("investigation_id", investigationID),
		slog.String("thread_id", threadID),
		slog.Int("active", len(g.contexts)))
	return execCtx, nil
}

// Context returns the registered ledger for the key, or (nil, false).
func (g *RecursionGuard) Context(investigationID, threadID string) (*castellan.ExecutionContext, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	execCtx, ok := g.contexts[Key{InvestigationID: investigationID, ThreadID: threadID}]
	return execCtx, ok
}

// RemoveContext evicts the ledger for the key. Returns false when no such
// ledger exists. Removal is terminal: a later CreateContext for the same
// key starts an independent ledger with fresh counters.
func (g *RecursionGuard) RemoveContext(investigationID, threadID string) bool {
	key := Key{InvestigationID: investigationID, ThreadID: threadID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.contexts[key]; !ok {
		return false
	}
	delete(g.contexts, key)
	g.removed++

	metrics.ContextsRemovedTotal.WithLabelValues("explicit").Inc()
	metrics.ActiveContexts.Set(float64(len(g.contexts)))
	return true
}

// CleanupStale evicts every ledger whose age exceeds maxAge, irrespective
// of completion state, and returns the number evicted. This bounds registry
// memory when a caller crashed before RemoveContext.
func (g *RecursionGuard) CleanupStale(maxAge time.Duration) int {
	now := g.config.Clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	reaped := 0
	for key, execCtx := range g.contexts {
		if now.Sub(execCtx.StartTime()) <= maxAge {
			continue
		}
		delete(g.contexts, key)
		g.reaped++
		reaped++
		metrics.ContextsRemovedTotal.WithLabelValues("stale").Inc()
		g.config.Logger.Warn("stale execution context reaped",
			slog.String("investigation_id", key.InvestigationID),
			slog.String("thread_id", key.ThreadID),
			slog.Duration("age", now.Sub(execCtx.StartTime())))
	}
	if reaped > 0 {
		metrics.ActiveContexts.Set(float64(len(g.contexts)))
	}
	return reaped
}

// mergeConfig overlays non-zero fields of cfg on the guard defaults.
func (g *RecursionGuard) mergeConfig(cfg castellan.ContextConfig) castellan.ContextConfig {
	merged := g.config.ContextConfig
	if cfg.MaxDepth > 0 {
		merged.MaxDepth = cfg.MaxDepth
	}
	if cfg.MaxToolCalls > 0 {
		merged.MaxToolCalls = cfg.MaxToolCalls
	}
	if cfg.MaxDuration > 0 {
		merged.MaxDuration = cfg.MaxDuration
	}
	if cfg.ToolRepeatCeiling > 0 {
		merged.ToolRepeatCeiling = cfg.ToolRepeatCeiling
	}
	return merged
}

// -----------------------------------------------------------------------------
// Registry-Aware Admission
// -----------------------------------------------------------------------------

// CanEnterNode reports whether the named node may be entered on the given
// thread. Returns [castellan.AdmissionNoContext] (never an error) when the
// key is unregistered.
func (g *RecursionGuard) CanEnterNode(investigationID, threadID, node string) castellan.Admission {
	execCtx, ok := g.Context(investigationID, threadID)
	if !ok {
		return g.noContext("can_enter_node", investigationID, threadID)
	}
	return g.observe("can_enter_node", execCtx.CanEnterNode(node))
}

// EnterNode atomically admits and pushes the named node.
func (g *RecursionGuard) EnterNode(investigationID, threadID, node string) castellan.Admission {
	execCtx, ok := g.Context(investigationID, threadID)
	if !ok {
		return g.noContext("enter_node", investigationID, threadID)
	}
	return g.observe("enter_node", execCtx.EnterNode(node))
}

// ExitNode pops the named node. A missing context or unbalanced exit is
// logged and absorbed; ExitNode never fails.
func (g *RecursionGuard) ExitNode(investigationID, threadID, node string) {
	execCtx, ok := g.Context(investigationID, threadID)
	if !ok {
		g.noContext("exit_node", investigationID, threadID)
		return
	}
	execCtx.ExitNode(node)
}

// CanCallTool reports whether the named tool may be called on the given
// thread.
func (g *RecursionGuard) CanCallTool(investigationID, threadID, tool string) castellan.Admission {
	execCtx, ok := g.Context(investigationID, threadID)
	if !ok {
		return g.noContext("can_call_tool", investigationID, threadID)
	}
	return g.observe("can_call_tool", execCtx.CanCallTool(tool))
}

// RecordToolCall atomically admits and records a call to the named tool.
func (g *RecursionGuard) RecordToolCall(investigationID, threadID, tool string) castellan.Admission {
	execCtx, ok := g.Context(investigationID, threadID)
	if !ok {
		return g.noContext("record_tool_call", investigationID, threadID)
	}
	return g.observe("record_tool_call", execCtx.RecordToolCall(tool))
}

// observe records the admission outcome in the guard counters and metrics.
func (g *RecursionGuard) observe(operation string, adm castellan.Admission) castellan.Admission {
	metrics.AdmissionsTotal.WithLabelValues(operation, adm.String()).Inc()
	if !adm.Allowed() {
		g.mu.Lock()
		g.denials[adm.String()]++
		g.mu.Unlock()
	}
	return adm
}

// noContext logs and counts an operation against an unregistered key.
func (g *RecursionGuard) noContext(operation, investigationID, threadID string) castellan.Admission {
	g.config.Logger.Warn("guard called for unregistered context",
		slog.String("operation", operation),
		slog.String("investigation_id", investigationID),
		slog.String("thread_id", threadID))
	return g.observe(operation, castellan.AdmissionNoContext)
}

// -----------------------------------------------------------------------------
// Observability
// -----------------------------------------------------------------------------

// SystemStats is an aggregate snapshot of guard activity.
type SystemStats struct {
	// ActiveContexts is the number of ledgers currently registered.
	ActiveContexts int

	// MaxConcurrent is the registry bound.
	MaxConcurrent int

	// ContextsCreated, ContextsRemoved, and ContextsReaped are lifetime
	// counters. Reaped counts stale sweeps only; Removed counts explicit
	// removals only.
	ContextsCreated uint64
	ContextsRemoved uint64
	ContextsReaped  uint64

	// TotalDepth and TotalToolCalls sum across active ledgers.
	TotalDepth     int
	TotalToolCalls int

	// DenialsByCause counts every denied admission by cause label.
	DenialsByCause map[string]uint64
}

// Stats returns an aggregate snapshot for observability.
func (g *RecursionGuard) Stats() SystemStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := SystemStats{
		ActiveContexts:  len(g.contexts),
		MaxConcurrent:   g.config.MaxConcurrent,
		ContextsCreated: g.created,
		ContextsRemoved: g.removed,
		ContextsReaped:  g.reaped,
		DenialsByCause:  make(map[string]uint64, len(g.denials)),
	}
	for cause, n := range g.denials {
		stats.DenialsByCause[cause] = n
	}
	for _, execCtx := range g.contexts {
		summary := execCtx.Summary()
		stats.TotalDepth += summary.Depth
		stats.TotalToolCalls += summary.ToolCallTotal
	}
	return stats
}
