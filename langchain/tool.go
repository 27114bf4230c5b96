// Package langchain bridges the recursion guard into langchaingo tool
// dispatch, so planners built on langchaingo get per-call admission
// control without call-site changes.
package langchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/tools"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/guard"
)

// ErrToolDenied wraps every admission denial surfaced through a guarded
// tool, so callers can test with errors.Is regardless of the cause.
var ErrToolDenied = errors.New("castellan/langchain: tool call denied")

// GuardedTool wraps a langchaingo tool so every Call passes through guard
// admission first. A denied call returns an error naming the precise cause
// instead of executing the wrapped tool; the planner sees the denial as an
// ordinary tool failure and must pick another action.
type GuardedTool struct {
	inner           tools.Tool
	guard           *guard.RecursionGuard
	investigationID string
	threadID        string
}

// Guard wraps tool with admission control for the given investigation
// thread.
func Guard(tool tools.Tool, g *guard.RecursionGuard, investigationID, threadID string) *GuardedTool {
	return &GuardedTool{
		inner:           tool,
		guard:           g,
		investigationID: investigationID,
		threadID:        threadID,
	}
}

// Name returns the wrapped tool's name.
func (t *GuardedTool) Name() string {
	return t.inner.Name()
}

// Description returns the wrapped tool's description.
func (t *GuardedTool) Description() string {
	return t.inner.Description()
}

// Call records the tool call with the guard and, if admitted, delegates to
// the wrapped tool. The record happens before the call: a tool that fails
// after admission still consumed budget, which is the conservative
// accounting for external side effects.
func (t *GuardedTool) Call(ctx context.Context, input string) (string, error) {
	adm := t.guard.RecordToolCall(t.investigationID, t.threadID, t.inner.Name())
	if !adm.Allowed() {
		return "", fmt.Errorf("%w: %s (%s)", ErrToolDenied, t.inner.Name(), adm)
	}
	return t.inner.Call(ctx, input)
}

// Compile-time check that GuardedTool satisfies the langchaingo tool
// interface.
var _ tools.Tool = (*GuardedTool)(nil)

// Admission exposes the would-be admission for the wrapped tool without
// consuming budget, mirroring the guard's advisory CanCallTool.
func (t *GuardedTool) Admission() castellan.Admission {
	return t.guard.CanCallTool(t.investigationID, t.threadID, t.inner.Name())
}
