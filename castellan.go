// Package castellan provides the execution-safety control plane for
// autonomous, graph-structured investigations.
//
// An autonomous planner that decides its own next step needs two independent
// lines of defense:
//
//  1. Per-step admission control: before every node entry or tool call, the
//     graph runtime asks a [guard.RecursionGuard] whether the step may happen
//     now. The guard tracks a per-(investigation, thread) ledger
//     ([ExecutionContext]) of call-stack depth, tool-call history, and
//     elapsed time against hard ceilings.
//
//  2. Authority arbitration: independently of individual steps, the runtime
//     asks a safety.Manager whether the planner should still be trusted at
//     all. The manager runs a fixed nine-stage pipeline over a read-only
//     [InvestigationState] snapshot and produces an immutable [SafetyStatus]
//     verdict: the planner keeps control, falls back to scripted behavior,
//     or the run must terminate.
//
// # Quick Start
//
//	g := guard.New(guard.DefaultConfig())
//	execCtx, err := g.CreateContext("inv-1", "t-1", castellan.ContextConfig{})
//	if err != nil {
//	    // registry full; shed load or wait
//	}
//
//	if adm := g.EnterNode("inv-1", "t-1", "plan"); !adm.Allowed() {
//	    // adm tells you exactly why: depth, loop, duration, ...
//	}
//	defer g.ExitNode("inv-1", "t-1", "plan")
//
//	mgr := safety.NewManager()
//	status := mgr.ValidateCurrentState(snapshot)
//	if status.RequiresImmediateTermination {
//	    g.RemoveContext("inv-1", "t-1")
//	}
//
// This root package holds the shared data model: the ledger, the state
// snapshot, the verdict, budgets, concerns, and the tagged [Admission]
// result. The guard and safety subpackages hold behavior.
//
// The control plane never mutates investigation state, never blocks, and
// never becomes a new source of crashes for the system it protects: the
// only operation that returns an error is context creation against a full
// registry; everything else reports denial through [Admission] values and
// absorbs caller mistakes (such as unbalanced exits) with a logged warning.
package castellan
