// Package safety implements the safety-verdict orchestrator: a fixed
// nine-stage pipeline that decides whether the autonomous planner keeps
// decision authority over an investigation.
//
// The recursion guard answers "can this step happen now". This package
// answers the independent, higher-level question: "should the planner still
// be trusted at all". A [Manager] composes nine strategy components — level
// detection, dynamic budgets, pressure calculation, concern detection,
// control authorization, termination checking, audit reasoning, resource
// tracking, and action recommendation — into one synchronous, pure
// evaluation over a read-only investigation snapshot, producing an
// immutable [castellan.SafetyStatus].
//
// Every strategy must be total over its documented domain. A strategy that
// cannot answer confidently fails closed to the safest value (pressure 1.0,
// control denied) rather than propagating a failure: losing one signal must
// never crash the evaluation, because the control plane must not become a
// new source of crashes for the system it protects.
//
// All thresholds are configuration ([Config]), loadable from YAML and
// validated against an embedded JSON Schema. Strategies can be swapped via
// Manager options and tuned at runtime via [Manager.ConfigureComponents].
package safety
