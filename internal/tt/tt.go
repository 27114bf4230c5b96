// Package tt provides shared helpers for tests: snapshot builders, a
// fixed clock, a discard logger, and diff-based assertions for multi-line
// audit traces.
package tt

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"

	"github.com/castellan/castellan"
)

// BaseTime is the fixed clock origin used across tests.
var BaseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// Clock returns a MockClock fixed at BaseTime.
func Clock() *castellan.MockClock {
	return castellan.NewMockClock(BaseTime)
}

// DiscardLogger returns a logger that drops everything. Tests that assert
// on log output should build their own handler instead.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// HealthyState returns a snapshot well inside every default budget.
func HealthyState() *castellan.InvestigationState {
	return &castellan.InvestigationState{
		SchemaVersion:   castellan.StateSchemaVersion,
		InvestigationID: "inv-1",
		LoopCount:       3,
		ToolExecutions:  5,
		DomainAttempts:  map[string]int{"transactions": 2, "devices": 1},
		Elapsed:         2 * time.Minute,
		RiskScore:       0.2,
		ActiveThreads:   1,
	}
}

// State returns HealthyState mutated by mut. Pass nil for the plain
// healthy snapshot.
func State(mut func(*castellan.InvestigationState)) *castellan.InvestigationState {
	state := HealthyState()
	if mut != nil {
		mut(state)
	}
	return state
}

// AssertLinesEqual compares multi-line sequences and reports mismatches as
// a unified diff, which reads far better than testify's default slice dump
// for audit traces.
func AssertLinesEqual(t *testing.T, expected, actual []string, msgAndArgs ...any) bool {
	t.Helper()
	if assert.ObjectsAreEqual(expected, actual) {
		return true
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(expected, "\n")),
		B:        difflib.SplitLines(strings.Join(actual, "\n")),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		diff = "(diff unavailable: " + err.Error() + ")"
	}
	return assert.Fail(t, "line sequences differ:\n"+diff, msgAndArgs...)
}
