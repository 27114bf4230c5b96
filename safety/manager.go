package safety

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/metrics"
)

// Manager composes the nine strategy components into one evaluation
// pipeline. Construct one at bootstrap with [NewManager] and share it
// freely: the pipeline is pure and synchronous, so concurrent calls are
// safe — the only shared mutable state is the best-effort performance
// counters behind their own mutex.
type Manager struct {
	cfg    Config
	clock  castellan.Clock
	logger *slog.Logger

	levels      LevelDetector
	limits      LimitsCalculator
	pressure    PressureCalculator
	concerns    ConcernDetector
	authorizer  ControlAuthorizer
	terminator  TerminationChecker
	reasoner    OverrideReasoner
	tracker     ResourceTracker
	recommender ActionRecommender

	mu             sync.Mutex
	validations    uint64
	lastValidation time.Time
	totalLatency   time.Duration
	maxLatency     time.Duration
}

// Option customizes a Manager. Config options must come before strategy
// options only in the sense that [WithConfig] rebuilds the default
// strategies; explicitly injected strategies always win.
type Option func(*Manager)

// WithConfig replaces the manager's thresholds. Default strategies are
// built from this config.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithClock injects the clock used for verdict timestamps.
func WithClock(clock castellan.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithLogger injects the logger for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithLevelDetector replaces the safety-level strategy.
func WithLevelDetector(d LevelDetector) Option {
	return func(m *Manager) { m.levels = d }
}

// WithLimitsCalculator replaces the dynamic-limits strategy.
func WithLimitsCalculator(c LimitsCalculator) Option {
	return func(m *Manager) { m.limits = c }
}

// WithPressureCalculator replaces the resource-pressure strategy.
func WithPressureCalculator(p PressureCalculator) Option {
	return func(m *Manager) { m.pressure = p }
}

// WithConcernDetector replaces the concern-detection strategy.
func WithConcernDetector(d ConcernDetector) Option {
	return func(m *Manager) { m.concerns = d }
}

// WithControlAuthorizer replaces the control-authorization strategy.
func WithControlAuthorizer(a ControlAuthorizer) Option {
	return func(m *Manager) { m.authorizer = a }
}

// WithTerminationChecker replaces the termination strategy.
func WithTerminationChecker(t TerminationChecker) Option {
	return func(m *Manager) { m.terminator = t }
}

// WithOverrideReasoner replaces the audit-trace strategy.
func WithOverrideReasoner(r OverrideReasoner) Option {
	return func(m *Manager) { m.reasoner = r }
}

// WithResourceTracker replaces the remaining-resources strategy.
func WithResourceTracker(t ResourceTracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithActionRecommender replaces the recommendation strategy.
func WithActionRecommender(r ActionRecommender) Option {
	return func(m *Manager) { m.recommender = r }
}

// NewManager creates a Manager with [DefaultConfig] thresholds and the
// default strategies, then applies the given options. Any strategy not
// explicitly injected is the default built from the effective config.
func NewManager(opts ...Option) *Manager {
	m := &Manager{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = castellan.NewSystemClock()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.levels == nil {
		m.levels = newLevelDetector(m.cfg)
	}
	if m.limits == nil {
		m.limits = newLimitsCalculator(m.cfg)
	}
	if m.pressure == nil {
		m.pressure = newPressureCalculator()
	}
	if m.concerns == nil {
		m.concerns = newConcernDetector(m.cfg)
	}
	if m.authorizer == nil {
		m.authorizer = newControlAuthorizer(m.cfg)
	}
	if m.terminator == nil {
		m.terminator = newTerminationChecker()
	}
	if m.reasoner == nil {
		m.reasoner = newOverrideReasoner()
	}
	if m.tracker == nil {
		m.tracker = newResourceTracker()
	}
	if m.recommender == nil {
		m.recommender = newActionRecommender()
	}
	return m
}

// -----------------------------------------------------------------------------
// Pipeline
// -----------------------------------------------------------------------------

// evaluation carries the intermediate stage outputs of one pipeline run,
// so the detailed report can expose them without re-deriving.
type evaluation struct {
	dimensions        map[string]float64
	controlReason     string
	terminationReason string
	degraded          []string
}

// ValidateCurrentState runs the nine-stage pipeline over the snapshot and
// returns a fresh, immutable verdict. The snapshot is never mutated. Every
// stage runs exactly once, in order; a stage that panics or returns an
// out-of-range value is replaced by its fail-closed fallback and flagged
// as a strategy_degraded concern — the evaluation itself never fails.
func (m *Manager) ValidateCurrentState(state *castellan.InvestigationState) *castellan.SafetyStatus {
	started := time.Now()
	status, _ := m.evaluate(state)

	latency := time.Since(started)
	m.recordValidation(latency)

	verdict := "allowed"
	switch {
	case status.RequiresImmediateTermination:
		verdict = "terminate"
	case !status.AllowsAIControl:
		verdict = "revoked"
	}
	metrics.ValidationsTotal.WithLabelValues(verdict).Inc()
	metrics.ValidationDuration.Observe(latency.Seconds())

	return status
}

// evaluate is the shared pipeline body behind ValidateCurrentState and
// DetailedReport.
func (m *Manager) evaluate(state *castellan.InvestigationState) (*castellan.SafetyStatus, *evaluation) {
	eval := &evaluation{}

	// Stage 1: safety level.
	level := runStage(m, eval, "level_detector", castellan.LevelEmergency,
		func() castellan.SafetyLevel { return m.levels.Detect(state) })

	// Stage 2: dynamic limits for the level.
	limits := runStage(m, eval, "limits_calculator", castellan.Limits{},
		func() castellan.Limits { return m.limits.Calculate(level) })

	// Stage 3: resource pressure.
	eval.dimensions = runStage(m, eval, "pressure_dimensions", exhaustedDimensions(),
		func() map[string]float64 { return m.pressure.Dimensions(state, limits) })
	pressure := clamp01(runStage(m, eval, "pressure_calculator", 1.0,
		func() float64 { return m.pressure.Pressure(state, limits) }))

	// Stage 4: concerns, plus one blocking concern per degraded stage so
	// downstream gates see the degradation.
	concerns := runStage(m, eval, "concern_detector", nil,
		func() []castellan.Concern {
			return m.concerns.Detect(state, level, limits, eval.dimensions)
		})
	concerns = append(concerns, m.degradedConcerns(eval)...)

	// Stage 5: control authorization.
	allowed := false
	allowed, eval.controlReason = runStage2(m, eval, "control_authorizer", false, "strategy degraded, control revoked",
		func() (bool, string) { return m.authorizer.Authorize(level, pressure, concerns) })

	// Stage 6: termination, independent of and stricter than stage 5.
	terminate := false
	terminate, eval.terminationReason = runStage2(m, eval, "termination_checker", true, "strategy degraded, terminating",
		func() (bool, string) { return m.terminator.Check(level, pressure, concerns) })

	// Stage 7: audit trace.
	reasoning := runStage(m, eval, "override_reasoner", nil,
		func() []string {
			return m.reasoner.Trace(state, level, limits, pressure, concerns,
				eval.controlReason, eval.terminationReason)
		})

	// Stage 8: remaining resources.
	remaining := runStage(m, eval, "resource_tracker", map[string]float64{},
		func() map[string]float64 { return m.tracker.Remaining(state, limits) })

	// Stage 9: recommended actions.
	actions := runStage(m, eval, "action_recommender",
		[]string{"terminate the investigation and persist partial findings"},
		func() []string { return m.recommender.Recommend(level, concerns, terminate) })

	return &castellan.SafetyStatus{
		AllowsAIControl:              allowed,
		RequiresImmediateTermination: terminate,
		Level:                        level,
		CurrentLimits:                limits,
		Concerns:                     concerns,
		OverrideReasoning:            reasoning,
		ResourcePressure:             pressure,
		RemainingResources:           remaining,
		RecommendedActions:           actions,
		EvaluatedAt:                  m.clock.Now(),
	}, eval
}

// runStage executes one pipeline stage, substituting the fail-closed
// fallback when the strategy panics.
func runStage[T any](m *Manager, eval *evaluation, name string, fallback T, fn func() T) (result T) {
	result = fallback
	defer func() {
		if r := recover(); r != nil {
			eval.degraded = append(eval.degraded, name)
			m.logger.Warn("safety strategy degraded, failing closed",
				slog.String("strategy", name),
				slog.Any("panic", r))
		}
	}()
	result = fn()
	return result
}

// runStage2 is runStage for strategies returning a decision plus reason.
func runStage2[T any](m *Manager, eval *evaluation, name string, fallback T, fallbackReason string, fn func() (T, string)) (result T, reason string) {
	result, reason = fallback, fallbackReason
	defer func() {
		if r := recover(); r != nil {
			eval.degraded = append(eval.degraded, name)
			m.logger.Warn("safety strategy degraded, failing closed",
				slog.String("strategy", name),
				slog.Any("panic", r))
		}
	}()
	result, reason = fn()
	return result, reason
}

// degradedConcerns converts stage degradations observed so far into
// blocking concerns.
func (m *Manager) degradedConcerns(eval *evaluation) []castellan.Concern {
	concerns := make([]castellan.Concern, 0, len(eval.degraded))
	for _, name := range eval.degraded {
		concerns = append(concerns, castellan.Concern{
			Kind:            ConcernStrategyDegraded,
			Severity:        castellan.SeverityBlocking,
			Message:         fmt.Sprintf("strategy %s could not compute confidently", name),
			SuggestedAction: "fall back to scripted behavior",
		})
	}
	return concerns
}

// exhaustedDimensions is the fail-closed dimension set.
func exhaustedDimensions() map[string]float64 {
	return map[string]float64{
		DimLoops:          1,
		DimToolExecutions: 1,
		DimDomainAttempts: 1,
		DimDuration:       1,
	}
}

// -----------------------------------------------------------------------------
// Detailed Report
// -----------------------------------------------------------------------------

// Report is the detailed variant of a verdict: the same pipeline output
// plus per-component breakdowns. Purely additive — Status carries exactly
// the verdict ValidateCurrentState would return for the same snapshot.
type Report struct {
	// Status is the core verdict.
	Status *castellan.SafetyStatus

	// PressureByDimension is each budget dimension's utilization in [0,1].
	PressureByDimension map[string]float64

	// UtilizationPercent is the same breakdown in percent, rounded for
	// display.
	UtilizationPercent map[string]float64

	// ConsumptionRates reports per-minute consumption ("loops_per_minute",
	// "tools_per_minute"). Zero when no time has elapsed.
	ConsumptionRates map[string]float64

	// StrategyNotes carries each strategy's one-line "why".
	StrategyNotes map[string]string

	// GeneratedAt is the clock reading when the report was built.
	GeneratedAt time.Time
}

// GetDetailedSafetyReport re-runs the pipeline and decorates the verdict
// with per-component breakdowns. It never changes the verdict: for an
// identical snapshot, Status agrees with ValidateCurrentState on level,
// control, and termination.
func (m *Manager) GetDetailedSafetyReport(state *castellan.InvestigationState) *Report {
	started := time.Now()
	status, eval := m.evaluate(state)
	m.recordValidation(time.Since(started))

	report := &Report{
		Status:              status,
		PressureByDimension: eval.dimensions,
		UtilizationPercent:  make(map[string]float64, len(eval.dimensions)),
		ConsumptionRates:    make(map[string]float64, 2),
		StrategyNotes:       make(map[string]string),
		GeneratedAt:         status.EvaluatedAt,
	}
	for dim, util := range eval.dimensions {
		report.UtilizationPercent[dim] = clamp01(util) * 100
	}

	if state != nil {
		if minutes := state.Elapsed.Minutes(); minutes > 0 {
			report.ConsumptionRates["loops_per_minute"] = float64(state.LoopCount) / minutes
			report.ConsumptionRates["tools_per_minute"] = float64(state.ToolExecutions) / minutes
		}
	}

	report.StrategyNotes["level_detector"] = fmt.Sprintf("classified level %s", status.Level)
	report.StrategyNotes["pressure_calculator"] = fmt.Sprintf(
		"pressure %.2f, peak dimension %s", status.ResourcePressure, peakDimension(eval.dimensions))
	report.StrategyNotes["control_authorizer"] = eval.controlReason
	report.StrategyNotes["termination_checker"] = eval.terminationReason
	if len(eval.degraded) > 0 {
		report.StrategyNotes["degraded"] = strings.Join(eval.degraded, ", ")
	}

	return report
}

// peakDimension returns the name of the highest-utilization dimension.
func peakDimension(dims map[string]float64) string {
	name, peak := "none", -1.0
	for dim, util := range dims {
		if util > peak || (util == peak && dim < name) {
			name, peak = dim, util
		}
	}
	return name
}

// -----------------------------------------------------------------------------
// Performance Counters & Component Configuration
// -----------------------------------------------------------------------------

// PerformanceMetrics is a best-effort snapshot of pipeline activity.
type PerformanceMetrics struct {
	// Validations counts pipeline runs since construction or the last
	// reset. Detailed reports count too.
	Validations uint64

	// LastValidationAt is the wall-clock time of the most recent run.
	LastValidationAt time.Time

	// AverageLatency and MaxLatency describe pipeline latency. The
	// pipeline carries a ~20ms latency budget per run.
	AverageLatency time.Duration
	MaxLatency     time.Duration
}

// GetPerformanceMetrics returns the current counters.
func (m *Manager) GetPerformanceMetrics() PerformanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	pm := PerformanceMetrics{
		Validations:      m.validations,
		LastValidationAt: m.lastValidation,
		MaxLatency:       m.maxLatency,
	}
	if m.validations > 0 {
		pm.AverageLatency = m.totalLatency / time.Duration(m.validations)
	}
	return pm
}

// ResetPerformanceMetrics zeroes the counters.
func (m *Manager) ResetPerformanceMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations = 0
	m.lastValidation = time.Time{}
	m.totalLatency = 0
	m.maxLatency = 0
}

func (m *Manager) recordValidation(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations++
	m.lastValidation = m.clock.Now()
	m.totalLatency += latency
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
}

// ConfigureComponents forwards named per-strategy override documents to
// the strategies that accept them. Recognized keys are the strategy names
// ("level_detector", "limits_calculator", "pressure_calculator",
// "concern_detector", "control_authorizer", "termination_checker",
// "override_reasoner", "resource_tracker", "action_recommender"); each
// value must be a map of overrides, forwarded verbatim to the strategy's
// Configure method when it implements [Configurable]. Unknown keys, and
// strategies that are not configurable, are ignored — deliberate
// decoupling from concrete strategy types.
func (m *Manager) ConfigureComponents(overrides map[string]any) {
	components := map[string]any{
		"level_detector":      m.levels,
		"limits_calculator":   m.limits,
		"pressure_calculator": m.pressure,
		"concern_detector":    m.concerns,
		"control_authorizer":  m.authorizer,
		"termination_checker": m.terminator,
		"override_reasoner":   m.reasoner,
		"resource_tracker":    m.tracker,
		"action_recommender":  m.recommender,
	}
	for name, value := range overrides {
		component, ok := components[name]
		if !ok {
			continue
		}
		configurable, ok := component.(Configurable)
		if !ok {
			continue
		}
		doc, ok := value.(map[string]any)
		if !ok {
			continue
		}
		configurable.Configure(doc)
	}
}
