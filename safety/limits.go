package safety

import (
	"math"
	"time"

	"github.com/castellan/castellan"
)

// defaultLimitsCalculator shrinks the configured base budgets as the
// safety level worsens. At LevelEmergency every budget is zero: nothing
// further is granted.
type defaultLimitsCalculator struct {
	cfg Config
}

func newLimitsCalculator(cfg Config) *defaultLimitsCalculator {
	return &defaultLimitsCalculator{cfg: cfg}
}

// Calculate returns the budgets for the level. Counts round down, but a
// non-zero factor always grants at least one of each count so a merely
// elevated run is not starved outright.
func (c *defaultLimitsCalculator) Calculate(level castellan.SafetyLevel) castellan.Limits {
	base := c.cfg.baseLimits()
	factor := c.factor(level)

	if factor <= 0 {
		return castellan.Limits{}
	}
	if factor >= 1 {
		return base
	}
	return castellan.Limits{
		MaxLoops:          scaleCount(base.MaxLoops, factor),
		MaxToolExecutions: scaleCount(base.MaxToolExecutions, factor),
		MaxDomainAttempts: scaleCount(base.MaxDomainAttempts, factor),
		MaxDuration:       time.Duration(float64(base.MaxDuration) * factor),
	}
}

func (c *defaultLimitsCalculator) factor(level castellan.SafetyLevel) float64 {
	switch level {
	case castellan.LevelNominal:
		return 1
	case castellan.LevelElevated:
		return c.cfg.ShrinkFactors.Elevated
	case castellan.LevelCritical:
		return c.cfg.ShrinkFactors.Critical
	case castellan.LevelEmergency:
		return c.cfg.ShrinkFactors.Emergency
	default:
		// Unknown tier: treat as emergency.
		return 0
	}
}

func scaleCount(n int, factor float64) int {
	scaled := int(math.Floor(float64(n) * factor))
	if scaled < 1 {
		return 1
	}
	return scaled
}
