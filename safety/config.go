package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/castellan/castellan"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Config holds every threshold the default strategies consume. All values
// are ordinary configuration: load them from YAML with [LoadConfig], or
// start from [DefaultConfig] and override fields in code.
type Config struct {
	// BaseLimits are the budgets in force at LevelNominal. Worse levels
	// shrink them by ShrinkFactors.
	BaseLimits LimitsConfig `yaml:"base_limits"`

	// Levels are the tier triggers, checked worst-first. A tier fires
	// when any of its trigger dimensions is reached.
	Levels LevelsConfig `yaml:"levels"`

	// ShrinkFactors scale BaseLimits per level. Nominal is implicitly 1.
	ShrinkFactors ShrinkConfig `yaml:"shrink_factors"`

	// DenialCeiling is the resource pressure above which autonomous
	// control is always revoked.
	DenialCeiling float64 `yaml:"denial_ceiling"`

	// BlockingSeverity is the concern severity at or above which
	// autonomous control is always revoked. 2 = blocking, 3 = fatal.
	BlockingSeverity int `yaml:"blocking_severity"`
}

// LimitsConfig mirrors castellan.Limits in configuration form.
type LimitsConfig struct {
	MaxLoops          int     `yaml:"max_loops"`
	MaxToolExecutions int     `yaml:"max_tool_executions"`
	MaxDomainAttempts int     `yaml:"max_domain_attempts"`
	MaxMinutes        float64 `yaml:"max_minutes"`
}

// LevelsConfig holds the trigger thresholds for each non-nominal tier.
type LevelsConfig struct {
	Elevated  TriggerConfig `yaml:"elevated"`
	Critical  TriggerConfig `yaml:"critical"`
	Emergency TriggerConfig `yaml:"emergency"`
}

// TriggerConfig is one tier's trigger set. BudgetFraction applies to the
// loop, tool, domain, and time dimensions relative to BaseLimits; the
// remaining fields are absolute.
type TriggerConfig struct {
	BudgetFraction    float64 `yaml:"budget_fraction"`
	RiskScore         float64 `yaml:"risk_score"`
	ConsecutiveErrors int     `yaml:"consecutive_errors"`
}

// ShrinkConfig scales BaseLimits per level.
type ShrinkConfig struct {
	Elevated  float64 `yaml:"elevated"`
	Critical  float64 `yaml:"critical"`
	Emergency float64 `yaml:"emergency"`
}

// DefaultConfig returns the standard thresholds. These are starting
// points, not tuned constants: operators are expected to override them
// per deployment.
func DefaultConfig() Config {
	return Config{
		BaseLimits: LimitsConfig{
			MaxLoops:          30,
			MaxToolExecutions: 60,
			MaxDomainAttempts: 8,
			MaxMinutes:        15,
		},
		Levels: LevelsConfig{
			Elevated:  TriggerConfig{BudgetFraction: 0.5, RiskScore: 0.6, ConsecutiveErrors: 2},
			Critical:  TriggerConfig{BudgetFraction: 0.8, RiskScore: 0.8, ConsecutiveErrors: 3},
			Emergency: TriggerConfig{BudgetFraction: 1.0, RiskScore: 0.95, ConsecutiveErrors: 5},
		},
		ShrinkFactors: ShrinkConfig{
			Elevated:  0.6,
			Critical:  0.3,
			Emergency: 0,
		},
		DenialCeiling:    0.85,
		BlockingSeverity: 2,
	}
}

// MaxDuration returns the configured time budget as a duration.
func (c LimitsConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxMinutes * float64(time.Minute))
}

// configSchema validates configuration documents before they are applied.
// Malformed documents are rejected up front instead of producing silently
// wrong thresholds.
const configSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "base_limits": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_loops": {"type": "integer", "minimum": 1},
        "max_tool_executions": {"type": "integer", "minimum": 1},
        "max_domain_attempts": {"type": "integer", "minimum": 1},
        "max_minutes": {"type": "number", "exclusiveMinimum": 0}
      }
    },
    "levels": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "elevated": {"$ref": "#/$defs/trigger"},
        "critical": {"$ref": "#/$defs/trigger"},
        "emergency": {"$ref": "#/$defs/trigger"}
      }
    },
    "shrink_factors": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "elevated": {"type": "number", "minimum": 0, "maximum": 1},
        "critical": {"type": "number", "minimum": 0, "maximum": 1},
        "emergency": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "denial_ceiling": {"type": "number", "minimum": 0, "maximum": 1},
    "blocking_severity": {"type": "integer", "minimum": 0, "maximum": 3}
  },
  "$defs": {
    "trigger": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "budget_fraction": {"type": "number", "minimum": 0},
        "risk_score": {"type": "number", "minimum": 0, "maximum": 1},
        "consecutive_errors": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// ParseConfig parses and validates a YAML configuration document. Fields
// absent from the document keep their [DefaultConfig] values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	// Validate the raw document against the schema first, so typos and
	// out-of-range values are reported with schema context.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("castellan/safety: parse config: %w", err)
	}
	if raw != nil {
		if err := validateConfig(raw); err != nil {
			return cfg, err
		}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("castellan/safety: parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads, validates, and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("castellan/safety: read config: %w", err)
	}
	return ParseConfig(data)
}

// validateConfig checks a raw document against configSchema.
func validateConfig(raw map[string]any) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
	if err != nil {
		return fmt.Errorf("castellan/safety: parse config schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("castellan/safety: add config schema: %w", err)
	}
	compiled, err := c.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("castellan/safety: compile config schema: %w", err)
	}

	// Round-trip through JSON so YAML numbers take the types the
	// validator expects.
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("castellan/safety: normalize config: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(buf)))
	if err != nil {
		return fmt.Errorf("castellan/safety: normalize config: %w", err)
	}

	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("castellan/safety: invalid config: %w", err)
	}
	return nil
}

// baseLimits converts the configured base budgets to castellan.Limits.
func (c Config) baseLimits() castellan.Limits {
	return castellan.Limits{
		MaxLoops:          c.BaseLimits.MaxLoops,
		MaxToolExecutions: c.BaseLimits.MaxToolExecutions,
		MaxDomainAttempts: c.BaseLimits.MaxDomainAttempts,
		MaxDuration:       c.BaseLimits.MaxDuration(),
	}
}
