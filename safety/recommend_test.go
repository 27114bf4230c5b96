package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/castellan/castellan"
	"github.com/castellan/castellan/internal/tt"
)

func TestOverrideReasoner_Trace(t *testing.T) {
	reasoner := newOverrideReasoner()
	limits := DefaultConfig().baseLimits()

	t.Run("quiet run", func(t *testing.T) {
		trace := reasoner.Trace(tt.HealthyState(), castellan.LevelNominal, limits,
			0.25, nil, "all gates passed", "no termination condition met")

		tt.AssertLinesEqual(t, []string{
			"classified level nominal: loops=3 tools=5 domains=3 elapsed=2m0s risk=0.20 errors=0",
			"budgets for nominal: loops=30 tools=60 domain=8 duration=15m0s",
			"resource pressure 0.25",
			"no concerns detected",
			"control decision: all gates passed",
			"termination decision: no termination condition met",
		}, trace)
	})

	t.Run("concerns are listed with severity", func(t *testing.T) {
		concerns := []castellan.Concern{
			{Kind: ConcernLoopBudget, Severity: castellan.SeverityBlocking, Message: "planner loops at 30 of 30 (exhausted)"},
			{Kind: ConcernRiskScore, Severity: castellan.SeverityWarning, Message: "risk score 0.80 above critical threshold"},
		}
		trace := reasoner.Trace(tt.HealthyState(), castellan.LevelCritical, limits,
			1.0, concerns, "blocking concern \"loop_budget\"", "resources exhausted")

		assert.Contains(t, trace, "2 concerns detected:")
		assert.Contains(t, trace, "  [blocking] loop_budget: planner loops at 30 of 30 (exhausted)")
		assert.Contains(t, trace, "  [warning] risk_score: risk score 0.80 above critical threshold")
	})

	t.Run("nil snapshot still traces", func(t *testing.T) {
		trace := reasoner.Trace(nil, castellan.LevelEmergency, castellan.Limits{},
			1.0, nil, "revoked", "terminating")
		assert.Contains(t, trace, "classified level emergency: snapshot unavailable")
	})
}

func TestActionRecommender_Recommend(t *testing.T) {
	recommender := newActionRecommender()

	t.Run("quiet run continues", func(t *testing.T) {
		actions := recommender.Recommend(castellan.LevelNominal, nil, false)
		assert.Equal(t, []string{"continue the investigation normally"}, actions)
	})

	t.Run("termination leads the list", func(t *testing.T) {
		concerns := []castellan.Concern{
			{Kind: ConcernToolBudget, SuggestedAction: "stop issuing tool calls and synthesize existing evidence"},
		}
		actions := recommender.Recommend(castellan.LevelEmergency, concerns, true)
		assert.Equal(t, []string{
			"terminate the investigation and persist partial findings",
			"stop issuing tool calls and synthesize existing evidence",
		}, actions)
	})

	t.Run("duplicate suggestions collapse", func(t *testing.T) {
		concerns := []castellan.Concern{
			{Kind: ConcernLoopBudget, SuggestedAction: "rotate to a different evidence domain"},
			{Kind: ConcernDomainHammering, SuggestedAction: "rotate to a different evidence domain"},
			{Kind: ConcernRuntime, SuggestedAction: ""},
		}
		actions := recommender.Recommend(castellan.LevelElevated, concerns, false)
		assert.Equal(t, []string{
			"rotate to a different evidence domain",
			"reduce exploration breadth and focus on the strongest leads",
		}, actions)
	})

	t.Run("level guidance", func(t *testing.T) {
		assert.Contains(t,
			recommender.Recommend(castellan.LevelCritical, nil, false),
			"checkpoint findings and prepare a scripted fallback")
		assert.Equal(t,
			[]string{"terminate the investigation and persist partial findings"},
			recommender.Recommend(castellan.LevelEmergency, nil, false))
	})
}
