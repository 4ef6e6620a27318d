package engine

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/personasim/internal/persona"
)

// Policy holds the tunable constants of the decision engine. Both values
// are configuration, not behavior: changing them changes thresholds, never
// the decision procedure.
type Policy struct {
	// BudgetBoost is added to the clarifying probability when the
	// scenario's budget pressure is high.
	BudgetBoost float64
	// TangentCooldown is the number of turns a permitted tangent blocks
	// further tangents.
	TangentCooldown int
}

// DefaultPolicy returns the stock policy constants.
func DefaultPolicy() Policy {
	return Policy{
		BudgetBoost:     0.05,
		TangentCooldown: 2,
	}
}

// contractPriorities is the fixed priority ordering injected into the agent
// context every turn. The order never varies between runs.
var contractPriorities = []string{
	"mandatory_fields (answer the recruiter; provide the requested field)",
	"consultative_questions (only after fields are provided)",
	"tangent_handling (micro-detours only when permitted; resume the last question)",
	"closure_policy (when the recruiter summarizes, confirm succinctly)",
}

// BuildContract folds persona dials and scenario pressure into the three
// run-level probabilities and the fixed priority list. It is a pure
// function: calling it twice with the same inputs yields identical
// contracts.
func BuildContract(p *persona.Persona, s *persona.Scenario, seed int64, policy Policy) Contract {
	avg := s.PressureIndex.Average()
	dials := p.BehaviorDials

	clarify := dials.QuestionPropensity.WhenUncertain * avg
	if s.PressureIndex.Budget == persona.PressureHigh {
		clarify += policy.BudgetBoost
	}

	tangent := dials.TangentPropensity.AfterFieldCapture * min(1.0, avg)

	return Contract{
		Priorities:             contractPriorities,
		ClarifyingQuestionProb: clamp01(clarify),
		TangentProbAfterField:  clamp01(tangent),
		HesitationInsertProb:   clamp01(dials.ElaborationDistribution.TwoSentences),
		Seed:                   seed,
		HesitationPatterns:     dials.HesitationPatterns,
	}
}

// Render produces the contract block injected into the proxy system context.
func (c Contract) Render() string {
	var b strings.Builder
	b.WriteString("INTERACTION CONTRACT (engine-controlled):\n")
	b.WriteString("PRIORITIES:\n")
	for i, p := range c.Priorities {
		fmt.Fprintf(&b, "%d) %s\n", i+1, p)
	}
	b.WriteString("BEHAVIOR DIALS:\n")
	fmt.Fprintf(&b, "- clarifying_question_prob: %.3f\n", c.ClarifyingQuestionProb)
	fmt.Fprintf(&b, "- tangent_prob_after_field: %.3f\n", c.TangentProbAfterField)
	fmt.Fprintf(&b, "- hesitation_insert_prob: %.3f\n", c.HesitationInsertProb)
	fmt.Fprintf(&b, "- randomness_seed: %d\n", c.Seed)

	patterns := c.HesitationPatterns
	if len(patterns) == 0 {
		patterns = []string{"Hmm…", "Honestly…", "Let me think…"}
	}
	fmt.Fprintf(&b, "HESITATION PATTERNS: %s", strings.Join(patterns, ", "))
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
