package engine

import (
	"fmt"
	"strings"
)

// Fixed textual directives attached to every decision block.
const (
	summaryPolicy = "When the recruiter summarizes the role, confirm succinctly with approved closure phrasing."
	resumePolicy  = "After any tangent, directly answer the counterpart's last pending question."
)

// uncertaintyPhrases are the cues in a SUT turn that make a clarifying
// question eligible. The probability gates but never forces: with no cue
// detected, clarifying stays off regardless of the draw.
var uncertaintyPhrases = []string{
	"not sure",
	"it depends",
	"depends on",
	"hard to say",
	"i'm uncertain",
	"unclear",
	"could you clarify",
	"up to you",
	"either way",
}

// TurnController makes the per-turn behavioral decisions from the contract
// and the decision RNG. It holds no state of its own; cooldown bookkeeping
// lives in ConversationState.
type TurnController struct {
	contract Contract
	policy   Policy
}

// NewTurnController creates a controller bound to one run's contract.
func NewTurnController(contract Contract, policy Policy) *TurnController {
	return &TurnController{contract: contract, policy: policy}
}

// Decide produces the decision block for the upcoming turn and updates the
// cooldown counter in state. fieldCaptured reports whether a mandatory
// field was captured in the immediately preceding turn.
//
// Ties resolve against permission: a draw exactly equal to its threshold is
// not permitted.
func (tc *TurnController) Decide(state *ConversationState, fieldCaptured bool) *TurnDecision {
	turn := state.TurnIndex
	d := &TurnDecision{
		TurnIndex:        turn,
		ClarifyThreshold: tc.contract.ClarifyingQuestionProb,
		TangentThreshold: tc.contract.TangentProbAfterField,
		HesitationWeight: tc.contract.HesitationInsertProb,
		SummaryPolicy:    summaryPolicy,
		ResumePolicy:     resumePolicy,
	}

	// Clarifying question: eligible only when the prior SUT turn showed
	// uncertainty. The draw is recorded either way for the audit trail.
	d.ClarifyDraw = Draw(tc.contract.Seed, turn, "clarify")
	if prior := state.LastTurn(RoleSUT); prior != nil && containsUncertainty(prior.Text) {
		d.ClarifyAllowed = d.ClarifyDraw < d.ClarifyThreshold
	}

	// Tangent: eligible only right after a field capture and with the
	// cooldown at zero. Cooldown decrements every turn regardless.
	d.TangentDraw = Draw(tc.contract.Seed, turn, "tangent")
	if fieldCaptured && state.TangentCooldown == 0 {
		d.TangentAllowed = d.TangentDraw < d.TangentThreshold
	}
	if d.TangentAllowed {
		state.TangentCooldown = tc.policy.TangentCooldown
	} else if state.TangentCooldown > 0 {
		state.TangentCooldown--
	}

	// Hesitation is a soft cue, not a gated decision: always attached,
	// weighted, and left to the downstream agent's judgment.
	if len(tc.contract.HesitationPatterns) > 0 {
		idx := int(Draw(tc.contract.Seed, turn, "hesitation") * float64(len(tc.contract.HesitationPatterns)))
		d.HesitationCue = tc.contract.HesitationPatterns[idx]
	}

	return d
}

// Render produces the controller block appended to the proxy system context
// for the turn this decision governs.
func (d *TurnDecision) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TURN CONTROLLER (turn %d, engine-controlled):\n", d.TurnIndex)
	fmt.Fprintf(&b, "- clarifying_question_allowed: %t (draw=%.4f threshold=%.4f)\n", d.ClarifyAllowed, d.ClarifyDraw, d.ClarifyThreshold)
	fmt.Fprintf(&b, "- tangent_allowed: %t (draw=%.4f threshold=%.4f)\n", d.TangentAllowed, d.TangentDraw, d.TangentThreshold)
	if d.HesitationCue != "" {
		fmt.Fprintf(&b, "- hesitation_cue: %q (weight=%.3f, use at your own judgment)\n", d.HesitationCue, d.HesitationWeight)
	}
	fmt.Fprintf(&b, "- summary_policy: %s\n", d.SummaryPolicy)
	fmt.Fprintf(&b, "- resume_policy: %s", d.ResumePolicy)
	return b.String()
}

func containsUncertainty(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
