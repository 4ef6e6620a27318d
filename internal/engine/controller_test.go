package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(seed int64, clarify, tangent float64) (*TurnController, *ConversationState) {
	contract := Contract{
		ClarifyingQuestionProb: clarify,
		TangentProbAfterField:  tangent,
		HesitationInsertProb:   0.35,
		Seed:                   seed,
		HesitationPatterns:     []string{"Hmm…", "Honestly…"},
	}
	return NewTurnController(contract, DefaultPolicy()), NewConversationState()
}

func sutTurn(state *ConversationState, text string) {
	state.Turns = append(state.Turns, Turn{
		Index: state.TurnIndex,
		Role:  RoleSUT,
		Text:  text,
	})
}

func TestDecide_ClarifyRequiresUncertaintyCue(t *testing.T) {
	// Probability 1.0 would always pass the draw, but with no uncertainty
	// phrase in the prior SUT turn clarifying must stay off.
	tc, state := newTestController(1, 1.0, 0)
	state.TurnIndex = 1
	sutTurn(state, "What is the job title for this role?")

	state.TurnIndex = 2
	d := tc.Decide(state, false)
	assert.False(t, d.ClarifyAllowed)
}

func TestDecide_ClarifyWithCueAndCertainDraw(t *testing.T) {
	tc, state := newTestController(1, 1.0, 0)
	state.TurnIndex = 1
	sutTurn(state, "Hard to say without more detail — it depends on the team.")

	state.TurnIndex = 2
	d := tc.Decide(state, false)
	assert.True(t, d.ClarifyAllowed)
}

func TestDecide_ClarifyZeroProbabilityNeverPermits(t *testing.T) {
	tc, state := newTestController(99, 0, 0)
	for turn := 1; turn <= 30; turn++ {
		state.TurnIndex = turn
		sutTurn(state, "I'm not sure, it depends.")
		d := tc.Decide(state, false)
		require.False(t, d.ClarifyAllowed, "turn %d", turn)
		// Strict less-than: a zero threshold can never be beaten.
		require.GreaterOrEqual(t, d.ClarifyDraw, d.ClarifyThreshold)
	}
}

func TestDecide_TangentRequiresFieldCapture(t *testing.T) {
	tc, state := newTestController(1, 0, 1.0)
	state.TurnIndex = 1
	d := tc.Decide(state, false)
	assert.False(t, d.TangentAllowed)
}

func TestDecide_TangentCooldownInvariant(t *testing.T) {
	// With probability 1.0 and a field captured every turn, permits must
	// still be spaced by the cooldown window.
	tc, state := newTestController(7, 0, 1.0)

	lastPermit := -10
	for turn := 1; turn <= 20; turn++ {
		state.TurnIndex = turn
		d := tc.Decide(state, true)
		if d.TangentAllowed {
			require.GreaterOrEqual(t, turn-lastPermit, DefaultPolicy().TangentCooldown,
				"tangents at turns %d and %d violate cooldown", lastPermit, turn)
			lastPermit = turn
		}
	}
	assert.Greater(t, lastPermit, 0, "expected at least one tangent permit")
}

func TestDecide_CooldownDecrementsWithoutTangent(t *testing.T) {
	tc, state := newTestController(7, 0, 1.0)

	state.TurnIndex = 1
	d := tc.Decide(state, true)
	require.True(t, d.TangentAllowed)
	require.Equal(t, 2, state.TangentCooldown)

	state.TurnIndex = 2
	tc.Decide(state, false)
	assert.Equal(t, 1, state.TangentCooldown)

	state.TurnIndex = 3
	tc.Decide(state, false)
	assert.Equal(t, 0, state.TangentCooldown)
}

func TestDecide_Deterministic(t *testing.T) {
	run := func() []TurnDecision {
		tc, state := newTestController(12345, 0.42, 0.3)
		var out []TurnDecision
		for turn := 1; turn <= 8; turn++ {
			state.TurnIndex = turn
			sutTurn(state, "Not sure yet, what do you think?")
			out = append(out, *tc.Decide(state, turn%2 == 0))
		}
		return out
	}

	require.Equal(t, run(), run())
}

func TestDecide_AuditTrailAlwaysRecorded(t *testing.T) {
	tc, state := newTestController(5, 0.5, 0.5)
	state.TurnIndex = 1
	d := tc.Decide(state, false)

	// Draws and thresholds are recorded even when nothing was permitted.
	assert.False(t, d.ClarifyAllowed)
	assert.False(t, d.TangentAllowed)
	assert.GreaterOrEqual(t, d.ClarifyDraw, 0.0)
	assert.Less(t, d.ClarifyDraw, 1.0)
	assert.Equal(t, 0.5, d.ClarifyThreshold)
	assert.Equal(t, 0.5, d.TangentThreshold)
	assert.NotEmpty(t, d.SummaryPolicy)
	assert.NotEmpty(t, d.ResumePolicy)
	assert.NotEmpty(t, d.HesitationCue)
}

func TestDecisionRender(t *testing.T) {
	tc, state := newTestController(5, 0.5, 0.5)
	state.TurnIndex = 3
	d := tc.Decide(state, false)

	rendered := d.Render()
	assert.Contains(t, rendered, "TURN CONTROLLER (turn 3")
	assert.Contains(t, rendered, "clarifying_question_allowed")
	assert.Contains(t, rendered, "summary_policy")
}
