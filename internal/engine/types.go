// Package engine contains the deterministic turn-decision engine and the
// conversation orchestration state machine. Given a persona, a scenario and
// a seed it drives a scripted multi-turn conversation between the proxy and
// SUT agent roles, makes every behavioral decision reproducibly, and
// classifies what went wrong.
package engine

import (
	"time"

	"github.com/fyrsmithlabs/personasim/internal/agent"
)

// Role identifies which agent produced a turn.
type Role string

const (
	// RoleProxy is the agent simulating the human hiring manager.
	RoleProxy Role = "proxy"
	// RoleSUT is the recruiter assistant under evaluation.
	RoleSUT Role = "sut"
)

// State is a conversation state machine state.
type State string

const (
	StateInitializing      State = "initializing"
	StateRunning           State = "running"
	StateCompletedSuccess  State = "completed_success"
	StateCompletedPartial  State = "completed_partial"
	StateTimedOut          State = "timed_out"
	StateMaxTurnsExhausted State = "max_turns_exhausted"
	StateFailed            State = "failed"
)

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	switch s {
	case StateCompletedSuccess, StateCompletedPartial, StateTimedOut, StateMaxTurnsExhausted, StateFailed:
		return true
	}
	return false
}

// Turn is one entry in the ordered conversation log.
type Turn struct {
	Index     int           `json:"index"`
	Role      Role          `json:"role"`
	Text      string        `json:"text"`
	Model     string        `json:"model,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Usage     agent.Usage   `json:"usage"`
	Decision  *TurnDecision `json:"decision,omitempty"`
}

// TurnDecision is the per-turn output of the turn controller. It records
// both the outcome of each gated decision and the raw draw and threshold
// that produced it, so a transcript carries its own audit trail.
type TurnDecision struct {
	TurnIndex int `json:"turn_index"`

	ClarifyAllowed   bool    `json:"clarify_allowed"`
	ClarifyDraw      float64 `json:"clarify_draw"`
	ClarifyThreshold float64 `json:"clarify_threshold"`

	TangentAllowed   bool    `json:"tangent_allowed"`
	TangentDraw      float64 `json:"tangent_draw"`
	TangentThreshold float64 `json:"tangent_threshold"`

	HesitationCue    string  `json:"hesitation_cue,omitempty"`
	HesitationWeight float64 `json:"hesitation_weight"`

	SummaryPolicy string `json:"summary_policy"`
	ResumePolicy  string `json:"resume_policy"`
}

// Contract is the run-scoped bundle of derived probabilities and priorities.
// It is computed once before turn 1 and never mutated; changing the seed or
// dials requires a new run.
type Contract struct {
	Priorities []string `json:"priorities"`

	ClarifyingQuestionProb float64 `json:"clarifying_question_prob"`
	TangentProbAfterField  float64 `json:"tangent_prob_after_field"`
	HesitationInsertProb   float64 `json:"hesitation_insert_prob"`

	Seed               int64    `json:"randomness_seed"`
	HesitationPatterns []string `json:"hesitation_patterns,omitempty"`
}

// ConversationState is the mutable per-run state. The orchestrator owns it
// exclusively for the lifetime of a run; nothing else writes to it.
type ConversationState struct {
	Turns           []Turn
	TurnIndex       int
	TangentCooldown int
	CapturedFields  map[string]string
	StartedAt       time.Time

	SUTProvidedSummary bool
	ProxyConfirmed     bool
}

// NewConversationState returns a reset state ready for turn 1.
func NewConversationState() *ConversationState {
	return &ConversationState{
		CapturedFields: make(map[string]string),
		StartedAt:      time.Now(),
	}
}

// Elapsed returns the wall-clock time since the run started.
func (s *ConversationState) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// LastTurn returns the most recent turn by the given role, or nil.
func (s *ConversationState) LastTurn(role Role) *Turn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == role {
			return &s.Turns[i]
		}
	}
	return nil
}

// FailureCategory classifies a failure record.
type FailureCategory string

const (
	FailureTimeout           FailureCategory = "timeout"
	FailureUserAbandonment   FailureCategory = "user_abandonment"
	FailureIncompleteInfo    FailureCategory = "incomplete_information"
	FailurePersonaDrift      FailureCategory = "persona_drift"
	FailureProtocolViolation FailureCategory = "protocol_violation"
	FailureAPIError          FailureCategory = "api_error"
	FailureSUTError          FailureCategory = "sut_error"
	FailureProxyError        FailureCategory = "proxy_error"
	FailureValidation        FailureCategory = "validation_error"
	FailureSystem            FailureCategory = "system_error"
)

// FailureRecord is an append-only classified failure. Records are never
// edited or removed after creation.
type FailureRecord struct {
	Category     FailureCategory `json:"category"`
	Reason       string          `json:"reason"`
	ErrorMessage string          `json:"error_message,omitempty"`
	TurnOccurred int             `json:"turn_occurred,omitempty"`
	Context      map[string]any  `json:"context,omitempty"`
}

// OutcomeStatus is the coarse result of a run.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is computed once when a run reaches a terminal state.
type Outcome struct {
	Status            OutcomeStatus   `json:"status"`
	State             State           `json:"state"`
	CompletionPercent int             `json:"completion_percent"`
	SuccessIndicators []string        `json:"success_indicators,omitempty"`
	Issues            []string        `json:"issues,omitempty"`
	Failures          []FailureRecord `json:"failures,omitempty"`
	TotalFailures     int             `json:"total_failures"`
}
