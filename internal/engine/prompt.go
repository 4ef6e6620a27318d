package engine

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/personasim/internal/persona"
)

// defaultSUTPrompt is the fallback recruiter system prompt used when no
// prompt file is configured.
const defaultSUTPrompt = "You are a recruiter assistant. Ask questions to understand the hiring " +
	"needs and gather information progressively. Do not provide complete job descriptions immediately."

// sutIntroPrompt constrains the SUT's opening message to a greeting plus
// exactly one question.
const sutIntroPrompt = `You are an expert recruiter assistant. You help hiring managers define roles, clarify requirements, and streamline the hiring process.

CRITICAL FIRST MESSAGE RULES:
- Use a brief greeting (one short sentence max).
- Ask EXACTLY ONE question. No multi-part or follow-up questions.
- The single question should be: "How can I help you?" (or a close variant).
- Do not assume any specific role, job title, or needs.`

// sutController is prepended to the recruiter prompt on every turn to keep
// the single-question protocol in front of the model.
const sutController = `DIALOG CONTROLLER (hard constraints):
- Ask EXACTLY ONE question per turn.
- Do not include more than one question mark in a message.
- Keep the message short and avoid multi-part questions.
- If you accidentally start forming a second question, stop and send only the first.`

// compliantFirstReply replaces a non-compliant SUT opening.
const compliantFirstReply = "Hi — how can I help you?"

// BuildSUTSystemPrompt assembles the SUT system prompt for a turn. The
// first turn uses the constrained intro; later turns use the recruiter
// prompt with the dialog controller prepended.
func BuildSUTSystemPrompt(recruiterPrompt string, firstTurn bool) string {
	if firstTurn {
		return sutIntroPrompt
	}
	if recruiterPrompt == "" {
		recruiterPrompt = defaultSUTPrompt
	}
	return sutController + "\n\n" + recruiterPrompt
}

// BuildProxySystemPrompt assembles the proxy system prompt: persona
// behavioral framing, scenario grounding, the run's interaction contract,
// and the decision block for the turn it governs.
func BuildProxySystemPrompt(p *persona.Persona, s *persona.Scenario, contract Contract, decision *TurnDecision) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("You role-play %s, a %s.", p.Name, p.Role))
	if p.Background != "" {
		parts = append(parts, "BACKGROUND: "+p.Background)
	}
	if p.Voice != "" {
		parts = append(parts, "STYLE: "+p.Voice)
	}
	if len(p.Goals) > 0 {
		parts = append(parts, "GOALS: "+strings.Join(p.Goals, ", "))
	}
	if p.RoleAdherence != "" {
		parts = append(parts, p.RoleAdherence)
	}
	if len(p.ForbiddenBehaviors) > 0 {
		parts = append(parts, "FORBIDDEN BEHAVIORS:\n- "+strings.Join(p.ForbiddenBehaviors, "\n- "))
	}
	if len(p.RequiredBehaviors) > 0 {
		parts = append(parts, "REQUIRED BEHAVIORS:\n- "+strings.Join(p.RequiredBehaviors, "\n- "))
	}
	if p.ResponseFormula != "" {
		parts = append(parts, "RESPONSE FORMULA: "+p.ResponseFormula)
		if singleSentenceFormula(p.ResponseFormula) {
			parts = append(parts, "HARD LIMIT: Your replies MUST be a single sentence only. No multi-part answers.")
		}
	}
	if p.RecoveryPhrase != "" {
		parts = append(parts, "RECOVERY PHRASE: "+p.RecoveryPhrase)
	}
	if p.CharacterMotivation != "" {
		parts = append(parts, "CHARACTER MOTIVATION: "+p.CharacterMotivation)
	}

	if s.Title != "" || s.EntryContext != "" {
		grounding := []string{"SCENARIO CONTEXT (for grounding, do not repeat verbatim):"}
		if s.Title != "" {
			grounding = append(grounding, "- Title: "+s.Title)
		}
		if s.EntryContext != "" {
			grounding = append(grounding, "- Entry context: "+strings.TrimSpace(s.EntryContext))
		}
		grounding = append(grounding,
			"Align with the scenario context; do not invent a different role title.",
			"If greeted with 'How can I help you?', state your hiring need from the entry context succinctly.",
			"Never mirror or repeat the assistant's question verbatim; answer directly and concisely.",
		)
		parts = append(parts, strings.Join(grounding, "\n"))
	}

	parts = append(parts, contract.Render())
	if decision != nil {
		parts = append(parts, decision.Render())
	}

	return strings.Join(parts, "\n")
}

// EnforceSingleQuestion trims a SUT reply down to at most one question.
// Summaries are left alone. On the first turn a reply with no question at
// all is replaced with a minimal compliant greeting.
func EnforceSingleQuestion(text string, firstTurn bool) string {
	if IsSummary(text) {
		return text
	}

	first := strings.Index(text, "?")
	if first == -1 {
		if firstTurn {
			return compliantFirstReply
		}
		return text
	}

	trimmed := strings.TrimSpace(text[:first+1])
	if firstTurn && len(trimmed) > 500 {
		// Pathologically long greeting.
		return compliantFirstReply
	}
	if strings.Contains(text[first+1:], "?") {
		return trimmed
	}
	return text
}

func singleSentenceFormula(formula string) bool {
	lower := strings.ToLower(formula)
	return strings.Contains(lower, "1 sentence") || strings.Contains(lower, "one sentence")
}
