package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// roleReversalPhrases indicate the proxy has started acting like the
// recruiter instead of the hiring manager.
var roleReversalPhrases = []string{
	"i can help you with",
	"let me ask you about",
	"what's your budget",
	"i'll need to know",
	"let me gather",
	"i'm here to help you find",
}

// characterBreakPhrases indicate the proxy disclosed its AI nature.
var characterBreakPhrases = []string{
	"i'm an ai",
	"as an ai",
	"i'm a language model",
	"i'm not real",
	"this is a simulation",
	"i'm programmed",
}

// Classifier inspects conversation state and emits categorized failure
// records. Records are append-only: classification never edits or removes
// a prior record, and multiple categories may co-occur in one run.
type Classifier struct {
	minTurns int
}

// NewClassifier creates a classifier. minTurns is the threshold below which
// an unsuccessful run counts as user abandonment.
func NewClassifier(minTurns int) *Classifier {
	return &Classifier{minTurns: minTurns}
}

// InspectTurn runs the per-turn checks over a newly appended turn.
func (c *Classifier) InspectTurn(turn *Turn) []FailureRecord {
	var records []FailureRecord
	lower := strings.ToLower(turn.Text)

	if turn.Role == RoleProxy {
		if phrases := matching(lower, roleReversalPhrases); len(phrases) > 0 {
			records = append(records, FailureRecord{
				Category:     FailurePersonaDrift,
				Reason:       "proxy acting like recruiter instead of hiring manager",
				TurnOccurred: turn.Index,
				Context:      map[string]any{"violating_phrases": phrases},
			})
		}
		if phrases := matching(lower, characterBreakPhrases); len(phrases) > 0 {
			records = append(records, FailureRecord{
				Category:     FailurePersonaDrift,
				Reason:       "proxy broke character and revealed AI nature",
				TurnOccurred: turn.Index,
				Context:      map[string]any{"breaking_phrases": phrases},
			})
		}
	}

	// Single-question-per-turn protocol applies to both roles.
	if n := strings.Count(turn.Text, "?"); n > 1 {
		records = append(records, FailureRecord{
			Category:     FailureProtocolViolation,
			Reason:       fmt.Sprintf("%s asked %d questions in one turn (should be 1)", turn.Role, n),
			TurnOccurred: turn.Index,
			Context:      map[string]any{"question_count": n},
		})
	}

	return records
}

// ClassifyClientError maps a failed agent call to its failure category.
func (c *Classifier) ClassifyClientError(role Role, turnIndex int, err error) FailureRecord {
	category := FailureAPIError
	switch role {
	case RoleSUT:
		category = FailureSUTError
	case RoleProxy:
		category = FailureProxyError
	}
	return FailureRecord{
		Category:     category,
		Reason:       fmt.Sprintf("%s client request failed", role),
		ErrorMessage: err.Error(),
		TurnOccurred: turnIndex,
	}
}

// FinalInput carries the terminal-state facts the final pass needs.
type FinalInput struct {
	State         State
	Elapsed       time.Duration
	Timeout       time.Duration
	TurnsTaken    int
	FieldSpecSize int
	Captured      map[string]string
	MissingFields []string
}

// InspectFinal runs the checks that can only be evaluated once the run has
// ended.
func (c *Classifier) InspectFinal(in FinalInput) []FailureRecord {
	var records []FailureRecord

	if in.State == StateTimedOut {
		records = append(records, FailureRecord{
			Category: FailureTimeout,
			Reason:   fmt.Sprintf("conversation exceeded %s time limit", in.Timeout),
			Context: map[string]any{
				"elapsed_seconds": in.Elapsed.Seconds(),
				"timeout_limit":   in.Timeout.Seconds(),
				"turns_completed": in.TurnsTaken,
			},
		})
	}

	if in.State != StateCompletedSuccess && in.TurnsTaken < c.minTurns {
		records = append(records, FailureRecord{
			Category: FailureUserAbandonment,
			Reason:   fmt.Sprintf("conversation ended prematurely after %d turns", in.TurnsTaken),
			Context:  map[string]any{"total_turns": in.TurnsTaken, "min_turns": c.minTurns},
		})
	}

	if len(in.MissingFields) > 0 {
		records = append(records, FailureRecord{
			Category: FailureIncompleteInfo,
			Reason:   fmt.Sprintf("missing %d of %d mandatory fields", len(in.MissingFields), in.FieldSpecSize),
			Context: map[string]any{
				"missing_fields":        in.MissingFields,
				"captured_fields":       capturedNames(in.Captured),
				"completion_percentage": CompletionPercent(len(in.Captured), in.FieldSpecSize),
			},
		})
	}

	return records
}

// CompletionPercent computes the 0-100 captured-field percentage.
func CompletionPercent(captured, total int) int {
	if total == 0 {
		return 100
	}
	return captured * 100 / total
}

func matching(text string, phrases []string) []string {
	var hits []string
	for _, p := range phrases {
		if strings.Contains(text, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

func capturedNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
