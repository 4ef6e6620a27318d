// Package agent provides the chat completion clients for the two agent
// roles. The conversation engine depends only on the Client interface;
// the OpenAI-compatible HTTP implementation lives here as plumbing.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single role-tagged message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles on the wire (OpenAI chat format).
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Params carries the sampling parameters for a single request.
type Params struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Usage is the token accounting returned with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Reply is a generated completion.
type Reply struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
	Model string `json:"model"`
}

// Client sends role-tagged messages to one agent endpoint and returns the
// generated reply. Implementations must classify failures as transient
// (wrapped in TransientError) or permanent (wrapped in PermanentError).
type Client interface {
	Send(ctx context.Context, messages []Message, params Params) (*Reply, error)
}

// TransientError marks a failure worth retrying: network faults, HTTP 5xx,
// rate limiting.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: auth errors,
// malformed requests.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
