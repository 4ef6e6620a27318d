package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/personasim/internal/extractor"
)

// chatRequest is the OpenAI chat completions request shape we accept.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// StubRecruiter is a scripted recruiter assistant. It inspects the
// conversation so far, extracts which mandatory fields are already known,
// and asks exactly one question about the first one still missing. Once
// all fields are captured it summarizes the role and then closes. The
// whole exchange is deterministic: same conversation in, same reply out.
type StubRecruiter struct {
	ext   *extractor.HeuristicExtractor
	spec  extractor.FieldSpec
	order []string
}

// questionFor maps each mandatory field to the single question the stub
// asks about it.
var questionFor = map[string]string{
	"job_title":       "What is the job title for this role?",
	"workplace_type":  "Will this role be remote, hybrid, or onsite?",
	"employment_type": "Is this a full-time, part-time, or contract position?",
	"location":        "Where is this position located?",
	"seniority_level": "What seniority level are you targeting, for example junior, mid-level, or senior?",
	"skills":          "What are the key skills or technologies required for this role?",
	"salary_range":    "What salary range do you have budgeted for this position?",
}

// NewStubRecruiter creates a stub with the default mandatory field spec.
func NewStubRecruiter() *StubRecruiter {
	return &StubRecruiter{
		ext:  extractor.NewHeuristicExtractor(),
		spec: extractor.DefaultFieldSpec(),
		order: []string{
			"job_title", "workplace_type", "employment_type", "location",
			"seniority_level", "skills", "salary_range",
		},
	}
}

// Reply produces the next recruiter message given the conversation so far.
func (r *StubRecruiter) Reply(userText string, priorAssistant []string) string {
	found, err := r.ext.Extract(context.Background(), userText, r.spec)
	if err != nil {
		found = map[string]string{}
	}

	for _, field := range r.order {
		if _, ok := found[field]; !ok {
			return questionFor[field]
		}
	}

	if !r.summaryGiven(priorAssistant) {
		return r.summarize(found)
	}
	return "Great, I have everything I need. I'll draft the job description and send it over for your review. Thanks for your time!"
}

func (r *StubRecruiter) summaryGiven(priorAssistant []string) bool {
	for _, text := range priorAssistant {
		if strings.Contains(strings.ToLower(text), "to summarize") {
			return true
		}
	}
	return false
}

func (r *StubRecruiter) summarize(found map[string]string) string {
	var b strings.Builder
	b.WriteString("To summarize the role: ")
	parts := make([]string, 0, len(r.order))
	for _, field := range r.order {
		if v, ok := found[field]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(field, "_", " "), v))
		}
	}
	b.WriteString(strings.Join(parts, "; "))
	b.WriteString(". Does that all look correct?")
	return b.String()
}

// handleChatCompletions serves the OpenAI-compatible stub endpoint.
func (s *Server) handleChatCompletions(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages must not be empty")
	}

	var userParts, assistantParts []string
	for _, m := range req.Messages {
		switch m.Role {
		case "user":
			userParts = append(userParts, m.Content)
		case "assistant":
			assistantParts = append(assistantParts, m.Content)
		}
	}

	reply := s.stub.Reply(strings.Join(userParts, " "), assistantParts)

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(strings.Fields(m.Content))
	}
	completionTokens := len(strings.Fields(reply))

	resp := chatResponse{
		ID:     "stub-" + c.Response().Header().Get(echo.HeaderXRequestID),
		Object: "chat.completion",
		Model:  "stub-recruiter",
		Choices: []chatChoice{{
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = reply

	return c.JSON(http.StatusOK, resp)
}
