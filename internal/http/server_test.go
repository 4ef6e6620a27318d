package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{Port: 0, ServiceName: "sutserver-test"}, zap.NewNop())
}

func doChat(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	var resp chatResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "sutserver-test", health.Service)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatCompletions_AsksForMissingField(t *testing.T) {
	srv := newTestServer(t)

	rec, resp := doChat(t, srv, `{
		"model": "stub",
		"messages": [
			{"role": "system", "content": "be a recruiter"},
			{"role": "user", "content": "Hi, we need to hire someone soon."}
		]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "What is the job title for this role?", resp.Choices[0].Message.Content)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestChatCompletions_SingleQuestionPerTurn(t *testing.T) {
	srv := newTestServer(t)

	_, resp := doChat(t, srv, `{
		"model": "stub",
		"messages": [{"role": "user", "content": "We need a hire."}]
	}`)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, 1, strings.Count(resp.Choices[0].Message.Content, "?"))
}

func TestChatCompletions_ProgressesThroughFields(t *testing.T) {
	srv := newTestServer(t)

	_, resp := doChat(t, srv, `{
		"model": "stub",
		"messages": [
			{"role": "user", "content": "We need a senior backend engineer, remote and full-time, based in Berlin."}
		]
	}`)
	require.Len(t, resp.Choices, 1)
	// Title, workplace, employment, location and seniority are all present,
	// so the next question targets skills.
	assert.Contains(t, resp.Choices[0].Message.Content, "skills")
}

func TestChatCompletions_SummarizesWhenComplete(t *testing.T) {
	srv := newTestServer(t)

	complete := "We need a senior backend engineer, remote and full-time, based in Berlin. " +
		"Must have Go and PostgreSQL experience. Salary range is $140,000 to $170,000."

	_, resp := doChat(t, srv, `{
		"model": "stub",
		"messages": [{"role": "user", "content": "`+complete+`"}]
	}`)
	require.Len(t, resp.Choices, 1)
	reply := resp.Choices[0].Message.Content
	assert.Contains(t, reply, "To summarize the role:")
	assert.Contains(t, reply, "job title: senior backend engineer")
}

func TestChatCompletions_ClosesAfterSummary(t *testing.T) {
	srv := newTestServer(t)

	complete := "We need a senior backend engineer, remote and full-time, based in Berlin. " +
		"Must have Go and PostgreSQL experience. Salary range is $140,000 to $170,000."

	_, resp := doChat(t, srv, `{
		"model": "stub",
		"messages": [
			{"role": "user", "content": "`+complete+`"},
			{"role": "assistant", "content": "To summarize the role: senior backend engineer. Does that all look correct?"},
			{"role": "user", "content": "Yes, looks good."}
		]
	}`)
	require.Len(t, resp.Choices, 1)
	assert.Contains(t, resp.Choices[0].Message.Content, "I'll draft the job description")
}

func TestChatCompletions_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := doChat(t, srv, `{"model": "stub", "messages": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doChat(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
