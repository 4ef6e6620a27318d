package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionJSON(text string) string {
	resp := map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
		"usage": map[string]int{
			"prompt_tokens":     12,
			"completion_tokens": 7,
			"total_tokens":      19,
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		ExtraHeaders: map[string]string{
			"X-Title": "personasim-test",
		},
	})
	require.NoError(t, err)
	return client, srv
}

func TestSend_Success(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotTitle string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON("Hi — how can I help you?")))
	})

	reply, err := client.Send(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	}, Params{Model: "gpt-test", Temperature: 0, TopP: 1})

	require.NoError(t, err)
	assert.Equal(t, "Hi — how can I help you?", reply.Text)
	assert.Equal(t, "test-model", reply.Model)
	assert.Equal(t, 19, reply.Usage.TotalTokens)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "personasim-test", gotTitle)
	assert.Equal(t, "gpt-test", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, RoleSystem, gotReq.Messages[0].Role)
}

func TestSend_RateLimitedIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSend_ClientErrorIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	})

	_, err := client.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSend_EmptyChoicesIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","choices":[]}`))
	})

	_, err := client.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSend_NetworkFailureIsTransient(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Params{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewOpenAIClient_RequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	assert.Error(t, err)
}

func TestErrorClassificationHelpers(t *testing.T) {
	te := &TransientError{Err: context.DeadlineExceeded}
	pe := &PermanentError{Err: context.Canceled}

	assert.True(t, IsTransient(te))
	assert.False(t, IsTransient(pe))
	assert.True(t, IsPermanent(pe))
	assert.False(t, IsPermanent(te))

	// Classification survives wrapping.
	assert.True(t, IsTransient(&wrapErr{te}))
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }
