package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5.0 // requests per second
	defaultBurst     = 10
)

// Config holds the settings for one OpenAI-compatible chat endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// ExtraHeaders are added to every request (e.g. OpenRouter attribution).
	ExtraHeaders map[string]string
}

// OpenAIClient implements Client against any OpenAI-compatible chat
// completions endpoint. A rate limiter smooths request bursts; retry policy
// is the caller's concern, so a single request either succeeds or fails with
// a Transient/Permanent classification.
type OpenAIClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIClient creates a client for the given endpoint.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAIClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Send performs a single chat completion request.
func (c *OpenAIClient) Send(ctx context.Context, messages []Message, params Params) (*Reply, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	})
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{Err: fmt.Errorf("rate limited (429)")}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("server error (%d): %s", resp.StatusCode, raw)}
	case resp.StatusCode != http.StatusOK:
		var errResp apiError
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return nil, &PermanentError{Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)}
		}
		return nil, &PermanentError{Err: fmt.Errorf("API error (%d): %s", resp.StatusCode, raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &TransientError{Err: fmt.Errorf("empty response from API")}
	}

	model := parsed.Model
	if model == "" {
		model = params.Model
	}

	return &Reply{
		Text:  parsed.Choices[0].Message.Content,
		Usage: parsed.Usage,
		Model: model,
	}, nil
}

var _ Client = (*OpenAIClient)(nil)
