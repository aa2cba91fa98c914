// Package openrouter is a client for the OpenRouter chat-completions API.
// https://openrouter.ai/docs
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

const (
	defaultModel       = "openai/gpt-3.5-turbo"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// Config holds OpenRouter credentials and attribution headers.
type Config struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
}

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions are the caller-tunable generation parameters. Nil fields
// fall back to the gateway defaults.
type CompletionOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// CompletionResponse is a non-streaming chat completion.
type CompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// UpstreamError is a non-OK gateway response translated into the local
// error shape.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openrouter request failed: %d: %s", e.Status, e.Message)
}

// Client talks to the OpenRouter gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an OpenRouter client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// CreateCompletion performs a non-streaming chat completion.
func (c *Client) CreateCompletion(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (*CompletionResponse, error) {
	resp, err := c.send(ctx, messages, opts, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var completion CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	return &completion, nil
}

// StreamCompletion performs a streaming chat completion and returns the raw
// SSE body for the caller to relay verbatim. The caller owns closing it.
func (c *Client) StreamCompletion(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (io.ReadCloser, error) {
	resp, err := c.send(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) send(ctx context.Context, messages []ChatMessage, opts CompletionOptions, stream bool) (*http.Response, error) {
	if !c.Configured() {
		return nil, errors.New("openrouter API key not configured")
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	temperature := defaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := defaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	payload, err := json.Marshal(map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"stream":      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Read the full error body before any streaming begins.
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamError{Status: resp.StatusCode, Message: parseErrorMessage(body, resp.StatusCode)}
	}
	return resp, nil
}

// parseErrorMessage extracts the gateway's {"error":{"message":...}} shape.
func parseErrorMessage(body []byte, status int) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("request failed with status %d", status)
}
