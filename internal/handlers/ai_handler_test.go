package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"etlaq/internal/handlers"
	"etlaq/pkg/openrouter"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// stubChatProvider is a canned implementation of handlers.ChatProvider.
type stubChatProvider struct {
	configured bool
	completion *openrouter.CompletionResponse
	stream     string
	err        error
	calls      int
}

func (s *stubChatProvider) Configured() bool { return s.configured }

func (s *stubChatProvider) CreateCompletion(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.CompletionOptions) (*openrouter.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.completion, nil
}

func (s *stubChatProvider) StreamCompletion(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.CompletionOptions) (io.ReadCloser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.stream)), nil
}

func chatApp(provider handlers.ChatProvider) *fiber.App {
	app := fiber.New()
	handlers.NewAIHandler(provider).RegisterRoutes(app.Group("/api"))
	return app
}

func chatRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChatUnconfigured(t *testing.T) {
	provider := &stubChatProvider{configured: false}
	app := chatApp(provider)

	resp, err := app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
	assert.Zero(t, provider.calls)
}

func TestChatValidatesMessages(t *testing.T) {
	provider := &stubChatProvider{configured: true}
	app := chatApp(provider)

	// Empty message list
	resp, err := app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Message missing content
	resp, err = app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{{"role": "user"}},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	assert.Zero(t, provider.calls)
}

func TestChatUpstreamErrorBeforeStreaming(t *testing.T) {
	provider := &stubChatProvider{
		configured: true,
		err:        &openrouter.UpstreamError{Status: 429, Message: "rate limited"},
	}
	app := chatApp(provider)

	resp, err := app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	// A failed upstream never turns into an SSE response.
	assert.NotContains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	body := decodeBody(t, resp)
	assert.Equal(t, "rate limited", body["error"])
}

func TestChatStreamRelayedVerbatim(t *testing.T) {
	upstream := "data: {\"choice\":\"a\"}\n\ndata: {\"choice\":\"b\"}\n\ndata: [DONE]\n\n"
	provider := &stubChatProvider{configured: true, stream: upstream}
	app := chatApp(provider)

	resp, err := app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"stream":   true,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, upstream, string(data))
}

func TestChatNonStreaming(t *testing.T) {
	provider := &stubChatProvider{
		configured: true,
		completion: &openrouter.CompletionResponse{ID: "cmpl-1", Model: "openai/gpt-3.5-turbo"},
	}
	app := chatApp(provider)

	resp, err := app.Test(chatRequest(t, map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"stream":   false,
	}), -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "cmpl-1", body["id"])
}
