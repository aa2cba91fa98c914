package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateCompletion(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Etlaq App", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "cmpl-1",
			"model": "openai/gpt-3.5-turbo",
			"choices": []map[string]interface{}{
				{
					"message":       map[string]string{"role": "assistant", "content": "hello"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Referer: "http://localhost:3000",
		Title:   "Etlaq App",
	})

	completion, err := client.CreateCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, CompletionOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "cmpl-1", completion.ID)
	assert.Len(t, completion.Choices, 1)
	assert.Equal(t, "hello", completion.Choices[0].Message.Content)

	// Defaults are applied and stream is off.
	assert.Equal(t, "openai/gpt-3.5-turbo", received["model"])
	assert.Equal(t, false, received["stream"])
	assert.Equal(t, 0.7, received["temperature"])
	assert.Equal(t, float64(1000), received["max_tokens"])
}

func TestStreamCompletionReturnsRawBody(t *testing.T) {
	upstream := "data: {\"delta\":\"a\"}\n\ndata: [DONE]\n\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var received map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, true, received["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, upstream)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})

	body, err := client.StreamCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, CompletionOptions{})
	assert.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	assert.NoError(t, err)
	assert.Equal(t, upstream, string(data))
}

func TestUpstreamErrorTranslation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})

	_, err := client.CreateCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, CompletionOptions{})
	assert.Error(t, err)

	var upstream *UpstreamError
	assert.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, "rate limited", upstream.Message)
}

func TestUpstreamErrorWithoutJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})

	_, err := client.StreamCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, CompletionOptions{})
	var upstream *UpstreamError
	assert.True(t, errors.As(err, &upstream))
	assert.Equal(t, "request failed with status 502", upstream.Message)
}

func TestUnconfigured(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.Configured())

	_, err := client.CreateCompletion(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, CompletionOptions{})
	assert.Error(t, err)
}
