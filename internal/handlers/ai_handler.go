package handlers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"

	"etlaq/pkg/openrouter"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// ChatProvider is the slice of the LLM gateway client the chat route needs.
type ChatProvider interface {
	Configured() bool
	CreateCompletion(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.CompletionOptions) (*openrouter.CompletionResponse, error)
	StreamCompletion(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.CompletionOptions) (io.ReadCloser, error)
}

// AIHandler proxies chat completions to the LLM gateway.
type AIHandler struct {
	provider ChatProvider
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(provider ChatProvider) *AIHandler {
	return &AIHandler{
		provider: provider,
	}
}

// RegisterRoutes registers the AI chat route with the Fiber app.
func (h *AIHandler) RegisterRoutes(router fiber.Router) {
	aiRoutes := router.Group("/ai")
	aiRoutes.Post("/chat", h.HandleChat)
}

// ChatRequest represents the request body for a chat completion.
type ChatRequest struct {
	Messages    []openrouter.ChatMessage `json:"messages"`
	Stream      *bool                    `json:"stream"`
	Model       string                   `json:"model"`
	Temperature *float64                 `json:"temperature"`
	MaxTokens   *int                     `json:"max_tokens"`
}

// HandleChat forwards a chat completion request upstream. With stream
// requested (the default) the upstream SSE bytes are relayed verbatim; an
// upstream failure before streaming begins is returned as a JSON error.
func (h *AIHandler) HandleChat(c *fiber.Ctx) error {
	if h.provider == nil || !h.provider.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "AI service not configured",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Messages are required",
		})
	}
	for _, msg := range req.Messages {
		if msg.Role == "" || msg.Content == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid message format",
			})
		}
	}

	opts := openrouter.CompletionOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	if !stream {
		completion, err := h.provider.CreateCompletion(c.Context(), req.Messages, opts)
		if err != nil {
			return h.upstreamError(c, err)
		}
		return c.JSON(completion)
	}

	// The upstream request is opened before any SSE header is written, so a
	// non-OK upstream response still comes back as a plain JSON error.
	body, err := h.provider.StreamCompletion(context.Background(), req.Messages, opts)
	if err != nil {
		return h.upstreamError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer body.Close()
		relayStream(body, w)
	}))
	return nil
}

// upstreamError translates a provider failure into the local error shape.
func (h *AIHandler) upstreamError(c *fiber.Ctx, err error) error {
	var upstream *openrouter.UpstreamError
	if errors.As(err, &upstream) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": upstream.Message,
		})
	}
	log.Printf("AI chat error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

// relayStream copies upstream bytes to the client verbatim, flushing each
// chunk as it arrives. A failed downstream write ends the relay.
func relayStream(src io.Reader, w *bufio.Writer) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if werr := w.Flush(); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
