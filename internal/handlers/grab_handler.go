package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// GrabHandler proxies react-grab requests to the Studio grab API and relays
// the SSE stream. The route is only served in development mode.
type GrabHandler struct {
	studioURL  string
	chatID     string
	devMode    bool
	httpClient *http.Client
}

// NewGrabHandler creates a new GrabHandler.
func NewGrabHandler(studioURL, chatID string, devMode bool) *GrabHandler {
	return &GrabHandler{
		studioURL:  studioURL,
		chatID:     chatID,
		devMode:    devMode,
		httpClient: &http.Client{},
	}
}

// RegisterRoutes registers the grab route with the Fiber app.
func (h *GrabHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/grab", h.HandleGrab)
}

// GrabRequest represents the request body forwarded to Studio.
type GrabRequest struct {
	Context map[string]interface{} `json:"context"`
	Prompt  string                 `json:"prompt"`
}

// HandleGrab forwards the request to the Studio grab endpoint. An upstream
// non-OK response is translated to a JSON error carrying the upstream
// status; an OK response is relayed verbatim as an event stream.
func (h *GrabHandler) HandleGrab(c *fiber.Ctx) error {
	if !h.devMode {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "This endpoint is only available in development mode",
		})
	}

	if h.chatID == "" || h.studioURL == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "React-grab integration not configured",
			"details": "STUDIO_CHAT_ID or STUDIO_API_URL not set",
		})
	}

	var req GrabRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Context == nil {
		req.Context = map[string]interface{}{}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"chatId":  h.chatID,
		"context": req.Context,
		"prompt":  req.Prompt,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	upstreamReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, h.studioURL+"/api/grab", bytes.NewReader(payload))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(upstreamReq)
	if err != nil {
		log.Printf("[GRAB] Proxy error: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Proxy error",
		})
	}

	if resp.StatusCode != http.StatusOK {
		// Read the full error body before any streaming begins.
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Printf("[GRAB] Studio error: %s", body)
		return c.Status(resp.StatusCode).JSON(fiber.Map{
			"error":   "Studio request failed",
			"details": string(body),
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer resp.Body.Close()
		relayStream(resp.Body, w)
	}))
	return nil
}
