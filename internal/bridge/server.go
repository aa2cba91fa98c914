package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Config holds the bridge's upstream coordinates.
type Config struct {
	StudioURL string
	ChatID    string
}

// Server is the local development bridge. It accepts agent prompts, forwards
// them to the Studio grab API with a cancellable context keyed by session id,
// and relays the SSE stream back to the caller.
type Server struct {
	cfg        Config
	registry   *Registry
	httpClient *http.Client
}

// NewServer creates a bridge Server around an existing session registry.
func NewServer(cfg Config, registry *Registry) *Server {
	return &Server{
		cfg:        cfg,
		registry:   registry,
		httpClient: &http.Client{},
	}
}

// App builds the Fiber application with all bridge routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	app.Get("/health", s.HandleHealth)
	app.Post("/agent", s.HandleAgent)
	app.Post("/abort/:sessionId", s.HandleAbort)

	return app
}

// HandleHealth reports whether the Studio integration is configured.
func (s *Server) HandleHealth(c *fiber.Ctx) error {
	chatID := "missing"
	if s.cfg.ChatID != "" {
		chatID = "configured"
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"provider": "etlaq-studio",
		"chatId":   chatID,
	})
}

// HandleAbort cancels an in-flight session and removes it from the registry.
func (s *Server) HandleAbort(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	aborted := s.registry.Abort(sessionID)
	return c.JSON(fiber.Map{
		"aborted": aborted,
	})
}

// AgentRequest represents the bridge request body.
type AgentRequest struct {
	SessionID string                 `json:"sessionId"`
	Context   map[string]interface{} `json:"context"`
	Prompt    string                 `json:"prompt"`
	System    *struct {
		Append string `json:"append"`
	} `json:"systemPrompt"`
}

// HandleAgent registers a session and relays the Studio response as SSE.
// Failures after the stream opens are reported as a single terminal event.
func (s *Server) HandleAgent(c *fiber.Ctx) error {
	if s.cfg.ChatID == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "STUDIO_CHAT_ID not configured",
			"message": "React-grab integration not available",
		})
	}

	var req AgentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	prompt := req.Prompt
	if prompt == "" && req.System != nil {
		prompt = req.System.Append
	}
	if req.Context == nil {
		req.Context = map[string]interface{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.registry.Add(sessionID, cancel)

	log.Printf("[GRAB] New session: %s", sessionID)

	payload, err := json.Marshal(map[string]interface{}{
		"chatId":  s.cfg.ChatID,
		"context": req.Context,
		"prompt":  prompt,
	})
	if err != nil {
		s.registry.Remove(sessionID)
		cancel()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			s.registry.Remove(sessionID)
			cancel()
		}()
		s.relay(ctx, w, sessionID, payload)
	}))
	return nil
}

// relay forwards the payload to the Studio grab API and streams the reply.
func (s *Server) relay(ctx context.Context, w *bufio.Writer, sessionID string, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.StudioURL+"/api/grab", bytes.NewReader(payload))
	if err != nil {
		writeEvent(w, map[string]string{"type": "error", "error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[GRAB] Error: %v", err)
			writeEvent(w, map[string]string{"type": "error", "error": err.Error()})
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		writeEvent(w, map[string]string{"type": "error", "error": string(body)})
		return
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if werr := w.Flush(); werr != nil {
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF && ctx.Err() == nil {
				log.Printf("[GRAB] Stream error: %v", readErr)
			}
			break
		}
	}

	writeEvent(w, map[string]string{"type": "complete", "sessionId": sessionID})
}

// writeEvent emits a single SSE data event and flushes it.
func writeEvent(w *bufio.Writer, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	w.Flush()
}
