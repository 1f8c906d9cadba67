package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arenabeat/resultgate/internal/services"
	"github.com/arenabeat/resultgate/pkg/domain"
)

type streamController struct{ svc services.StreamService }

func NewStreamController(svc services.StreamService) *streamController {
	return &streamController{svc: svc}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Handle serves the streaming endpoint. The whole session runs on this
// request goroutine; the response stays open until the service emits a
// terminal event or the client goes away.
func (h *streamController) Handle(c *gin.Context) {
	reqID := requestID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: c.Writer, flusher: flusher}
	h.svc.Run(c.Request.Context(), reqID, sink)
}

// requestID extracts the JSON-RPC id from a POST body when one is present.
// GET requests and unparsable bodies get a generated id.
func requestID(c *gin.Context) any {
	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return uuid.NewString()
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		return uuid.NewString()
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ID == nil {
		return uuid.NewString()
	}
	return req.ID
}

type sseSink struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func (s *sseSink) Send(ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
