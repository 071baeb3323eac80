package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lightning-paywall.backend/internal/interfaces/http/middleware"
	"lightning-paywall.backend/internal/realtime"
)

// EventsHandler streams realtime payment notifications to browser sessions
type EventsHandler struct {
	hub *realtime.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Subscribe handles GET /api/v1/events as a text event-stream scoped to the
// caller's session cookie.
func (h *EventsHandler) Subscribe(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "ERR_UNAUTHORIZED",
			"message": "session required",
		})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "ERR_INTERNAL",
			"message": "streaming unsupported",
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.hub.AddClient(sessionID)
	defer h.hub.RemoveClient(sessionID, client.ID)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-client.Send:
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
