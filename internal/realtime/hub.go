package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/metrics"
)

// BroadcastAll is the wildcard session marker: the frame goes to every
// connected client.
const BroadcastAll = "*"

const (
	clientBufferSize  = 16
	heartbeatInterval = 25 * time.Second
)

var heartbeatFrame = []byte(": heartbeat\n\n")

// Client is one connected browser stream. Frames arrive on Send; the HTTP
// handler owns draining it.
type Client struct {
	ID        string
	SessionID string
	Send      chan []byte
}

// Hub is the session-keyed fan-out registry for server-to-browser
// notifications. Adds, removes and broadcasts interleave continuously, so
// the registry sits behind a RWMutex and channel writes never block: a
// client that cannot keep up is dropped instead.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*Client),
	}
}

// AddClient registers a new client under the session and returns its handle.
func (h *Hub) AddClient(sessionID string) *Client {
	client := &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Send:      make(chan []byte, clientBufferSize),
	}

	h.mu.Lock()
	bucket, ok := h.sessions[sessionID]
	if !ok {
		bucket = make(map[string]*Client)
		h.sessions[sessionID] = bucket
	}
	bucket[client.ID] = client
	h.mu.Unlock()

	metrics.RealtimeClients.Inc()
	return client
}

// RemoveClient deregisters a client; removing the last client for a session
// prunes the session bucket.
func (h *Hub) RemoveClient(sessionID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID, clientID)
}

func (h *Hub) removeLocked(sessionID, clientID string) {
	bucket, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	if _, ok := bucket[clientID]; !ok {
		return
	}
	delete(bucket, clientID)
	if len(bucket) == 0 {
		delete(h.sessions, sessionID)
	}
	metrics.RealtimeClients.Dec()
}

// Broadcast writes an event frame to every client registered under
// sessionID (or every session for BroadcastAll). A full client channel
// drops that client rather than blocking the caller.
func (h *Hub) Broadcast(sessionID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error(context.Background(), "Could not encode realtime payload",
			zap.String("event", event), zap.Error(err))
		return
	}
	frame := formatFrame(event, data)
	h.send(sessionID, frame)
}

func (h *Hub) send(sessionID string, frame []byte) {
	type target struct{ sessionID, clientID string }
	var stale []target

	h.mu.RLock()
	if sessionID == BroadcastAll {
		for sid, bucket := range h.sessions {
			for _, client := range bucket {
				select {
				case client.Send <- frame:
				default:
					stale = append(stale, target{sid, client.ID})
				}
			}
		}
	} else if bucket, ok := h.sessions[sessionID]; ok {
		for _, client := range bucket {
			select {
			case client.Send <- frame:
			default:
				stale = append(stale, target{sessionID, client.ID})
			}
		}
	}
	h.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	h.mu.Lock()
	for _, t := range stale {
		h.removeLocked(t.sessionID, t.clientID)
	}
	h.mu.Unlock()
	logger.Warn(context.Background(), "Dropped stalled realtime clients", zap.Int("count", len(stale)))
}

// StartHeartbeat sends periodic no-op frames so idle connections are not
// reclaimed by intermediaries. Returns when ctx is cancelled.
func (h *Hub) StartHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.send(BroadcastAll, heartbeatFrame)
		}
	}
}

// formatFrame renders the two-line text event-stream framing: an event-name
// line and a JSON data line, terminated by a blank line.
func formatFrame(event string, data []byte) []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
}
