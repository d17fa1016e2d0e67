package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/http/response"
	"github.com/brightpath/iep-backend/internal/observability"
	"github.com/brightpath/iep-backend/internal/platform/ctxutil"
	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
)

// EventsHandler serves the SSE stream. Connections are keyed by a
// client-chosen id so subscribe/unsubscribe can address an open stream.
type EventsHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*realtime.SSEClient
}

func NewEventsHandler(log *logger.Logger, hub *realtime.SSEHub) *EventsHandler {
	return &EventsHandler{
		log:     log.With("handler", "EventsHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*realtime.SSEClient),
	}
}

// GET /api/events/stream?client_id=<uuid>&channels=student:<uuid>,approvals
func (h *EventsHandler) Stream(c *gin.Context) {
	clientID := uuid.New()
	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		clientID = parsed
	}

	actor := "anonymous"
	if a := ctxutil.GetActor(c.Request.Context()); a != nil {
		actor = a.ID
	}

	h.mu.Lock()
	// A reconnect with the same id replaces the old stream.
	if existing, ok := h.clients[clientID]; ok {
		h.hub.CloseClient(existing)
		delete(h.clients, clientID)
	}
	client := h.hub.NewSSEClient(actor)
	client.ID = clientID
	h.clients[clientID] = client
	h.mu.Unlock()

	for _, channel := range strings.Split(c.Query("channels"), ",") {
		h.hub.AddChannel(client, channel)
	}
	h.log.Info("SSE stream open", "client_id", clientID, "actor", actor)
	observability.Current().SSEClientOpened()

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if h.clients[clientID] == client {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()
	h.hub.CloseClient(client)
	observability.Current().SSEClientClosed()
}

// POST /api/events/subscribe
// { "client_id": "<uuid>", "channel": "student:<uuid>" }
func (h *EventsHandler) Subscribe(c *gin.Context) {
	client, channel, ok := h.bindChannelRequest(c)
	if !ok {
		return
	}
	h.hub.AddChannel(client, channel)
	response.RespondOK(c, gin.H{"subscribed": channel})
}

// POST /api/events/unsubscribe
// { "client_id": "<uuid>", "channel": "student:<uuid>" }
func (h *EventsHandler) Unsubscribe(c *gin.Context) {
	client, channel, ok := h.bindChannelRequest(c)
	if !ok {
		return
	}
	h.hub.RemoveChannel(client, channel)
	response.RespondOK(c, gin.H{"unsubscribed": channel})
}

func (h *EventsHandler) bindChannelRequest(c *gin.Context) (*realtime.SSEClient, string, bool) {
	var req struct {
		ClientID string `json:"client_id"`
		Channel  string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return nil, "", false
	}
	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", nil)
		return nil, "", false
	}
	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return nil, "", false
	}

	h.mu.RLock()
	client, exists := h.clients[clientID]
	h.mu.RUnlock()
	if !exists {
		response.RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return nil, "", false
	}
	return client, channel, true
}
