package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Single shared collection, no per-user access control
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub    *services.WebSocketHub
	logger *observability.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub, logger *observability.Logger) *WebSocketHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &WebSocketHandler{hub: hub, logger: logger.WithField("component", "websocket")}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection.
// New clients are subscribed to photo and thread changes; notices reach
// every client.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), conn)
	h.hub.Register(client)
	h.hub.Subscribe(client, services.TopicPhotos)
	h.hub.Subscribe(client, services.TopicThread)
	h.logger.WithField("clients", h.hub.GetClientCount()).
		WithField("photo_subscribers", h.hub.GetTopicSubscriberCount(services.TopicPhotos)).
		Debug("WebSocket client subscribed")

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.WithError(err).Debug("Invalid WebSocket message")
		return
	}

	switch msg.Type {
	case services.WSTypeSubscribe:
		if topic := topicOf(msg.Payload); topic != "" {
			h.hub.Subscribe(client, topic)
		}

	case services.WSTypeUnsubscribe:
		if topic := topicOf(msg.Payload); topic != "" {
			h.hub.Unsubscribe(client, topic)
		}

	case services.WSTypePing:
		response, _ := json.Marshal(services.WSMessage{Type: services.WSTypePong})
		select {
		case client.Send <- response:
		default:
		}

	default:
		h.logger.WithField("type", msg.Type).Debug("Unknown WebSocket message type")
	}
}

// topicOf accepts either "topic" or {"topic": "topic"}
func topicOf(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case map[string]interface{}:
		if topic, ok := p["topic"].(string); ok {
			return topic
		}
	}
	return ""
}
