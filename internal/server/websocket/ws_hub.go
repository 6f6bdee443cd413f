package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arsmhmt/unifiedgw/internal/domain"
)

// WsHub fans checkout status updates out to the payer pages watching a
// session. Clients are keyed by the session public id.
type WsHub struct {
	Clients    map[string]map[*websocket.Conn]bool
	Broadcast  chan WsMessage
	Register   chan *WsClient
	Unregister chan *WsClient
	Logger     zerolog.Logger
}

type WsClient struct {
	SessionID string
	Conn      *websocket.Conn
}

type WsMessage struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	EventType string `json:"event_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewWsHub(logger zerolog.Logger) *WsHub {
	return &WsHub{
		Clients:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:  make(chan WsMessage, 100),
		Register:   make(chan *WsClient, 100),
		Unregister: make(chan *WsClient, 100),
		Logger:     logger,
	}
}

func (h *WsHub) Run() {
	for {
		select {
		case client := <-h.Register:
			if h.Clients[client.SessionID] == nil {
				h.Clients[client.SessionID] = make(map[*websocket.Conn]bool)
			}
			h.Clients[client.SessionID][client.Conn] = true
			h.Logger.Info().
				Str("session_id", client.SessionID).
				Int("connection_count", len(h.Clients[client.SessionID])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			if clients, ok := h.Clients[client.SessionID]; ok {
				delete(clients, client.Conn)
				if len(clients) == 0 {
					delete(h.Clients, client.SessionID)
				}
				client.Conn.Close()
				h.Logger.Info().
					Str("session_id", client.SessionID).
					Msg("WebSocket client unregistered")
			}

		case message := <-h.Broadcast:
			clients, ok := h.Clients[message.SessionID]
			if !ok {
				continue
			}
			for conn := range clients {
				if err := conn.WriteJSON(message); err != nil {
					h.Logger.Err(err).
						Str("session_id", message.SessionID).
						Str("status", message.Status).
						Msg("Failed to send WebSocket message")
					conn.Close()
					delete(clients, conn)
				}
			}
			if len(clients) == 0 {
				delete(h.Clients, message.SessionID)
			}
		}
	}
}

// BroadcastTransition pushes a session status change to every watcher.
func (h *WsHub) BroadcastTransition(publicID string, status domain.SessionStatus, eventType domain.EventType) {
	h.Broadcast <- WsMessage{
		SessionID: publicID,
		Status:    string(status),
		EventType: string(eventType),
		Timestamp: time.Now().Unix(),
	}
}
