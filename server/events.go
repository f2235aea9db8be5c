package server

import (
	"encoding/json"
	"net/http"

	"cuebase/logger"
	"cuebase/model"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHub fans library change notifications out to connected WebSocket
// clients. It satisfies the analysis dispatcher's Publisher interface, so
// background analysis completions reach the UI the same way direct edits do.
type EventHub struct {
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan model.Event
	done       chan struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub creates a hub; call Run in a goroutine before publishing.
func NewEventHub() *EventHub {
	return &EventHub{
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan model.Event, 64),
		done:       make(chan struct{}),
	}
}

// Run is the hub main loop. Clients are owned by this goroutine only.
func (h *EventHub) Run() {
	clients := make(map[*wsClient]bool)
	for {
		select {
		case client := <-h.register:
			clients[client] = true
		case client := <-h.unregister:
			if clients[client] {
				delete(clients, client)
				close(client.send)
			}
		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to encode event", logger.ErrorField(err))
				continue
			}
			for client := range clients {
				select {
				case client.send <- payload:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(clients, client)
					close(client.send)
				}
			}
		case <-h.done:
			for client := range clients {
				close(client.send)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *EventHub) Stop() {
	close(h.done)
}

// Publish queues an event for broadcast. Never blocks the caller.
func (h *EventHub) Publish(event model.Event) {
	select {
	case h.broadcast <- event:
	default:
		logger.Warn("Event broadcast queue full, dropping event",
			logger.String("type", string(event.Type)))
	}
}

// EventsHandler upgrades the connection and streams events until the client
// goes away. Inbound messages are read only to detect disconnects.
func (h *EventHub) EventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16)}
	h.register <- client

	go func() {
		defer conn.Close()
		for payload := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- client
}
