// Package ws pushes events to the websocket connections of their recipients.
// Polling the REST endpoints keeps working without it.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"agrimarket/events"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub keeps the open connections of each user
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*websocket.Conn]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*websocket.Conn]*Client)}
}

// H is the hub used by the HTTP handler and registered on the event bus
var H = NewHub()

// Register attaches conn to userID and starts its pumps
func (h *Hub) Register(userID uint, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]*Client)
	}
	client := &Client{Conn: conn, Send: make(chan []byte, 256)}
	h.clients[userID][conn] = client

	go h.writePump(client)
	return client
}

// Unregister detaches conn and closes its send channel
func (h *Hub) Unregister(userID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[userID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connected returns the number of open connections of userID
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendTo queues data for every connection of userID. Slow clients drop messages.
func (h *Hub) SendTo(userID uint, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
			sent++
		default:
		}
	}
	return sent
}

// Publish implements events.Publisher: the event goes to its recipients only
func (h *Hub) Publish(_ context.Context, ev events.Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	for _, uid := range ev.Recipients {
		h.SendTo(uid, data)
	}
	return nil
}

func (h *Hub) writePump(client *Client) {
	defer func() {
		_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = client.Conn.Close()
	}()
	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Println("ws: write failed:", err)
			break
		}
	}
}
