// Package websocket pushes reconciliation warnings and import completions to
// connected finance operators.
package websocket

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type Alert struct {
	Type    string          `json:"type"`
	Warning *ledger.Warning `json:"warning,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload interface{}     `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

const (
	AlertWarning = "warning"
	AlertEvent   = "event"
)

const alertBuffer = 256

// Hub fans alerts out to every registered operator connection. An operator
// may hold several connections at once.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Alert

	clients map[*Client]bool
	done    chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Alert, alertBuffer),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Conn.Close()
			}
			return
		case client := <-h.Register:
			log.Printf("Operator registered: %s", client.UserID)
			h.clients[client] = true
		case client := <-h.Unregister:
			if h.clients[client] {
				log.Printf("Operator unregistered: %s", client.UserID)
				delete(h.clients, client)
			}
		case alert := <-h.Broadcast:
			for client := range h.clients {
				if err := client.Conn.WriteJSON(alert); err != nil {
					log.Printf("Error sending alert to operator %s: %v", client.UserID, err)
					client.Conn.Close()
					delete(h.clients, client)
				}
			}
		}
	}
}

// Join registers a client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters a client without blocking after the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Push queues a warning. It never blocks the import that raised it; when
// the buffer is full the alert is only logged.
func (h *Hub) Push(w ledger.Warning) {
	h.send(Alert{Type: AlertWarning, Warning: &w, At: time.Now()})
}

// Publish forwards import completions. Per-row events stay on the event bus.
func (h *Hub) Publish(eventType string, payload interface{}) {
	if eventType != events.ImportCompleted {
		return
	}
	h.send(Alert{Type: AlertEvent, Event: eventType, Payload: payload, At: time.Now()})
}

func (h *Hub) send(alert Alert) {
	select {
	case h.Broadcast <- alert:
	default:
		log.Printf("⚠️ Operator alert dropped, hub is busy: %s", alert.Type)
	}
}
