// Package websocket implements a fan-out broadcaster, over
// github.com/gorilla/websocket connections, of propagation flush reports and
// contract violations for any program a client is watching. A client
// subscribes to exactly one program id at connect time, since a
// notification socket is opened as GET /programs/{id}/notifications.
package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Broadcaster is the publish side the propagation engine's caller and the
// contract tester's caller push through; it never blocks and never fails.
type Broadcaster interface {
	Broadcast(programID string, event *Event)
}

type broadcastMsg struct {
	programID string
	event     *Event
}

// Hub manages notification-socket connections, indexed by program id.
type Hub struct {
	clients map[*Client]bool
	byProgr map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	mu sync.RWMutex
}

// NewHub creates an empty Hub. Call Run in its own goroutine before serving
// any notification socket.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byProgr:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
	}
}

// Run drives the hub's event loop until ctx-less process exit; it is meant
// to run for the lifetime of the server.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.byProgr[c.programID] == nil {
		h.byProgr[c.programID] = make(map[*Client]bool)
	}
	h.byProgr[c.programID][c] = true
	log.Debug().Str("client_id", c.id).Str("program_id", c.programID).Msg("notification client registered")
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if set, ok := h.byProgr[c.programID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byProgr, c.programID)
		}
	}
}

// Broadcast enqueues event for delivery to every client watching
// programID. It never blocks the caller: a full broadcast channel drops
// the message rather than stall the propagation engine or contract tester.
func (h *Hub) Broadcast(programID string, event *Event) {
	select {
	case h.broadcast <- &broadcastMsg{programID: programID, event: event}:
	default:
		log.Warn().Str("program_id", programID).Str("event_type", event.Type).Msg("notification hub buffer full, dropping event")
	}
}

func (h *Hub) dispatch(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byProgr[msg.programID] {
		select {
		case c.send <- msg.event:
		default:
			log.Warn().Str("client_id", c.id).Msg("notification client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connections currently registered for
// programID (0 if none), for diagnostics.
func (h *Hub) ClientCount(programID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byProgr[programID])
}
