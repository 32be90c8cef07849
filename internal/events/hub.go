package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/retouch/retouch/internal/document"
)

type Room struct {
	sessionID string
	clients   map[string]*Client // clientID -> client
	state     *SessionState
	seq       int64
}

func NewRoom(sessionID string) *Room {
	return &Room{
		sessionID: sessionID,
		clients:   make(map[string]*Client),
		state:     NewSessionState(),
	}
}

// Hub fans server events out to every connection of a session.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sessionID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client; after the hub has stopped it is a no-op.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SessionID]
	if !ok {
		room = NewRoom(client.SessionID)
		h.rooms[client.SessionID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := NewMessage(TypeWelcome, WelcomePayload{ClientID: client.ClientID})
	client.Send(welcome)

	if stateMsg := room.state.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	slog.Info("client joined", "client", client.ClientID, "session", client.SessionID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.SessionID]
	if !ok {
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		return
	}

	delete(room.clients, client.ClientID)
	close(client.send)

	if len(room.clients) == 0 {
		delete(h.rooms, client.SessionID)
	}

	slog.Info("client left", "client", client.ClientID, "session", client.SessionID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for _, c := range room.clients {
			close(c.send)
		}
		delete(h.rooms, id)
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeRegionsSync:
		h.handleRegionsSync(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		errMsg, _ := NewMessage(TypeError, ErrorPayload{Message: "unknown message type " + msg.Type})
		sender.Send(errMsg)
	}
}

func (h *Hub) handleRegionsSync(sender *Client, msg *Message) {
	var doc document.InDocument
	if err := json.Unmarshal(msg.Payload, &doc); err != nil {
		slog.Warn("invalid regions payload", "error", err)
		return
	}
	if doc.Image != nil {
		for _, r := range doc.Regions {
			if err := document.CheckRegion(r, doc.Image); err != nil {
				slog.Warn("rejected regions sync", "error", err, "client", sender.ClientID)
				return
			}
		}
	}

	h.mu.RLock()
	room, ok := h.rooms[sender.SessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !room.state.Update(&doc) {
		return
	}

	out := &Message{
		Type:     TypeRegionsSync,
		ClientID: sender.ClientID,
		Payload:  msg.Payload,
	}
	h.broadcastToRoom(sender.SessionID, out, sender.ClientID)
}

// Publish sends an event to every connection of a session. Sessions with no
// open connection drop the event.
func (h *Hub) Publish(sessionID, msgType string, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		slog.Error("marshal event", "error", err, "type", msgType)
		return
	}
	h.broadcastToRoom(sessionID, msg, "")
}

// Clients returns the number of open connections for a session.
func (h *Hub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[sessionID]; ok {
		return len(room.clients)
	}
	return 0
}

// broadcastToRoom sends while holding the lock so removeClient cannot close
// a channel mid-send. Send never blocks.
func (h *Hub) broadcastToRoom(sessionID string, msg *Message, excludeClientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	room.seq++
	msg.Seq = room.seq
	msg.SessionID = sessionID

	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			c.Send(msg)
		}
	}
}
