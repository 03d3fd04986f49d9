// internal/handlers/hub.go
package handlers

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/game"
	"github.com/sirupsen/logrus"
)

// outBuffer is how many events a connection may fall behind before events are dropped.
const outBuffer = 64

// Connection is one live websocket. The write pump drains OutChan.
type Connection struct {
	ID      string
	Remote  string
	OutChan chan game.Event

	ws *websocket.Conn
}

func newConnection(ws *websocket.Conn, remote string) *Connection {
	return &Connection{
		ID:      uuid.NewString(),
		Remote:  remote,
		OutChan: make(chan game.Event, outBuffer),
		ws:      ws,
	}
}

// Hub tracks live connections and the per-room broadcast groups they belong to.
// It implements game.Transport; sends never block.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	groups map[uuid.UUID]map[string]struct{}
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]*Connection),
		groups: make(map[uuid.UUID]map[string]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// Unregister forgets the connection and removes it from every group.
// OutChan is left open; the write pump stops on its own context.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for roomID, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}
}

func (h *Hub) Send(connID string, ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[connID]; ok {
		h.deliver(c, ev)
	}
}

func (h *Hub) Broadcast(roomID uuid.UUID, ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.groups[roomID] {
		if c, ok := h.conns[connID]; ok {
			h.deliver(c, ev)
		}
	}
}

func (h *Hub) deliver(c *Connection, ev game.Event) {
	select {
	case c.OutChan <- ev:
	default:
		h.logger.WithFields(logrus.Fields{
			"conn":  c.ID,
			"event": ev.Type,
		}).Warn("outbound buffer full, dropping event")
	}
}

func (h *Hub) AddToGroup(roomID uuid.UUID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.groups[roomID] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) RemoveFromGroup(roomID uuid.UUID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[roomID]
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, roomID)
	}
}

// RoomsEvicted drops the groups of rooms the reconciler removed.
func (h *Hub) RoomsEvicted(ids []uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		delete(h.groups, id)
	}
	h.logger.WithField("rooms", len(ids)).Debug("dropped groups of evicted rooms")
}

// GroupSize is the number of connections subscribed to a room.
func (h *Hub) GroupSize(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomID])
}

// ConnectionCount is the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every live websocket with code and waits for the close handshakes.
func (h *Hub) CloseAll(code websocket.StatusCode, reason string) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		if c.ws != nil {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			_ = c.ws.Close(code, reason)
		}(c)
	}
	wg.Wait()
	h.logger.WithField("connections", len(conns)).Info("closed websocket connections")
}
