package websocket

import (
	"log/slog"
	"sort"
	"sync"
)

// Conn is a live client attachment as seen by the Hub.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close()
}

// Hub owns the transport side of room membership: the live connections and the
// broadcast groups they have joined.
type Hub struct {
	// Registered connections by ID
	conns map[string]Conn

	// Broadcast groups: group -> connection ID -> Conn
	groups map[string]map[string]Conn

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		groups: make(map[string]map[string]Conn),
	}
}

func (h *Hub) Add(conn Conn) {
	h.mu.Lock()
	h.conns[conn.ID()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	slog.Debug("Client registered", "clientID", conn.ID(), "clients", count)
}

// Remove drops a connection and takes it out of every group. It returns the
// groups the connection was still part of.
func (h *Hub) Remove(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)

	var left []string
	for group, members := range h.groups {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
		left = append(left, group)
	}
	sort.Strings(left)
	return left
}

// Join puts a registered connection into a group. It reports false when the
// connection is unknown.
func (h *Hub) Join(group, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return false
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]Conn)
		h.groups[group] = members
	}
	members[connID] = conn
	return true
}

func (h *Hub) Leave(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Emit sends data to every member of group except the connection with ID except.
// It returns the number of successful deliveries.
func (h *Hub) Emit(group string, data []byte, except string) int {
	h.mu.RLock()
	members := make([]Conn, 0, len(h.groups[group]))
	for id, conn := range h.groups[group] {
		if id == except {
			continue
		}
		members = append(members, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range members {
		if err := conn.Send(data); err != nil {
			// the read pump notices the dead connection and disconnects it
			slog.Warn("Failed to deliver to group member", "group", group, "clientID", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// EmitTo sends data to a single connection.
func (h *Hub) EmitTo(connID string, data []byte) error {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return ErrClientDisconnected
	}
	return conn.Send(data)
}

// Groups returns a snapshot of the group table: group -> member IDs.
func (h *Hub) Groups() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make(map[string][]string, len(h.groups))
	for group, members := range h.groups {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		snapshot[group] = ids
	}
	return snapshot
}

// CloseAll closes every registered connection. Each one is removed once its
// transport reports the disconnect.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
	slog.Info("Closed all clients", "clients", len(conns))
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
