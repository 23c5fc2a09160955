package websocket

import (
	"slices"

	"chat-relay/internal/room"
)

// GetConnectionStats reports room membership as tracked by the registry.
func (m *Multiplexer) GetConnectionStats() room.Stats {
	return m.registry.Stats()
}

// GetTransportStats reports the same view computed from the hub's group table.
func (m *Multiplexer) GetTransportStats() room.Stats {
	return room.StatsFromGroups(m.hub.Groups())
}

// CheckConsistency compares registry and transport membership under the
// multiplexer lock and returns a *RegistryDesyncError naming every room that differs.
func (m *Multiplexer) CheckConsistency() error {
	m.mu.Lock()
	registry := m.registry.Stats()
	transport := m.GetTransportStats()
	m.mu.Unlock()

	var rooms []string
	for roomID, rs := range registry.Rooms {
		ts, ok := transport.Rooms[roomID]
		if !ok || !slices.Equal(rs.SocketIDs, ts.SocketIDs) {
			rooms = append(rooms, roomID)
		}
	}
	for roomID := range transport.Rooms {
		if _, ok := registry.Rooms[roomID]; !ok {
			rooms = append(rooms, roomID)
		}
	}

	if len(rooms) == 0 {
		return nil
	}
	return &RegistryDesyncError{Rooms: rooms}
}
