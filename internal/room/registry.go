package room

import (
	"sort"
	"sync"
)

// RoomStats describes a single room in a Stats snapshot.
type RoomStats struct {
	Connections int      `json:"connections"`
	SocketIDs   []string `json:"socketIds"`
}

// Stats is an aggregate view of room membership. TotalConnections counts a
// connection once per room it belongs to.
type Stats struct {
	TotalRooms       int                  `json:"totalRooms"`
	TotalConnections int                  `json:"totalConnections"`
	Rooms            map[string]RoomStats `json:"rooms"`
}

// Registry tracks which connections belong to which room.
// A room with no members is never kept.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to the room, creating the room if needed.
func (r *Registry) Join(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// Leave removes connID from the room and drops the room once it is empty.
func (r *Registry) Leave(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns the sorted member IDs of a room, or nil if the room does not exist.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return sortedKeys(members)
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make(map[string][]string, len(r.rooms))
	for roomID, members := range r.rooms {
		groups[roomID] = sortedKeys(members)
	}
	return StatsFromGroups(groups)
}

// StatsFromGroups builds a Stats value from a room -> member IDs table.
// Empty rooms are skipped.
func StatsFromGroups(groups map[string][]string) Stats {
	stats := Stats{Rooms: make(map[string]RoomStats, len(groups))}
	for roomID, members := range groups {
		if len(members) == 0 {
			continue
		}
		ids := append([]string(nil), members...)
		sort.Strings(ids)
		stats.Rooms[roomID] = RoomStats{Connections: len(ids), SocketIDs: ids}
		stats.TotalConnections += len(ids)
	}
	stats.TotalRooms = len(stats.Rooms)
	return stats
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
