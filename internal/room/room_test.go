package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		chatID    string
		want      string
	}{
		{name: "session and chat", sessionID: "s1", chatID: "c1", want: "s1-c1"},
		{name: "session only", sessionID: "s1", chatID: "", want: "s1"},
		{name: "chat with dashes", sessionID: "default", chatID: "5511999@c.us", want: "default-5511999@c.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.sessionID, tt.chatID))
			assert.Equal(t, Resolve(tt.sessionID, tt.chatID), Resolve(tt.sessionID, tt.chatID))
		})
	}
}

func TestResolveRequired(t *testing.T) {
	_, err := ResolveRequired("", "c1")
	assert.ErrorIs(t, err, ErrMissingSession)

	roomID, err := ResolveRequired("s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1-c1", roomID)
}

func TestRegistry_JoinLeave(t *testing.T) {
	r := NewRegistry()

	r.Join("s1-c1", "a")
	r.Join("s1-c1", "a")
	r.Join("s1-c1", "b")
	assert.Equal(t, []string{"a", "b"}, r.MembersOf("s1-c1"))

	r.Leave("s1-c1", "a")
	assert.Equal(t, []string{"b"}, r.MembersOf("s1-c1"))

	r.Leave("s1-c1", "missing")
	r.Leave("unknown-room", "b")
	assert.Equal(t, []string{"b"}, r.MembersOf("s1-c1"))

	r.Leave("s1-c1", "b")
	assert.Nil(t, r.MembersOf("s1-c1"))

	stats := r.Stats()
	assert.Equal(t, 0, stats.TotalRooms)
	assert.NotContains(t, stats.Rooms, "s1-c1")
}

func TestRegistry_Stats(t *testing.T) {
	tests := []struct {
		name            string
		setup           func(*Registry)
		wantRooms       int
		wantConnections int
	}{
		{
			name:  "empty registry",
			setup: func(r *Registry) {},
		},
		{
			name: "one room one connection",
			setup: func(r *Registry) {
				r.Join("s1", "a")
			},
			wantRooms:       1,
			wantConnections: 1,
		},
		{
			name: "connection in two rooms counts twice",
			setup: func(r *Registry) {
				r.Join("s1", "a")
				r.Join("s1-c1", "a")
				r.Join("s1-c1", "b")
			},
			wantRooms:       2,
			wantConnections: 3,
		},
		{
			name: "emptied room disappears",
			setup: func(r *Registry) {
				r.Join("s1", "a")
				r.Join("s2", "b")
				r.Leave("s2", "b")
			},
			wantRooms:       1,
			wantConnections: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)

			stats := r.Stats()
			assert.Equal(t, tt.wantRooms, stats.TotalRooms)
			assert.Equal(t, tt.wantConnections, stats.TotalConnections)

			sum := 0
			for _, rs := range stats.Rooms {
				assert.Equal(t, len(rs.SocketIDs), rs.Connections)
				assert.NotZero(t, rs.Connections)
				sum += rs.Connections
			}
			assert.Equal(t, stats.TotalConnections, sum)
		})
	}
}

func TestRegistry_NetEffect(t *testing.T) {
	r := NewRegistry()
	want := map[string]bool{}

	// deterministic interleaving of adds and removes
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("conn-%d", i%7)
		if i%3 == 0 {
			r.Leave("room", id)
			delete(want, id)
		} else {
			r.Join("room", id)
			want[id] = true
		}
	}

	members := r.MembersOf("room")
	assert.Len(t, members, len(want))
	for _, id := range members {
		assert.True(t, want[id], "unexpected member %s", id)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			r.Join("shared", id)
			r.Join(id, id)
			r.Leave(id, id)
		}(i)
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalRooms)
	assert.Equal(t, 20, stats.TotalConnections)
}

func TestStatsFromGroups_SkipsEmpty(t *testing.T) {
	stats := StatsFromGroups(map[string][]string{
		"s1":    {"b", "a"},
		"empty": {},
	})

	assert.Equal(t, 1, stats.TotalRooms)
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, []string{"a", "b"}, stats.Rooms["s1"].SocketIDs)
}
