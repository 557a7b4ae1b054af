package ws

import (
	"encoding/json"
	"sync"
)

// Member is one presence entry: a connection's (user, room) membership.
// Multiple connections of the same user are independent entries.
type Member struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// Envelope is the wire frame for every websocket event, both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub tracks which connections are present in which room and fans events
// out to them. It is the only shared mutable state in the service; presence
// is in-memory only and rebuilt from scratch on restart.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join records the client's presence and returns the room's member list
// including the new entry.
func (h *Hub) Join(c *Client) []Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[c.RoomID]; !ok {
		h.rooms[c.RoomID] = make(map[*Client]struct{})
	}
	h.rooms[c.RoomID][c] = struct{}{}
	return h.membersLocked(c.RoomID)
}

// Leave removes the client's presence (no-op if absent) and returns the
// updated member list.
func (h *Hub) Leave(c *Client) []Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[c.RoomID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			c.closeSendOnce()
		}
		if len(set) == 0 {
			delete(h.rooms, c.RoomID)
		}
	}
	return h.membersLocked(c.RoomID)
}

func (h *Hub) MembersOf(roomID string) []Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.membersLocked(roomID)
}

func (h *Hub) membersLocked(roomID string) []Member {
	members := []Member{}
	for c := range h.rooms[roomID] {
		members = append(members, Member{UserID: c.UserID, Username: c.Username})
	}
	return members
}

// Broadcast fans an event out to every connection currently in the room.
// A member whose send buffer overflows is treated as dead and unregistered,
// so healthy members never miss a room event behind a stuck peer.
func (h *Hub) Broadcast(roomID, event string, data any) {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for c := range set {
		if !c.trySend(b) {
			delete(set, c)
			c.closeSendOnce()
		}
	}
	if len(set) == 0 {
		delete(h.rooms, roomID)
	}
}
