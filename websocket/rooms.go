package websocket

import "sync"

// Rooms tracks which connections currently receive broadcasts for which room.
// It is not authoritative for who may join; callers check that first.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to room. It reports false when c was already a member.
func (r *Rooms) Join(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[room]
	if !ok {
		set = make(map[*Client]struct{})
		r.members[room] = set
	}
	if _, ok := set[c]; ok {
		return false
	}
	set[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes c from room. Leaving a room that was never joined is a no-op.
func (r *Rooms) Leave(c *Client, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(c, room)
}

func (r *Rooms) leave(c *Client, room string) {
	if set, ok := r.members[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, c)
		}
	}
}

// LeaveAll drops every membership of c.
func (r *Rooms) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.joined[c] {
		r.leave(c, room)
	}
}

// Members returns a snapshot of the connections joined to room.
func (r *Rooms) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[room]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) IsMember(c *Client, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][c]
	return ok
}

// RoomCount is the number of rooms with at least one member.
func (r *Rooms) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
