package relay

import (
	"sort"
	"strings"
	"sync"
)

type Set map[string]struct{}

// Registry tracks connected clients and the rooms they joined.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Client // map client id -> Client
	roomMembers map[string]Set     // map room to client ids
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]*Client),
		roomMembers: make(map[string]Set),
	}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[c.ID] = c
}

// Unregister removes the client and every room membership it held.
// Empty rooms are dropped.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, clientID)
	for room, members := range r.roomMembers {
		delete(members, clientID)
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
}

// Join adds a registered client to a room, creating the room on the fly.
func (r *Registry) Join(clientID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[clientID]; !ok {
		return
	}
	if _, ok := r.roomMembers[room]; !ok {
		r.roomMembers[room] = make(Set)
	}
	r.roomMembers[room][clientID] = struct{}{}
}

func (r *Registry) Leave(clientID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.roomMembers[room]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
}

// LeavePrefix removes the client from every room whose name starts with prefix.
func (r *Registry) LeavePrefix(clientID, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room, members := range r.roomMembers {
		if !strings.HasPrefix(room, prefix) {
			continue
		}
		delete(members, clientID)
		if len(members) == 0 {
			delete(r.roomMembers, room)
		}
	}
}

// Room returns the clients of a room ordered by id.
func (r *Registry) Room(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return r.lookup(ids)
}

// All returns every connected client ordered by id.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return r.lookup(ids)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(ids []string) []*Client {
	sort.Strings(ids)
	clients := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.sessions[id]; ok {
			clients = append(clients, c)
		}
	}
	return clients
}
