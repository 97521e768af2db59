package core

import "sync"

// GroupCheckIns is the single global broadcast group all authenticated
// connections join.
const GroupCheckIns = "checkins"

// Group is a named broadcast set of clients. Sessions run one goroutine per
// connection, so membership is guarded by a mutex.
type Group struct {
	Name string

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewGroup constructs a group with no clients.
func NewGroup(name string) *Group {
	return &Group{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// Join inserts a client into the group. Returns true if newly added.
func (g *Group) Join(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.clients[c]; exists {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

// Leave deletes a client from the group. Safe to call for clients that never
// joined or were already removed. Returns true if removed.
func (g *Group) Leave(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.clients[c]; !exists {
		return false
	}
	delete(g.clients, c)
	return true
}

// Broadcast sends an event to all clients in the group, best-effort. A slow or
// closing recipient never blocks delivery to the others.
func (g *Group) Broadcast(event *Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for client := range g.clients {
		client.send(event)
	}
}

// Size returns the current number of joined clients.
func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Registry is a process-wide set of broadcast groups keyed by name. It is
// constructed at server start and handed to the transport.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewRegistry creates an empty group registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

// Get returns the named group, creating it on first use.
func (r *Registry) Get(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		g = NewGroup(name)
		r.groups[name] = g
	}
	return g
}
