package sse

import (
	"sync"
	"time"
)

// Registry owns all live connections. One primary map keyed by connection id
// plus two secondary indexes (user id and session id to id sets). Every
// mutation maintains the indexes atomically under a single mutex: an id is in
// the primary map if and only if it is in every secondary index whose field
// is set on the connection, and empty index sets are removed.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*Connection
	byUser    map[string]map[string]struct{}
	bySession map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[string]*Connection),
		byUser:    make(map[string]map[string]struct{}),
		bySession: make(map[string]map[string]struct{}),
	}
}

// Add inserts a connection and its index entries. Returns false when the id
// is already taken; the connection is not inserted in that case.
func (r *Registry) Add(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.id]; exists {
		return false
	}
	r.conns[c.id] = c

	if c.userID != "" {
		if r.byUser[c.userID] == nil {
			r.byUser[c.userID] = make(map[string]struct{})
		}
		r.byUser[c.userID][c.id] = struct{}{}
	}
	if c.sessionID != "" {
		if r.bySession[c.sessionID] == nil {
			r.bySession[c.sessionID] = make(map[string]struct{})
		}
		r.bySession[c.sessionID][c.id] = struct{}{}
	}
	return true
}

// Remove deletes a connection and all its index entries. Returns the removed
// connection, or nil when the id was not registered.
func (r *Registry) Remove(id string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	r.dropIndex(r.byUser, c.userID, id)
	r.dropIndex(r.bySession, c.sessionID, id)
	return c
}

// dropIndex removes id from the given index set and deletes the key when the
// set empties. Caller holds the lock.
func (r *Registry) dropIndex(index map[string]map[string]struct{}, key, id string) {
	if key == "" {
		return
	}
	if set, ok := index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// Get returns the connection with the given id, or nil.
func (r *Registry) Get(id string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// List resolves a selector to the matching connections. The result is a
// consistent snapshot: connections added or removed after List returns are
// not reflected.
func (r *Registry) List(sel Selector) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sel.ConnectionID != "" {
		if c, ok := r.conns[sel.ConnectionID]; ok && sel.matchesMetadata(c) {
			return []*Connection{c}
		}
		return nil
	}

	var idSet map[string]struct{}
	restricted := false

	if sel.UserID != "" {
		set, ok := r.byUser[sel.UserID]
		if !ok {
			return nil
		}
		idSet = set
		restricted = true
	}
	if sel.SessionID != "" {
		set, ok := r.bySession[sel.SessionID]
		if !ok {
			return nil
		}
		if restricted {
			idSet = intersect(idSet, set)
		} else {
			idSet = set
		}
		restricted = true
	}

	var out []*Connection
	if !restricted {
		out = make([]*Connection, 0, len(r.conns))
		for _, c := range r.conns {
			if sel.matchesMetadata(c) {
				out = append(out, c)
			}
		}
		return out
	}

	out = make([]*Connection, 0, len(idSet))
	for id := range idSet {
		if c, ok := r.conns[id]; ok && sel.matchesMetadata(c) {
			out = append(out, c)
		}
	}
	return out
}

// ListStale returns all connections whose last-seen timestamp is older than
// the given timeout.
func (r *Registry) ListStale(timeout time.Duration) []*Connection {
	cutoff := time.Now().Add(-timeout).UnixMilli()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*Connection
	for _, c := range r.conns {
		if c.staleBefore(cutoff) {
			stale = append(stale, c)
		}
	}
	return stale
}

// Touch refreshes the liveness timestamp of the given connection. Returns
// false when the id is not registered.
func (r *Registry) Touch(id string) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	c.Touch()
	return true
}

// TouchAll refreshes the liveness timestamp of every registered connection.
func (r *Registry) TouchAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		c.Touch()
	}
}

// Clear removes every connection and index entry, returning the connections
// that were registered so the caller can close them.
func (r *Registry) Clear() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.conns = make(map[string]*Connection)
	r.byUser = make(map[string]map[string]struct{})
	r.bySession = make(map[string]map[string]struct{})
	return out
}

// Snapshot captures registry-level counts, consistent within the call.
func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := RegistrySnapshot{
		TotalConnections:     len(r.conns),
		ConnectionsByUser:    make(map[string]int, len(r.byUser)),
		ConnectionsBySession: make(map[string]int, len(r.bySession)),
	}
	for _, c := range r.conns {
		if c.userID != "" {
			snap.Authenticated++
		} else {
			snap.Anonymous++
		}
	}
	for uid, set := range r.byUser {
		snap.ConnectionsByUser[uid] = len(set)
	}
	for sid, set := range r.bySession {
		snap.ConnectionsBySession[sid] = len(set)
	}
	return snap
}

// RegistrySnapshot holds registry-level counts.
type RegistrySnapshot struct {
	TotalConnections     int
	Authenticated        int
	Anonymous            int
	ConnectionsByUser    map[string]int
	ConnectionsBySession map[string]int
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{}, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
