// File: reactor/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle-keyed entry table. Lookups take the read side; attach, retire
// and whole-table iteration take the write side.

package reactor

import (
	"sync"

	"github.com/momentics/hioload-reactor/api"
)

type registry struct {
	mu      sync.RWMutex
	entries map[api.Handle]*Entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[api.Handle]*Entry)}
}

// lookup resolves a handle to its entry, or nil.
func (r *registry) lookup(h api.Handle) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[h]
}

// insert adds an entry; returns false when the handle is already
// attached.
func (r *registry) insert(e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[e.handle]; dup {
		return false
	}
	r.entries[e.handle] = e
	return true
}

// remove retires the entry registered for h, if it is still this one.
func (r *registry) remove(e *Entry) {
	r.mu.Lock()
	if cur, ok := r.entries[e.handle]; ok && cur == e {
		delete(r.entries, e.handle)
	}
	r.mu.Unlock()
}

// snapshot copies all current entries for iteration outside the lock.
func (r *registry) snapshot() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// size returns the number of attached entries.
func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
