// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package grouphost

import (
	"sync"

	"github.com/plugbridge/plugbridge/internal/bridge"
)

// entry is one hosted plugin: its bridge and the done channel of the
// dispatch goroutine bound to it. The registry is the sole owner of every
// entry; nothing else may hold a bridge.
type entry struct {
	bridge bridge.Bridge
	done   chan struct{}
}

// registry is the single source of truth for which plugin instances are
// alive in this process. Every access happens under the mutex and no lock
// is held across a blocking call; iteration hands entries to a callback
// inside the lock instead of exposing the map.
type registry struct {
	mu      sync.Mutex
	plugins map[bridge.HostingRequest]*entry
}

func newRegistry() *registry {
	return &registry{plugins: make(map[bridge.HostingRequest]*entry)}
}

// insert adds an entry under key. Returns false when the key is already
// present, which callers treat as a contract violation: socket endpoint
// names are generated to be unique per plugin instance.
func (r *registry) insert(key bridge.HostingRequest, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[key]; ok {
		return false
	}
	r.plugins[key] = e
	return true
}

func (r *registry) contains(key bridge.HostingRequest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.plugins[key]
	return ok
}

// remove deletes and returns the entry under key, or nil.
func (r *registry) remove(key bridge.HostingRequest) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.plugins[key]
	delete(r.plugins, key)
	return e
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plugins)
}

// forEach runs fn for every live entry while holding the lock.
func (r *registry) forEach(fn func(key bridge.HostingRequest, e *entry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.plugins {
		fn(key, e)
	}
}

// locked runs fn while holding the registry lock.
func (r *registry) locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// anySkipMessageLoop reports whether any hosted plugin wants message
// pumping suppressed this tick.
func (r *registry) anySkipMessageLoop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.plugins {
		if e.bridge.SkipMessageLoop() {
			return true
		}
	}
	return false
}
