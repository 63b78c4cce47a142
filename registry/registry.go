// Package registry tracks every live subscription process-wide so a caller
// can cancel all of them at once (e.g. on process shutdown) without holding
// on to every individual Handle.
package registry

import "sync"

// global is the process-wide registry every subscription registers with.
var global = New()

// Registry maps a subscription id to the cancel function that stops it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]func()
}

// New returns an empty Registry. Most callers use the process-wide instance
// via the package-level functions below; New exists so tests can exercise
// the registry in isolation.
func New() *Registry {
	return &Registry{entries: make(map[string]func())}
}

// Register adds id with its cancel function. Registering the same id twice
// overwrites the previous entry.
func (r *Registry) Register(id string, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = cancel
}

// Unregister removes id, if present. It is safe to call more than once for
// the same id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// ShutdownAll cancels every registered subscription and clears the
// registry. Cancel functions are invoked while the lock is held is avoided:
// they are collected first, then called, so a subscription's own
// Unregister call (triggered by cancellation) cannot deadlock on r.mu.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	cancels := make([]func(), 0, len(r.entries))
	for _, c := range r.entries {
		cancels = append(cancels, c)
	}
	r.entries = make(map[string]func())
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// Len reports the number of currently registered subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Register, Unregister, ShutdownAll, and Len operate on the process-wide
// registry every subscription uses.
func Register(id string, cancel func()) { global.Register(id, cancel) }
func Unregister(id string)              { global.Unregister(id) }
func ShutdownAll()                      { global.ShutdownAll() }
func Len() int                          { return global.Len() }
