// Package session hosts one batch engine per session key, so independent
// jobs never share a queue.
package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voxcast/internal/batch"
)

// ErrSessionActive is returned when removing a session whose job is still
// running or paused.
var ErrSessionActive = errors.New("session has an active job")

// Factory creates the engine for a new session.
type Factory func(key string) *batch.Engine

// Registry maps session keys to engines.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*batch.Engine
	factory Factory
	logger  *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		engines: make(map[string]*batch.Engine),
		factory: factory,
		logger:  logger,
	}
}

// Engine returns the engine for key, creating it on first use.
func (r *Registry) Engine(key string) *batch.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[key]; ok {
		return e
	}
	e := r.factory(key)
	r.engines[key] = e
	r.logger.Debug("Session created", "session", key)
	return e
}

// Get returns the engine for key if the session exists.
func (r *Registry) Get(key string) (*batch.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[key]
	return e, ok
}

// Remove drops a session. Sessions with an active job are kept and
// ErrSessionActive is returned.
func (r *Registry) Remove(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[key]
	if !ok {
		return nil
	}
	if e.State().IsActive() {
		return ErrSessionActive
	}
	delete(r.engines, key)
	r.logger.Debug("Session removed", "session", key)
	return nil
}

// Keys returns the session keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.engines))
	for k := range r.engines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Active returns the number of sessions whose job is running or paused.
func (r *Registry) Active() int {
	n := 0
	for _, e := range r.snapshot() {
		if e.State().IsActive() {
			n++
		}
	}
	return n
}

// CancelAll cancels every session's job.
func (r *Registry) CancelAll() {
	for _, e := range r.snapshot() {
		e.Cancel()
	}
}

func (r *Registry) snapshot() []*batch.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*batch.Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	return out
}
