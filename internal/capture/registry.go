package capture

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live sessions of a server. It is safe for concurrent
// use; each session it hands out is still owned by a single client.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
}

// NewRegistry creates an empty registry whose sessions share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
	}
}

// Create starts a session in the given mode.
func (r *Registry) Create(mode Mode) (*Session, error) {
	s := NewSession(uuid.NewString(), r.deps)
	if mode != "" && mode != ModeManual {
		if err := s.SelectMode(mode); err != nil {
			return nil, fmt.Errorf("Registry.Create: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s

	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove cancels and forgets a session. It reports whether the id was known.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, exists := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if exists {
		s.Cancel()
	}
	return exists
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll cancels and forgets every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}
