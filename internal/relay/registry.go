package relay

import (
	"errors"
	"sync"
)

var ErrDuplicateSession = errors.New("relay: session already registered for call")

// Registry maps live call ids to their sessions. It is the only
// structure shared across concurrent sessions, so all access goes
// through the lock; registration and removal cannot race with an
// inbound event lookup.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Register(callID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callID]; ok {
		return ErrDuplicateSession
	}
	r.sessions[callID] = s
	return nil
}

func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	return s, ok
}

func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
