package calls

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu           sync.Mutex
	calls        map[string]Call
	interactions map[string][]Interaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:        map[string]Call{},
		interactions: map[string][]Interaction{},
	}
}

func (s *MemoryStore) CreateCall(ctx context.Context, c Call) error {
	if c.CallID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.CallID] = c
	return nil
}

func (s *MemoryStore) GetCall(ctx context.Context, callID string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateCall(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[c.CallID]; !ok {
		return ErrNotFound
	}
	s.calls[c.CallID] = c
	return nil
}

func (s *MemoryStore) AppendInteraction(ctx context.Context, in Interaction) error {
	if in.CallID == "" || in.Speaker == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[in.CallID] = append(s.interactions[in.CallID], in)
	return nil
}

func (s *MemoryStore) ListInteractions(ctx context.Context, callID string) ([]Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.interactions[callID]
	out := make([]Interaction, len(src))
	copy(out, src)
	return out, nil
}
