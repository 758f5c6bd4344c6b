package leads

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu    sync.Mutex
	leads map[string]Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: map[string]Lead{}}
}

func (s *MemoryStore) CreateLead(ctx context.Context, l Lead) error {
	if l.LeadID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.LeadID] = l
	return nil
}

func (s *MemoryStore) GetLead(ctx context.Context, leadID string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}
