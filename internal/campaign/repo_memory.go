package campaign

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{campaigns: map[string]Campaign{}}
}

func (s *MemoryStore) CreateCampaign(ctx context.Context, c Campaign) error {
	if c.CampaignID == "" || c.TotalLeads <= 0 {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.CampaignID] = c
	return nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) RecordResult(ctx context.Context, campaignID string, success bool, at time.Time) (Campaign, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, false, ErrNotFound
	}
	if c.CompletedCalls >= c.TotalLeads {
		// Extra results past total_leads would break the counter
		// invariant; refuse instead of silently overcounting.
		return Campaign{}, false, ErrInvalidArgument
	}
	c.CompletedCalls++
	if success {
		c.SuccessfulCalls++
	}
	c.UpdatedAt = at
	completedNow := false
	if c.CompletedCalls == c.TotalLeads {
		c.Status = CampaignStatusCompleted
		completedNow = true
	}
	s.campaigns[campaignID] = c
	return c, completedNow, nil
}
