package calls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditLog records call lifecycle events for the internal audit trail.
// Audit is best-effort: failures must never block a status transition.
type AuditLog interface {
	LogCallEvent(ctx context.Context, callID, campaignID, message, metadata string) error
}

// Service owns call lifecycle transitions and the interaction log.
//
// Status callbacks for the same call are serialized here so that the
// read-apply-write cycle cannot interleave; everything else is lock-free
// for callers.
type Service struct {
	store Store
	audit AuditLog

	clock func() time.Time

	mu       sync.Mutex
	watchers map[string][]chan Call
}

func NewService(store Store, audit AuditLog) *Service {
	return &Service{
		store:    store,
		audit:    audit,
		clock:    time.Now,
		watchers: map[string][]chan Call{},
	}
}

// CreateScheduled creates a new call record in the scheduled state.
func (s *Service) CreateScheduled(ctx context.Context, leadID, campaignID, from, to string) (Call, error) {
	if leadID == "" || to == "" {
		return Call{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	c := Call{
		CallID:      uuid.NewString(),
		LeadID:      leadID,
		CampaignID:  campaignID,
		From:        from,
		To:          to,
		Status:      CallStatusScheduled,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCall(ctx, c); err != nil {
		return Call{}, err
	}
	return c, nil
}

// AttachTransportSession stores the provider's opaque call handle.
func (s *Service) AttachTransportSession(ctx context.Context, callID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return err
	}
	c.TransportSessionID = sessionID
	c.UpdatedAt = s.clock().UTC()
	return s.store.UpdateCall(ctx, c)
}

// Get returns one call.
func (s *Service) Get(ctx context.Context, callID string) (Call, error) {
	return s.store.GetCall(ctx, callID)
}

// HandleStatusEvent applies one transport status notification to a call.
// Duplicate and out-of-order events are no-ops by construction (see Apply).
// The first transition into a terminal status wakes any terminal watchers.
func (s *Service) HandleStatusEvent(ctx context.Context, callID string, ev StatusEvent) (Call, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return Call{}, false, err
	}
	wasTerminal := c.Status.IsTerminal()

	next, changed := Apply(c, ev)
	if !changed {
		return c, false, nil
	}
	if err := s.store.UpdateCall(ctx, next); err != nil {
		return Call{}, false, err
	}

	if s.audit != nil {
		_ = s.audit.LogCallEvent(ctx, next.CallID, next.CampaignID,
			"status "+string(next.Status), string(ev.Type))
	}

	if !wasTerminal && next.Status.IsTerminal() {
		for _, ch := range s.watchers[callID] {
			ch <- next // buffered, exactly one send per watcher
		}
		delete(s.watchers, callID)
	}
	return next, true, nil
}

// FailIfActive marks a call failed unless it already reached a terminal
// status. Used by the media relay when a session dies without the transport
// having reported an end state.
func (s *Service) FailIfActive(ctx context.Context, callID string) error {
	_, _, err := s.HandleStatusEvent(ctx, callID, StatusEvent{Type: EventFailed, At: s.clock().UTC()})
	return err
}

// AppendInteraction appends one spoken turn to the call's ordered log.
func (s *Service) AppendInteraction(ctx context.Context, callID string, sp Speaker, content, sentiment string, confidence float64) (Interaction, error) {
	in := Interaction{
		ID:         uuid.NewString(),
		CallID:     callID,
		Speaker:    sp,
		Content:    content,
		Sentiment:  sentiment,
		Confidence: confidence,
		Timestamp:  s.clock().UTC(),
	}
	if err := s.store.AppendInteraction(ctx, in); err != nil {
		return Interaction{}, err
	}
	return in, nil
}

// Interactions returns the call's interaction log in insertion order.
func (s *Service) Interactions(ctx context.Context, callID string) ([]Interaction, error) {
	return s.store.ListInteractions(ctx, callID)
}

// WatchTerminal returns a channel that receives the call exactly once when
// it first reaches a terminal status, plus a cancel function. If the call is
// already terminal the value is delivered immediately.
func (s *Service) WatchTerminal(ctx context.Context, callID string) (<-chan Call, func(), error) {
	ch := make(chan Call, 1)

	s.mu.Lock()
	c, err := s.store.GetCall(ctx, callID)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if c.Status.IsTerminal() {
		ch <- c
		s.mu.Unlock()
		return ch, func() {}, nil
	}
	s.watchers[callID] = append(s.watchers[callID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[callID]
		for i, w := range ws {
			if w == ch {
				s.watchers[callID] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
	}
	return ch, cancel, nil
}
