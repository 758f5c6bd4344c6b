package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end customers.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.CallID == "" && e.CampaignID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallEvent records a call lifecycle transition.
func (s *Service) LogCallEvent(ctx context.Context, callID, campaignID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeCallLifecycle,
		CallID:     callID,
		CampaignID: campaignID,
		Message:    message,
		Metadata:   metadata,
	})
}

// LogCampaignEvent records a campaign dispatch milestone.
func (s *Service) LogCampaignEvent(ctx context.Context, campaignID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeCampaignDispatch,
		CampaignID: campaignID,
		Message:    message,
		Metadata:   metadata,
	})
}
