package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTypeAndTarget(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CallID: "c1"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeCallLifecycle}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCallEvent(context.Background(), "c1", "camp1", "status completed", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
	if evs[0].CallID != "c1" || evs[0].CampaignID != "camp1" {
		t.Fatalf("expected target ids captured")
	}
	if evs[0].Type != EventTypeCallLifecycle {
		t.Fatalf("expected call_lifecycle")
	}
}

func TestService_LogCampaignEvent(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCampaignEvent(context.Background(), "camp1", "campaign completed", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != EventTypeCampaignDispatch {
		t.Fatalf("expected campaign_dispatch event")
	}
}
