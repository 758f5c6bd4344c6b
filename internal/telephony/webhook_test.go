package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"callpilot/internal/calls"

	"github.com/gin-gonic/gin"
)

func postStatus(t *testing.T, router *gin.Engine, callID string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost,
		"/webhooks/telephony/status?call_id="+url.QueryEscape(callID),
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newWebhookRouter(t *testing.T) (*gin.Engine, *calls.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := calls.NewService(calls.NewMemoryStore(), nil)
	h := NewStatusWebhook(svc, nil, nil)
	router := gin.New()
	router.POST("/webhooks/telephony/status", h.Handle)
	return router, svc
}

func TestStatusWebhook_DrivesCallToCompleted(t *testing.T) {
	ctx := context.Background()
	router, svc := newWebhookRouter(t)
	c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")

	for _, status := range []string{"ringing", "in-progress"} {
		w := postStatus(t, router, c.CallID, url.Values{"CallStatus": {status}})
		if w.Code != http.StatusNoContent {
			t.Fatalf("%s: status %d", status, w.Code)
		}
	}
	w := postStatus(t, router, c.CallID, url.Values{
		"CallStatus":   {"completed"},
		"CallDuration": {"42"},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("completed: status %d", w.Code)
	}

	got, _ := svc.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.DurationSeconds != 42 {
		t.Fatalf("duration = %d, want 42", got.DurationSeconds)
	}
}

func TestStatusWebhook_OutOfOrderAndDuplicateAreAbsorbed(t *testing.T) {
	ctx := context.Background()
	router, svc := newWebhookRouter(t)
	c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")

	// completed arrives first, then a late ringing and a duplicate.
	postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})
	postStatus(t, router, c.CallID, url.Values{"CallStatus": {"ringing"}})
	postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})

	got, _ := svc.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestStatusWebhook_MachineDetectionSetsVoicemail(t *testing.T) {
	ctx := context.Background()
	router, svc := newWebhookRouter(t)
	c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")

	postStatus(t, router, c.CallID, url.Values{"CallStatus": {"ringing"}})
	postStatus(t, router, c.CallID, url.Values{
		"CallStatus": {"in-progress"},
		"AnsweredBy": {"machine_start"},
	})
	postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})

	got, _ := svc.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Outcome != calls.OutcomeVoicemail {
		t.Fatalf("outcome = %s, want voicemail", got.Outcome)
	}
}

func TestStatusWebhook_FailureReasonMapsToOutcome(t *testing.T) {
	ctx := context.Background()
	router, svc := newWebhookRouter(t)

	cases := []struct {
		status  string
		outcome calls.CallOutcome
	}{
		{"busy", calls.OutcomeBusy},
		{"no-answer", calls.OutcomeNoAnswer},
		{"failed", calls.OutcomeFailed},
	}
	for _, tc := range cases {
		c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")
		postStatus(t, router, c.CallID, url.Values{"CallStatus": {tc.status}})
		got, _ := svc.Get(ctx, c.CallID)
		if got.Status != calls.CallStatusFailed || got.Outcome != tc.outcome {
			t.Fatalf("%s: got %s/%s, want failed/%s", tc.status, got.Status, got.Outcome, tc.outcome)
		}
	}
}

func TestStatusWebhook_RejectsMissingCallID(t *testing.T) {
	router, _ := newWebhookRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telephony/status",
		strings.NewReader("CallStatus=ringing"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestStatusWebhook_UntrackedStatusAcknowledged(t *testing.T) {
	ctx := context.Background()
	router, svc := newWebhookRouter(t)
	c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")

	w := postStatus(t, router, c.CallID, url.Values{"CallStatus": {"initiated"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", w.Code)
	}
	got, _ := svc.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}
}

// memDeduper is an in-process Deduper standing in for redis.
type memDeduper struct {
	mu    sync.Mutex
	seen  map[string]bool
	marks int
}

func (d *memDeduper) Seen(ctx context.Context, callID, status string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[callID+":"+status]
}

func (d *memDeduper) Mark(ctx context.Context, callID, status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[callID+":"+status] = true
	d.marks++
}

func (d *memDeduper) markCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.marks
}

// flakyStore fails a number of UpdateCall attempts before recovering,
// like a store hiccup mid-callback.
type flakyStore struct {
	calls.Store
	mu          sync.Mutex
	failUpdates int
}

func (s *flakyStore) UpdateCall(ctx context.Context, c calls.Call) error {
	s.mu.Lock()
	fail := s.failUpdates > 0
	if fail {
		s.failUpdates--
	}
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.Store.UpdateCall(ctx, c)
}

func TestStatusWebhook_DedupeMarksOnlyAppliedCallbacks(t *testing.T) {
	ctx := context.Background()
	gin.SetMode(gin.TestMode)

	store := &flakyStore{Store: calls.NewMemoryStore(), failUpdates: 1}
	svc := calls.NewService(store, nil)
	ded := &memDeduper{seen: map[string]bool{}}
	h := NewStatusWebhook(svc, nil, nil)
	h.dedupe = ded
	router := gin.New()
	router.POST("/webhooks/telephony/status", h.Handle)

	c, _ := svc.CreateScheduled(ctx, "lead-1", "", "+15550001", "+15550002")

	// First delivery hits the store hiccup: non-2xx, pair not marked,
	// so the provider's retry still reaches the state machine.
	w := postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", w.Code)
	}
	if ded.markCount() != 0 {
		t.Fatalf("failed apply marked seen")
	}

	w = postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("retry status %d, want 204", w.Code)
	}
	got, _ := svc.Get(ctx, c.CallID)
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if ded.markCount() != 1 {
		t.Fatalf("marks = %d, want 1", ded.markCount())
	}

	// Exact repeat is short-circuited by the dedupe.
	w = postStatus(t, router, c.CallID, url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusNoContent {
		t.Fatalf("duplicate status %d, want 204", w.Code)
	}
	if ded.markCount() != 1 {
		t.Fatalf("duplicate re-marked, marks = %d", ded.markCount())
	}
}

func TestStatusWebhook_UnknownCallIsNotFound(t *testing.T) {
	router, _ := newWebhookRouter(t)
	w := postStatus(t, router, "no-such-call", url.Values{"CallStatus": {"completed"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}
