package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"callpilot/internal/auth"
	"callpilot/internal/calls"
	"callpilot/internal/campaign"
	"callpilot/internal/config"
	"callpilot/internal/leads"
	"callpilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

// fakeDialer records dialed calls. When complete is set it drives each
// call to a terminal status in the background, like a provider would.
type fakeDialer struct {
	mu       sync.Mutex
	started  []calls.Call
	complete bool
	svc      *calls.Service
}

func (d *fakeDialer) StartCall(ctx context.Context, c calls.Call) error {
	d.mu.Lock()
	d.started = append(d.started, c)
	d.mu.Unlock()
	if d.complete {
		go func() {
			_, _, _ = d.svc.HandleStatusEvent(context.Background(), c.CallID, calls.StatusEvent{Type: calls.EventAnswered, At: time.Now()})
			_, _, _ = d.svc.HandleStatusEvent(context.Background(), c.CallID, calls.StatusEvent{Type: calls.EventCompleted, At: time.Now()})
		}()
	}
	return nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.started)
}

type fixture struct {
	router     *gin.Engine
	leads      leads.Store
	calls      *calls.Service
	campaigns  campaign.Store
	dialer     *fakeDialer
	dispatcher *campaign.Dispatcher
}

func newFixture(t *testing.T, completeCalls bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("local")
	callSvc := calls.NewService(calls.NewMemoryStore(), nil)
	leadStore := leads.NewMemoryStore()
	campStore := campaign.NewMemoryStore()
	dialer := &fakeDialer{complete: completeCalls, svc: callSvc}
	dispatcher := campaign.NewDispatcher(campStore, leadStore, callSvc, dialer, "+15550001111", log)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	h := Handlers{
		Auth:       mgr,
		Calls:      callSvc,
		Leads:      leadStore,
		Campaigns:  campStore,
		Dispatcher: dispatcher,
		Dialer:     dialer,
		CallerID:   "+15550001111",
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/leads", h.CreateLead)
	r.GET("/v1/leads/:lead_id", h.GetLead)
	r.POST("/v1/calls", h.StartCall)
	r.GET("/v1/calls/:call_id", h.GetCall)
	r.GET("/v1/calls/:call_id/interactions", h.GetCallInteractions)
	r.POST("/v1/campaigns/dispatch", h.DispatchCampaign)
	r.GET("/v1/campaigns/:campaign_id", h.GetCampaign)

	return &fixture{router: r, leads: leadStore, calls: callSvc, campaigns: campStore, dialer: dialer, dispatcher: dispatcher}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func seedLead(t *testing.T, f *fixture) leads.Lead {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/leads", gin.H{"phone": "+15557778888", "name": "Pat", "company": "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create lead: %d %s", w.Code, w.Body.String())
	}
	var l leads.Lead
	if err := json.Unmarshal(w.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode lead: %v", err)
	}
	return l
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/v1/auth/login", gin.H{"user_id": "u1", "workspace_id": "w1", "role": "operator"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", resp)
	}
}

func TestLogin_RejectsMissingFields(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/v1/auth/login", gin.H{"user_id": "u1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStartCall_CreatesAndDials(t *testing.T) {
	f := newFixture(t, false)
	l := seedLead(t, f)

	w := f.do(t, http.MethodPost, "/v1/calls", gin.H{"lead_id": l.LeadID})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created calls.Call
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if created.To != l.Phone || created.Status != calls.CallStatusScheduled {
		t.Fatalf("unexpected call: %+v", created)
	}
	if f.dialer.count() != 1 {
		t.Fatalf("expected one dial, got %d", f.dialer.count())
	}

	w = f.do(t, http.MethodGet, "/v1/calls/"+created.CallID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/v1/calls/"+created.CallID+"/interactions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStartCall_UnknownLead(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/v1/calls", gin.H{"lead_id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodGet, "/v1/calls/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDispatchCampaign_AcceptedAndProgresses(t *testing.T) {
	f := newFixture(t, true)
	l1 := seedLead(t, f)
	l2 := seedLead(t, f)

	w := f.do(t, http.MethodPost, "/v1/campaigns/dispatch", gin.H{
		"lead_ids":             []string{l1.LeadID, l2.LeadID},
		"max_concurrent_calls": 2,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		CampaignID string `json:"campaign_id"`
		TotalLeads int    `json:"total_leads"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CampaignID == "" || resp.TotalLeads != 2 {
		t.Fatalf("unexpected dispatch response: %+v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = f.do(t, http.MethodGet, "/v1/campaigns/"+resp.CampaignID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var camp campaign.Campaign
		if err := json.Unmarshal(w.Body.Bytes(), &camp); err != nil {
			t.Fatalf("decode campaign: %v", err)
		}
		if camp.CompletedCalls == 2 && camp.Status == campaign.CampaignStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("campaign never completed: %+v", camp)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatchCampaign_RejectsEmptyLeadList(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodPost, "/v1/campaigns/dispatch", gin.H{"lead_ids": []string{}, "max_concurrent_calls": 1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetCampaign_NotFound(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(t, http.MethodGet, "/v1/campaigns/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
