package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callpilot/internal/auth"
	"callpilot/internal/calls"
	"callpilot/internal/campaign"
	"callpilot/internal/leads"
	"callpilot/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Calls      *calls.Service
	Leads      leads.Store
	Campaigns  campaign.Store
	Dispatcher *campaign.Dispatcher
	Dialer     campaign.Dialer
	CallerID   string

	clock func() time.Time
}

func (h Handlers) now() time.Time {
	if h.clock != nil {
		return h.clock()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Leads ---

type createLeadRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func (h Handlers) CreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	l := leads.Lead{
		LeadID:    uuid.NewString(),
		Phone:     req.Phone,
		Name:      req.Name,
		Company:   req.Company,
		Notes:     req.Notes,
		CreatedAt: h.now().UTC(),
	}
	if err := h.Leads.CreateLead(c.Request.Context(), l); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead creation failed"})
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h Handlers) GetLead(c *gin.Context) {
	l, err := h.Leads.GetLead(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead lookup failed"})
		return
	}
	c.JSON(http.StatusOK, l)
}

// --- Calls ---

type startCallRequest struct {
	LeadID string `json:"lead_id"`
}

// StartCall places one outbound call for a lead, outside any campaign.
// The call completes asynchronously via provider status callbacks.
func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.LeadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
		return
	}

	lead, err := h.Leads.GetLead(c.Request.Context(), req.LeadID)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead lookup failed"})
		return
	}

	call, err := h.Calls.CreateScheduled(c.Request.Context(), lead.LeadID, "", h.CallerID, lead.Phone)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call creation failed"})
		return
	}

	if err := h.Dialer.StartCall(c.Request.Context(), call); err != nil {
		_ = h.Calls.FailIfActive(c.Request.Context(), call.CallID)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "dial failed"})
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) GetCallInteractions(c *gin.Context) {
	callID := c.Param("call_id")
	if _, err := h.Calls.Get(c.Request.Context(), callID); err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	items, err := h.Calls.Interactions(c.Request.Context(), callID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "interaction lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "interactions": items})
}

// --- Campaigns ---

// DispatchCampaign accepts a batch of leads and returns immediately;
// dialing proceeds in the background under the concurrency bound.
func (h Handlers) DispatchCampaign(c *gin.Context) {
	var req campaign.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	camp, err := h.Dispatcher.Dispatch(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, campaign.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"campaign_id": camp.CampaignID,
		"status":      camp.Status,
		"total_leads": camp.TotalLeads,
	})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	camp, err := h.Campaigns.GetCampaign(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	c.JSON(http.StatusOK, camp)
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
