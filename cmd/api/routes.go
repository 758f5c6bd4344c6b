package main

import (
	"callpilot/internal/httpapi"
	"callpilot/internal/rbac"
	"callpilot/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(
	r *gin.Engine,
	h httpapi.Handlers,
	media *telephony.MediaHandler,
	status *telephony.StatusWebhook,
	authMW gin.HandlerFunc,
) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider callbacks (public).
	// NOTE: These endpoints should be protected by provider signature
	// validation in production.
	r.POST("/webhooks/telephony/status", status.Handle)
	r.GET("/media/:call_id", media.Handle)

	// Token issuance is public by necessity.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// LEADS routes
		leadsGroup := v1.Group("/leads")
		leadsGroup.Use(httpapi.RequireWorkspaceAndAnyRole(rbac.RoleOwner, rbac.RoleOperator)...)
		{
			leadsGroup.POST("", h.CreateLead)
			leadsGroup.GET("/:lead_id", h.GetLead)
		}

		// CALLS routes
		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireWorkspace())
		{
			callsGroup.POST("", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator), h.StartCall)
			callsGroup.GET("/:call_id", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst), h.GetCall)
			callsGroup.GET("/:call_id/interactions", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst), h.GetCallInteractions)
		}

		// CAMPAIGNS routes
		campaignsGroup := v1.Group("/campaigns")
		campaignsGroup.Use(rbac.RequireWorkspace())
		{
			campaignsGroup.POST("/dispatch", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator), h.DispatchCampaign)
			campaignsGroup.GET("/:campaign_id", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleAnalyst), h.GetCampaign)
		}
	}
}
