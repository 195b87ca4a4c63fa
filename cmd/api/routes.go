package main

import (
	"database/sql"
	"time"

	"voicedesk/internal/auth"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/live"
	"voicedesk/internal/rbac"
	"voicedesk/internal/telephony"
	"voicedesk/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	auth      *auth.Manager
	voice     *telephony.Handler
	recording *telephony.RecordingHandler
	api       httpapi.Handlers
	hub       *live.Hub
	db        *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	voice := r.Group("/webhooks/twilio/voice")
	{
		voice.POST("", d.voice.HandleCallStart)
		voice.POST("/speech", d.voice.HandleSpeechResult)
		voice.POST("/status", d.voice.HandleCallStatus)
		if d.recording != nil {
			voice.POST("/recording", d.recording.HandleRecordingStatus)
		}
	}

	// AUTH routes (token issuance).
	r.POST("/api/v1/auth/login", d.api.Login)

	// protected API group
	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	v1.Use(rbac.RequireTenant())
	{
		// Read-only dashboard views: any staff role.
		view := v1.Group("")
		view.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleReceptionist, rbac.RoleAnalyst))
		{
			view.GET("/bookings", d.api.ListBookings)
			view.GET("/bookings/:booking_id", d.api.GetBooking)
			view.GET("/technicians", d.api.ListTechnicians)
			view.GET("/calls", d.api.ListCalls)
			view.GET("/dashboard/stats", d.api.DashboardStats)
			view.GET("/live", d.hub.ServeWS)
		}

		// Booking mutations: owner or receptionist only.
		manage := v1.Group("")
		manage.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleReceptionist))
		{
			manage.PATCH("/bookings/:booking_id/status", d.api.UpdateBookingStatus)
		}
	}
}
