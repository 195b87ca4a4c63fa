package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
	"voicedesk/internal/rbac"
	"voicedesk/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Bookings *booking.Service
	Calls    calls.Repository
	Reports  *reporting.Service
	Audit    *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: Credential validation happens upstream at the identity provider; this
// endpoint exchanges a verified identity for API tokens.
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
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Bookings ---

func (h Handlers) ListBookings(c *gin.Context) {
	if h.Bookings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bookings not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := h.Bookings.List(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": rows})
}

func (h Handlers) GetBooking(c *gin.Context) {
	if h.Bookings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bookings not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	id := c.Param("booking_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "booking_id required"})
		return
	}
	b, err := h.Bookings.Get(c.Request.Context(), tenantID, id)
	if errors.Is(err, booking.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "booking lookup failed"})
		return
	}
	c.JSON(http.StatusOK, b)
}

type updateBookingStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// UpdateBookingStatus confirms or cancels a booking from the dashboard.
// RBAC: owner or receptionist. Every change is audit-logged.
func (h Handlers) UpdateBookingStatus(c *gin.Context) {
	if h.Bookings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bookings not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	actorUserID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	id := c.Param("booking_id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "booking_id required"})
		return
	}
	var req updateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := booking.Status(req.Status)
	if !status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be pending, confirmed or cancelled"})
		return
	}

	b, err := h.Bookings.UpdateStatus(c.Request.Context(), tenantID, id, status, req.Notes)
	if errors.Is(err, booking.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}

	if h.Audit != nil {
		// Best-effort; a failed audit write never fails the update.
		_ = h.Audit.LogBookingStatusChange(
			c.Request.Context(),
			tenantID, actorUserID, actorRole, c.ClientIP(),
			b.ID,
			fmt.Sprintf("booking status set to %s", b.Status),
			"",
		)
	}
	c.JSON(http.StatusOK, b)
}

// --- Technicians ---

func (h Handlers) ListTechnicians(c *gin.Context) {
	if h.Bookings == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "bookings not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rows, err := h.Bookings.ListTechnicians(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "technician list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"technicians": rows})
}

// --- Calls ---

// ListCalls returns finished call records for a time range.
// Defaults to the trailing 7 days when no range is given.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	rows, err := h.Calls.List(c.Request.Context(), tenantID, rng.From, rng.To, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

// --- Dashboard ---

func (h Handlers) DashboardStats(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.Reports.Dashboard(c.Request.Context(), tenantID, rng)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

const defaultRangeDays = 7

// parseRange reads optional from/to RFC 3339 query parameters.
func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -defaultRangeDays), To: now}

	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return reporting.TimeRange{}, errors.New("from must be RFC 3339")
		}
		rng.From = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return reporting.TimeRange{}, errors.New("to must be RFC 3339")
		}
		rng.To = t
	}
	if !rng.To.After(rng.From) {
		return reporting.TimeRange{}, errors.New("to must be after from")
	}
	return rng, nil
}

// Convenience middleware bundles.

func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
