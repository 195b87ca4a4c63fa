package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
	"voicedesk/internal/config"
	"voicedesk/internal/rbac"
	"voicedesk/internal/reporting"

	"github.com/gin-gonic/gin"
)

type fixture struct {
	router    *gin.Engine
	bookings  *booking.MemoryRepo
	calls     *calls.MemoryRepo
	auditRepo *audit.MemoryRepo
	handlers  Handlers
}

// identityAs injects a verified identity the way auth.RequireAccessToken
// would, without minting real tokens per test.
func identityAs(userID, tenantID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, tenantID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newFixture(t *testing.T, role string) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	bookingRepo := booking.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()

	h := Handlers{
		Auth:     mgr,
		Bookings: booking.NewService(bookingRepo),
		Calls:    callRepo,
		Reports:  reporting.NewService(callRepo, bookingRepo),
		Audit:    audit.NewService(auditRepo),
	}

	r := gin.New()
	r.POST("/api/v1/auth/login", h.Login)

	v1 := r.Group("/api/v1")
	v1.Use(identityAs("u1", "t1", role))
	v1.Use(RequireTenantAndAnyRole(rbac.RoleOwner, rbac.RoleReceptionist)...)
	{
		v1.GET("/bookings", h.ListBookings)
		v1.GET("/bookings/:booking_id", h.GetBooking)
		v1.PATCH("/bookings/:booking_id/status", h.UpdateBookingStatus)
		v1.GET("/technicians", h.ListTechnicians)
		v1.GET("/calls", h.ListCalls)
		v1.GET("/dashboard/stats", h.DashboardStats)
	}

	return fixture{router: r, bookings: bookingRepo, calls: callRepo, auditRepo: auditRepo, handlers: h}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func seedBooking(t *testing.T, f fixture, tenantID, name string) booking.Booking {
	t.Helper()
	b, err := f.handlers.Bookings.Create(context.Background(), booking.CreateRequest{
		TenantID:      tenantID,
		CustomerName:  name,
		CustomerPhone: "0412345678",
		ServiceType:   "pest inspection",
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", loginRequest{
		UserID: "u1", TenantID: "t1", Role: rbac.RoleOwner,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", resp)
	}
}

func TestLoginRejectsMissingFields(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", loginRequest{UserID: "u1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListBookingsTenantScoped(t *testing.T) {
	f := newFixture(t, rbac.RoleReceptionist)
	seedBooking(t, f, "t1", "Sam")
	seedBooking(t, f, "t2", "Alex")

	w := f.do(t, http.MethodGet, "/api/v1/bookings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Bookings []booking.Booking `json:"bookings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Bookings) != 1 || resp.Bookings[0].CustomerName != "Sam" {
		t.Fatalf("expected only t1 bookings, got %+v", resp.Bookings)
	}
}

func TestUpdateBookingStatusAuditsChange(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)
	b := seedBooking(t, f, "t1", "Sam")

	w := f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", updateBookingStatusRequest{
		Status: string(booking.StatusConfirmed),
		Notes:  "confirmed by phone",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got booking.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != booking.StatusConfirmed || got.Notes != "confirmed by phone" {
		t.Fatalf("unexpected booking: %+v", got)
	}

	events := f.auditRepo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != audit.EventTypeBookingStatus || ev.BookingID != b.ID || ev.ActorUserID != "u1" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
	if !strings.Contains(ev.Message, "confirmed") {
		t.Fatalf("expected status in message, got %q", ev.Message)
	}
}

func TestUpdateBookingStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)
	b := seedBooking(t, f, "t1", "Sam")

	w := f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", updateBookingStatusRequest{Status: "done"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.auditRepo.Events()) != 0 {
		t.Fatalf("rejected update must not be audited")
	}
}

func TestUpdateBookingStatusOtherTenantNotFound(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)
	b := seedBooking(t, f, "t2", "Alex")

	w := f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", updateBookingStatusRequest{
		Status: string(booking.StatusCancelled),
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-tenant booking, got %d", w.Code)
	}
}

func TestAnalystCannotUpdateBookings(t *testing.T) {
	f := newFixture(t, rbac.RoleAnalyst)
	b := seedBooking(t, f, "t1", "Sam")

	w := f.do(t, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/status", updateBookingStatusRequest{
		Status: string(booking.StatusConfirmed),
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for analyst, got %d", w.Code)
	}
}

func TestListTechnicians(t *testing.T) {
	f := newFixture(t, rbac.RoleReceptionist)
	f.bookings.AddTechnician(booking.Technician{ID: "tech1", TenantID: "t1", Name: "Jordan", Active: true})
	f.bookings.AddTechnician(booking.Technician{ID: "tech2", TenantID: "t2", Name: "Casey", Active: true})

	w := f.do(t, http.MethodGet, "/api/v1/technicians", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Technicians []booking.Technician `json:"technicians"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Technicians) != 1 || resp.Technicians[0].Name != "Jordan" {
		t.Fatalf("expected only t1 technicians, got %+v", resp.Technicians)
	}
}

func TestDashboardStatsComputesBookingRate(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)
	now := time.Now().UTC()

	insert := func(sid, bookingID string) {
		rec, err := calls.NewRecord(calls.Record{
			TenantID:       "t1",
			ProviderCallID: sid,
			Status:         calls.StatusCompleted,
			BookingID:      bookingID,
			StartedAt:      now.Add(-time.Hour),
		}, now)
		if err != nil {
			t.Fatalf("new record: %v", err)
		}
		if err := f.calls.Insert(context.Background(), rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	insert("CA1", "b1")
	insert("CA2", "")

	w := f.do(t, http.MethodGet, "/api/v1/dashboard/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats reporting.DashboardStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Calls.TotalCalls != 2 || stats.Calls.BookedCalls != 1 {
		t.Fatalf("unexpected call summary: %+v", stats.Calls)
	}
	if stats.BookingRate != 0.5 {
		t.Fatalf("expected booking rate 0.5, got %v", stats.BookingRate)
	}
}

func TestListCallsRejectsBadRange(t *testing.T) {
	f := newFixture(t, rbac.RoleOwner)

	w := f.do(t, http.MethodGet, "/api/v1/calls?from=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
