package reporting

import (
	"context"
	"testing"
	"time"

	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
)

func seedCalls(t *testing.T, repo *calls.MemoryRepo, now time.Time) {
	t.Helper()
	rows := []calls.Record{
		{ID: "1", TenantID: "t1", ProviderCallID: "CA1", Status: calls.StatusCompleted, DurationSeconds: 60, Interactions: 4, BookingID: "b1", StartedAt: now},
		{ID: "2", TenantID: "t1", ProviderCallID: "CA2", Status: calls.StatusCompleted, DurationSeconds: 30, Interactions: 2, StartedAt: now},
		{ID: "3", TenantID: "t1", ProviderCallID: "CA3", Status: calls.StatusNoAnswer, StartedAt: now},
		{ID: "4", TenantID: "t2", ProviderCallID: "CA4", Status: calls.StatusCompleted, DurationSeconds: 90, StartedAt: now},
	}
	for _, r := range rows {
		if err := repo.Insert(context.Background(), r); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}

func TestCallsSummaryTenantIsolation(t *testing.T) {
	repo := calls.NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	seedCalls(t, repo, now)

	svc := NewService(repo, booking.NewMemoryRepo())
	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		TenantID: "t1",
		Range:    TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 {
		t.Fatalf("expected 3 calls, got %d", out.TotalCalls)
	}
	if out.CompletedCalls != 2 || out.NoAnswerCalls != 1 {
		t.Fatalf("unexpected status split: %+v", out)
	}
	if out.BookedCalls != 1 {
		t.Fatalf("expected 1 booked call, got %d", out.BookedCalls)
	}
	if out.AverageDurationSeconds != 30 {
		t.Fatalf("expected avg 30s, got %d", out.AverageDurationSeconds)
	}
}

func TestCallsSummaryValidatesRange(t *testing.T) {
	svc := NewService(calls.NewMemoryRepo(), booking.NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	_, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		TenantID: "t1",
		Range:    TimeRange{From: now, To: now.Add(-time.Hour)},
	})
	if err == nil {
		t.Fatalf("expected invalid range error")
	}
	_, err = svc.CallsSummary(context.Background(), CallsSummaryRequest{
		Range: TimeRange{From: now.Add(-time.Hour), To: now},
	})
	if err == nil {
		t.Fatalf("expected tenant required error")
	}
}

func TestBookingsSummaryCountsByStatusAndService(t *testing.T) {
	repo := booking.NewMemoryRepo()
	svc := booking.NewService(repo)
	ctx := context.Background()

	mk := func(service string) booking.Booking {
		b, err := svc.Create(ctx, booking.CreateRequest{
			TenantID: "t1", CustomerName: "Sam", CustomerPhone: "0412345678", ServiceType: service,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return b
	}
	mk("pest inspection")
	mk("pest inspection")
	confirmed := mk("termite treatment")
	if _, err := svc.UpdateStatus(ctx, "t1", confirmed.ID, booking.StatusConfirmed, ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	rsvc := NewService(calls.NewMemoryRepo(), repo)
	out, err := rsvc.BookingsSummary(ctx, BookingsSummaryRequest{TenantID: "t1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Total != 3 || out.Pending != 2 || out.Confirmed != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.ByService["pest inspection"] != 2 {
		t.Fatalf("unexpected service split: %+v", out.ByService)
	}
}

func TestDashboardBookingRate(t *testing.T) {
	callRepo := calls.NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	seedCalls(t, callRepo, now)

	svc := NewService(callRepo, booking.NewMemoryRepo())
	stats, err := svc.Dashboard(context.Background(), "t1", TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := 1.0 / 3.0
	if diff := stats.BookingRate - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("expected booking rate %.3f, got %.3f", want, stats.BookingRate)
	}
}
