package booking

import (
	"context"
	"errors"
	"testing"
)

func TestCreateRequiresCoreFields(t *testing.T) {
	s := NewService(NewMemoryRepo())
	ctx := context.Background()

	_, err := s.Create(ctx, CreateRequest{TenantID: "t1", CustomerName: "Sam"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	b, err := s.Create(ctx, CreateRequest{
		TenantID:      "t1",
		CustomerName:  "Sam",
		CustomerPhone: "0412345678",
		ServiceType:   "pest inspection",
		CallID:        "CA1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.ID == "" || b.Status != StatusPending {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.CallID != "CA1" {
		t.Fatalf("expected call linkage, got %q", b.CallID)
	}
}

func TestUpdateStatusEnforcesTenant(t *testing.T) {
	s := NewService(NewMemoryRepo())
	ctx := context.Background()

	b, err := s.Create(ctx, CreateRequest{
		TenantID:      "t1",
		CustomerName:  "Sam",
		CustomerPhone: "0412345678",
		ServiceType:   "pest inspection",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := s.UpdateStatus(ctx, "t2", b.ID, StatusConfirmed, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-tenant update rejected, got %v", err)
	}

	got, err := s.UpdateStatus(ctx, "t1", b.ID, StatusConfirmed, "confirmed by owner")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Status != StatusConfirmed || got.Notes != "confirmed by owner" {
		t.Fatalf("unexpected booking: %+v", got)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	s := NewService(NewMemoryRepo())
	_, err := s.UpdateStatus(context.Background(), "t1", "b1", Status("archived"), "")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
