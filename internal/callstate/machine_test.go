package callstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicedesk/internal/session"
)

func newTestMachine(t *testing.T) (*Machine, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	m := NewMachine(store, MachineConfig{
		ActiveTTL:        time.Hour,
		EndedTTL:         time.Minute,
		StalenessCeiling: time.Hour,
		MaxRetries:       3,
	})
	return m, store
}

func TestInitializeCreatesActiveGreeting(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	st, err := m.Initialize(ctx, "CA1", "+15551234567")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if st.Status != StatusActive || st.Step != StepGreeting {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if !st.AwaitingResponse {
		t.Fatalf("expected awaiting response")
	}
	if st.TotalInteractions != 0 || st.ErrorCount != 0 {
		t.Fatalf("expected zero counters: %+v", st)
	}
}

func TestGetRejectsMismatchedRecord(t *testing.T) {
	m, store := newTestMachine(t)
	ctx := context.Background()

	// Simulate store corruption: record stored under one key but carrying
	// another call's identifier.
	if err := store.SetJSON(ctx, stateKey("CA1"), State{CallID: "CA-other", Status: StatusActive}, time.Hour); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := m.Get(ctx, "CA1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateIncrementsInteractionsOnStepChange(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "CA1", ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	st, err := m.Update(ctx, "CA1", Update{Step: StepPtr(StepCollectingInfo)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if st.TotalInteractions != 1 {
		t.Fatalf("expected 1 interaction, got %d", st.TotalInteractions)
	}

	// Same step again must not bump the counter.
	st, err = m.Update(ctx, "CA1", Update{Step: StepPtr(StepCollectingInfo)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if st.TotalInteractions != 1 {
		t.Fatalf("expected counter unchanged, got %d", st.TotalInteractions)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	m, _ := newTestMachine(t)
	_, err := m.Update(context.Background(), "CA-missing", Update{Step: StepPtr(StepBooking)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryBudgetForcesEnd(t *testing.T) {
	m, _ := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "CA1", ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	var st State
	var err error
	for i := 0; i < 3; i++ {
		st, err = m.RecordError(ctx, "CA1", "low confidence")
		if err != nil {
			t.Fatalf("record error failed: %v", err)
		}
	}
	if st.Status != StatusEnded {
		t.Fatalf("expected ended after budget exhaustion, got %s", st.Status)
	}
	if st.AwaitingResponse {
		t.Fatalf("expected awaiting_response false")
	}

	ok, err := m.ValidateContinuation(ctx, "CA1")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if ok {
		t.Fatalf("expected continuation rejected after budget exhaustion")
	}
}

func TestValidateContinuationStaleness(t *testing.T) {
	store := session.NewMemoryStore()
	m := NewMachine(store, MachineConfig{StalenessCeiling: time.Hour, MaxRetries: 3})
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "CA1", ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// Advance the machine clock past the staleness ceiling.
	m.clock = func() time.Time { return time.Now().Add(2 * time.Hour) }

	ok, err := m.ValidateContinuation(ctx, "CA1")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if ok {
		t.Fatalf("expected stale call rejected")
	}
}

func TestEndUsesShortRetentionTTL(t *testing.T) {
	m, store := newTestMachine(t)
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "CA1", ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	st, err := m.End(ctx, "CA1")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if st.Status != StatusEnded || st.AwaitingResponse {
		t.Fatalf("unexpected ended state: %+v", st)
	}

	ttl, ok := store.TTL(stateKey("CA1"))
	if !ok {
		t.Fatalf("expected record retained briefly")
	}
	if ttl > time.Minute {
		t.Fatalf("expected short retention ttl, got %v", ttl)
	}

	ok, err = m.ValidateContinuation(ctx, "CA1")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if ok {
		t.Fatalf("expected continuation rejected after end")
	}
}

func TestValidateContinuationMissingIsFalseNotError(t *testing.T) {
	m, _ := newTestMachine(t)
	ok, err := m.ValidateContinuation(context.Background(), "CA-missing")
	if err != nil {
		t.Fatalf("expected no error for missing record, got %v", err)
	}
	if ok {
		t.Fatalf("expected false for missing record")
	}
}
