package callstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicedesk/internal/session"
)

// ErrNotFound is returned when no state record exists for a call, including
// the case where a stored record's embedded identifier does not match the
// lookup key (treated as store corruption, so absent).
var ErrNotFound = errors.New("callstate: not found")

// Machine owns the per-call state record.
//
// All store failures are propagated to the caller; the webhook layer decides
// how to degrade. The Machine never swallows a store error.
type Machine struct {
	store session.Store

	activeTTL        time.Duration
	endedTTL         time.Duration
	stalenessCeiling time.Duration
	maxRetries       int

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type MachineConfig struct {
	ActiveTTL        time.Duration
	EndedTTL         time.Duration
	StalenessCeiling time.Duration
	MaxRetries       int
}

func NewMachine(store session.Store, cfg MachineConfig) *Machine {
	m := &Machine{
		store:            store,
		activeTTL:        cfg.ActiveTTL,
		endedTTL:         cfg.EndedTTL,
		stalenessCeiling: cfg.StalenessCeiling,
		maxRetries:       cfg.MaxRetries,
		clock:            time.Now,
	}
	if m.activeTTL <= 0 {
		m.activeTTL = time.Hour
	}
	if m.endedTTL <= 0 {
		m.endedTTL = time.Minute
	}
	if m.stalenessCeiling <= 0 {
		m.stalenessCeiling = time.Hour
	}
	if m.maxRetries <= 0 {
		m.maxRetries = 3
	}
	return m
}

func stateKey(callID string) string { return "call:" + callID }

// Initialize creates a fresh record for a call.
func (m *Machine) Initialize(ctx context.Context, callID, from string) (State, error) {
	if callID == "" {
		return State{}, fmt.Errorf("callstate: call id is required")
	}
	now := m.clock().UTC()
	st := State{
		CallID:           callID,
		Status:           StatusActive,
		Step:             StepGreeting,
		AwaitingResponse: true,
		ContextLabel:     "waiting_for_caller",
		MaxRetries:       m.maxRetries,
		From:             from,
		StartedAt:        now,
		LastActivity:     now,
	}
	if err := m.store.SetJSON(ctx, stateKey(callID), st, m.activeTTL); err != nil {
		return State{}, err
	}
	return st, nil
}

// Get reads the record and validates its embedded identifier against the
// lookup key.
func (m *Machine) Get(ctx context.Context, callID string) (State, error) {
	var st State
	err := m.store.GetJSON(ctx, stateKey(callID), &st)
	if errors.Is(err, session.ErrNotFound) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	if st.CallID != callID {
		return State{}, ErrNotFound
	}
	return st, nil
}

// Update merges partial fields into an existing record, stamps LastActivity,
// and increments TotalInteractions when a new conversation step is set.
func (m *Machine) Update(ctx context.Context, callID string, upd Update) (State, error) {
	st, err := m.Get(ctx, callID)
	if err != nil {
		return State{}, err
	}

	if upd.Status != nil {
		st.Status = *upd.Status
	}
	if upd.Step != nil {
		if *upd.Step != st.Step {
			st.TotalInteractions++
		}
		st.Step = *upd.Step
	}
	if upd.AwaitingResponse != nil {
		st.AwaitingResponse = *upd.AwaitingResponse
	}
	if upd.ContextLabel != nil {
		st.ContextLabel = *upd.ContextLabel
	}
	st.LastActivity = m.clock().UTC()

	ttl := m.activeTTL
	if st.Status == StatusEnded {
		ttl = m.endedTTL
	}
	if err := m.store.SetJSON(ctx, stateKey(callID), st, ttl); err != nil {
		return State{}, err
	}
	return st, nil
}

// RecordError increments the error budget. Reaching MaxRetries force-ends the
// call; this is the only path by which repeated failures terminate a call
// without an explicit hangup event.
func (m *Machine) RecordError(ctx context.Context, callID, msg string) (State, error) {
	st, err := m.Get(ctx, callID)
	if err != nil {
		return State{}, err
	}

	st.ErrorCount++
	st.ContextLabel = "error: " + msg
	st.LastActivity = m.clock().UTC()

	ttl := m.activeTTL
	if st.ErrorCount >= st.MaxRetries {
		st.Status = StatusEnded
		st.AwaitingResponse = false
		ttl = m.endedTTL
	}
	if err := m.store.SetJSON(ctx, stateKey(callID), st, ttl); err != nil {
		return State{}, err
	}
	return st, nil
}

// ValidateContinuation reports whether an inbound speech event for this call
// should be processed. Used as a guard before any turn.
func (m *Machine) ValidateContinuation(ctx context.Context, callID string) (bool, error) {
	st, err := m.Get(ctx, callID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if st.Status != StatusActive {
		return false, nil
	}
	if st.ErrorCount >= st.MaxRetries {
		return false, nil
	}
	if m.clock().UTC().Sub(st.LastActivity) > m.stalenessCeiling {
		return false, nil
	}
	return true, nil
}

// End marks the call ended and rewrites the record with the short retention
// TTL so it remains briefly inspectable before expiring.
func (m *Machine) End(ctx context.Context, callID string) (State, error) {
	st, err := m.Get(ctx, callID)
	if err != nil {
		return State{}, err
	}
	st.Status = StatusEnded
	st.AwaitingResponse = false
	st.LastActivity = m.clock().UTC()
	if err := m.store.SetJSON(ctx, stateKey(callID), st, m.endedTTL); err != nil {
		return State{}, err
	}
	return st, nil
}
