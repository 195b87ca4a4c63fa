package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voicedesk/internal/booking"
	"voicedesk/internal/config"
	"voicedesk/internal/knowledge"
	"voicedesk/internal/llm"
	"voicedesk/internal/session"
)

type fakeModel struct {
	reply string
	err   error
	calls int
}

func (f *fakeModel) Complete(_ context.Context, _ []llm.Message) (string, llm.Usage, error) {
	f.calls++
	if f.err != nil {
		return "", llm.Usage{}, f.err
	}
	return f.reply, llm.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

func testBusiness() config.BusinessConfig {
	return config.BusinessConfig{
		TenantID: "t1",
		Name:     "Acme Pest Control",
		Type:     "pest_control",
		Services: "pest inspection, termite treatment",
		Hours:    "Mon-Fri 8am-5pm",
	}
}

func newTestEngine(t *testing.T, model llm.Client) (*Engine, *booking.MemoryRepo) {
	t.Helper()
	repo := booking.NewMemoryRepo()
	e := NewEngine(
		session.NewMemoryStore(),
		model,
		llm.NewResponseCache(time.Minute),
		knowledge.NewMemoryRepo(),
		booking.NewService(repo),
		testBusiness(),
		EngineConfig{},
	)
	return e, repo
}

func TestEmergencyUtteranceStillAsksForName(t *testing.T) {
	e, _ := newTestEngine(t, &fakeModel{reply: "We can help with that."})
	ctx := context.Background()

	if _, err := e.Initialize(ctx, "C10"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, err := e.ProcessUserInput(ctx, "C10", "it's urgent, we have termites everywhere", 0.9)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Message), "name") {
		t.Fatalf("expected name question, got %q", res.Message)
	}

	cctx, err := e.Get(ctx, "C10")
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if cctx.CustomerInfo.Name != "" {
		t.Fatalf("urgency phrasing must not be captured as a name, got %q", cctx.CustomerInfo.Name)
	}
}

func TestFullBookingHappyPath(t *testing.T) {
	e, repo := newTestEngine(t, &fakeModel{reply: "Sure, happy to help."})
	ctx := context.Background()

	if _, err := e.Initialize(ctx, "C1"); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	res, err := e.ProcessUserInput(ctx, "C1", "I'd like to book a pest inspection", 0.9)
	if err != nil {
		t.Fatalf("turn 1 failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Message), "name") {
		t.Fatalf("expected name question, got %q", res.Message)
	}

	res, err = e.ProcessUserInput(ctx, "C1", "My name is Sam", 0.9)
	if err != nil {
		t.Fatalf("turn 2 failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Message), "phone") {
		t.Fatalf("expected phone question, got %q", res.Message)
	}

	res, err = e.ProcessUserInput(ctx, "C1", "0412345678", 0.9)
	if err != nil {
		t.Fatalf("turn 3 failed: %v", err)
	}
	if res.Booking == nil {
		t.Fatalf("expected booking created, got message %q", res.Message)
	}
	if !strings.Contains(res.Message, "Sam") {
		t.Fatalf("expected confirmation referencing Sam, got %q", res.Message)
	}
	if res.Intent != IntentBooking {
		t.Fatalf("expected booking intent, got %s", res.Intent)
	}

	got, err := repo.Get(context.Background(), "t1", res.Booking.ID)
	if err != nil {
		t.Fatalf("expected persisted booking: %v", err)
	}
	if got.CustomerName != "Sam" || got.CustomerPhone != "0412345678" {
		t.Fatalf("unexpected booking: %+v", got)
	}
	if !strings.Contains(got.ServiceType, "pest") {
		t.Fatalf("expected pest service, got %q", got.ServiceType)
	}
	if got.CallID != "C1" {
		t.Fatalf("expected call linkage, got %q", got.CallID)
	}

	// Draft is cleared after completion.
	cctx, err := e.Get(ctx, "C1")
	if err != nil {
		t.Fatalf("get context failed: %v", err)
	}
	if cctx.BookingDraft != nil || cctx.BookingInProgress {
		t.Fatalf("expected cleared draft: %+v", cctx)
	}
}

func TestNameBootstrapBeforeGeneration(t *testing.T) {
	model := &fakeModel{reply: "We open at eight."}
	e, _ := newTestEngine(t, model)
	ctx := context.Background()

	res, err := e.ProcessUserInput(ctx, "C2", "do you work weekends", 0.9)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(res.Message), "name") {
		t.Fatalf("expected name bootstrap, got %q", res.Message)
	}
	if model.calls != 0 {
		t.Fatalf("bootstrap turn must not call the model, got %d calls", model.calls)
	}

	// Name question is asked once; the next turn generates normally.
	res, err = e.ProcessUserInput(ctx, "C2", "Sam", 0.9)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Message != "We open at eight." {
		t.Fatalf("expected generated reply, got %q", res.Message)
	}

	cctx, err := e.Get(ctx, "C2")
	if err != nil {
		t.Fatalf("get context failed: %v", err)
	}
	if !cctx.HasName || cctx.CustomerInfo.Name != "Sam" {
		t.Fatalf("expected captured name, got %+v", cctx.CustomerInfo)
	}
}

func TestLLMFailureFallsBackToCannedResponse(t *testing.T) {
	e, _ := newTestEngine(t, &fakeModel{err: errors.New("timeout")})
	ctx := context.Background()

	if _, err := e.Initialize(ctx, "C3"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	// Capture the name first so generation runs.
	if _, err := e.ProcessUserInput(ctx, "C3", "My name is Sam", 0.9); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	res, err := e.ProcessUserInput(ctx, "C3", "what are your hours", 0.9)
	if err != nil {
		t.Fatalf("expected degraded turn, got error %v", err)
	}
	if res.Message == "" {
		t.Fatalf("expected canned response")
	}
	if !strings.Contains(strings.ToLower(res.Message), "open") {
		t.Fatalf("expected hours fallback, got %q", res.Message)
	}
}

func TestBookingPersistenceFailureClearsDraft(t *testing.T) {
	e, repo := newTestEngine(t, &fakeModel{reply: "ok"})
	repo.FailInserts = true
	ctx := context.Background()

	if _, err := e.Initialize(ctx, "C4"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	turns := []string{"I need a termite treatment booked in", "My name is Sam", "0412345678"}
	var res TurnResult
	var err error
	for _, turn := range turns {
		res, err = e.ProcessUserInput(ctx, "C4", turn, 0.9)
		if err != nil {
			t.Fatalf("turn %q failed: %v", turn, err)
		}
	}

	if res.Booking != nil {
		t.Fatalf("expected no booking on persistence failure")
	}
	if !strings.Contains(strings.ToLower(res.Message), "sorry") {
		t.Fatalf("expected apologetic handoff, got %q", res.Message)
	}

	cctx, err := e.Get(ctx, "C4")
	if err != nil {
		t.Fatalf("get context failed: %v", err)
	}
	if cctx.BookingDraft != nil || cctx.BookingInProgress {
		t.Fatalf("expected draft cleared after failure: %+v", cctx)
	}
}

func TestProcessUserInputLazilyCreatesContext(t *testing.T) {
	e, _ := newTestEngine(t, &fakeModel{reply: "ok"})

	// No Initialize call; the engine must not crash.
	res, err := e.ProcessUserInput(context.Background(), "C5", "hello there", 0.9)
	if err != nil {
		t.Fatalf("expected lazy init, got %v", err)
	}
	if res.Message == "" {
		t.Fatalf("expected a response")
	}
}

func TestCachedResponseSkipsModel(t *testing.T) {
	model := &fakeModel{reply: "We are open weekdays."}
	e, _ := newTestEngine(t, model)
	ctx := context.Background()

	// Two separate calls asking the same thing. The first turn of each call is
	// absorbed by the name bootstrap, so exactly one generated turn per call.
	for i, callID := range []string{"C6", "C7"} {
		if _, err := e.Initialize(ctx, callID); err != nil {
			t.Fatalf("init failed: %v", err)
		}
		if _, err := e.ProcessUserInput(ctx, callID, "what are your hours", 0.9); err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		res, err := e.ProcessUserInput(ctx, callID, "what are your hours", 0.9)
		if err != nil {
			t.Fatalf("turn failed: %v", err)
		}
		if res.Message != "We are open weekdays." {
			t.Fatalf("call %d: unexpected reply %q", i, res.Message)
		}
	}
	if model.calls != 1 {
		t.Fatalf("expected second call served from cache, model calls = %d", model.calls)
	}
}

func TestEndReturnsFinalContextAndDeletes(t *testing.T) {
	e, _ := newTestEngine(t, &fakeModel{reply: "ok"})
	ctx := context.Background()

	if _, err := e.Initialize(ctx, "C8"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := e.ProcessUserInput(ctx, "C8", "hello there", 0.9); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	final, err := e.End(ctx, "C8")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if len(final.Messages) == 0 {
		t.Fatalf("expected transcript in final context")
	}
	if _, err := e.Get(ctx, "C8"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected context deleted, got %v", err)
	}
}
