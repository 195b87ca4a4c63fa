package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicedesk/internal/booking"
	"voicedesk/internal/config"
	"voicedesk/internal/knowledge"
	"voicedesk/internal/llm"
	"voicedesk/internal/session"
	"voicedesk/pkg/logger"
)

// Engine decides the next utterance for a call. Three concern layers run in
// order each turn: name-capture bootstrap, booking-flow continuation, and
// general response generation via the language model.
//
// Every collaborator failure inside a turn degrades to a canned or fallback
// message; ProcessUserInput only returns an error when the ephemeral store
// itself is unreachable.
type Engine struct {
	store     session.Store
	model     llm.Client
	cache     *llm.ResponseCache
	knowledge knowledge.Repository
	bookings  *booking.Service
	business  config.BusinessConfig

	contextTTL       time.Duration
	knowledgeTimeout time.Duration
	historyWindow    int

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type EngineConfig struct {
	ContextTTL       time.Duration
	KnowledgeTimeout time.Duration
	HistoryWindow    int
}

func NewEngine(
	store session.Store,
	model llm.Client,
	cache *llm.ResponseCache,
	repo knowledge.Repository,
	bookings *booking.Service,
	business config.BusinessConfig,
	cfg EngineConfig,
) *Engine {
	e := &Engine{
		store:            store,
		model:            model,
		cache:            cache,
		knowledge:        repo,
		bookings:         bookings,
		business:         business,
		contextTTL:       cfg.ContextTTL,
		knowledgeTimeout: cfg.KnowledgeTimeout,
		historyWindow:    cfg.HistoryWindow,
		clock:            time.Now,
	}
	if e.contextTTL <= 0 {
		e.contextTTL = time.Hour
	}
	if e.knowledgeTimeout <= 0 {
		e.knowledgeTimeout = 2 * time.Second
	}
	if e.historyWindow <= 0 {
		e.historyWindow = 8
	}
	return e
}

func contextKey(callID string) string { return "conv:" + callID }

// TurnResult is what one caller-utterance exchange produced.
type TurnResult struct {
	Message string
	Intent  Intent

	// Booking is non-nil when this turn completed and persisted a booking.
	Booking *booking.Booking
}

// Initialize creates the dialogue context at call start.
func (e *Engine) Initialize(ctx context.Context, callID string) (Context, error) {
	now := e.clock().UTC()
	cctx := Context{
		CallID:    callID,
		TenantID:  e.business.TenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SetJSON(ctx, contextKey(callID), cctx, e.contextTTL); err != nil {
		return Context{}, err
	}
	return cctx, nil
}

// Get loads the dialogue context for a call.
func (e *Engine) Get(ctx context.Context, callID string) (Context, error) {
	var cctx Context
	err := e.store.GetJSON(ctx, contextKey(callID), &cctx)
	return cctx, err
}

// ProcessUserInput runs one turn: classify, extract, advance any booking
// flow, and produce the next spoken message.
func (e *Engine) ProcessUserInput(ctx context.Context, callID, text string, confidence float64) (TurnResult, error) {
	log := logger.From(ctx)
	now := e.clock().UTC()

	// A call with no prior context must not crash; lazily create one.
	cctx, err := e.Get(ctx, callID)
	if errors.Is(err, session.ErrNotFound) {
		cctx, err = e.Initialize(ctx, callID)
	}
	if err != nil {
		return TurnResult{}, err
	}

	justAskedForName := cctx.AskedForName && !cctx.HasName

	cctx.Append(RoleCaller, text, confidence, now)

	intent := DetectIntent(text)

	// The knowledge fetch is independent of field extraction, so it runs
	// concurrently and is joined before prompt construction. Its own timeout
	// means a slow lookup degrades the excerpt, never the turn.
	var knowledgeCh chan string
	if needsKnowledge[intent] && e.knowledge != nil {
		knowledgeCh = make(chan string, 1)
		kctx, cancel := context.WithTimeout(ctx, e.knowledgeTimeout)
		go func() {
			defer cancel()
			snips, kerr := e.knowledge.ForIntent(kctx, cctx.TenantID, string(intent), 3)
			if kerr != nil {
				knowledgeCh <- ""
				return
			}
			knowledgeCh <- knowledge.Excerpt(snips)
		}()
	}

	fields := ExtractFields(text, justAskedForName)
	cctx.CustomerInfo.Merge(fields)
	if cctx.CustomerInfo.Name != "" {
		cctx.HasName = true
	}

	var result TurnResult
	result.Intent = intent

	// Layer (b): booking-flow continuation. A candidate response from here
	// supersedes everything else this turn.
	if cctx.BookingInProgress || intent == IntentBooking {
		msg, created := e.advanceBooking(ctx, &cctx, callID)
		if msg != "" {
			result.Message = msg
			result.Booking = created
			if created != nil {
				result.Intent = IntentBooking
				intent = IntentBooking
			}
		}
	}

	// Layer (a): name-capture bootstrap. Keeps the first real exchange
	// deterministic and fast; no language model involved.
	if result.Message == "" && !cctx.HasName && !cctx.AskedForName {
		cctx.AskedForName = true
		result.Message = fmt.Sprintf("Thanks for calling %s! Could I grab your name?", e.business.Name)
	}

	// Layer (c): general response generation.
	if result.Message == "" {
		result.Message = e.generate(ctx, &cctx, intent, text, knowledgeCh)
	}

	cctx.Intent = result.Intent
	cctx.Append(RoleAssistant, result.Message, 0, e.clock().UTC())

	if err := e.store.SetJSON(ctx, contextKey(callID), cctx, e.contextTTL); err != nil {
		// The message was already decided; losing the context write hurts
		// the next turn but must not silence this one.
		log.Error("conversation context write failed", "call_sid", callID, "err", err)
	}

	return result, nil
}

// advanceBooking merges extracted fields into the draft and either persists
// a completed booking or asks for the single highest-priority missing field.
func (e *Engine) advanceBooking(ctx context.Context, cctx *Context, callID string) (string, *booking.Booking) {
	log := logger.From(ctx)

	if cctx.BookingDraft == nil {
		cctx.BookingDraft = &Draft{}
	}
	cctx.BookingDraft.CustomerInfo.Merge(cctx.CustomerInfo)

	if cctx.BookingDraft.Complete() {
		d := cctx.BookingDraft
		created, err := e.bookings.Create(ctx, booking.CreateRequest{
			TenantID:      cctx.TenantID,
			CustomerName:  d.Name,
			CustomerPhone: d.Phone,
			CustomerEmail: d.Email,
			ServiceType:   d.ServiceType,
			PreferredDate: d.PreferredDate,
			PreferredTime: d.PreferredTime,
			Notes:         d.Notes,
			CallID:        callID,
		})

		// Whether or not persistence worked, the draft is cleared; we never
		// retry indefinitely within a call.
		cctx.BookingDraft = nil
		cctx.BookingInProgress = false

		if err != nil {
			log.Error("booking persistence failed", "call_sid", callID, "err", err)
			return "I'm sorry, I couldn't lock that booking in just now. I'll have someone from our team call you back to confirm.", nil
		}

		cctx.BookingID = created.ID
		msg := fmt.Sprintf("Perfect, %s. I've booked your %s and we'll confirm the time shortly. Anything else?", created.CustomerName, created.ServiceType)
		return msg, &created
	}

	cctx.BookingInProgress = true

	// One question per turn, in fixed priority order.
	d := cctx.BookingDraft
	switch {
	case d.Name == "":
		cctx.AskedForName = true
		return "I can help with that. Could I grab your name first?", nil
	case d.Phone == "":
		return fmt.Sprintf("Thanks %s. What's the best phone number to reach you on?", d.Name), nil
	case d.ServiceType == "":
		return "Got it. And what service do you need?", nil
	case d.PreferredDate == "" && d.PreferredTime == "":
		return "When would suit you best?", nil
	default:
		return "", nil
	}
}

// generate produces the turn's message via the cache, the language model, or
// the deterministic fallback table, in that order.
func (e *Engine) generate(ctx context.Context, cctx *Context, intent Intent, text string, knowledgeCh chan string) string {
	log := logger.From(ctx)

	cacheKey := llm.CacheKey(string(intent), text, e.business.Type)
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached
		}
	}

	excerpt := ""
	if knowledgeCh != nil {
		select {
		case excerpt = <-knowledgeCh:
		case <-time.After(e.knowledgeTimeout + 100*time.Millisecond):
			// Abandoned, not cancelled; the goroutine's own context deadline
			// reclaims it.
		}
	}

	if e.model == nil {
		return fallbackResponse(text, e.business.Name)
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: buildSystemPrompt(e.business, excerpt, cctx)}}
	for _, m := range cctx.RecentWindow(e.historyWindow) {
		switch m.Role {
		case RoleCaller:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Text})
		case RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Text})
		}
	}

	reply, usage, err := e.model.Complete(ctx, msgs)
	if err != nil {
		log.Warn("llm completion failed, using fallback", "call_sid", cctx.CallID, "err", err)
		return fallbackResponse(text, e.business.Name)
	}
	log.Debug("llm completion", "call_sid", cctx.CallID, "prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)

	if e.cache != nil {
		e.cache.Put(cacheKey, reply)
	}
	return reply
}

// End deletes the dialogue context and returns its final snapshot so the
// caller can flush transcript and duration to durable storage.
func (e *Engine) End(ctx context.Context, callID string) (Context, error) {
	cctx, err := e.Get(ctx, callID)
	if err != nil {
		return Context{}, err
	}
	if err := e.store.Delete(ctx, contextKey(callID)); err != nil {
		return cctx, err
	}
	return cctx, nil
}
