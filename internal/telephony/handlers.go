package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
	"voicedesk/internal/callstate"
	"voicedesk/internal/conversation"
	"voicedesk/internal/session"
	"voicedesk/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Notifier sends fire-and-forget booking notifications. Failures are logged
// only; a send must never block the response to the provider.
type Notifier interface {
	BookingCreated(ctx context.Context, b booking.Booking) error
}

// Broadcaster publishes turn events to live dashboard clients.
type Broadcaster interface {
	Broadcast(callSid string, event any)
}

// TurnEvent is what the dashboard sees for one exchange on a live call.
type TurnEvent struct {
	CallSid   string    `json:"call_sid"`
	Caller    string    `json:"caller,omitempty"`
	Assistant string    `json:"assistant"`
	Intent    string    `json:"intent,omitempty"`
	At        time.Time `json:"at"`
}

// Handler is the webhook control surface: the only component that mutates
// call state, orchestrating the state machine, the conversation engine and
// the markup renderer per inbound provider event.
//
// Every response is HTTP 200 with text/xml. A non-200 or malformed body makes
// the provider fall back to its own default voice, which is forbidden here.
type Handler struct {
	states   *callstate.Machine
	engine   *conversation.Engine
	renderer *Renderer
	records  calls.Repository
	limiter  CallLimiter
	notifier Notifier
	live     Broadcaster

	tenantID            string
	greeting            string
	callbackURL         string
	confidenceThreshold float64

	clock func() time.Time
}

type HandlerConfig struct {
	TenantID            string
	Greeting            string
	SpeechCallbackURL   string
	ConfidenceThreshold float64
}

func NewHandler(
	states *callstate.Machine,
	engine *conversation.Engine,
	renderer *Renderer,
	records calls.Repository,
	limiter CallLimiter,
	notifier Notifier,
	live Broadcaster,
	cfg HandlerConfig,
) *Handler {
	h := &Handler{
		states:              states,
		engine:              engine,
		renderer:            renderer,
		records:             records,
		limiter:             limiter,
		notifier:            notifier,
		live:                live,
		tenantID:            cfg.TenantID,
		greeting:            cfg.Greeting,
		callbackURL:         cfg.SpeechCallbackURL,
		confidenceThreshold: cfg.ConfidenceThreshold,
		clock:               time.Now,
	}
	if h.greeting == "" {
		h.greeting = "Thanks for calling! How can I help you today?"
	}
	if h.confidenceThreshold <= 0 {
		h.confidenceThreshold = 0.5
	}
	return h
}

func respondXML(c *gin.Context, body string) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, body)
}

const (
	busyLine         = "Thanks for calling. All of our lines are busy right now, please call back shortly."
	sessionEndedLine = "This session has ended. Please call back if you need anything else. Goodbye!"
	budgetLine       = "I'm having trouble hearing you, so I'll let you go for now. Please call back. Goodbye!"
)

// HandleCallStart answers a new inbound call with the greeting. Duplicate
// deliveries for an already-active call re-render the current step instead of
// reinitializing; a reset would zero TotalInteractions and replay a greeting
// the caller already heard.
func (h *Handler) HandleCallStart(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	form, err := ParseVoiceForm(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("voice webhook parse failed", "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}
	ctx = logger.WithCall(ctx, form.CallSid)

	if st, err := h.states.Get(ctx, form.CallSid); err == nil && st.Status == callstate.StatusActive {
		log.Info("duplicate call-start delivery", "call_sid", form.CallSid)
		respondXML(c, h.renderer.Render(ctx, RenderInput{
			Message:         h.greeting,
			ExpectsResponse: st.AwaitingResponse,
			Step:            st.Step,
			CallbackURL:     h.callbackURL,
		}))
		return
	}

	if h.limiter != nil {
		ok, err := h.limiter.Acquire(ctx, h.tenantID)
		if err != nil {
			// Limiter trouble must not drop calls; degrade open.
			log.Warn("call limiter acquire failed", "call_sid", form.CallSid, "err", err)
		} else if !ok {
			log.Info("tenant call cap reached", "call_sid", form.CallSid, "tenant_id", h.tenantID)
			respondXML(c, h.renderer.Render(ctx, RenderInput{Message: busyLine, ExpectsResponse: false}))
			return
		}
	}

	if _, err := h.states.Initialize(ctx, form.CallSid, form.From); err != nil {
		log.Error("call state init failed", "call_sid", form.CallSid, "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}
	if _, err := h.engine.Initialize(ctx, form.CallSid); err != nil {
		log.Error("conversation init failed", "call_sid", form.CallSid, "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}

	log.Info("call started", "call_sid", form.CallSid, "from", form.From)
	respondXML(c, h.renderer.Render(ctx, RenderInput{
		Message:         h.greeting,
		ExpectsResponse: true,
		Step:            callstate.StepGreeting,
		CallbackURL:     h.callbackURL,
	}))
}

// HandleSpeechResult processes one caller utterance: guard the continuation,
// score the transcript quality, run a conversation turn, and advance the
// step.
func (h *Handler) HandleSpeechResult(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	form, err := ParseVoiceForm(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("voice webhook parse failed", "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}
	ctx = logger.WithCall(ctx, form.CallSid)

	ok, err := h.states.ValidateContinuation(ctx, form.CallSid)
	if err != nil {
		log.Error("continuation check failed", "call_sid", form.CallSid, "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}
	if !ok {
		st, gerr := h.states.Get(ctx, form.CallSid)
		if errors.Is(gerr, callstate.ErrNotFound) {
			// The store evicted the record mid-call; reinitialize once rather
			// than hanging up on a live caller.
			log.Warn("call state missing mid-call, reinitializing", "call_sid", form.CallSid)
			if _, ierr := h.states.Initialize(ctx, form.CallSid, form.From); ierr != nil {
				respondXML(c, h.renderer.SafeErrorDocument())
				return
			}
		} else {
			log.Info("speech event for non-continuable call", "call_sid", form.CallSid, "status", st.Status)
			respondXML(c, h.renderer.Render(ctx, RenderInput{Message: sessionEndedLine, ExpectsResponse: false}))
			return
		}
	}

	if form.SpeechResult == "" || form.Confidence < h.confidenceThreshold {
		h.handleLowQualityInput(ctx, c, form)
		return
	}

	res, err := h.engine.ProcessUserInput(ctx, form.CallSid, form.SpeechResult, form.Confidence)
	if err != nil {
		log.Error("conversation turn failed", "call_sid", form.CallSid, "err", err)
		h.handleLowQualityInput(ctx, c, form)
		return
	}

	step, expects := nextStep(res)
	if _, err := h.states.Update(ctx, form.CallSid, callstate.Update{
		Step:             callstate.StepPtr(step),
		AwaitingResponse: callstate.BoolPtr(expects),
		ContextLabel:     callstate.StringPtr("intent: " + string(res.Intent)),
	}); err != nil {
		// The reply is already decided; a failed state write costs accuracy
		// on the next turn, not this one.
		log.Error("call state update failed", "call_sid", form.CallSid, "err", err)
	}

	h.afterTurn(form, res)

	respondXML(c, h.renderer.Render(ctx, RenderInput{
		Message:         res.Message,
		ExpectsResponse: expects,
		Step:            step,
		CallbackURL:     h.callbackURL,
	}))
}

// handleLowQualityInput counts the turn against the retry budget and
// re-prompts without advancing the step. Budget exhaustion ends the call with
// an explanation instead of silence.
func (h *Handler) handleLowQualityInput(ctx context.Context, c *gin.Context, form VoiceForm) {
	log := logger.FromGin(c)

	st, err := h.states.RecordError(ctx, form.CallSid, "low quality input")
	if err != nil {
		log.Error("record error failed", "call_sid", form.CallSid, "err", err)
		respondXML(c, h.renderer.SafeErrorDocument())
		return
	}
	if st.Status == callstate.StatusEnded {
		log.Info("retry budget exhausted", "call_sid", form.CallSid, "errors", st.ErrorCount)
		respondXML(c, h.renderer.Render(ctx, RenderInput{Message: budgetLine, ExpectsResponse: false}))
		return
	}
	respondXML(c, h.renderer.Render(ctx, RenderInput{
		Message:         retryPrompt,
		ExpectsResponse: true,
		Step:            st.Step,
		CallbackURL:     h.callbackURL,
	}))
}

// nextStep maps a turn result onto the conversation step. Goodbye is the only
// intent that stops expecting caller speech.
func nextStep(res conversation.TurnResult) (callstate.Step, bool) {
	switch {
	case res.Intent == conversation.IntentGoodbye:
		return callstate.StepCompleting, false
	case res.Booking != nil:
		return callstate.StepBooking, true
	case res.Intent == conversation.IntentBooking:
		return callstate.StepBooking, true
	default:
		return callstate.StepCollectingInfo, true
	}
}

// afterTurn runs the fire-and-forget side effects: booking notification and
// the live dashboard feed. Neither may delay the markup response.
func (h *Handler) afterTurn(form VoiceForm, res conversation.TurnResult) {
	if h.notifier != nil && res.Booking != nil {
		b := *res.Booking
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.notifier.BookingCreated(nctx, b); err != nil {
				logger.From(nctx).Warn("booking notification failed", "call_sid", form.CallSid, "err", err)
			}
		}()
	}
	if h.live != nil {
		h.live.Broadcast(form.CallSid, TurnEvent{
			CallSid:   form.CallSid,
			Caller:    form.SpeechResult,
			Assistant: res.Message,
			Intent:    string(res.Intent),
			At:        h.clock().UTC(),
		})
	}
}

// HandleCallStatus reacts to terminal provider statuses: it ends the state
// record and the conversation context, and is the single point that flushes
// transcript and duration to durable storage.
func (h *Handler) HandleCallStatus(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	form, err := ParseVoiceForm(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("voice webhook parse failed", "err", err)
		c.Status(http.StatusOK)
		return
	}
	ctx = logger.WithCall(ctx, form.CallSid)

	if !isTerminalStatus(form.CallStatus) {
		c.Status(http.StatusOK)
		return
	}

	st, serr := h.states.End(ctx, form.CallSid)
	if serr != nil && !errors.Is(serr, callstate.ErrNotFound) {
		log.Error("call state end failed", "call_sid", form.CallSid, "err", serr)
	}

	cctx, cerr := h.engine.End(ctx, form.CallSid)
	if errors.Is(cerr, session.ErrNotFound) {
		// A duplicate status delivery finds the context already flushed and
		// deleted; nothing more to do.
		log.Info("call status with no live context", "call_sid", form.CallSid, "status", form.CallStatus)
		c.Status(http.StatusOK)
		return
	}
	if cerr != nil {
		// A transient store failure must not lose the only durable artifact
		// of the call; flush what was recovered and free the tenant slot.
		log.Error("conversation context end failed", "call_sid", form.CallSid, "err", cerr)
	}

	h.flushRecord(ctx, form, st, cctx)

	if h.limiter != nil {
		// Released exactly once: the context deletion above is the guard
		// against double release on duplicate deliveries.
		if err := h.limiter.Release(ctx, h.tenantID); err != nil {
			log.Warn("call limiter release failed", "call_sid", form.CallSid, "err", err)
		}
	}

	log.Info("call ended", "call_sid", form.CallSid, "status", form.CallStatus, "duration_s", form.CallDuration)
	c.Status(http.StatusOK)
}

func (h *Handler) flushRecord(ctx context.Context, form VoiceForm, st callstate.State, cctx conversation.Context) {
	log := logger.From(ctx)

	transcript, err := json.Marshal(cctx.Messages)
	if err != nil {
		transcript = []byte("[]")
	}
	rec := calls.Record{
		TenantID:        h.tenantID,
		ProviderCallID:  form.CallSid,
		From:            st.From,
		Status:          calls.FromProvider(form.CallStatus),
		DurationSeconds: form.CallDuration,
		Transcript:      string(transcript),
		Intent:          string(cctx.Intent),
		BookingID:       cctx.BookingID,
		Interactions:    st.TotalInteractions,
		StartedAt:       st.StartedAt,
	}
	rec, err = calls.NewRecord(rec, h.clock())
	if err != nil {
		log.Error("call record build failed", "call_sid", form.CallSid, "err", err)
		return
	}
	if err := h.records.Insert(ctx, rec); err != nil {
		log.Error("call record flush failed", "call_sid", form.CallSid, "err", err)
	}
}

func isTerminalStatus(status string) bool {
	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
		return true
	}
	return false
}
