package callstate

import "time"

// State is the per-call lifecycle record held in the ephemeral store.
//
// Invariants:
//   - Mutated only through the Machine; the webhook layer is the single writer.
//   - Latest write wins; the provider delivers events for one call sequentially,
//     so no cross-process lock is taken.
//   - Once ErrorCount reaches MaxRetries the call is ended and stays ended.
type State struct {
	CallID string `json:"call_id"`

	Status Status `json:"status"`
	Step   Step   `json:"conversation_step"`

	// AwaitingResponse is true when the next inbound event is expected to
	// carry caller speech.
	AwaitingResponse bool `json:"awaiting_response"`

	// ContextLabel is a free-form diagnostic describing what the call is
	// currently waiting for.
	ContextLabel string `json:"conversation_context,omitempty"`

	// TotalInteractions increments each time a new conversation step is set.
	TotalInteractions int `json:"total_interactions"`

	ErrorCount int `json:"error_count"`
	MaxRetries int `json:"max_retries"`

	From      string    `json:"from,omitempty"`
	StartedAt time.Time `json:"started_at"`

	// LastActivity is stamped on every read-modify-write and drives the
	// staleness ceiling.
	LastActivity time.Time `json:"last_activity"`
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type Step string

const (
	StepGreeting       Step = "greeting"
	StepCollectingInfo Step = "collecting_info"
	StepProcessing     Step = "processing_request"
	StepBooking        Step = "booking"
	StepCompleting     Step = "completing"
)

// Update carries the partial fields merged into a State on each turn.
// Nil fields are left untouched.
type Update struct {
	Status           *Status
	Step             *Step
	AwaitingResponse *bool
	ContextLabel     *string
}

func StatusPtr(s Status) *Status { return &s }
func StepPtr(s Step) *Step       { return &s }
func BoolPtr(b bool) *bool       { return &b }
func StringPtr(s string) *string { return &s }
