package calls

import "time"

// Record is the durable, tenant-scoped row flushed once per phone call when
// the provider reports a terminal status. The ephemeral per-call state lives
// in the session store; this is the only durable artifact of a call.
//
// Provider-specific identifiers (Twilio CallSid) are stored as
// provider_call_id, not mixed into a provider-agnostic id.
type Record struct {
	ID             string `json:"id" db:"id"`
	TenantID       string `json:"tenant_id" db:"tenant_id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`

	From string `json:"from" db:"from_number"`

	Status Status `json:"status" db:"status"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Transcript is the full ordered turn history, JSON-encoded at the
	// store boundary.
	Transcript string `json:"transcript,omitempty" db:"transcript"`

	Intent       string `json:"intent,omitempty" db:"intent"`
	BookingID    string `json:"booking_id,omitempty" db:"booking_id"`
	Interactions int    `json:"interactions" db:"interactions"`

	// VoicemailTranscript is attached after the fact when the provider
	// delivers a recording; the recording callback can arrive minutes after
	// the terminal status flush.
	VoicemailTranscript string `json:"voicemail_transcript,omitempty" db:"voicemail_transcript"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNoAnswer  Status = "no_answer"
	StatusBusy      Status = "busy"
	StatusCanceled  Status = "canceled"
)

// FromProvider maps a provider call-status value onto the durable vocabulary.
// Unknown terminal statuses are recorded as failed rather than dropped.
func FromProvider(status string) Status {
	switch status {
	case "completed":
		return StatusCompleted
	case "busy":
		return StatusBusy
	case "no-answer":
		return StatusNoAnswer
	case "canceled":
		return StatusCanceled
	default:
		return StatusFailed
	}
}
