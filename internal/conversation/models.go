package conversation

import "time"

// Context is the per-call dialogue record held in the ephemeral store,
// separate from the call state machine record but with the same lifetime.
type Context struct {
	CallID   string `json:"call_id"`
	TenantID string `json:"tenant_id"`

	// Messages is append-only during the call. The full history is retained
	// here; only a bounded recent window is handed to the language model.
	Messages []Message `json:"messages"`

	// Intent is the last-detected intent label.
	Intent Intent `json:"intent,omitempty"`

	// CustomerInfo accumulates partial fields across turns. Fields are never
	// cleared, only added or overwritten once non-empty.
	CustomerInfo CustomerInfo `json:"customer_info"`

	BookingInProgress bool   `json:"booking_in_progress"`
	BookingDraft      *Draft `json:"booking_request,omitempty"`

	// BookingID links back to a booking persisted during this call.
	BookingID string `json:"booking_id,omitempty"`

	// Flags avoid repeating the name question.
	AskedForName bool `json:"asked_for_name"`
	HasName      bool `json:"has_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleCaller    = "caller"
	RoleAssistant = "assistant"
)

// CustomerInfo is the set of structured fields extracted from utterances.
type CustomerInfo struct {
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	ServiceType   string `json:"service_type,omitempty"`
	PreferredDate string `json:"preferred_date,omitempty"`
	PreferredTime string `json:"preferred_time,omitempty"`
}

// Merge copies non-empty fields from other without overwriting fields that
// are already set.
func (c *CustomerInfo) Merge(other CustomerInfo) {
	if c.Name == "" && other.Name != "" {
		c.Name = other.Name
	}
	if c.Phone == "" && other.Phone != "" {
		c.Phone = other.Phone
	}
	if c.Email == "" && other.Email != "" {
		c.Email = other.Email
	}
	if c.ServiceType == "" && other.ServiceType != "" {
		c.ServiceType = other.ServiceType
	}
	if c.PreferredDate == "" && other.PreferredDate != "" {
		c.PreferredDate = other.PreferredDate
	}
	if c.PreferredTime == "" && other.PreferredTime != "" {
		c.PreferredTime = other.PreferredTime
	}
}

// Draft is the partially-filled booking accumulated across turns before it
// is persisted.
type Draft struct {
	CustomerInfo
	Notes string `json:"notes,omitempty"`
}

// Complete reports whether the draft satisfies the completeness predicate:
// name, phone and service type present. Preferred date/time are desirable
// but not gating.
func (d *Draft) Complete() bool {
	if d == nil {
		return false
	}
	return d.Name != "" && d.Phone != "" && d.ServiceType != ""
}

// Append adds a message and stamps the context.
func (c *Context) Append(role, text string, confidence float64, now time.Time) {
	c.Messages = append(c.Messages, Message{
		Role:       role,
		Text:       text,
		Timestamp:  now,
		Confidence: confidence,
	})
	c.UpdatedAt = now
}

// RecentWindow returns the last n messages for prompt construction.
func (c *Context) RecentWindow(n int) []Message {
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Intent labels form a fixed vocabulary.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentBooking   Intent = "booking"
	IntentInquiry   Intent = "inquiry"
	IntentHours     Intent = "hours"
	IntentServices  Intent = "services"
	IntentPricing   Intent = "pricing"
	IntentComplaint Intent = "complaint"
	IntentGoodbye   Intent = "goodbye"
)
