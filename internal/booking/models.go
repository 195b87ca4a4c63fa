package booking

import "time"

// Booking is a durable, tenant-scoped service booking.
//
// Created once per completed booking flow; afterwards mutated only through
// explicit status updates from the dashboard.
type Booking struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty" db:"customer_email"`

	ServiceType   string `json:"service_type" db:"service_type"`
	PreferredDate string `json:"preferred_date,omitempty" db:"preferred_date"`
	PreferredTime string `json:"preferred_time,omitempty" db:"preferred_time"`

	Status Status `json:"status" db:"status"`
	Notes  string `json:"notes,omitempty" db:"notes"`

	// CallID links back to the originating phone call, when there is one.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Technician is a member of the field staff shown on the dashboard.
type Technician struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Phone    string `json:"phone,omitempty" db:"phone"`
	Skills   string `json:"skills,omitempty" db:"skills"`
	Active   bool   `json:"active" db:"active"`
}
