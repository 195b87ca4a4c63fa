package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenant isolation: TenantID is required.

type CallsSummaryRequest struct {
	TenantID string    `json:"tenant_id"`
	Range    TimeRange `json:"range"`
}

type CallsSummary struct {
	TenantID string `json:"tenant_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	BusyCalls      int `json:"busy_calls"`
	CanceledCalls  int `json:"canceled_calls"`

	// BookedCalls counts calls that produced a booking.
	BookedCalls int `json:"booked_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// AverageInteractions is the mean number of conversation steps per call.
	AverageInteractions int `json:"average_interactions"`
}

// BookingsSummaryRequest requests aggregated booking metrics.

type BookingsSummaryRequest struct {
	TenantID string `json:"tenant_id"`
	Limit    int    `json:"limit,omitempty"`
}

type BookingsSummary struct {
	TenantID string `json:"tenant_id"`

	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`

	// ByService counts bookings per requested service type.
	ByService map[string]int `json:"by_service"`
}

// DashboardStats is the combined view the dashboard home screen renders.

type DashboardStats struct {
	TenantID string          `json:"tenant_id"`
	Calls    CallsSummary    `json:"calls"`
	Bookings BookingsSummary `json:"bookings"`

	// BookingRate is bookings created per answered call in the range.
	BookingRate float64 `json:"booking_rate"`
}
