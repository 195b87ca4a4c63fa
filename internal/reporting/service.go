package reporting

import (
	"context"
	"errors"

	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates dashboard metrics from the durable call and booking
// stores. It only reads; all writes happen on the webhook and dashboard
// paths.
//
// IMPORTANT: every query is tenant-filtered by the underlying repositories.

type Service struct {
	calls    calls.Repository
	bookings booking.Repository
}

func NewService(callRepo calls.Repository, bookingRepo booking.Repository) *Service {
	return &Service{calls: callRepo, bookings: bookingRepo}
}

const summaryFetchLimit = 500

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.calls == nil {
		return CallsSummary{}, errors.New("reporting: call repository not configured")
	}

	rows, err := s.calls.List(ctx, req.TenantID, req.Range.From, req.Range.To, summaryFetchLimit)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: req.TenantID}
	interactions := 0
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		interactions += c.Interactions
		if c.BookingID != "" {
			out.BookedCalls++
		}
		switch c.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.AverageInteractions = interactions / out.TotalCalls
	}
	return out, nil
}

func (s *Service) BookingsSummary(ctx context.Context, req BookingsSummaryRequest) (BookingsSummary, error) {
	if req.TenantID == "" {
		return BookingsSummary{}, ErrInvalidRequest
	}
	if s.bookings == nil {
		return BookingsSummary{}, errors.New("reporting: booking repository not configured")
	}
	limit := req.Limit
	if limit <= 0 || limit > summaryFetchLimit {
		limit = summaryFetchLimit
	}

	rows, err := s.bookings.List(ctx, req.TenantID, limit)
	if err != nil {
		return BookingsSummary{}, err
	}

	out := BookingsSummary{TenantID: req.TenantID, ByService: map[string]int{}}
	for _, b := range rows {
		out.Total++
		out.ByService[b.ServiceType]++
		switch b.Status {
		case booking.StatusPending:
			out.Pending++
		case booking.StatusConfirmed:
			out.Confirmed++
		case booking.StatusCancelled:
			out.Cancelled++
		}
	}
	return out, nil
}

// Dashboard combines both summaries with a booking conversion rate.
func (s *Service) Dashboard(ctx context.Context, tenantID string, rng TimeRange) (DashboardStats, error) {
	cs, err := s.CallsSummary(ctx, CallsSummaryRequest{TenantID: tenantID, Range: rng})
	if err != nil {
		return DashboardStats{}, err
	}
	bs, err := s.BookingsSummary(ctx, BookingsSummaryRequest{TenantID: tenantID})
	if err != nil {
		return DashboardStats{}, err
	}

	out := DashboardStats{TenantID: tenantID, Calls: cs, Bookings: bs}
	if cs.TotalCalls > 0 {
		out.BookingRate = float64(cs.BookedCalls) / float64(cs.TotalCalls)
	}
	return out, nil
}
