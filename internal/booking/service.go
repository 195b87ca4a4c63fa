package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("booking: not found")
	ErrInvalidArgument = errors.New("booking: invalid argument")
)

// Repository is the persistence contract for bookings and technicians.
// Implementations must enforce tenant filtering on every query.
type Repository interface {
	Insert(ctx context.Context, b Booking) error
	Get(ctx context.Context, tenantID, id string) (Booking, error)
	List(ctx context.Context, tenantID string, limit int) ([]Booking, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status Status, notes string, now time.Time) (Booking, error)
	ListTechnicians(ctx context.Context, tenantID string) ([]Technician, error)
}

// Service provides booking operations for both the conversation engine
// (create) and the dashboard (list, status updates).
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// CreateRequest is the completed draft handed over by the conversation
// engine once name, phone and service type are all present.
type CreateRequest struct {
	TenantID      string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	ServiceType   string
	PreferredDate string
	PreferredTime string
	Notes         string
	CallID        string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	if req.TenantID == "" || req.CustomerName == "" || req.CustomerPhone == "" || req.ServiceType == "" {
		return Booking{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	b := Booking{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		ServiceType:   req.ServiceType,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
		Status:        StatusPending,
		Notes:         req.Notes,
		CallID:        req.CallID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Booking, error) {
	if tenantID == "" || id == "" {
		return Booking{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]Booking, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, tenantID, limit)
}

func (s *Service) UpdateStatus(ctx context.Context, tenantID, id string, status Status, notes string) (Booking, error) {
	if tenantID == "" || id == "" {
		return Booking{}, ErrInvalidArgument
	}
	if !status.Valid() {
		return Booking{}, ErrInvalidArgument
	}
	return s.repo.UpdateStatus(ctx, tenantID, id, status, notes, s.clock().UTC())
}

func (s *Service) ListTechnicians(ctx context.Context, tenantID string) ([]Technician, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListTechnicians(ctx, tenantID)
}
